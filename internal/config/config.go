package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Session   SessionConfig   `mapstructure:"session"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Simulator SimulatorConfig `mapstructure:"simulator"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// StorageConfig defines storage backend settings
type StorageConfig struct {
	Type  string      `mapstructure:"type"` // "memory", "bolt" or "redis"
	Path  string      `mapstructure:"path"` // bolt database file
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig defines Redis connection settings
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  string `mapstructure:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
	KeyPrefix    string `mapstructure:"key_prefix"`
}

// MetricsConfig defines the Prometheus endpoint
type MetricsConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	BindAddress string `mapstructure:"bind_address"`
	Port        int    `mapstructure:"port"`
}

// SessionConfig defines coordinator behavior
type SessionConfig struct {
	Mode        string `mapstructure:"mode"`     // "training" or "recognition"
	Analyzer    string `mapstructure:"analyzer"` // "single" or "multiple"
	Movement    string `mapstructure:"movement"`
	RepCount    int    `mapstructure:"rep_count"`
	AutoTrain   bool   `mapstructure:"auto_train"`
	HistorySize int    `mapstructure:"history_size"`
	QueueDepth  int    `mapstructure:"queue_depth"`
}

// EngineConfig tunes the reference motion engine
type EngineConfig struct {
	Tolerance float64 `mapstructure:"tolerance"`
}

// SimulatorConfig defines the simulated device backend
type SimulatorConfig struct {
	Enabled       bool                    `mapstructure:"enabled"`
	ConnectDelay  string                  `mapstructure:"connect_delay"`
	AnnounceDelay string                  `mapstructure:"announce_delay"`
	SampleRate    int                     `mapstructure:"sample_rate"` // Hz
	Devices       []SimulatedDeviceConfig `mapstructure:"devices"`
}

// SimulatedDeviceConfig describes one simulated wearable
type SimulatedDeviceConfig struct {
	ID          string  `mapstructure:"id"`
	Name        string  `mapstructure:"name"`
	Kind        string  `mapstructure:"kind"`
	RepPeriod   string  `mapstructure:"rep_period"` // "0s" records a still capture
	Amplitude   float64 `mapstructure:"amplitude"`
	FailConnect bool    `mapstructure:"fail_connect"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Configure viper
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("motioncoach")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/motioncoach")
	}
	v.SetEnvPrefix("MOTIONCOACH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Keys lists every recognized configuration key.
func Keys() []string {
	v := viper.New()
	setDefaults(v)
	return v.AllKeys()
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Storage defaults
	v.SetDefault("storage.type", "memory")
	v.SetDefault("storage.path", "/var/lib/motioncoach/motioncoach.bolt")
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.pool_size", 10)
	v.SetDefault("storage.redis.min_idle_conns", 2)
	v.SetDefault("storage.redis.dial_timeout", "5s")
	v.SetDefault("storage.redis.read_timeout", "3s")
	v.SetDefault("storage.redis.write_timeout", "3s")
	v.SetDefault("storage.redis.key_prefix", "motioncoach")

	// Metrics defaults
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.bind_address", "127.0.0.1")
	v.SetDefault("metrics.port", 9090)

	// Session defaults
	v.SetDefault("session.mode", "training")
	v.SetDefault("session.analyzer", "single")
	v.SetDefault("session.movement", "demo")
	v.SetDefault("session.rep_count", 10)
	v.SetDefault("session.auto_train", true)
	v.SetDefault("session.history_size", 20)
	v.SetDefault("session.queue_depth", 64)

	// Engine defaults
	v.SetDefault("engine.tolerance", 0.35)

	// Simulator defaults
	v.SetDefault("simulator.enabled", true)
	v.SetDefault("simulator.connect_delay", "500ms")
	v.SetDefault("simulator.announce_delay", "0s")
	v.SetDefault("simulator.sample_rate", 50)
	v.SetDefault("simulator.devices", []map[string]any{
		{
			"id":         "sim-1",
			"name":       "Simulated Band",
			"kind":       "sim",
			"rep_period": "2s",
			"amplitude":  2.0,
		},
	})
}

// validate validates the configuration
func validate(cfg *Config) error {
	switch cfg.Storage.Type {
	case "":
		cfg.Storage.Type = "memory"
	case "memory", "redis":
	case "bolt":
		if cfg.Storage.Path == "" {
			return fmt.Errorf("storage path is required for bolt storage")
		}
		// Ensure storage directory exists
		storageDir := filepath.Dir(cfg.Storage.Path)
		if err := os.MkdirAll(storageDir, 0755); err != nil {
			return fmt.Errorf("failed to create storage directory: %w", err)
		}
	default:
		return fmt.Errorf("invalid storage type: %s (must be memory, bolt, or redis)", cfg.Storage.Type)
	}

	if cfg.Storage.Type == "redis" {
		for name, value := range map[string]string{
			"dial_timeout":  cfg.Storage.Redis.DialTimeout,
			"read_timeout":  cfg.Storage.Redis.ReadTimeout,
			"write_timeout": cfg.Storage.Redis.WriteTimeout,
		} {
			if _, err := time.ParseDuration(value); err != nil {
				return fmt.Errorf("invalid redis %s: %w", name, err)
			}
		}
	}

	if cfg.Metrics.Enabled && (cfg.Metrics.Port <= 0 || cfg.Metrics.Port > 65535) {
		return fmt.Errorf("invalid metrics port: %d", cfg.Metrics.Port)
	}

	switch cfg.Session.Mode {
	case "training", "recognition":
	default:
		return fmt.Errorf("invalid session mode: %s (must be training or recognition)", cfg.Session.Mode)
	}
	switch cfg.Session.Analyzer {
	case "single", "multiple":
	default:
		return fmt.Errorf("invalid analyzer: %s (must be single or multiple)", cfg.Session.Analyzer)
	}
	if cfg.Session.Movement == "" {
		return fmt.Errorf("session movement is required")
	}
	if cfg.Session.RepCount < 0 {
		return fmt.Errorf("invalid rep count: %d", cfg.Session.RepCount)
	}
	if cfg.Session.HistorySize <= 0 {
		return fmt.Errorf("invalid history size: %d", cfg.Session.HistorySize)
	}
	if cfg.Session.QueueDepth <= 0 {
		return fmt.Errorf("invalid queue depth: %d", cfg.Session.QueueDepth)
	}

	if cfg.Engine.Tolerance < 0 {
		return fmt.Errorf("invalid engine tolerance: %f", cfg.Engine.Tolerance)
	}

	if cfg.Simulator.Enabled {
		if err := validateSimulator(&cfg.Simulator); err != nil {
			return err
		}
	}

	return nil
}

func validateSimulator(sim *SimulatorConfig) error {
	if _, err := time.ParseDuration(sim.ConnectDelay); err != nil {
		return fmt.Errorf("invalid simulator connect_delay: %w", err)
	}
	if _, err := time.ParseDuration(sim.AnnounceDelay); err != nil {
		return fmt.Errorf("invalid simulator announce_delay: %w", err)
	}
	if sim.SampleRate <= 0 {
		return fmt.Errorf("invalid simulator sample rate: %d", sim.SampleRate)
	}

	seen := make(map[string]bool, len(sim.Devices))
	for i, dev := range sim.Devices {
		if dev.ID == "" {
			return fmt.Errorf("simulator device %d: id is required", i)
		}
		if seen[dev.ID] {
			return fmt.Errorf("simulator device %s: duplicate id", dev.ID)
		}
		seen[dev.ID] = true
		if dev.Name == "" {
			sim.Devices[i].Name = dev.ID
		}
		if dev.Kind == "" {
			sim.Devices[i].Kind = "sim"
		}
		if dev.RepPeriod == "" {
			sim.Devices[i].RepPeriod = "2s"
		} else if _, err := time.ParseDuration(dev.RepPeriod); err != nil {
			return fmt.Errorf("simulator device %s: invalid rep_period: %w", dev.ID, err)
		}
	}
	return nil
}
