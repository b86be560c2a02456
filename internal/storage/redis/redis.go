package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/goodtune/motioncoach/internal/config"
	"github.com/goodtune/motioncoach/internal/storage"
	"github.com/redis/go-redis/v9"
)

// Store implements the storage.Store interface using Redis
type Store struct {
	client       *redis.Client
	exampleStore *exampleStore
	resultStore  *resultStore
}

// Open creates a new Redis-backed storage instance
func Open(cfg config.RedisConfig) (*Store, error) {
	// Parse timeouts
	dialTimeout, err := time.ParseDuration(cfg.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid dial_timeout: %w", err)
	}

	readTimeout, err := time.ParseDuration(cfg.ReadTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid read_timeout: %w", err)
	}

	writeTimeout, err := time.ParseDuration(cfg.WriteTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid write_timeout: %w", err)
	}

	// Determine address
	addr := cfg.Host
	if cfg.Port > 0 {
		addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  dialTimeout,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	})

	// Ping to verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	k := keys{prefix: cfg.KeyPrefix}
	if k.prefix == "" {
		k.prefix = "motioncoach"
	}

	return &Store{
		client:       client,
		exampleStore: &exampleStore{client: client, keys: k},
		resultStore:  &resultStore{client: client, keys: k},
	}, nil
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

// Examples returns the ExampleStore implementation
func (s *Store) Examples() storage.ExampleStore {
	return s.exampleStore
}

// Results returns the ResultStore implementation
func (s *Store) Results() storage.ResultStore {
	return s.resultStore
}

// keys builds every key the store touches under one prefix.
type keys struct {
	prefix string
}

func (k keys) examples(movement string) string {
	return fmt.Sprintf("%s:examples:%s", k.prefix, movement)
}

// movements lives outside the examples namespace so no movement label can
// name it.
func (k keys) movements() string {
	return k.prefix + ":movements"
}

func (k keys) result(id string) string {
	return fmt.Sprintf("%s:result:%s", k.prefix, id)
}

func (k keys) resultLog() string {
	return k.prefix + ":results"
}

func (k keys) resultsByMovement(movement string) string {
	return fmt.Sprintf("%s:results:movement:%s", k.prefix, movement)
}
