package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/goodtune/motioncoach/internal/config"
	"github.com/goodtune/motioncoach/internal/console"
	"github.com/goodtune/motioncoach/internal/coordinator"
	"github.com/goodtune/motioncoach/internal/device"
	"github.com/goodtune/motioncoach/internal/eventloop"
	"github.com/goodtune/motioncoach/internal/metrics"
	"github.com/goodtune/motioncoach/internal/motion"
	"github.com/goodtune/motioncoach/internal/motion/tempo"
	"github.com/goodtune/motioncoach/internal/storage"
	"github.com/goodtune/motioncoach/internal/storage/bolt"
	"github.com/goodtune/motioncoach/internal/storage/memory"
	"github.com/goodtune/motioncoach/internal/storage/redis"
	"github.com/goodtune/motioncoach/internal/systemd"
	"github.com/goodtune/motioncoach/internal/training"
	"github.com/goodtune/motioncoach/internal/transport/sim"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var runHeadless bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start a coaching session",
	Long: `Start a coaching session: discover devices, connect the first one, and
read commands (connect, record, train, mode, ...) from standard input.`,
	RunE: runSession,
}

func init() {
	runCmd.Flags().BoolVar(&runHeadless, "headless", false, "Do not read commands; log state changes and wait for a signal")
	rootCmd.AddCommand(runCmd)
}

func runSession(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Setup logger. The console owns stdout, so logs go to stderr.
	logger := setupLogger(cfg.Logging, os.Stderr)
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Msg("Starting motioncoach")

	// Check for systemd socket activation
	sdListeners, err := systemd.GetListeners()
	if err != nil {
		return fmt.Errorf("failed to get systemd listeners: %w", err)
	}
	if sdListeners.Activated {
		logger.Info().Msg("Running with systemd socket activation")
	}

	// Initialize storage
	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()
	logger.Info().Str("type", cfg.Storage.Type).Msg("Storage initialized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize the motion engine
	engine := motion.NewContext(tempo.New(tempo.Config{Tolerance: cfg.Engine.Tolerance}, logger), logger)
	if err := engine.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize motion engine: %w", err)
	}
	defer func() {
		if err := engine.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("Failed to shut down motion engine")
		}
	}()

	// Restore training sets and rebuild their models
	library := training.NewLibrary(engine, store.Examples(), logger)
	if err := library.Load(ctx); err != nil {
		return fmt.Errorf("failed to load training examples: %w", err)
	}
	if err := library.TrainAll(ctx); err != nil {
		logger.Warn().Err(err).Msg("Some movements could not be trained")
	}

	// Start the event loop
	loop := eventloop.New(cfg.Session.QueueDepth, logger)
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		loop.Run(ctx)
	}()

	registry := device.NewRegistry(loop, device.RealClock{}, logger)

	opts, err := sessionOptions(cfg.Session)
	if err != nil {
		return err
	}

	var display coordinator.Display
	var terminal *console.Display
	if runHeadless {
		display = logDisplay{logger: logger.With().Str("component", "display").Logger()}
	} else {
		terminal = console.NewDisplay(os.Stdout)
		display = terminal
	}
	display = &statusDisplay{
		Display: display,
		notify:  systemd.NotifyStatus,
		logger:  logger.With().Str("component", "systemd").Logger(),
	}

	coord, err := coordinator.New(coordinator.Deps{
		Engine:   engine,
		Registry: registry,
		Library:  library,
		Results:  store.Results(),
		Display:  display,
		Clock:    device.RealClock{},
	}, opts, logger)
	if err != nil {
		return fmt.Errorf("failed to create coordinator: %w", err)
	}
	if err := loop.Call(ctx, func() { coord.Start(ctx) }); err != nil {
		return fmt.Errorf("failed to start coordinator: %w", err)
	}

	// Start the simulated transport
	var simulator console.Simulator
	if cfg.Simulator.Enabled {
		simCfg, err := sim.FromConfig(cfg.Simulator)
		if err != nil {
			return fmt.Errorf("invalid simulator configuration: %w", err)
		}
		backend := sim.New(simCfg, registry.Inbox(), device.RealClock{}, logger)
		backend.Start()
		defer backend.Stop()
		simulator = backend
	}

	// Initialize Metrics Server
	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled || sdListeners.Metrics != nil {
		metricsAddr := fmt.Sprintf("%s:%d", cfg.Metrics.BindAddress, cfg.Metrics.Port)
		metricsServer = metrics.NewServer(metricsAddr, logger)
		if sdListeners.Metrics != nil {
			metricsServer.SetListener(sdListeners.Metrics)
		}
		if err := metricsServer.Start(); err != nil {
			return fmt.Errorf("failed to start Metrics Server: %w", err)
		}
	}

	logger.Info().
		Str("mode", opts.Mode.String()).
		Str("analyzer", opts.Analyzer.String()).
		Str("movement", opts.Movement).
		Msg("motioncoach startup complete")

	// Notify systemd that we're ready
	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd ready notification")
	}

	consoleDone := make(chan error, 1)
	if !runHeadless {
		con := console.New(console.Options{
			Coordinator: coord,
			Registry:    registry,
			Loop:        loop,
			Display:     terminal,
			Catalog:     engine,
			Simulator:   simulator,
		}, logger)
		go func() { consoleDone <- con.Run(ctx, os.Stdin) }()
	}

	// Wait for signals or the end of input
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)

wait:
	for {
		select {
		case sig := <-sigChan:
			if sig == syscall.SIGHUP {
				logger.Info().Msg("SIGHUP received, retraining movements...")
				var trainErr error
				if err := loop.Call(ctx, func() { trainErr = library.TrainAll(ctx) }); err != nil {
					trainErr = err
				}
				if trainErr != nil {
					logger.Error().Err(trainErr).Msg("Retraining failed")
				} else {
					logger.Info().Msg("Movements retrained")
				}
				continue
			}
			logger.Info().Msg("Shutdown signal received, stopping...")
			break wait
		case err := <-consoleDone:
			if err != nil {
				logger.Error().Err(err).Msg("Console stopped")
			}
			break wait
		}
	}

	// Notify systemd that we're stopping
	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd stopping notification")
	}

	if err := loop.Call(ctx, coord.Stop); err != nil {
		logger.Warn().Err(err).Msg("Failed to stop coordinator")
	}
	cancel()
	<-loopDone

	if metricsServer != nil {
		if err := metricsServer.Stop(); err != nil {
			logger.Error().Err(err).Msg("Error stopping Metrics Server")
		}
	}

	logger.Info().Msg("motioncoach stopped")
	return nil
}

// sessionOptions converts the session section into coordinator options.
func sessionOptions(cfg config.SessionConfig) (coordinator.Options, error) {
	mode, err := coordinator.ParseMode(cfg.Mode)
	if err != nil {
		return coordinator.Options{}, err
	}
	analyzer, err := motion.ParseMode(cfg.Analyzer)
	if err != nil {
		return coordinator.Options{}, err
	}
	return coordinator.Options{
		Mode:        mode,
		Analyzer:    analyzer,
		Movement:    cfg.Movement,
		RepCount:    cfg.RepCount,
		AutoTrain:   cfg.AutoTrain,
		HistorySize: cfg.HistorySize,
	}, nil
}

// logDisplay reports display state through the logger when no terminal is
// attached.
type logDisplay struct {
	logger zerolog.Logger
}

func (d logDisplay) Render(st coordinator.State) {
	d.logger.Info().
		Str("status", st.Status).
		Str("mode", st.Mode.String()).
		Str("movement", st.Movement).
		Int("examples", st.ExampleCount).
		Str("results", st.Results).
		Msg("State changed")
}

func (d logDisplay) Alert(title, message string) {
	d.logger.Warn().Str("alert", title).Msg(message)
}

func (d logDisplay) Feedback(cue coordinator.Cue) {
	d.logger.Info().Str("cue", cue.String()).Dur("duration", cue.Duration()).Msg("Recording cue")
}

// statusDisplay mirrors the coordinator status line to the service manager
// before handing the state to the wrapped display.
type statusDisplay struct {
	coordinator.Display
	notify func(status string) error
	logger zerolog.Logger
	last   string
}

func (d *statusDisplay) Render(st coordinator.State) {
	if st.Status != d.last {
		d.last = st.Status
		if err := d.notify(st.Status); err != nil {
			d.logger.Debug().Err(err).Msg("Failed to publish status")
		}
	}
	d.Display.Render(st)
}

func openStorage(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Type {
	case "", "memory":
		return memory.New(), nil
	case "bolt":
		return bolt.Open(cfg.Path)
	case "redis":
		return redis.Open(cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// setupLogger configures the logger based on configuration
func setupLogger(cfg config.LoggingConfig, out io.Writer) zerolog.Logger {
	// Set log level
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	// Set output format
	if cfg.Format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
	}

	// Default to JSON
	return zerolog.New(out).With().Timestamp().Logger()
}
