package motion

import (
	"context"
	"fmt"
	"sync"

	"github.com/goodtune/motioncoach/internal/device"
	"github.com/goodtune/motioncoach/internal/metrics"
	"github.com/rs/zerolog"
)

// Lifecycle is implemented by engines that hold resources between Init and
// Shutdown.
type Lifecycle interface {
	Init(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// Context owns an engine for the life of the process. It is created once,
// initialized before the coordinator starts, and shut down on exit.
type Context struct {
	engine Engine
	logger zerolog.Logger

	mu      sync.RWMutex
	running bool
	names   map[string]string
}

// NewContext wraps engine. The engine is unusable until Init succeeds.
func NewContext(engine Engine, logger zerolog.Logger) *Context {
	return &Context{
		engine: engine,
		logger: logger.With().Str("component", "motion").Logger(),
	}
}

// Init prepares the engine and loads its movement catalog.
func (c *Context) Init(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}
	if lc, ok := c.engine.(Lifecycle); ok {
		if err := lc.Init(ctx); err != nil {
			return fmt.Errorf("init motion engine: %w", err)
		}
	}

	c.names = make(map[string]string)
	for _, m := range c.engine.Movements() {
		c.names[m.ID] = m.DisplayName
	}
	c.running = true

	c.logger.Info().Int("movements", len(c.names)).Msg("Motion engine initialized")
	return nil
}

// Shutdown releases the engine. Further calls fail with ErrNotInitialized.
func (c *Context) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil
	}
	c.running = false
	if lc, ok := c.engine.(Lifecycle); ok {
		if err := lc.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown motion engine: %w", err)
		}
	}
	c.logger.Info().Msg("Motion engine shut down")
	return nil
}

// Analyze runs the engine's analyzer and records the outcome.
func (c *Context) Analyze(ctx context.Context, out *device.Output, mode Mode, hint string) ([]Result, error) {
	if !c.isRunning() {
		return nil, ErrNotInitialized
	}

	results, err := c.engine.Analyze(ctx, out, mode, hint)
	if err != nil {
		metrics.AnalysesTotal.WithLabelValues(mode.String(), "error").Inc()
		return nil, err
	}
	if len(results) == 0 {
		metrics.AnalysesTotal.WithLabelValues(mode.String(), "empty").Inc()
		return nil, nil
	}

	metrics.AnalysesTotal.WithLabelValues(mode.String(), "success").Inc()
	for _, r := range results {
		if !r.IsResting() {
			metrics.RepsCounted.WithLabelValues(r.Movement).Add(float64(r.RepCount))
		}
	}
	return results, nil
}

// Train runs the engine's trainer.
func (c *Context) Train(ctx context.Context, label string, examples []Example) error {
	if !c.isRunning() {
		return ErrNotInitialized
	}
	return c.engine.Train(ctx, label, examples)
}

// Forget drops the engine's model for label.
func (c *Context) Forget(ctx context.Context, label string) error {
	if !c.isRunning() {
		return ErrNotInitialized
	}
	return c.engine.Forget(ctx, label)
}

// Movements returns the engine's catalog.
func (c *Context) Movements() []Movement {
	return c.engine.Movements()
}

// DisplayName returns the human name for a movement type, falling back to
// the type itself.
func (c *Context) DisplayName(id string) string {
	if id == Resting {
		return "Resting"
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if name, ok := c.names[id]; ok {
		return name
	}
	return id
}

func (c *Context) isRunning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}

var (
	_ Analyzer = (*Context)(nil)
	_ Trainer  = (*Context)(nil)
)
