// Package coordinator binds the device registry, the active device's session,
// training and analysis, and pushes display state after every change.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goodtune/motioncoach/internal/device"
	"github.com/goodtune/motioncoach/internal/motion"
	"github.com/goodtune/motioncoach/internal/storage"
	"github.com/goodtune/motioncoach/internal/training"
	"github.com/rs/zerolog"
)

var (
	// ErrAnalysisUnavailable means nothing has been trained that the capture
	// could be analyzed against. It is shown as "(no result)".
	ErrAnalysisUnavailable = errors.New("analysis unavailable before training")

	// ErrNoDevice is returned by device operations when no device is active.
	ErrNoDevice = errors.New("no active device")
)

// Mode decides where a finished recording goes.
type Mode int

const (
	// Training adds each recording to the current movement's training set.
	Training Mode = iota
	// Recognition analyzes each recording.
	Recognition
)

// ParseMode parses a coordinator mode name.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "training", "train":
		return Training, nil
	case "recognition", "recognize", "analyze":
		return Recognition, nil
	default:
		return Training, fmt.Errorf("invalid mode: %s (must be training or recognition)", s)
	}
}

func (m Mode) String() string {
	if m == Recognition {
		return "recognition"
	}
	return "training"
}

// Engine is the analysis side of the motion engine, plus the catalog names
// used when showing results.
type Engine interface {
	motion.Analyzer
	DisplayName(id string) string
}

// Cue is a short signal telling the wearer that recording started or
// stopped without looking at the screen.
type Cue int

const (
	CueRecordingStarted Cue = iota
	CueRecordingStopped
)

// Duration is how long the cue lasts on hardware that can pulse.
func (c Cue) Duration() time.Duration {
	if c == CueRecordingStarted {
		return 250 * time.Millisecond
	}
	return 100 * time.Millisecond
}

func (c Cue) String() string {
	if c == CueRecordingStarted {
		return "recording started"
	}
	return "recording stopped"
}

// Display receives every state change. Alert is a blocking acknowledgment
// in interactive front ends. Feedback delivers a recording cue and must not
// block.
type Display interface {
	Render(state State)
	Alert(title, message string)
	Feedback(cue Cue)
}

// Options configure a Coordinator.
type Options struct {
	Mode        Mode
	Analyzer    motion.Mode
	Movement    string
	RepCount    int
	AutoTrain   bool
	HistorySize int
}

// Deps are the collaborators a Coordinator drives. Results may be nil.
type Deps struct {
	Engine   Engine
	Registry *device.Registry
	Library  *training.Library
	Results  storage.ResultStore
	Display  Display
	Clock    device.Clock
}

// Coordinator is the UI-facing orchestrator. It implements device.Listener
// and, like everything it touches, runs on the event context.
type Coordinator struct {
	engine   Engine
	registry *device.Registry
	library  *training.Library
	results  storage.ResultStore
	display  Display
	clock    device.Clock
	logger   zerolog.Logger
	opts     Options

	ctx      context.Context
	activeID string
	history  *history

	// userDisconnect marks a disconnect the user asked for, which does not
	// rotate the active device.
	userDisconnect bool

	resultText string
}

// New validates options and builds a coordinator. Call Start before any
// registry events are delivered.
func New(deps Deps, opts Options, logger zerolog.Logger) (*Coordinator, error) {
	if deps.Engine == nil || deps.Registry == nil || deps.Library == nil || deps.Display == nil {
		return nil, fmt.Errorf("coordinator requires an engine, registry, library, and display")
	}
	if opts.RepCount < 0 {
		return nil, fmt.Errorf("invalid rep count: %d", opts.RepCount)
	}
	if opts.Movement == "" {
		opts.Movement = "demo"
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = 20
	}
	if deps.Clock == nil {
		deps.Clock = device.RealClock{}
	}

	h, err := newHistory(opts.HistorySize)
	if err != nil {
		return nil, err
	}

	return &Coordinator{
		engine:   deps.Engine,
		registry: deps.Registry,
		library:  deps.Library,
		results:  deps.Results,
		display:  deps.Display,
		clock:    deps.Clock,
		logger:   logger.With().Str("component", "coordinator").Logger(),
		opts:     opts,
		ctx:      context.Background(),
		history:  h,
	}, nil
}

// Start subscribes to the registry, adopts a device if one is already
// available, and renders the initial state. ctx bounds the training and
// analysis calls made from event handlers.
func (c *Coordinator) Start(ctx context.Context) {
	c.ctx = ctx
	c.registry.Subscribe(c)
	if c.activeID == "" {
		if devices := c.registry.Available(); len(devices) > 0 {
			c.adopt(devices[0], true)
		}
	}
	c.render()
}

// Stop unsubscribes from the registry.
func (c *Coordinator) Stop() {
	c.registry.Unsubscribe(c)
}

// AvailabilityChanged implements device.Listener. A new device is adopted
// straight away when none is active; losing the active device is handled
// in AvailabilitySettled.
func (c *Coordinator) AvailabilityChanged(ev device.AvailabilityEvent) {
	if !ev.Available {
		return
	}
	defer c.render()

	if c.activeID == "" {
		c.adopt(ev.Device, true)
	}
}

// AvailabilitySettled implements device.Settler. The replacement for a lost
// active device is chosen only after every subscriber has seen the removal.
func (c *Coordinator) AvailabilitySettled(ev device.AvailabilityEvent) {
	if ev.Available || ev.Device.ID != c.activeID {
		return
	}
	defer c.render()

	// The registry has already dropped the device, so the entry now at its
	// former index is the one that followed it.
	devices := c.registry.Available()
	if len(devices) == 0 {
		c.logger.Info().Str("device_id", ev.Device.ID).Msg("Active device gone, no replacement")
		c.activeID = ""
		return
	}
	next := devices[ev.Index%len(devices)]
	c.logger.Info().
		Str("device_id", ev.Device.ID).
		Str("replacement", next.ID).
		Msg("Active device gone, selected replacement")
	c.adopt(next, false)
}

// SessionChanged implements device.Listener.
func (c *Coordinator) SessionChanged(ev device.SessionEvent) {
	if ev.Device.ID != c.activeID {
		return
	}
	defer c.render()

	switch ev.Kind {
	case device.EventConnectionFailed:
		message := "connection failed"
		var cerr *device.ConnectionError
		if errors.As(ev.Err, &cerr) {
			message = cerr.Message
		}
		c.display.Alert("Connection failed!", message)

	case device.EventDisconnected:
		if c.userDisconnect {
			return
		}
		c.rotateFrom(ev.Device)

	case device.EventRecordingStarted:
		c.resultText = ""
		c.display.Feedback(CueRecordingStarted)

	case device.EventRecordingStopped:
		c.display.Feedback(CueRecordingStopped)
		session, ok := c.registry.Session(ev.Device.ID)
		if !ok {
			return
		}
		out, ok := session.TakeOutput()
		if !ok {
			return
		}
		c.handleOutput(out)
	}
}

// rotateFrom moves the active device to the one after dev in registry
// order. dev is still listed, so a lone device selects itself again.
func (c *Coordinator) rotateFrom(dev *device.Device) {
	devices := c.registry.Available()
	idx := c.registry.IndexOf(dev.ID)
	if len(devices) == 0 || idx < 0 {
		return
	}
	next := devices[(idx+1)%len(devices)]
	if next.ID != dev.ID {
		c.logger.Info().
			Str("device_id", dev.ID).
			Str("replacement", next.ID).
			Msg("Active device disconnected, selected replacement")
	}
	c.adopt(next, false)
}

func (c *Coordinator) adopt(dev *device.Device, connect bool) {
	c.activeID = dev.ID
	c.logger.Info().Str("device_id", dev.ID).Bool("connect", connect).Msg("Active device selected")

	if !connect {
		return
	}
	session, ok := c.registry.Session(dev.ID)
	if !ok {
		return
	}
	if err := session.Connect(); err != nil {
		c.logger.Debug().Err(err).Str("device_id", dev.ID).Msg("Not auto-connecting")
	}
}

func (c *Coordinator) handleOutput(out *device.Output) {
	switch c.opts.Mode {
	case Training:
		c.resultText = ""
		store := c.library.Store(c.opts.Movement)
		if err := store.AddExample(c.ctx, out, c.opts.RepCount); err != nil {
			c.logger.Error().Err(err).Msg("Failed to add training example")
			c.display.Alert("Training failed!", err.Error())
			return
		}
		if c.opts.AutoTrain {
			if err := store.Train(c.ctx); err != nil {
				c.display.Alert("Training failed!", err.Error())
			}
		}

	case Recognition:
		results, err := c.analyze(out)
		switch {
		case errors.Is(err, ErrAnalysisUnavailable):
			c.logger.Debug().Msg("Skipping analysis, nothing trained")
		case err != nil:
			c.logger.Error().Err(err).Str("output_id", out.ID).Msg("Analysis failed")
			c.display.Alert("Analysis failed!", err.Error())
		}
		c.resultText = c.formatResults(results)
	}
}

// analyze runs the engine on out if there is something to compare against.
func (c *Coordinator) analyze(out *device.Output) ([]motion.Result, error) {
	hint := c.opts.Movement
	if c.opts.Analyzer == motion.Multiple {
		hint = ""
	}

	available := c.library.AnyExamples()
	if hint != "" {
		available = c.library.Store(hint).Count() > 0
	}
	if !available {
		return nil, ErrAnalysisUnavailable
	}

	results, err := c.engine.Analyze(c.ctx, out, c.opts.Analyzer, hint)
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", out.ID, err)
	}

	a := Analysis{
		ID:       out.ID,
		OutputID: out.ID,
		DeviceID: out.DeviceID,
		Mode:     c.opts.Analyzer,
		Movement: hint,
		Results:  results,
		At:       c.clock.Now(),
	}
	c.history.add(a)
	c.persist(a)

	c.logger.Info().
		Str("output_id", out.ID).
		Str("mode", c.opts.Analyzer.String()).
		Int("results", len(results)).
		Msg("Analysis complete")
	return results, nil
}

func (c *Coordinator) persist(a Analysis) {
	if c.results == nil {
		return
	}
	record := storage.ResultRecord{
		ID:        a.ID,
		OutputID:  a.OutputID,
		DeviceID:  a.DeviceID,
		Mode:      a.Mode.String(),
		Movement:  a.Movement,
		Results:   a.Results,
		CreatedAt: a.At,
	}
	if err := c.results.Add(c.ctx, record); err != nil {
		c.logger.Warn().Err(err).Str("output_id", a.OutputID).Msg("Failed to store analysis")
	}
}

func (c *Coordinator) render() {
	c.display.Render(c.State())
}

func (c *Coordinator) activeSession() (*device.Session, bool) {
	if c.activeID == "" {
		return nil, false
	}
	return c.registry.Session(c.activeID)
}

var (
	_ device.Listener = (*Coordinator)(nil)
	_ device.Settler  = (*Coordinator)(nil)
)
