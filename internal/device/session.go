package device

import (
	"fmt"
	"time"

	"github.com/goodtune/motioncoach/internal/eventloop"
	"github.com/goodtune/motioncoach/internal/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// EventKind identifies a session transition.
type EventKind int

const (
	EventConnecting EventKind = iota
	EventConnected
	EventConnectionFailed
	EventDisconnected
	EventRecordingStarted
	EventRecordingStopped
)

func (k EventKind) String() string {
	switch k {
	case EventConnecting:
		return "connecting"
	case EventConnected:
		return "connected"
	case EventConnectionFailed:
		return "connection-failed"
	case EventDisconnected:
		return "disconnected"
	case EventRecordingStarted:
		return "recording-started"
	case EventRecordingStopped:
		return "recording-stopped"
	default:
		return "unknown"
	}
}

// SessionEvent is emitted once per session transition. State is the state
// the session entered. Err is set for EventConnectionFailed (always a
// *ConnectionError) and for link-loss disconnects.
type SessionEvent struct {
	Device *Device
	Kind   EventKind
	State  State
	Err    error
}

// SessionListener receives session transitions on the event context.
type SessionListener interface {
	SessionChanged(ev SessionEvent)
}

// Session is the per-device connection and recording state machine.
// All methods must be called on the event context.
type Session struct {
	device   *Device
	link     Link
	dispatch eventloop.Dispatcher
	clock    Clock
	logger   zerolog.Logger

	state     State
	attempt   uint64
	startedAt time.Time
	pending   *Output
	closed    bool

	listeners []SessionListener
}

// NewSession creates a disconnected session for dev.
func NewSession(dev *Device, link Link, dispatch eventloop.Dispatcher, clock Clock, logger zerolog.Logger) *Session {
	if clock == nil {
		clock = RealClock{}
	}
	return &Session{
		device:   dev,
		link:     link,
		dispatch: dispatch,
		clock:    clock,
		logger: logger.With().
			Str("component", "session").
			Str("device_id", dev.ID).
			Logger(),
	}
}

// Device returns the device this session drives.
func (s *Session) Device() *Device { return s.device }

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state }

// IsConnected reports whether the link is up.
func (s *Session) IsConnected() bool { return s.state.IsConnected() }

// IsRecording reports whether a recording is in progress.
func (s *Session) IsRecording() bool { return s.state == Recording }

// HasOutput reports whether an unconsumed output is pending.
func (s *Session) HasOutput() bool { return s.pending != nil }

// AddListener registers l for every subsequent transition.
func (s *Session) AddListener(l SessionListener) {
	s.listeners = append(s.listeners, l)
}

// Connect starts an asynchronous connection attempt. It is only valid while
// disconnected; completion or failure is reported through listeners.
func (s *Session) Connect() error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.state != Disconnected {
		return &TransitionError{Op: "connect", State: s.state}
	}

	s.attempt++
	attempt := s.attempt
	s.state = Connecting

	s.logger.Info().Uint64("attempt", attempt).Msg("Connecting")
	s.emit(SessionEvent{Kind: EventConnecting})

	// A listener may have disconnected us while handling EventConnecting.
	if s.attempt != attempt || s.state != Connecting {
		return nil
	}

	s.link.Connect(s.device, func(err error) {
		s.dispatch.Post(func() { s.completeConnect(attempt, err) })
	})
	return nil
}

func (s *Session) completeConnect(attempt uint64, err error) {
	if s.closed || attempt != s.attempt || s.state != Connecting {
		s.logger.Debug().
			Uint64("attempt", attempt).
			Uint64("current_attempt", s.attempt).
			Str("state", s.state.String()).
			Msg("Ignoring stale connection result")
		return
	}

	if err != nil {
		s.state = Disconnected
		metrics.ConnectAttempts.WithLabelValues(string(s.device.Kind), "failure").Inc()
		s.logger.Warn().Err(err).Uint64("attempt", attempt).Msg("Connection failed")
		s.emit(SessionEvent{
			Kind: EventConnectionFailed,
			Err:  &ConnectionError{Device: s.device, Message: err.Error(), Err: err},
		})
		return
	}

	s.state = Connected
	metrics.ConnectAttempts.WithLabelValues(string(s.device.Kind), "success").Inc()
	s.logger.Info().Uint64("attempt", attempt).Msg("Connected")
	s.emit(SessionEvent{Kind: EventConnected})
}

// Disconnect drops the link from any connected-family state. Any in-flight
// connection attempt is cancelled and its late result ignored. Calling it
// while already disconnected does nothing.
func (s *Session) Disconnect() error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.state == Disconnected {
		return nil
	}

	s.teardown()
	s.logger.Info().Msg("Disconnected")
	s.emit(SessionEvent{Kind: EventDisconnected})
	return nil
}

// LinkLost is called by a backend, on the event context, when an
// established link drops on its own.
func (s *Session) LinkLost(err error) {
	if s.closed || !s.state.IsConnected() {
		return
	}

	s.teardown()
	s.logger.Warn().Err(err).Msg("Link lost")
	s.emit(SessionEvent{Kind: EventDisconnected, Err: err})
}

func (s *Session) teardown() {
	wasRecording := s.state == Recording
	s.attempt++
	s.state = Disconnected
	if wasRecording {
		// The partial capture is dropped; only a clean stop yields output.
		_ = s.link.StopCapture(s.device)
	}
	s.link.Disconnect(s.device)
}

// StartRecording begins a capture. Only valid while connected and idle.
func (s *Session) StartRecording() error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.state != Connected {
		return &TransitionError{Op: "start recording", State: s.state}
	}
	if err := s.link.StartCapture(s.device); err != nil {
		return fmt.Errorf("start capture on %s: %w", s.device.Name, err)
	}

	s.state = Recording
	s.startedAt = s.clock.Now()
	s.logger.Info().Msg("Recording started")
	s.emit(SessionEvent{Kind: EventRecordingStarted})
	return nil
}

// StopRecording ends the capture and produces exactly one Output. A pending
// output that was never taken is replaced.
func (s *Session) StopRecording() error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.state != Recording {
		return &TransitionError{Op: "stop recording", State: s.state}
	}

	samples := s.link.StopCapture(s.device)
	out := &Output{
		ID:        uuid.NewString(),
		DeviceID:  s.device.ID,
		StartedAt: s.startedAt,
		StoppedAt: s.clock.Now(),
		Samples:   samples,
	}

	if s.pending != nil {
		metrics.OutputsDiscarded.Inc()
		s.logger.Debug().Str("output_id", s.pending.ID).Msg("Discarding unconsumed output")
	}
	s.pending = out
	s.state = Connected

	metrics.RecordingsTotal.WithLabelValues(string(s.device.Kind)).Inc()
	metrics.RecordingDuration.Observe(out.Duration().Seconds())

	s.logger.Info().
		Str("output_id", out.ID).
		Int("samples", len(out.Samples)).
		Dur("duration", out.Duration()).
		Msg("Recording stopped")
	s.emit(SessionEvent{Kind: EventRecordingStopped})
	return nil
}

// TakeOutput hands over the pending output. It returns it at most once.
func (s *Session) TakeOutput() (*Output, bool) {
	out := s.pending
	s.pending = nil
	return out, out != nil
}

// close detaches the session when its device leaves the registry. No
// events are emitted.
func (s *Session) close() {
	if s.closed {
		return
	}
	if s.state != Disconnected {
		s.teardown()
	} else {
		s.attempt++
	}
	s.closed = true
	s.pending = nil
	s.listeners = nil
	s.logger.Debug().Msg("Session closed")
}

func (s *Session) emit(ev SessionEvent) {
	ev.Device = s.device
	ev.State = s.state
	for _, l := range s.listeners {
		l.SessionChanged(ev)
	}
}
