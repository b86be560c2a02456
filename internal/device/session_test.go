package device

import (
	"errors"
	"testing"
	"time"

	"github.com/goodtune/motioncoach/internal/eventloop"
	"github.com/rs/zerolog"
)

// fakeLink records calls and lets the test complete connection attempts by
// hand, in any order.
type fakeLink struct {
	pending      []func(error)
	disconnects  int
	captures     int
	stops        int
	startErr     error
	samplesPerOp int
}

func (l *fakeLink) Connect(_ *Device, done func(error)) {
	l.pending = append(l.pending, done)
}

func (l *fakeLink) Disconnect(_ *Device) { l.disconnects++ }

func (l *fakeLink) StartCapture(_ *Device) error {
	if l.startErr != nil {
		return l.startErr
	}
	l.captures++
	return nil
}

func (l *fakeLink) StopCapture(_ *Device) []Sample {
	l.stops++
	n := l.samplesPerOp
	if n == 0 {
		n = 3
	}
	samples := make([]Sample, n)
	for i := range samples {
		samples[i].Offset = time.Duration(i) * 20 * time.Millisecond
	}
	return samples
}

// complete resolves the i-th connection attempt.
func (l *fakeLink) complete(i int, err error) {
	l.pending[i](err)
}

type recorder struct {
	events []SessionEvent
}

func (r *recorder) SessionChanged(ev SessionEvent) { r.events = append(r.events, ev) }

func (r *recorder) kinds() []EventKind {
	kinds := make([]EventKind, len(r.events))
	for i, ev := range r.events {
		kinds[i] = ev.Kind
	}
	return kinds
}

func newTestSession(t *testing.T) (*Session, *fakeLink, *recorder, *TestClock) {
	t.Helper()

	link := &fakeLink{}
	clock := &TestClock{CurrentTime: time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)}
	dev := &Device{ID: "sim-1", Name: "Sim One", Kind: KindSim}
	s := NewSession(dev, link, eventloop.Inline{}, clock, zerolog.Nop())
	rec := &recorder{}
	s.AddListener(rec)
	return s, link, rec, clock
}

func connectSession(t *testing.T, s *Session, link *fakeLink) {
	t.Helper()
	if err := s.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	link.complete(len(link.pending)-1, nil)
	if s.State() != Connected {
		t.Fatalf("expected connected, got %s", s.State())
	}
}

func TestSessionConnectSuccess(t *testing.T) {
	s, link, rec, _ := newTestSession(t)

	if err := s.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if s.State() != Connecting {
		t.Fatalf("expected connecting, got %s", s.State())
	}

	link.complete(0, nil)

	if s.State() != Connected {
		t.Fatalf("expected connected, got %s", s.State())
	}
	want := []EventKind{EventConnecting, EventConnected}
	if got := rec.kinds(); !equalKinds(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
}

func TestSessionConnectFailureRevertsAndReports(t *testing.T) {
	s, link, rec, _ := newTestSession(t)

	if err := s.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	link.complete(0, errors.New("watch app not running"))

	if s.State() != Disconnected {
		t.Fatalf("expected disconnected after failure, got %s", s.State())
	}
	if len(rec.events) != 2 || rec.events[1].Kind != EventConnectionFailed {
		t.Fatalf("expected connection-failed event, got %v", rec.kinds())
	}

	var connErr *ConnectionError
	if !errors.As(rec.events[1].Err, &connErr) {
		t.Fatalf("expected *ConnectionError, got %T", rec.events[1].Err)
	}
	if connErr.Message != "watch app not running" {
		t.Errorf("unexpected message %q", connErr.Message)
	}

	// Failures are surfaced, not retried.
	if len(link.pending) != 1 {
		t.Fatalf("expected no automatic retry, got %d attempts", len(link.pending))
	}
}

func TestSessionConnectWhileConnectingIsRejected(t *testing.T) {
	s, link, rec, _ := newTestSession(t)

	if err := s.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	err := s.Connect()
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if len(link.pending) != 1 {
		t.Fatalf("expected one link attempt, got %d", len(link.pending))
	}
	if len(rec.events) != 1 {
		t.Fatalf("rejected connect must not emit events, got %v", rec.kinds())
	}
}

func TestSessionDisconnectWhileConnectingSuppressesLateSuccess(t *testing.T) {
	s, link, rec, _ := newTestSession(t)

	if err := s.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := s.Disconnect(); err != nil {
		t.Fatalf("disconnect: %v", err)
	}

	// Start a second attempt before the first one reports back.
	if err := s.Connect(); err != nil {
		t.Fatalf("reconnect: %v", err)
	}

	link.complete(0, nil)
	if s.State() != Connecting {
		t.Fatalf("stale success must be ignored, state is %s", s.State())
	}

	link.complete(1, nil)
	if s.State() != Connected {
		t.Fatalf("expected connected from the current attempt, got %s", s.State())
	}

	want := []EventKind{EventConnecting, EventDisconnected, EventConnecting, EventConnected}
	if got := rec.kinds(); !equalKinds(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
}

func TestSessionDisconnectFromDisconnectedIsNoop(t *testing.T) {
	s, link, rec, _ := newTestSession(t)

	if err := s.Disconnect(); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if len(rec.events) != 0 || link.disconnects != 0 {
		t.Fatalf("expected no events or link calls, got %v / %d", rec.kinds(), link.disconnects)
	}
}

func TestSessionRecordingRequiresConnected(t *testing.T) {
	s, link, _, _ := newTestSession(t)

	if err := s.StartRecording(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("start while disconnected: expected ErrInvalidTransition, got %v", err)
	}
	if err := s.StopRecording(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("stop while disconnected: expected ErrInvalidTransition, got %v", err)
	}

	connectSession(t, s, link)

	if err := s.StopRecording(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("stop while idle: expected ErrInvalidTransition, got %v", err)
	}
	if err := s.StartRecording(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.StartRecording(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("start while recording: expected ErrInvalidTransition, got %v", err)
	}
}

func TestSessionStartCaptureFailureKeepsState(t *testing.T) {
	s, link, rec, _ := newTestSession(t)
	connectSession(t, s, link)
	before := len(rec.events)

	link.startErr = errors.New("sensor busy")
	if err := s.StartRecording(); err == nil {
		t.Fatal("expected start error")
	}
	if s.State() != Connected {
		t.Fatalf("expected connected, got %s", s.State())
	}
	if len(rec.events) != before {
		t.Fatalf("failed start must not emit events")
	}
}

func TestSessionOutputOverwriteLaw(t *testing.T) {
	s, link, _, clock := newTestSession(t)
	connectSession(t, s, link)

	if _, ok := s.TakeOutput(); ok {
		t.Fatal("no output expected before any recording")
	}

	var lastID string
	for i := 0; i < 3; i++ {
		if err := s.StartRecording(); err != nil {
			t.Fatalf("start %d: %v", i, err)
		}
		clock.Advance(time.Duration(i+1) * time.Second)
		if err := s.StopRecording(); err != nil {
			t.Fatalf("stop %d: %v", i, err)
		}
		if !s.HasOutput() {
			t.Fatalf("expected pending output after stop %d", i)
		}
	}

	// Only the latest of the three unconsumed outputs survives.
	out, ok := s.TakeOutput()
	if !ok {
		t.Fatal("expected output")
	}
	if out.Duration() != 3*time.Second {
		t.Fatalf("expected most recent output (3s), got %s", out.Duration())
	}
	lastID = out.ID

	if _, ok := s.TakeOutput(); ok {
		t.Fatal("output must be returned exactly once")
	}

	// Each subsequent pair yields exactly one fresh output.
	for i := 0; i < 2; i++ {
		if err := s.StartRecording(); err != nil {
			t.Fatalf("start: %v", err)
		}
		clock.Advance(time.Second)
		if err := s.StopRecording(); err != nil {
			t.Fatalf("stop: %v", err)
		}
		out, ok := s.TakeOutput()
		if !ok {
			t.Fatalf("pair %d: expected output", i)
		}
		if out.ID == lastID {
			t.Fatalf("pair %d: got a previously returned output", i)
		}
		if out.DeviceID != "sim-1" || len(out.Samples) != 3 {
			t.Fatalf("unexpected output %+v", out)
		}
		lastID = out.ID
		if _, ok := s.TakeOutput(); ok {
			t.Fatalf("pair %d: output returned twice", i)
		}
	}
}

func TestSessionDisconnectWhileRecordingDropsCapture(t *testing.T) {
	s, link, rec, _ := newTestSession(t)
	connectSession(t, s, link)

	if err := s.StartRecording(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Disconnect(); err != nil {
		t.Fatalf("disconnect: %v", err)
	}

	if s.State() != Disconnected {
		t.Fatalf("expected disconnected, got %s", s.State())
	}
	if s.HasOutput() {
		t.Fatal("aborted recording must not produce output")
	}
	if link.stops != 1 || link.disconnects != 1 {
		t.Fatalf("expected capture stop and link disconnect, got %d/%d", link.stops, link.disconnects)
	}
	if last := rec.events[len(rec.events)-1]; last.Kind != EventDisconnected {
		t.Fatalf("expected disconnected event, got %s", last.Kind)
	}
}

func TestSessionLinkLost(t *testing.T) {
	s, link, rec, _ := newTestSession(t)

	// Not connected: ignored.
	s.LinkLost(errors.New("radio off"))
	if len(rec.events) != 0 {
		t.Fatalf("link loss while disconnected must be ignored")
	}

	connectSession(t, s, link)
	cause := errors.New("out of range")
	s.LinkLost(cause)

	if s.State() != Disconnected {
		t.Fatalf("expected disconnected, got %s", s.State())
	}
	last := rec.events[len(rec.events)-1]
	if last.Kind != EventDisconnected || !errors.Is(last.Err, cause) {
		t.Fatalf("expected disconnected event carrying cause, got %+v", last)
	}
}

func TestSessionEventsCarryNewState(t *testing.T) {
	s, link, rec, _ := newTestSession(t)
	connectSession(t, s, link)
	if err := s.StartRecording(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.StopRecording(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	want := []State{Connecting, Connected, Recording, Connected}
	if len(rec.events) != len(want) {
		t.Fatalf("expected %d events, got %v", len(want), rec.kinds())
	}
	for i, ev := range rec.events {
		if ev.State != want[i] {
			t.Errorf("event %d (%s): state %s, want %s", i, ev.Kind, ev.State, want[i])
		}
		if ev.Device == nil || ev.Device.ID != "sim-1" {
			t.Errorf("event %d missing device", i)
		}
	}
}

func TestClosedSessionRejectsOperations(t *testing.T) {
	s, link, rec, _ := newTestSession(t)
	if err := s.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	s.close()

	// A late result for the attempt made before close is ignored.
	link.complete(0, nil)
	if s.State() != Disconnected {
		t.Fatalf("expected disconnected, got %s", s.State())
	}
	if len(rec.events) != 1 {
		t.Fatalf("close must not emit events, got %v", rec.kinds())
	}
	if err := s.Connect(); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
}

func equalKinds(a, b []EventKind) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
