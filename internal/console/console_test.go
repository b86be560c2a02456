package console

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/goodtune/motioncoach/internal/coordinator"
	"github.com/goodtune/motioncoach/internal/device"
	"github.com/goodtune/motioncoach/internal/eventloop"
	"github.com/goodtune/motioncoach/internal/motion"
	"github.com/goodtune/motioncoach/internal/motion/tempo"
	"github.com/goodtune/motioncoach/internal/training"
	"github.com/goodtune/motioncoach/internal/transport/sim"
	"github.com/rs/zerolog"
)

type inlineCaller struct{}

func (inlineCaller) Call(_ context.Context, fn func()) error {
	fn()
	return nil
}

// instantLink connects immediately and captures a 2s-period movement.
type instantLink struct {
	clock   device.Clock
	started time.Time
}

func (l *instantLink) Connect(_ *device.Device, done func(error)) { done(nil) }
func (l *instantLink) Disconnect(*device.Device)                  {}

func (l *instantLink) StartCapture(*device.Device) error {
	l.started = l.clock.Now()
	return nil
}

func (l *instantLink) StopCapture(*device.Device) []device.Sample {
	return sim.Synthesize(l.clock.Now().Sub(l.started), 50, 2*time.Second, 2)
}

type fakeSimulator struct {
	calls []string
}

func (f *fakeSimulator) Announce(id string) error { f.calls = append(f.calls, "announce "+id); return nil }
func (f *fakeSimulator) Withdraw(id string) error { f.calls = append(f.calls, "withdraw "+id); return nil }
func (f *fakeSimulator) DropLink(id string) error { f.calls = append(f.calls, "drop "+id); return nil }

type testConsole struct {
	console  *Console
	coord    *coordinator.Coordinator
	registry *device.Registry
	clock    *device.TestClock
	out      *bytes.Buffer
}

func newTestConsole(t *testing.T, simulator Simulator) *testConsole {
	t.Helper()

	ctx := context.Background()
	clock := &device.TestClock{CurrentTime: time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)}
	registry := device.NewRegistry(eventloop.Inline{}, clock, zerolog.Nop())

	engine := motion.NewContext(tempo.New(tempo.Config{}, zerolog.Nop()), zerolog.Nop())
	if err := engine.Init(ctx); err != nil {
		t.Fatalf("init engine: %v", err)
	}
	library := training.NewLibrary(engine, nil, zerolog.Nop())

	out := &bytes.Buffer{}
	display := NewDisplay(out)

	coord, err := coordinator.New(coordinator.Deps{
		Engine:   engine,
		Registry: registry,
		Library:  library,
		Display:  display,
		Clock:    clock,
	}, coordinator.Options{
		Mode:      coordinator.Training,
		Analyzer:  motion.Single,
		Movement:  "squat",
		RepCount:  10,
		AutoTrain: true,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("new coordinator: %v", err)
	}
	coord.Start(ctx)

	opts := Options{
		Coordinator: coord,
		Registry:    registry,
		Loop:        inlineCaller{},
		Display:     display,
		Catalog:     engine,
	}
	if simulator != nil {
		opts.Simulator = simulator
	}

	return &testConsole{
		console:  New(opts, zerolog.Nop()),
		coord:    coord,
		registry: registry,
		clock:    clock,
		out:      out,
	}
}

func (tc *testConsole) exec(t *testing.T, line string) {
	t.Helper()
	if err := tc.console.Execute(context.Background(), line); err != nil {
		t.Fatalf("%s: %v", line, err)
	}
}

func (tc *testConsole) record(t *testing.T, length time.Duration) {
	t.Helper()
	tc.exec(t, "record")
	tc.clock.Advance(length)
	tc.exec(t, "record")
}

func TestConsoleTrainThenRecognize(t *testing.T) {
	tc := newTestConsole(t, nil)

	dev := &device.Device{ID: "a", Name: "Band", Kind: device.KindSim}
	if err := tc.registry.Add(dev, &instantLink{clock: tc.clock}); err != nil {
		t.Fatalf("add device: %v", err)
	}
	if !strings.Contains(tc.out.String(), "Band: connected") {
		t.Fatalf("expected connected status, got:\n%s", tc.out.String())
	}

	tc.record(t, 20*time.Second)
	if st := tc.coord.State(); st.ExampleCount != 1 {
		t.Fatalf("expected 1 example, got %d", st.ExampleCount)
	}
	if !strings.Contains(tc.out.String(), "Training data sets: 1") {
		t.Fatalf("example count not rendered:\n%s", tc.out.String())
	}

	tc.exec(t, "mode recognition")
	tc.record(t, 20*time.Second)

	results := tc.coord.State().Results
	if !strings.Contains(results, "Squat") || !strings.Contains(results, "10 reps") {
		t.Fatalf("unexpected results %q", results)
	}

	tc.out.Reset()
	tc.exec(t, "history")
	if !strings.Contains(tc.out.String(), "squat x10") {
		t.Fatalf("history missing analysis:\n%s", tc.out.String())
	}

	tc.out.Reset()
	tc.exec(t, "devices")
	if !strings.Contains(tc.out.String(), "* a") {
		t.Fatalf("active device not marked:\n%s", tc.out.String())
	}

	tc.exec(t, "clear")
	if st := tc.coord.State(); st.ExampleCount != 0 || st.ClearEnabled {
		t.Fatalf("expected cleared training set, got %+v", st)
	}

	tc.record(t, 20*time.Second)
	if results := tc.coord.State().Results; strings.Contains(results, "Squat") {
		t.Fatalf("cleared movement still recognized: %q", results)
	}
}

func TestConsoleSettings(t *testing.T) {
	tc := newTestConsole(t, nil)

	tc.exec(t, "analyzer multiple")
	tc.exec(t, "movement lunge")
	tc.exec(t, "reps 12")

	st := tc.coord.State()
	if st.Analyzer != motion.Multiple || st.Movement != "lunge" || st.RepCount != 12 {
		t.Fatalf("settings not applied: %+v", st)
	}
	if !strings.Contains(tc.out.String(), "no available devices") {
		t.Fatalf("expected device-less status:\n%s", tc.out.String())
	}
}

func TestConsoleErrors(t *testing.T) {
	tc := newTestConsole(t, nil)

	tests := []struct {
		line string
		want string
	}{
		{line: "bogus", want: "unknown command"},
		{line: "mode", want: "usage: mode"},
		{line: "mode coaching", want: "invalid"},
		{line: "reps many", want: "invalid rep count"},
		{line: "reps -1", want: "invalid rep count"},
		{line: "select zzz", want: "not registered"},
		{line: "announce a", want: "simulator is not enabled"},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			err := tc.console.Execute(context.Background(), tt.line)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}

	if err := tc.console.Execute(context.Background(), "record"); !errors.Is(err, coordinator.ErrNoDevice) {
		t.Fatalf("expected ErrNoDevice, got %v", err)
	}
	if err := tc.console.Execute(context.Background(), "exit"); !errors.Is(err, ErrQuit) {
		t.Fatalf("expected ErrQuit, got %v", err)
	}
}

func TestConsoleSimulatorCommands(t *testing.T) {
	simulator := &fakeSimulator{}
	tc := newTestConsole(t, simulator)

	tc.exec(t, "announce a")
	tc.exec(t, "withdraw a")
	tc.exec(t, "drop b")

	want := []string{"announce a", "withdraw a", "drop b"}
	if strings.Join(simulator.calls, ",") != strings.Join(want, ",") {
		t.Fatalf("calls = %v, want %v", simulator.calls, want)
	}
}

func TestConsoleRunStopsAtQuit(t *testing.T) {
	tc := newTestConsole(t, nil)

	in := strings.NewReader("reps 5\n\nbogus\nquit\nreps 7\n")
	if err := tc.console.Run(context.Background(), in); err != nil {
		t.Fatalf("run: %v", err)
	}
	if n := tc.coord.State().RepCount; n != 5 {
		t.Fatalf("rep count = %d, want 5", n)
	}
	if !strings.Contains(tc.out.String(), "unknown command") {
		t.Fatalf("error not reported:\n%s", tc.out.String())
	}
}

func TestDisplaySkipsDuplicateRenders(t *testing.T) {
	out := &bytes.Buffer{}
	d := NewDisplay(out)
	st := coordinator.State{Status: "no available devices", ConnectLabel: "Connect", RecordLabel: "Start recording"}

	d.Render(st)
	first := out.Len()
	d.Render(st)
	if out.Len() != first {
		t.Fatal("identical state rendered twice")
	}

	d.Alert("Connection failed!", "Band did not respond")
	if !strings.Contains(out.String(), "Connection failed!") {
		t.Fatalf("alert not shown:\n%s", out.String())
	}
	d.Render(st)
	if out.Len() == first {
		t.Fatal("state not re-rendered after alert")
	}
}

func TestDisplayFeedbackRingsBell(t *testing.T) {
	out := &bytes.Buffer{}
	d := NewDisplay(out)

	d.Feedback(coordinator.CueRecordingStarted)
	d.Feedback(coordinator.CueRecordingStopped)

	text := out.String()
	if strings.Count(text, "\a") != 2 {
		t.Fatalf("expected two bells, got %q", text)
	}
	if !strings.Contains(text, "recording started") || !strings.Contains(text, "recording stopped") {
		t.Fatalf("cues not shown: %q", text)
	}
}
