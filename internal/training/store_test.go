package training

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goodtune/motioncoach/internal/device"
	"github.com/goodtune/motioncoach/internal/motion"
	"github.com/goodtune/motioncoach/internal/motion/tempo"
	"github.com/goodtune/motioncoach/internal/storage/memory"
	"github.com/goodtune/motioncoach/internal/transport/sim"
	"github.com/rs/zerolog"
)

type trainCall struct {
	label    string
	examples []motion.Example
}

type fakeTrainer struct {
	calls     []trainCall
	forgotten []string
	err       error
	forgetErr error
}

func (f *fakeTrainer) Train(_ context.Context, label string, examples []motion.Example) error {
	f.calls = append(f.calls, trainCall{label: label, examples: examples})
	return f.err
}

func (f *fakeTrainer) Forget(_ context.Context, label string) error {
	f.forgotten = append(f.forgotten, label)
	return f.forgetErr
}

func movementCapture(id string, length, period time.Duration) *device.Output {
	start := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	return &device.Output{
		ID:        id,
		DeviceID:  "sim-1",
		StartedAt: start,
		StoppedAt: start.Add(length),
		Samples:   sim.Synthesize(length, 50, period, 2),
	}
}

func output(id string) *device.Output {
	start := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	return &device.Output{ID: id, DeviceID: "sim-1", StartedAt: start, StoppedAt: start.Add(20 * time.Second)}
}

func TestStoreTrainResetScenario(t *testing.T) {
	trainer := &fakeTrainer{}
	s := NewStore("demo", trainer, nil, zerolog.Nop())
	ctx := context.Background()

	if err := s.AddExample(ctx, output("a"), 10); err != nil {
		t.Fatalf("add first: %v", err)
	}
	if err := s.AddExample(ctx, output("b"), 8); err != nil {
		t.Fatalf("add second: %v", err)
	}
	if err := s.Train(ctx); err != nil {
		t.Fatalf("train: %v", err)
	}

	if len(trainer.calls) != 1 {
		t.Fatalf("expected one training call, got %d", len(trainer.calls))
	}
	call := trainer.calls[0]
	if call.label != "demo" || len(call.examples) != 2 {
		t.Fatalf("unexpected training call %+v", call)
	}
	if call.examples[0].RepCount != 10 || call.examples[1].RepCount != 8 {
		t.Fatalf("examples out of order: %d, %d", call.examples[0].RepCount, call.examples[1].RepCount)
	}
	if s.Count() != 2 || !s.Trained() {
		t.Fatalf("count=%d trained=%t", s.Count(), s.Trained())
	}

	if err := s.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if s.Count() != 0 {
		t.Fatalf("expected 0 after reset, got %d", s.Count())
	}
	if len(trainer.forgotten) != 1 || trainer.forgotten[0] != "demo" {
		t.Fatalf("expected the demo model dropped on reset, got %v", trainer.forgotten)
	}
	if s.Trained() {
		t.Fatal("store still reports trained after reset")
	}

	err := s.Train(ctx)
	var terr *motion.TrainingError
	if !errors.As(err, &terr) || !errors.Is(err, motion.ErrNoExamples) {
		t.Fatalf("expected empty-set TrainingError, got %v", err)
	}
	if len(trainer.calls) != 1 {
		t.Fatal("trainer must not be called with an empty set")
	}
}

func TestStoreRetrainsFromScratch(t *testing.T) {
	trainer := &fakeTrainer{}
	s := NewStore("demo", trainer, nil, zerolog.Nop())
	ctx := context.Background()

	for i, reps := range []int{10, 8, 12} {
		if err := s.AddExample(ctx, output(string(rune('a'+i))), reps); err != nil {
			t.Fatalf("add: %v", err)
		}
		if err := s.Train(ctx); err != nil {
			t.Fatalf("train: %v", err)
		}
	}

	for i, call := range trainer.calls {
		if len(call.examples) != i+1 {
			t.Fatalf("call %d saw %d examples, want %d", i, len(call.examples), i+1)
		}
	}
}

func TestStoreTrainerErrorPropagates(t *testing.T) {
	cause := errors.New("too few examples")
	s := NewStore("demo", &fakeTrainer{err: cause}, nil, zerolog.Nop())
	ctx := context.Background()

	if err := s.AddExample(ctx, output("a"), 10); err != nil {
		t.Fatalf("add: %v", err)
	}

	err := s.Train(ctx)
	var terr *motion.TrainingError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TrainingError, got %v", err)
	}
	if terr.Movement != "demo" || !errors.Is(err, cause) {
		t.Fatalf("unexpected error %v", err)
	}
	if s.Trained() {
		t.Fatal("store must not report trained after a failure")
	}
}

func TestStoreTrainingErrorPassesThrough(t *testing.T) {
	original := &motion.TrainingError{Movement: "demo", Err: errors.New("bad data")}
	s := NewStore("demo", &fakeTrainer{err: original}, nil, zerolog.Nop())
	ctx := context.Background()
	_ = s.AddExample(ctx, output("a"), 10)

	err := s.Train(ctx)
	var terr *motion.TrainingError
	if !errors.As(err, &terr) || terr != original {
		t.Fatalf("expected the trainer's own error, got %v", err)
	}
}

func TestStoreResetForgetError(t *testing.T) {
	cause := errors.New("engine stopped")
	s := NewStore("demo", &fakeTrainer{forgetErr: cause}, nil, zerolog.Nop())
	ctx := context.Background()

	if err := s.AddExample(ctx, output("a"), 10); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Reset(ctx); !errors.Is(err, cause) {
		t.Fatalf("expected forget error, got %v", err)
	}
	if s.Count() != 0 {
		t.Fatalf("examples kept after failed forget: %d", s.Count())
	}
}

func TestStoreResetStopsRecognition(t *testing.T) {
	ctx := context.Background()
	engine := motion.NewContext(tempo.New(tempo.Config{}, zerolog.Nop()), zerolog.Nop())
	if err := engine.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	lib := NewLibrary(engine, nil, zerolog.Nop())

	for _, m := range []struct {
		label  string
		period time.Duration
	}{
		{label: "squat", period: time.Second},
		{label: "lunge", period: 3 * time.Second},
	} {
		store := lib.Store(m.label)
		if err := store.AddExample(ctx, movementCapture("ex-"+m.label, 10*m.period, m.period), 10); err != nil {
			t.Fatalf("add %s: %v", m.label, err)
		}
		if err := store.Train(ctx); err != nil {
			t.Fatalf("train %s: %v", m.label, err)
		}
	}

	if err := lib.Store("squat").Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}

	results, err := engine.Analyze(ctx, movementCapture("squat-set", 10*time.Second, time.Second), motion.Multiple, "")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	for _, r := range results {
		if r.Movement == "squat" {
			t.Fatalf("reset movement still recognized: %+v", r)
		}
	}
}

func TestStoreAddExampleValidation(t *testing.T) {
	s := NewStore("demo", &fakeTrainer{}, nil, zerolog.Nop())
	ctx := context.Background()

	if err := s.AddExample(ctx, output("a"), -1); !errors.Is(err, ErrNegativeRepCount) {
		t.Fatalf("expected ErrNegativeRepCount, got %v", err)
	}
	if err := s.AddExample(ctx, nil, 3); !errors.Is(err, ErrNoOutput) {
		t.Fatalf("expected ErrNoOutput, got %v", err)
	}
	if err := s.AddExample(ctx, output("a"), 0); err != nil {
		t.Fatalf("zero reps should be accepted: %v", err)
	}
	if s.Count() != 1 {
		t.Fatalf("expected 1 example, got %d", s.Count())
	}
}

func TestStorePersistsThroughBackend(t *testing.T) {
	backend := memory.New().Examples()
	ctx := context.Background()

	first := NewStore("demo", &fakeTrainer{}, backend, zerolog.Nop())
	_ = first.AddExample(ctx, output("a"), 10)
	_ = first.AddExample(ctx, output("b"), 8)

	second := NewStore("demo", &fakeTrainer{}, backend, zerolog.Nop())
	if err := second.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if second.Count() != 2 {
		t.Fatalf("expected 2 loaded examples, got %d", second.Count())
	}
	if got := second.Examples()[1].Output.ID; got != "b" {
		t.Fatalf("expected second output b, got %s", got)
	}

	if err := second.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	stored, _ := backend.List(ctx, "demo")
	if len(stored) != 0 {
		t.Fatalf("reset must clear the backend, %d left", len(stored))
	}
}

func TestLibrary(t *testing.T) {
	backend := memory.New().Examples()
	ctx := context.Background()
	trainer := &fakeTrainer{}

	lib := NewLibrary(trainer, backend, zerolog.Nop())
	if lib.AnyExamples() {
		t.Fatal("new library has no examples")
	}
	if lib.Store("squat") != lib.Store("squat") {
		t.Fatal("Store must return the same instance per label")
	}
	if lib.AnyExamples() {
		t.Fatal("an empty store does not count")
	}

	_ = lib.Store("squat").AddExample(ctx, output("a"), 10)
	_ = lib.Store("lunge").AddExample(ctx, output("b"), 6)
	if !lib.AnyExamples() {
		t.Fatal("expected examples")
	}

	reloaded := NewLibrary(trainer, backend, zerolog.Nop())
	if err := reloaded.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	labels := reloaded.Labels()
	if len(labels) != 2 || labels[0] != "lunge" || labels[1] != "squat" {
		t.Fatalf("unexpected labels %v", labels)
	}

	if err := reloaded.TrainAll(ctx); err != nil {
		t.Fatalf("train all: %v", err)
	}
	if len(trainer.calls) != 2 || trainer.calls[0].label != "lunge" {
		t.Fatalf("unexpected training calls %+v", trainer.calls)
	}
}
