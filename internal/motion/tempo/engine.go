// Package tempo is a reference motion engine. Training learns the average
// repetition time of a movement from labeled captures; analysis measures the
// cycle time of a new capture and compares it against what was learned.
package tempo

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/goodtune/motioncoach/internal/device"
	"github.com/goodtune/motioncoach/internal/motion"
	"github.com/rs/zerolog"
)

// ErrNoRepetitions is the reason a training run fails when no example
// declares a positive rep count.
var ErrNoRepetitions = errors.New("examples contain no repetitions")

// DefaultTolerance is the largest relative rep-time deviation at which a
// capture still matches a trained movement in multiple mode.
const DefaultTolerance = 0.35

// Catalog is the built-in set of movements the engine knows by name.
var Catalog = []motion.Movement{
	{ID: "bicep-curl", DisplayName: "Bicep curl"},
	{ID: "jumping-jack", DisplayName: "Jumping jack"},
	{ID: "lunge", DisplayName: "Lunge"},
	{ID: "pushup", DisplayName: "Push-up"},
	{ID: "situp", DisplayName: "Sit-up"},
	{ID: "squat", DisplayName: "Squat"},
}

// Config tunes the engine.
type Config struct {
	Tolerance float64
}

type template struct {
	repTime   time.Duration
	variation float64
	examples  int
}

// Engine implements motion.Engine.
type Engine struct {
	config Config
	logger zerolog.Logger

	mu        sync.RWMutex
	templates map[string]template
}

// New creates an engine. A zero tolerance selects DefaultTolerance.
func New(config Config, logger zerolog.Logger) *Engine {
	if config.Tolerance <= 0 {
		config.Tolerance = DefaultTolerance
	}
	return &Engine{
		config:    config,
		logger:    logger.With().Str("component", "tempo").Logger(),
		templates: make(map[string]template),
	}
}

// Init clears any learned templates.
func (e *Engine) Init(_ context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates = make(map[string]template)
	return nil
}

// Shutdown drops learned templates.
func (e *Engine) Shutdown(_ context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates = nil
	return nil
}

// Train replaces the template for label with one learned from examples.
func (e *Engine) Train(ctx context.Context, label string, examples []motion.Example) error {
	if len(examples) == 0 {
		return &motion.TrainingError{Movement: label, Err: motion.ErrNoExamples}
	}

	var (
		totalTime time.Duration
		totalReps int
		perRep    []time.Duration
	)
	for _, ex := range examples {
		if err := ctx.Err(); err != nil {
			return err
		}
		if ex.Output == nil || ex.RepCount <= 0 {
			continue
		}
		d := captureDuration(ex.Output)
		totalTime += d
		totalReps += ex.RepCount
		perRep = append(perRep, d/time.Duration(ex.RepCount))
	}
	if totalReps == 0 {
		return &motion.TrainingError{Movement: label, Err: ErrNoRepetitions}
	}

	t := template{
		repTime:   totalTime / time.Duration(totalReps),
		variation: summarize(perRep).variation,
		examples:  len(examples),
	}

	e.mu.Lock()
	if e.templates == nil {
		e.templates = make(map[string]template)
	}
	e.templates[label] = t
	e.mu.Unlock()

	e.logger.Info().
		Str("movement", label).
		Int("examples", t.examples).
		Dur("rep_time", t.repTime).
		Msg("Trained movement")
	return nil
}

// Forget removes the template for label so it is no longer recognized.
func (e *Engine) Forget(_ context.Context, label string) error {
	e.mu.Lock()
	_, ok := e.templates[label]
	delete(e.templates, label)
	e.mu.Unlock()

	if ok {
		e.logger.Info().Str("movement", label).Msg("Forgot movement")
	}
	return nil
}

// Analyze measures the capture's cycle time. A capture without periodic
// motion yields a single resting result.
func (e *Engine) Analyze(ctx context.Context, out *device.Output, mode motion.Mode, hint string) ([]motion.Result, error) {
	if out == nil {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	duration := captureDuration(out)
	gaps := intervals(cycleOffsets(out.Samples))
	if len(gaps) == 0 {
		return []motion.Result{{Movement: motion.Resting, Duration: duration}}, nil
	}
	measured := summarize(gaps)

	e.mu.RLock()
	defer e.mu.RUnlock()

	switch mode {
	case motion.Multiple:
		return e.analyzeMultiple(duration, measured), nil
	default:
		return e.analyzeSingle(duration, measured, hint), nil
	}
}

func (e *Engine) analyzeSingle(duration time.Duration, measured spread, hint string) []motion.Result {
	label := hint
	if label == "" {
		label = e.closest(measured.mean)
	}
	t, ok := e.templates[label]
	if !ok {
		return nil
	}
	return []motion.Result{e.result(label, t, duration, measured)}
}

func (e *Engine) analyzeMultiple(duration time.Duration, measured spread) []motion.Result {
	var results []motion.Result
	for label, t := range e.templates {
		r := e.result(label, t, duration, measured)
		if r.ReferenceVariation != nil && *r.ReferenceVariation <= e.config.Tolerance {
			results = append(results, r)
		}
	}
	sort.Slice(results, func(i, j int) bool {
		return *results[i].ReferenceVariation < *results[j].ReferenceVariation
	})
	return results
}

// closest returns the trained label whose rep time is nearest to mean.
func (e *Engine) closest(mean time.Duration) string {
	best, bestDiff := "", math.Inf(1)
	for label, t := range e.templates {
		diff := math.Abs(float64(mean - t.repTime))
		if diff < bestDiff || (diff == bestDiff && label < best) {
			best, bestDiff = label, diff
		}
	}
	return best
}

func (e *Engine) result(label string, t template, duration time.Duration, measured spread) motion.Result {
	// A template learned from zero-length captures has no reference tempo.
	var refVariation *float64
	if t.repTime > 0 {
		v := math.Abs(float64(measured.mean-t.repTime)) / float64(t.repTime)
		refVariation = &v
	}
	reps := 0
	if measured.mean > 0 {
		reps = int(math.Round(float64(duration) / float64(measured.mean)))
	}
	return motion.Result{
		Movement:           label,
		RepCount:           reps,
		Duration:           duration,
		MeanRepTime:        measured.mean,
		MinRepTime:         measured.min,
		MaxRepTime:         measured.max,
		InternalVariation:  measured.variation,
		ReferenceVariation: refVariation,
		ReferenceRepTime:   t.repTime,
	}
}

// Movements returns the built-in catalog followed by any trained labels it
// does not already name.
func (e *Engine) Movements() []motion.Movement {
	movements := append([]motion.Movement(nil), Catalog...)
	known := make(map[string]bool, len(Catalog))
	for _, m := range Catalog {
		known[m.ID] = true
	}

	e.mu.RLock()
	var extra []string
	for label := range e.templates {
		if !known[label] {
			extra = append(extra, label)
		}
	}
	e.mu.RUnlock()

	sort.Strings(extra)
	for _, label := range extra {
		movements = append(movements, motion.Movement{ID: label, DisplayName: label})
	}
	return movements
}

// Trained reports whether label has a learned template.
func (e *Engine) Trained(label string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.templates[label]
	return ok
}

var (
	_ motion.Engine    = (*Engine)(nil)
	_ motion.Lifecycle = (*Engine)(nil)
)
