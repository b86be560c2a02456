// Package training accumulates labeled examples per movement and retrains
// the motion engine from the full set on demand.
package training

import (
	"context"
	"errors"
	"fmt"

	"github.com/goodtune/motioncoach/internal/device"
	"github.com/goodtune/motioncoach/internal/metrics"
	"github.com/goodtune/motioncoach/internal/motion"
	"github.com/goodtune/motioncoach/internal/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrNegativeRepCount is returned when an example claims fewer than zero reps.
	ErrNegativeRepCount = errors.New("rep count must not be negative")

	// ErrNoOutput is returned when an example has no capture attached.
	ErrNoOutput = errors.New("example has no output")
)

// Store is the training set for one movement label. It is not safe for
// concurrent use; callers run it on the event context.
type Store struct {
	label   string
	trainer motion.Trainer
	backend storage.ExampleStore
	logger  zerolog.Logger

	examples []motion.Example
	trained  bool
}

// NewStore creates an empty store. backend may be nil, in which case
// examples live only as long as the process.
func NewStore(label string, trainer motion.Trainer, backend storage.ExampleStore, logger zerolog.Logger) *Store {
	return &Store{
		label:   label,
		trainer: trainer,
		backend: backend,
		logger: logger.With().
			Str("component", "training").
			Str("movement", label).
			Logger(),
	}
}

// Label returns the movement this store trains.
func (s *Store) Label() string { return s.label }

// Load replaces the in-memory set with the backend's examples.
func (s *Store) Load(ctx context.Context) error {
	if s.backend == nil {
		return nil
	}
	records, err := s.backend.List(ctx, s.label)
	if err != nil {
		return fmt.Errorf("load examples for %s: %w", s.label, err)
	}

	s.examples = make([]motion.Example, 0, len(records))
	for i := range records {
		out := records[i].Output
		s.examples = append(s.examples, motion.Example{Output: &out, RepCount: records[i].RepCount})
	}
	s.trained = false
	s.updateGauge()

	s.logger.Debug().Int("examples", len(s.examples)).Msg("Loaded training examples")
	return nil
}

// AddExample appends a capture with the user's rep count. The count is
// taken as given; it is not checked against the capture's length.
func (s *Store) AddExample(ctx context.Context, out *device.Output, repCount int) error {
	if out == nil {
		return ErrNoOutput
	}
	if repCount < 0 {
		return fmt.Errorf("add example for %s: %w", s.label, ErrNegativeRepCount)
	}

	if s.backend != nil {
		record := storage.Example{
			ID:       uuid.NewString(),
			Movement: s.label,
			RepCount: repCount,
			Output:   *out,
		}
		if err := s.backend.Append(ctx, record); err != nil {
			return fmt.Errorf("persist example for %s: %w", s.label, err)
		}
	}

	s.examples = append(s.examples, motion.Example{Output: out, RepCount: repCount})
	s.updateGauge()

	s.logger.Info().
		Str("output_id", out.ID).
		Int("rep_count", repCount).
		Int("examples", len(s.examples)).
		Msg("Added training example")
	return nil
}

// Train rebuilds the movement model from every example held. Failures are
// always returned as *motion.TrainingError.
func (s *Store) Train(ctx context.Context) error {
	if len(s.examples) == 0 {
		metrics.TrainingRuns.WithLabelValues(s.label, "failure").Inc()
		return &motion.TrainingError{Movement: s.label, Err: motion.ErrNoExamples}
	}

	if err := s.trainer.Train(ctx, s.label, s.Examples()); err != nil {
		metrics.TrainingRuns.WithLabelValues(s.label, "failure").Inc()
		s.logger.Warn().Err(err).Int("examples", len(s.examples)).Msg("Training failed")

		var terr *motion.TrainingError
		if errors.As(err, &terr) {
			return err
		}
		return &motion.TrainingError{Movement: s.label, Err: err}
	}

	s.trained = true
	metrics.TrainingRuns.WithLabelValues(s.label, "success").Inc()
	s.logger.Info().Int("examples", len(s.examples)).Msg("Training complete")
	return nil
}

// Reset discards every example, including persisted ones, and drops the
// trained model so the movement is no longer recognized.
func (s *Store) Reset(ctx context.Context) error {
	if s.backend != nil {
		if _, err := s.backend.Clear(ctx, s.label); err != nil {
			return fmt.Errorf("clear examples for %s: %w", s.label, err)
		}
	}

	s.examples = nil
	s.trained = false
	s.updateGauge()

	if err := s.trainer.Forget(ctx, s.label); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to drop trained model")
		return fmt.Errorf("forget %s: %w", s.label, err)
	}

	s.logger.Info().Msg("Training examples cleared")
	return nil
}

// Count returns the number of examples held.
func (s *Store) Count() int { return len(s.examples) }

// Trained reports whether the last training run over the current set
// succeeded.
func (s *Store) Trained() bool { return s.trained }

// Examples returns a copy of the set in insertion order.
func (s *Store) Examples() []motion.Example {
	return append([]motion.Example(nil), s.examples...)
}

func (s *Store) updateGauge() {
	metrics.TrainingExamples.WithLabelValues(s.label).Set(float64(len(s.examples)))
}
