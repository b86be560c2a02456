package training

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/goodtune/motioncoach/internal/motion"
	"github.com/goodtune/motioncoach/internal/storage"
	"github.com/rs/zerolog"
)

// Library holds one Store per movement label, created on first use.
type Library struct {
	trainer motion.Trainer
	backend storage.ExampleStore
	logger  zerolog.Logger

	stores map[string]*Store
}

// NewLibrary creates an empty library. backend may be nil.
func NewLibrary(trainer motion.Trainer, backend storage.ExampleStore, logger zerolog.Logger) *Library {
	return &Library{
		trainer: trainer,
		backend: backend,
		logger:  logger,
		stores:  make(map[string]*Store),
	}
}

// Store returns the store for label, creating it if needed.
func (l *Library) Store(label string) *Store {
	s, ok := l.stores[label]
	if !ok {
		s = NewStore(label, l.trainer, l.backend, l.logger)
		l.stores[label] = s
	}
	return s
}

// Labels returns every label with a store, sorted.
func (l *Library) Labels() []string {
	labels := make([]string, 0, len(l.stores))
	for label := range l.stores {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// AnyExamples reports whether any movement has at least one example.
func (l *Library) AnyExamples() bool {
	for _, s := range l.stores {
		if s.Count() > 0 {
			return true
		}
	}
	return false
}

// Load creates a store for every movement the backend knows and loads it.
func (l *Library) Load(ctx context.Context) error {
	if l.backend == nil {
		return nil
	}
	movements, err := l.backend.Movements(ctx)
	if err != nil {
		return fmt.Errorf("list trained movements: %w", err)
	}
	for _, m := range movements {
		if err := l.Store(m).Load(ctx); err != nil {
			return err
		}
	}
	return nil
}

// TrainAll retrains every non-empty store. It keeps going past failures
// and returns them joined.
func (l *Library) TrainAll(ctx context.Context) error {
	var errs []error
	for _, label := range l.Labels() {
		s := l.stores[label]
		if s.Count() == 0 {
			continue
		}
		if err := s.Train(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
