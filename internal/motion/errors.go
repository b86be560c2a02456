package motion

import (
	"errors"
	"fmt"
)

var (
	// ErrNoExamples is the reason a training run over an empty set fails.
	ErrNoExamples = errors.New("no training examples")

	// ErrNotInitialized is returned by a Context used outside Init/Shutdown.
	ErrNotInitialized = errors.New("motion engine not initialized")
)

// TrainingError reports a failed training run for a movement label.
type TrainingError struct {
	Movement string
	Err      error
}

func (e *TrainingError) Error() string {
	return fmt.Sprintf("train %s: %v", e.Movement, e.Err)
}

func (e *TrainingError) Unwrap() error { return e.Err }
