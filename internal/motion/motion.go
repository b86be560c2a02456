package motion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goodtune/motioncoach/internal/device"
)

// Resting is the movement type reported for stretches of a capture with no
// repetitions.
const Resting = "resting"

// Mode selects how an analyzer interprets a capture.
type Mode int

const (
	// Single analyzes the capture as one movement, optionally named by a hint.
	Single Mode = iota
	// Multiple segments the capture into every movement it recognizes.
	Multiple
)

// ParseMode parses a mode name from configuration or the console.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "single", "":
		return Single, nil
	case "multiple", "multi":
		return Multiple, nil
	default:
		return Single, fmt.Errorf("invalid analyzer mode: %s (must be single or multiple)", s)
	}
}

func (m Mode) String() string {
	switch m {
	case Single:
		return "single"
	case Multiple:
		return "multiple"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Result describes one analyzed movement within a capture.
type Result struct {
	Movement          string        `json:"movement"`
	RepCount          int           `json:"rep_count"`
	Duration          time.Duration `json:"duration"`
	MeanRepTime       time.Duration `json:"mean_rep_time"`
	MinRepTime        time.Duration `json:"min_rep_time"`
	MaxRepTime        time.Duration `json:"max_rep_time"`
	InternalVariation float64       `json:"internal_variation"`
	// ReferenceVariation is nil when no trained reference exists.
	ReferenceVariation *float64      `json:"reference_variation,omitempty"`
	ReferenceRepTime   time.Duration `json:"reference_rep_time"`
}

// IsResting reports whether the result covers a rest period.
func (r Result) IsResting() bool { return r.Movement == Resting }

// Example is one labeled capture. RepCount is what the user says they did.
type Example struct {
	Output   *device.Output
	RepCount int
}

// Movement is an entry in the engine's movement catalog.
type Movement struct {
	ID          string
	DisplayName string
}

// Analyzer turns a capture into results. An empty result list is a normal
// outcome.
type Analyzer interface {
	Analyze(ctx context.Context, out *device.Output, mode Mode, hint string) ([]Result, error)
}

// Trainer builds a model for a movement label from the full example set.
// Forget drops the model for label; forgetting an untrained label is not an
// error.
type Trainer interface {
	Train(ctx context.Context, label string, examples []Example) error
	Forget(ctx context.Context, label string) error
}

// Engine is a complete analysis backend.
type Engine interface {
	Analyzer
	Trainer
	Movements() []Movement
}
