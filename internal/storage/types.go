package storage

import (
	"time"

	"github.com/goodtune/motioncoach/internal/device"
	"github.com/goodtune/motioncoach/internal/motion"
)

// Example is a persisted training example.
type Example struct {
	ID        string        `json:"id"`
	Movement  string        `json:"movement"`
	RepCount  int           `json:"rep_count"`
	Output    device.Output `json:"output"`
	CreatedAt time.Time     `json:"created_at"`
}

// ResultRecord is one analysis run and what it found. An empty Results
// slice means the analyzer recognized nothing.
type ResultRecord struct {
	ID        string          `json:"id"`
	OutputID  string          `json:"output_id"`
	DeviceID  string          `json:"device_id"`
	Mode      string          `json:"mode"`
	Movement  string          `json:"movement,omitempty"` // hint given to the analyzer
	Results   []motion.Result `json:"results"`
	CreatedAt time.Time       `json:"created_at"`
}

// TotalReps sums the repetitions across all non-resting results.
func (r ResultRecord) TotalReps() int {
	total := 0
	for _, res := range r.Results {
		if !res.IsResting() {
			total += res.RepCount
		}
	}
	return total
}
