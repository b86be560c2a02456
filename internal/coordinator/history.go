package coordinator

import (
	"fmt"
	"time"

	"github.com/goodtune/motioncoach/internal/motion"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Analysis is one analyzed recording.
type Analysis struct {
	ID       string
	OutputID string
	DeviceID string
	Mode     motion.Mode
	Movement string
	Results  []motion.Result
	At       time.Time
}

// history keeps the most recent analyses, evicting the oldest.
type history struct {
	cache *lru.Cache[string, Analysis]
}

func newHistory(size int) (*history, error) {
	cache, err := lru.New[string, Analysis](size)
	if err != nil {
		return nil, fmt.Errorf("create result history: %w", err)
	}
	return &history{cache: cache}, nil
}

func (h *history) add(a Analysis) {
	h.cache.Add(a.ID, a)
}

func (h *history) list() []Analysis {
	keys := h.cache.Keys() // oldest first
	out := make([]Analysis, 0, len(keys))
	for i := len(keys) - 1; i >= 0; i-- {
		if a, ok := h.cache.Peek(keys[i]); ok {
			out = append(out, a)
		}
	}
	return out
}
