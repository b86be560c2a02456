// Package memory is a process-lifetime storage backend.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goodtune/motioncoach/internal/storage"
	"github.com/google/uuid"
)

// Store implements storage.Store in memory.
type Store struct {
	mu       sync.RWMutex
	examples map[string][]storage.Example
	results  []storage.ResultRecord
}

// New creates an empty store.
func New() *Store {
	return &Store{examples: make(map[string][]storage.Example)}
}

// Close releases nothing; the data is dropped with the store.
func (s *Store) Close() error { return nil }

// Examples returns the training example store.
func (s *Store) Examples() storage.ExampleStore { return (*exampleStore)(s) }

// Results returns the analysis result store.
func (s *Store) Results() storage.ResultStore { return (*resultStore)(s) }

type exampleStore Store

func (s *exampleStore) Append(ctx context.Context, example storage.Example) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if example.Movement == "" {
		return fmt.Errorf("example movement is required")
	}
	if example.ID == "" {
		example.ID = uuid.NewString()
	}
	if example.CreatedAt.IsZero() {
		example.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.examples[example.Movement] = append(s.examples[example.Movement], example)
	return nil
}

func (s *exampleStore) List(ctx context.Context, movement string) ([]storage.Example, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]storage.Example{}, s.examples[movement]...), nil
}

func (s *exampleStore) Movements(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	movements := make([]string, 0, len(s.examples))
	for m, list := range s.examples {
		if len(list) > 0 {
			movements = append(movements, m)
		}
	}
	sort.Strings(movements)
	return movements, nil
}

func (s *exampleStore) Clear(ctx context.Context, movement string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.examples[movement])
	delete(s.examples, movement)
	return n, nil
}

type resultStore Store

func (s *resultStore) Add(ctx context.Context, record storage.ResultRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, record)
	return nil
}

func (s *resultStore) Get(ctx context.Context, id string) (*storage.ResultRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.results {
		if s.results[i].ID == id {
			record := s.results[i]
			return &record, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *resultStore) List(ctx context.Context, filter storage.ResultFilter) ([]storage.ResultRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]storage.ResultRecord, 0)
	for i := len(s.results) - 1; i >= 0; i-- {
		record := s.results[i]
		if filter.Movement != "" && !mentions(record, filter.Movement) {
			continue
		}
		records = append(records, record)
		if filter.Limit > 0 && len(records) >= filter.Limit {
			break
		}
	}
	return records, nil
}

func mentions(record storage.ResultRecord, movement string) bool {
	for _, res := range record.Results {
		if strings.EqualFold(res.Movement, movement) {
			return true
		}
	}
	return false
}
