package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a record is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// Store represents the root storage interface.
type Store interface {
	Close() error
	Examples() ExampleStore
	Results() ResultStore
}

// ExampleStore persists labeled training examples. Examples are kept per
// movement in insertion order.
type ExampleStore interface {
	Append(ctx context.Context, example Example) error
	List(ctx context.Context, movement string) ([]Example, error)
	Movements(ctx context.Context) ([]string, error)
	Clear(ctx context.Context, movement string) (int, error)
}

// ResultStore keeps a log of analysis results.
type ResultStore interface {
	Add(ctx context.Context, record ResultRecord) error
	Get(ctx context.Context, id string) (*ResultRecord, error)
	List(ctx context.Context, filter ResultFilter) ([]ResultRecord, error)
}

// ResultFilter defines criteria for querying the result log. Records are
// returned newest first.
type ResultFilter struct {
	Movement string
	Limit    int
}
