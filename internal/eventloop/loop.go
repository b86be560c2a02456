// Package eventloop provides the single event-processing context that owns
// all device, session and coordinator state.
//
// Transport backends and UI input run on their own goroutines and must hand
// work to the loop with Post; nothing outside the loop goroutine touches the
// state it guards.
package eventloop

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// ErrStopped is returned by Call when the loop has already shut down.
var ErrStopped = errors.New("eventloop: stopped")

// Dispatcher schedules a function on the event context.
type Dispatcher interface {
	Post(fn func())
}

// Loop runs posted functions one at a time, in order, on a single goroutine.
type Loop struct {
	queue  chan func()
	done   chan struct{}
	logger zerolog.Logger

	stopOnce sync.Once
}

// New creates a loop with the given queue depth.
func New(depth int, logger zerolog.Logger) *Loop {
	if depth <= 0 {
		depth = 64
	}
	return &Loop{
		queue:  make(chan func(), depth),
		done:   make(chan struct{}),
		logger: logger.With().Str("component", "eventloop").Logger(),
	}
}

// Post enqueues fn. It blocks while the queue is full and drops fn once the
// loop has stopped.
func (l *Loop) Post(fn func()) {
	select {
	case <-l.done:
		l.logger.Debug().Msg("Dropping event posted after shutdown")
	case l.queue <- fn:
	}
}

// Call posts fn and waits for it to finish.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	l.Post(func() {
		defer close(finished)
		fn()
	})
	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes events until ctx is cancelled. Events still queued at that
// point are discarded.
func (l *Loop) Run(ctx context.Context) {
	l.logger.Debug().Msg("Event loop started")
	defer l.stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Debug().Msg("Event loop stopped")
			return
		case fn := <-l.queue:
			l.dispatch(fn)
		}
	}
}

func (l *Loop) dispatch(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error().Interface("panic", r).Msg("Event handler panicked")
		}
	}()
	fn()
}

func (l *Loop) stop() {
	l.stopOnce.Do(func() { close(l.done) })
}

// Inline runs posted functions immediately on the caller's goroutine. It is
// meant for tests and for callers that are already on the event context.
type Inline struct{}

// Post runs fn synchronously.
func (Inline) Post(fn func()) { fn() }

var (
	_ Dispatcher = (*Loop)(nil)
	_ Dispatcher = Inline{}
)
