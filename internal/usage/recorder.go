// Package usage persists answered interactions off the request path.
package usage

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/asesorlegal/backend/internal/store"
)

// ErrClosed is returned by Close when called more than once.
var ErrClosed = errors.New("usage recorder closed")

// Store writes one interaction and bumps the global counter in a single batch.
type Store interface {
	RecordInteraction(ctx context.Context, rec *store.Interaction) error
}

// Recorder queues interactions and writes them from one background worker.
// Record never blocks and never reports persistence errors to the caller.
type Recorder struct {
	store        Store
	queue        chan *store.Interaction
	writeTimeout time.Duration
	onError      func(*store.Interaction, error)

	mu     sync.RWMutex
	closed bool
	done   chan struct{}

	written  atomic.Int64
	failures atomic.Int64
	dropped  atomic.Int64
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithQueueSize sets the number of interactions buffered before new ones are dropped.
func WithQueueSize(n int) Option {
	return func(r *Recorder) {
		if n > 0 {
			r.queue = make(chan *store.Interaction, n)
		}
	}
}

// WithWriteTimeout bounds each store write.
func WithWriteTimeout(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.writeTimeout = d
		}
	}
}

// WithErrorHook replaces the default slog error reporting.
func WithErrorHook(fn func(*store.Interaction, error)) Option {
	return func(r *Recorder) {
		if fn != nil {
			r.onError = fn
		}
	}
}

func NewRecorder(s Store, opts ...Option) *Recorder {
	r := &Recorder{
		store:        s,
		queue:        make(chan *store.Interaction, 256),
		writeTimeout: 10 * time.Second,
		onError:      logError,
		done:         make(chan struct{}),
	}
	for _, o := range opts {
		o(r)
	}
	go r.run()
	return r
}

// Record enqueues rec. When the queue is full or the recorder is closed the
// interaction is dropped and logged.
func (r *Recorder) Record(rec *store.Interaction) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.dropped.Add(1)
		slog.Warn("usage recorder closed, interaction dropped", "kind", rec.Kind, "user_id", rec.UserID)
		return
	}

	select {
	case r.queue <- rec:
	default:
		r.dropped.Add(1)
		slog.Warn("usage queue full, interaction dropped", "kind", rec.Kind, "user_id", rec.UserID)
	}
}

// Close stops accepting interactions and waits for the queue to drain or ctx
// to expire.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Written, Failures and Dropped report counters for logs and tests.
func (r *Recorder) Written() int64  { return r.written.Load() }
func (r *Recorder) Failures() int64 { return r.failures.Load() }
func (r *Recorder) Dropped() int64  { return r.dropped.Load() }

func (r *Recorder) run() {
	defer close(r.done)
	for rec := range r.queue {
		r.write(rec)
	}
}

func (r *Recorder) write(rec *store.Interaction) {
	defer func() {
		if p := recover(); p != nil {
			r.failures.Add(1)
			r.onError(rec, errors.New("usage store panicked"))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
	defer cancel()

	if err := r.store.RecordInteraction(ctx, rec); err != nil {
		r.failures.Add(1)
		r.onError(rec, err)
		return
	}
	r.written.Add(1)
}

func logError(rec *store.Interaction, err error) {
	slog.Error("failed to record interaction",
		"kind", rec.Kind,
		"user_id", rec.UserID,
		"error", err,
	)
}
