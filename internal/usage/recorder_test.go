package usage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/asesorlegal/backend/internal/store"
)

type fakeStore struct {
	mu      sync.Mutex
	records []*store.Interaction
	err     error
	block   chan struct{}
	sawDL   bool
}

func (f *fakeStore) RecordInteraction(ctx context.Context, rec *store.Interaction) error {
	if f.block != nil {
		<-f.block
	}
	_, hasDeadline := ctx.Deadline()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sawDL = hasDeadline
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

func closeRecorder(t *testing.T, r *Recorder) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestRecorderWritesAndDrainsOnClose(t *testing.T) {
	fs := &fakeStore{}
	r := NewRecorder(fs, WithQueueSize(8))

	for i := 0; i < 5; i++ {
		r.Record(&store.Interaction{Kind: store.KindChat, UserID: "u1", Response: "ok"})
	}
	closeRecorder(t, r)

	if fs.count() != 5 {
		t.Fatalf("expected 5 writes, got %d", fs.count())
	}
	if r.Written() != 5 || r.Failures() != 0 {
		t.Fatalf("unexpected counters written=%d failures=%d", r.Written(), r.Failures())
	}
	if !fs.sawDL {
		t.Fatal("store write should carry a deadline")
	}
}

func TestRecorderFailuresGoToHook(t *testing.T) {
	fs := &fakeStore{err: errors.New("permission denied")}

	var mu sync.Mutex
	var hooked []error
	r := NewRecorder(fs, WithErrorHook(func(_ *store.Interaction, err error) {
		mu.Lock()
		hooked = append(hooked, err)
		mu.Unlock()
	}))

	r.Record(&store.Interaction{Kind: store.KindDocument, UserID: "u1"})
	r.Record(&store.Interaction{Kind: store.KindChat, UserID: "u2"})
	closeRecorder(t, r)

	if r.Failures() != 2 {
		t.Fatalf("expected 2 failures, got %d", r.Failures())
	}
	mu.Lock()
	defer mu.Unlock()
	if len(hooked) != 2 {
		t.Fatalf("expected 2 hook calls, got %d", len(hooked))
	}
}

func TestRecordNeverBlocksWhenQueueIsFull(t *testing.T) {
	fs := &fakeStore{block: make(chan struct{})}
	r := NewRecorder(fs, WithQueueSize(1))

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			r.Record(&store.Interaction{Kind: store.KindChat, UserID: "u1"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Record blocked on a stalled store")
	}
	if r.Dropped() == 0 {
		t.Fatal("expected dropped interactions")
	}

	close(fs.block)
	closeRecorder(t, r)
	if got := r.Written() + r.Dropped(); got != 10 {
		t.Fatalf("written+dropped = %d, want 10", got)
	}
}

func TestRecordAfterCloseIsDropped(t *testing.T) {
	fs := &fakeStore{}
	r := NewRecorder(fs)
	closeRecorder(t, r)

	r.Record(&store.Interaction{Kind: store.KindChat, UserID: "u1"})
	if r.Dropped() != 1 || fs.count() != 0 {
		t.Fatalf("expected drop after close, dropped=%d writes=%d", r.Dropped(), fs.count())
	}
	if err := r.Close(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("second Close = %v, want ErrClosed", err)
	}
}

func TestCloseHonoursContext(t *testing.T) {
	fs := &fakeStore{block: make(chan struct{})}
	defer close(fs.block)
	r := NewRecorder(fs)
	r.Record(&store.Interaction{Kind: store.KindChat, UserID: "u1"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := r.Close(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Close = %v, want deadline exceeded", err)
	}
}
