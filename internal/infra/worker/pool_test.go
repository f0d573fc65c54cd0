//go:build !integration

package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func TestPool(t *testing.T) {
	t.Run("should run submitted tasks", func(t *testing.T) {
		// --- Arrange ---
		p := NewPool(2, newTestLogger())
		p.Start(context.Background())
		var ran int32
		done := make(chan struct{}, 3)

		// --- Act ---
		for i := 0; i < 3; i++ {
			err := p.Submit(func(ctx context.Context) error {
				atomic.AddInt32(&ran, 1)
				done <- struct{}{}
				return errors.New("ignored")
			})
			if err != nil {
				t.Fatalf("submit: %v", err)
			}
		}
		for i := 0; i < 3; i++ {
			select {
			case <-done:
			case <-time.After(2 * time.Second):
				t.Fatal("timed out waiting for tasks")
			}
		}
		p.Stop()

		// --- Assert ---
		if got := atomic.LoadInt32(&ran); got != 3 {
			t.Errorf("expected 3 tasks, got %d", got)
		}
	})

	t.Run("should reject nil and overflowing tasks", func(t *testing.T) {
		p := NewPool(1, newTestLogger()) // not started: nothing drains the queue
		if err := p.Submit(nil); !errors.Is(err, ErrNilTask) {
			t.Fatalf("expected ErrNilTask, got %v", err)
		}
		noop := func(ctx context.Context) error { return nil }
		for i := 0; i < 4; i++ {
			if err := p.Submit(noop); err != nil {
				t.Fatalf("submit %d: %v", i, err)
			}
		}
		if err := p.Submit(noop); !errors.Is(err, ErrQueueFull) {
			t.Fatalf("expected ErrQueueFull, got %v", err)
		}
		if got := p.Pending(); got != 4 {
			t.Errorf("expected 4 pending, got %d", got)
		}
	})

	t.Run("should tolerate a double stop", func(t *testing.T) {
		p := NewPool(1, newTestLogger())
		p.Start(context.Background())
		p.Stop()
		p.Stop()
	})

	t.Run("should survive a panicking task", func(t *testing.T) {
		// --- Arrange ---
		p := NewPool(1, newTestLogger())
		p.Start(context.Background())
		done := make(chan struct{})

		// --- Act ---
		_ = p.Submit(func(ctx context.Context) error { panic("boom") })
		_ = p.Submit(func(ctx context.Context) error { close(done); return nil })

		// --- Assert ---
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("worker died after a panic")
		}
		p.Stop()
	})

	t.Run("should deliver queued tasks on stop", func(t *testing.T) {
		p := NewPool(1, newTestLogger())
		var ran int32
		for i := 0; i < 3; i++ {
			_ = p.Submit(func(ctx context.Context) error { atomic.AddInt32(&ran, 1); return nil })
		}

		p.Start(context.Background())
		p.Stop()

		if got := atomic.LoadInt32(&ran); got != 3 {
			t.Errorf("expected 3 drained tasks, got %d", got)
		}
	})
}
