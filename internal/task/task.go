// Package task runs background work behind a revocable handle.
package task

import (
	"context"
	"sync/atomic"
)

// Handle controls a running task.
type Handle struct {
	cancel  context.CancelFunc
	done    chan struct{}
	revoked atomic.Bool
}

// Go runs fn in a new goroutine with a context derived from parent. The
// context is cancelled when the handle is revoked, when parent is done, or
// when fn returns.
func Go(parent context.Context, fn func(ctx context.Context)) *Handle {
	ctx, cancel := context.WithCancel(parent)
	h := &Handle{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(h.done)
		defer cancel()
		fn(ctx)
	}()
	return h
}

// Cancel revokes the task. It does not wait for it to return and is safe to
// call more than once.
func (h *Handle) Cancel() {
	h.revoked.Store(true)
	h.cancel()
}

// Stop revokes the task and waits for it to return.
func (h *Handle) Stop() {
	h.Cancel()
	<-h.done
}

// Done is closed once the task function has returned.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Revoked reports whether Cancel or Stop was called.
func (h *Handle) Revoked() bool { return h.revoked.Load() }

// Wait blocks until the task returns or ctx is done.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
