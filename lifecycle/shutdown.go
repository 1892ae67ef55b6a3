package lifecycle

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrShuttingDown is returned by ProcessingStarting once Shutdown has
// been called; new requests are rejected rather than left to race the
// drain.
var ErrShuttingDown = errors.New("lifecycle: shutting down")

// ShutdownWaiter lets any number of goroutines register as "processing"
// and lets one caller wait for all of them to finish (or bound the wait
// with a timeout) before the process exits. Each registered goroutine
// also gets a context that Shutdown cancels immediately, so a long
// operation can notice and unwind instead of blocking the drain.
type ShutdownWaiter struct {
	drain   sync.RWMutex // each in-flight operation holds a read lock
	stopped atomic.Bool

	mu         sync.Mutex
	registered map[uint64]context.CancelFunc
	nextID     uint64
}

// NewShutdownWaiter returns a waiter accepting new work.
func NewShutdownWaiter() *ShutdownWaiter {
	return &ShutdownWaiter{registered: make(map[uint64]context.CancelFunc)}
}

// ProcessingStarting registers one in-flight operation derived from ctx.
// It returns ErrShuttingDown if Shutdown has already been called.
// The caller must invoke the returned done func exactly once, typically
// deferred, once the operation finishes.
func (w *ShutdownWaiter) ProcessingStarting(ctx context.Context) (derived context.Context, done func(), err error) {
	if w.stopped.Load() {
		return nil, nil, ErrShuttingDown
	}

	w.drain.RLock()
	derived, cancel := context.WithCancel(ctx)

	w.mu.Lock()
	id := w.nextID
	w.nextID++
	w.registered[id] = cancel
	w.mu.Unlock()

	var once sync.Once
	done = func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.registered, id)
			w.mu.Unlock()
			cancel()
			w.drain.RUnlock()
		})
	}
	return derived, done, nil
}

// Shutdown marks the waiter as stopped (rejecting new ProcessingStarting
// calls), cancels every currently-registered operation's context, then
// waits up to timeout for all of them to call their done func. Returns
// true if every operation drained in time, false if timeout elapsed
// first (in which case some operations may still be running).
func (w *ShutdownWaiter) Shutdown(timeout time.Duration) bool {
	w.stopped.Store(true)

	w.mu.Lock()
	for _, cancel := range w.registered {
		cancel()
	}
	w.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		w.drain.Lock()
		defer w.drain.Unlock()
		close(drained)
	}()

	select {
	case <-drained:
		return true
	case <-time.After(timeout):
		return false
	}
}
