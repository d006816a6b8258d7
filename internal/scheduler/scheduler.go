// Package scheduler bounds the number of concurrently executing
// generation calls process-wide. The external transport tolerates only a
// small number of in-flight requests (possibly one), so expensive work is
// serialized through a fixed slot pool with a bounded FIFO wait queue.
// Once the queue is full, admission fails fast instead of growing
// unbounded, which is the guard against runaway speculative prefetch.
package scheduler

import (
	"context"
	"errors"
	"sync"
)

// Sentinel errors returned by slot acquisition.
var (
	// ErrSaturated indicates the wait queue is full; the caller should
	// try again later rather than pile up.
	ErrSaturated = errors.New("scheduler queue is full")
	// ErrClosed indicates the scheduler has been shut down.
	ErrClosed = errors.New("scheduler is closed")
)

// waiter is one queued acquisition. The slot is handed over by closing
// ready with granted set; Close hands over ErrClosed instead.
type waiter struct {
	ready   chan struct{}
	granted bool
	err     error
}

// Scheduler is a fixed-size slot pool with a bounded FIFO wait queue.
// All methods are safe for concurrent use.
type Scheduler struct {
	mu     sync.Mutex
	slots  int
	inUse  int
	queue  []*waiter
	bound  int
	closed bool
}

// New creates a scheduler with the given slot count and wait-queue bound.
// Values below one are clamped to one.
func New(slots, queueBound int) *Scheduler {
	if slots < 1 {
		slots = 1
	}
	if queueBound < 1 {
		queueBound = 1
	}
	return &Scheduler{slots: slots, bound: queueBound}
}

// AcquireSlot obtains a slot, suspending the caller in FIFO order until
// one frees. It returns a release function that must be called exactly
// once; calling it again is a no-op.
//
// If the wait queue is already at its bound, AcquireSlot fails fast with
// ErrSaturated. If the context is cancelled while queued, the waiter is
// withdrawn and the context error returned. If the scheduler is closed
// while queued, ErrClosed is returned.
func (s *Scheduler) AcquireSlot(ctx context.Context) (func(), error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if s.inUse < s.slots {
		s.inUse++
		s.mu.Unlock()
		return s.releaseFunc(), nil
	}
	if len(s.queue) >= s.bound {
		s.mu.Unlock()
		return nil, ErrSaturated
	}
	w := &waiter{ready: make(chan struct{})}
	s.queue = append(s.queue, w)
	s.mu.Unlock()

	select {
	case <-w.ready:
		if w.err != nil {
			return nil, w.err
		}
		return s.releaseFunc(), nil
	case <-ctx.Done():
		s.mu.Lock()
		if w.granted {
			// The handover raced the cancellation: the slot is ours,
			// give it straight back.
			s.releaseLocked()
			s.mu.Unlock()
			return nil, ctx.Err()
		}
		s.withdrawLocked(w)
		s.mu.Unlock()
		return nil, ctx.Err()
	}
}

// Close shuts the scheduler down. Every queued waiter is resolved with
// ErrClosed; nobody is left suspended. Subsequent AcquireSlot calls fail
// with ErrClosed. Slots already handed out remain valid to release.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	for _, w := range s.queue {
		w.err = ErrClosed
		close(w.ready)
	}
	s.queue = nil
}

// InUse returns the number of currently held slots.
func (s *Scheduler) InUse() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inUse
}

// QueueLen returns the number of suspended waiters.
func (s *Scheduler) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// releaseFunc wraps releaseLocked in a sync.Once so a double release
// cannot free someone else's slot.
func (s *Scheduler) releaseFunc() func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.releaseLocked()
			s.mu.Unlock()
		})
	}
}

// releaseLocked frees one slot, handing it to the head of the queue if
// anyone is waiting.
func (s *Scheduler) releaseLocked() {
	if !s.closed && len(s.queue) > 0 {
		head := s.queue[0]
		s.queue = s.queue[1:]
		head.granted = true
		close(head.ready)
		// The slot transfers directly; inUse is unchanged.
		return
	}
	if s.inUse > 0 {
		s.inUse--
	}
}

func (s *Scheduler) withdrawLocked(target *waiter) {
	for i, w := range s.queue {
		if w == target {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return
		}
	}
}
