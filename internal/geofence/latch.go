package geofence

import (
	"sync"
	"time"
)

// completionLatch aggregates a fan-out of asynchronous requests into a
// single completion signal. The completion function fires exactly once:
// either when every expected arrival has been counted, or when the timeout
// elapses first. Arrivals after completion are ignored, so a late or
// spurious response can never re-trigger the callback.
type completionLatch struct {
	mu        sync.Mutex
	remaining int
	fired     bool
	timer     *time.Timer
	complete  func(timedOut bool)
}

// newCompletionLatch arms a latch expecting n arrivals within timeout.
// With n <= 0 the latch completes immediately.
func newCompletionLatch(n int, timeout time.Duration, complete func(timedOut bool)) *completionLatch {
	l := &completionLatch{
		remaining: n,
		complete:  complete,
	}

	if n <= 0 {
		l.fired = true
		complete(false)
		return l
	}

	l.timer = time.AfterFunc(timeout, func() {
		l.fire(true)
	})
	return l
}

// Arrive records one response. The last expected arrival triggers completion.
func (l *completionLatch) Arrive() {
	l.mu.Lock()
	if l.fired || l.remaining == 0 {
		l.mu.Unlock()
		return
	}

	l.remaining--
	if l.remaining > 0 {
		l.mu.Unlock()
		return
	}
	l.mu.Unlock()

	l.fire(false)
}

// Cancel disarms the latch without firing the completion function.
func (l *completionLatch) Cancel() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.fired = true
	l.remaining = 0
	if l.timer != nil {
		l.timer.Stop()
	}
}

// fire invokes the completion function at most once across both trigger
// paths (count exhaustion and timeout).
func (l *completionLatch) fire(timedOut bool) {
	l.mu.Lock()
	if l.fired {
		l.mu.Unlock()
		return
	}
	l.fired = true
	l.remaining = 0
	if l.timer != nil {
		l.timer.Stop()
	}
	l.mu.Unlock()

	l.complete(timedOut)
}
