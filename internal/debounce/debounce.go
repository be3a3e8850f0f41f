// Package debounce rate-limits update invocations. Raw scroll notifications
// arrive at whatever rate the source produces them; the limiter coalesces
// them so the update func runs at most once per interval, with a trailing
// call after a burst settles and one synthetic call immediately on start.
//
// All update calls happen on a single goroutine owned by the limiter, which
// is what lets the state machine stay lock-free.
package debounce

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// Limiter coalesces notifications into rate-limited update calls.
type Limiter struct {
	interval time.Duration
	fn       func()

	notifyc chan struct{}
	stopc   chan struct{}
	done    chan struct{}
	stop    sync.Once
	started atomic.Bool
}

// New creates a Limiter invoking fn at most once per interval.
func New(interval time.Duration, fn func()) (*Limiter, error) {
	if interval <= 0 {
		return nil, errors.New("debounce: interval must be positive")
	}
	if fn == nil {
		return nil, errors.New("debounce: update func must not be nil")
	}
	return &Limiter{
		interval: interval,
		fn:       fn,
		notifyc:  make(chan struct{}, 1),
		stopc:    make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Start launches the limiter goroutine. The update func fires once
// immediately, so attached consumers see the current state without waiting
// for the first notification. Calling Start more than once is a no-op.
func (l *Limiter) Start() {
	if !l.started.CompareAndSwap(false, true) {
		return
	}
	go l.run()
}

// Notify schedules an update. It never blocks; notifications arriving while
// one is already queued are coalesced.
func (l *Limiter) Notify() {
	select {
	case l.notifyc <- struct{}{}:
	default:
	}
}

// Stop terminates the limiter and waits for the goroutine to exit. No update
// calls are made after Stop returns. Stop is safe even if Start was never
// called, which lets callers defer it before their setup can still fail.
func (l *Limiter) Stop() {
	l.stop.Do(func() { close(l.stopc) })
	if !l.started.Load() {
		return
	}
	<-l.done
}

func (l *Limiter) run() {
	defer close(l.done)

	// Started after Stop: exit without the synthetic call.
	select {
	case <-l.stopc:
		return
	default:
	}

	timer := time.NewTimer(l.interval)
	defer timer.Stop()

	// Initial synthetic call; the interval timer doubles as its cooldown.
	l.fn()
	cooling := true
	pending := false

	for {
		select {
		case <-l.stopc:
			return

		case <-l.notifyc:
			if cooling {
				pending = true
				continue
			}
			l.fn()
			cooling = true
			timer.Reset(l.interval)

		case <-timer.C:
			if pending {
				// Trailing edge of a burst.
				pending = false
				l.fn()
				timer.Reset(l.interval)
			} else {
				cooling = false
			}
		}
	}
}
