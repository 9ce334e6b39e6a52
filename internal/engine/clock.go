// Package engine implements the timed session state machines: the
// full-length exam simulator, the per-topic drill station, and the score
// report builder. Engines own their timers and persistence writes; callers
// inject the clock, scheduler, random source, and key-value store so tests
// run fully deterministic.
package engine

import (
	"sync"
	"time"
)

// Clock supplies the current time. Production uses SystemClock; tests use a
// manual clock so deadline math is deterministic.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// CancelFunc stops a scheduled callback. Safe to call more than once.
type CancelFunc func()

// Scheduler is the timer capability owned by an engine. Both methods return
// a CancelFunc so the engine's lifecycle fully controls timer lifecycle and
// teardown never leaks a callback that mutates state afterwards.
type Scheduler interface {
	ScheduleOnce(delay time.Duration, fn func()) CancelFunc
	ScheduleRepeating(interval time.Duration, fn func()) CancelFunc
}

// TimerScheduler is the production Scheduler backed by the runtime timers.
type TimerScheduler struct{}

func (TimerScheduler) ScheduleOnce(delay time.Duration, fn func()) CancelFunc {
	t := time.AfterFunc(delay, fn)
	return func() { t.Stop() }
}

func (TimerScheduler) ScheduleRepeating(interval time.Duration, fn func()) CancelFunc {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				fn()
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
	}
}
