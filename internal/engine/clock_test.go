package engine

import (
	"sync"
	"time"
)

// manualClock is a settable Clock for tests.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock(start time.Time) *manualClock {
	return &manualClock{now: start}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// manualScheduler collects scheduled callbacks and fires them only when the
// test asks, so fixed-delay transitions and countdown ticks run
// deterministically.
type manualScheduler struct {
	mu        sync.Mutex
	once      []*manualTask
	repeating []*manualTask
}

type manualTask struct {
	fn        func()
	cancelled bool
}

func newManualScheduler() *manualScheduler {
	return &manualScheduler{}
}

func (s *manualScheduler) ScheduleOnce(_ time.Duration, fn func()) CancelFunc {
	t := &manualTask{fn: fn}
	s.mu.Lock()
	s.once = append(s.once, t)
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		t.cancelled = true
		s.mu.Unlock()
	}
}

func (s *manualScheduler) ScheduleRepeating(_ time.Duration, fn func()) CancelFunc {
	t := &manualTask{fn: fn}
	s.mu.Lock()
	s.repeating = append(s.repeating, t)
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		t.cancelled = true
		s.mu.Unlock()
	}
}

// FireOnce runs and consumes all pending one-shot callbacks.
func (s *manualScheduler) FireOnce() {
	s.mu.Lock()
	pending := s.once
	s.once = nil
	s.mu.Unlock()

	for _, t := range pending {
		if !t.cancelled {
			t.fn()
		}
	}
}

// Tick fires every live repeating callback once.
func (s *manualScheduler) Tick() {
	s.mu.Lock()
	live := make([]*manualTask, 0, len(s.repeating))
	for _, t := range s.repeating {
		if !t.cancelled {
			live = append(live, t)
		}
	}
	s.mu.Unlock()

	for _, t := range live {
		t.fn()
	}
}
