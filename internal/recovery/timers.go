package recovery

import (
	"sync"
	"time"
)

// timerSlot holds at most one pending timer. Arming a slot always cancels
// its predecessor first, which is what guarantees the "no duplicate retry
// timers" invariant: each named slot (retry, attempt, polling, restore) can
// never have two callbacks in flight.
type timerSlot struct {
	mu    sync.Mutex
	timer Timer
	armed bool
}

// arm schedules fn after d, replacing any pending timer in this slot.
func (s *timerSlot) arm(clock Clock, d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
	}
	s.armed = true
	s.timer = clock.AfterFunc(d, func() {
		s.mu.Lock()
		s.armed = false
		s.mu.Unlock()
		fn()
	})
}

// cancel stops any pending timer in this slot.
func (s *timerSlot) cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.armed = false
}

// isArmed reports whether a timer is pending.
func (s *timerSlot) isArmed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.armed
}
