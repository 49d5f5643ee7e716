package escrow

import (
	"sync"
	"time"
)

// TimerScheduler arms one in-process one-shot timer per reservation. There is
// no cancel path: completion consuming the reservation first makes the fired
// expiry handler a no-op. Armed timers do not survive a restart; the Timer
// sweep picks up anything left over.
type TimerScheduler struct {
	expire func(token uint64)

	mu      sync.Mutex
	timers  map[uint64]*time.Timer
	stopped bool
}

// NewTimerScheduler creates a scheduler that invokes expire once per armed
// token after its delay elapses.
func NewTimerScheduler(expire func(token uint64)) *TimerScheduler {
	return &TimerScheduler{
		expire: expire,
		timers: make(map[uint64]*time.Timer),
	}
}

// Arm schedules the expiry callback for token after delay. Arming an
// already-armed token resets its timer.
func (s *TimerScheduler) Arm(token uint64, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	if t, ok := s.timers[token]; ok {
		t.Stop()
	}
	s.timers[token] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, token)
		stopped := s.stopped
		s.mu.Unlock()
		if stopped {
			return
		}
		s.expire(token)
	})
}

// Stop drains all outstanding timers. Armed reservations are left in the
// pending store for the sweep to expire after the next start.
func (s *TimerScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	for token, t := range s.timers {
		t.Stop()
		delete(s.timers, token)
	}
}

// Compile-time assertion that TimerScheduler implements Scheduler.
var _ Scheduler = (*TimerScheduler)(nil)
