package sched

import (
	"sync"
	"time"
)

// timerEntry pairs a live timer with the wall-clock instant it will fire at.
type timerEntry struct {
	timer  *time.Timer
	fireAt time.Time
}

// timerSet is a process-wide table of at most one live timer per key.
// Setting a key cancels and replaces any existing timer for that key, so a
// duplicate registration can never leak a timer or double-fire.
type timerSet struct {
	mu      sync.Mutex
	entries map[string]timerEntry
}

func newTimerSet() *timerSet {
	return &timerSet{entries: make(map[string]timerEntry)}
}

// set registers fn to run after delay under the given key, replacing any
// existing registration. The entry removes itself before fn runs.
func (s *timerSet) set(key string, delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok {
		e.timer.Stop()
		delete(s.entries, key)
	}

	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		s.removeIfCurrent(key, t)
		fn()
	})
	s.entries[key] = timerEntry{timer: t, fireAt: time.Now().Add(delay)}
}

// removeIfCurrent deletes the entry for key only if it still refers to the
// given timer. A fired timer must not remove a replacement registered after
// it was stopped.
func (s *timerSet) removeIfCurrent(key string, t *time.Timer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok && e.timer == t {
		delete(s.entries, key)
	}
}

// cancel stops and removes the timer for key. Idempotent.
func (s *timerSet) cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(s.entries, key)
	return true
}

// cancelAll stops and removes every live timer.
func (s *timerSet) cancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, e := range s.entries {
		e.timer.Stop()
		delete(s.entries, key)
	}
}

func (s *timerSet) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.entries[key]
	return ok
}

func (s *timerSet) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.entries)
}

// snapshot returns the pending fire instants keyed by task id.
func (s *timerSet) snapshot() map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]time.Time, len(s.entries))
	for key, e := range s.entries {
		out[key] = e.fireAt
	}
	return out
}
