package recovery

import (
	"sync"
	"time"
)

// Counter tracks occurrences of one error key inside the current window.
type Counter struct {
	Key         ErrorKey
	Count       uint64
	WindowStart time.Time
}

// CounterStore holds per-key occurrence counts. Only the orchestrator's
// intake path increments; the periodic sweep (or an accepted threshold
// crossing) resets. Counts are monotonically non-decreasing between resets.
type CounterStore struct {
	mu       sync.Mutex
	counters map[ErrorKey]*Counter
	now      func() time.Time
}

// NewCounterStore creates an empty counter store.
func NewCounterStore() *CounterStore {
	return &CounterStore{
		counters: make(map[ErrorKey]*Counter),
		now:      time.Now,
	}
}

// Incr increments the counter for key, creating it at zero if absent, and
// returns the post-increment count.
func (s *CounterStore) Incr(key ErrorKey) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[key]
	if !ok {
		c = &Counter{Key: key, WindowStart: s.now()}
		s.counters[key] = c
	}
	c.Count++
	return c.Count
}

// Get returns the current count for key.
func (s *CounterStore) Get(key ErrorKey) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.counters[key]; ok {
		return c.Count
	}
	return 0
}

// Reset evicts a single key. Called by the intake path when a threshold
// crossing is accepted for processing.
func (s *CounterStore) Reset(key ErrorKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.counters, key)
}

// ResetAll clears every counter at once. This is the global fixed-window
// policy: imprecise across the window boundary, but cheap and predictable.
func (s *CounterStore) ResetAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters = make(map[ErrorKey]*Counter)
}

// Snapshot returns a copy of all current counts keyed by string.
func (s *CounterStore) Snapshot() map[string]uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]uint64, len(s.counters))
	for k, c := range s.counters {
		out[string(k)] = c.Count
	}
	return out
}

// Len returns the number of tracked keys.
func (s *CounterStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.counters)
}
