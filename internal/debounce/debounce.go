// Package debounce coalesces bursts of filesystem-change notifications into
// single wake-up events. Editors that write-then-rename produce several
// events per logical change; only the first within the window is accepted.
package debounce

import (
	"sync"
	"time"
)

const DefaultWindow = 500 * time.Millisecond

// Signal tracks the last notification time per path. One instance serves one
// watched source.
type Signal struct {
	mu     sync.Mutex
	window time.Duration
	last   map[string]time.Time
	now    func() time.Time
}

func New(window time.Duration) *Signal {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Signal{
		window: window,
		last:   make(map[string]time.Time),
		now:    time.Now,
	}
}

// Notify records a change for path. It returns false (do not process) when a
// prior notification for the same path landed inside the debounce window,
// otherwise true. Every call restarts the window.
func (s *Signal) Notify(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	prev, seen := s.last[path]
	s.last[path] = now

	if seen && now.Sub(prev) < s.window {
		return false
	}
	return true
}

// Cleanup prunes entries older than maxAge to bound memory over long runs.
// Returns the number of entries removed.
func (s *Signal) Cleanup(maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-maxAge)
	removed := 0
	for path, ts := range s.last {
		if ts.Before(cutoff) {
			delete(s.last, path)
			removed++
		}
	}
	return removed
}

// Len reports the number of tracked paths.
func (s *Signal) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.last)
}
