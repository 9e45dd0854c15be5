package limiter

import (
	"context"
	"sync"
	"time"
)

// Memory is a sliding-window limiter held in process memory. It is the
// fallback when Redis is not configured; limits then apply per process.
type Memory struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	window   time.Duration
	maxReqs  int
	now      func() time.Time
	stop     chan struct{}
}

// NewMemory constructs an in-memory limiter and starts its cleanup loop.
// Call Close to stop the loop; limiters created for the process lifetime
// may skip it.
func NewMemory(window time.Duration, maxReqs int) *Memory {
	m := &Memory{
		requests: make(map[string][]time.Time),
		window:   window,
		maxReqs:  maxReqs,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	go m.cleanup()
	return m
}

// Close stops the cleanup loop. The limiter stays usable afterwards, but
// idle keys are no longer pruned.
func (m *Memory) Close() { close(m.stop) }

// Allow records the request and reports whether key stayed within the limit.
func (m *Memory) Allow(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	cutoff := now.Add(-m.window)

	kept := m.requests[key][:0]
	for _, t := range m.requests[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= m.maxReqs {
		m.requests[key] = kept
		return false, nil
	}
	m.requests[key] = append(kept, now)
	return true, nil
}

// cleanup drops idle keys so the map doesn't grow without bound.
func (m *Memory) cleanup() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
		}
		m.mu.Lock()
		cutoff := m.now().Add(-2 * m.window)
		for key, reqs := range m.requests {
			live := false
			for _, t := range reqs {
				if t.After(cutoff) {
					live = true
					break
				}
			}
			if !live {
				delete(m.requests, key)
			}
		}
		m.mu.Unlock()
	}
}
