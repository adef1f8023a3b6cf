package ratelimit

import (
	"context"
	"sync"
	"time"
)

type bucket struct {
	hits    int
	resetAt time.Time
}

// Memory is an in-process fixed-window limiter. Expired buckets are evicted
// opportunistically every few thousand calls.
type Memory struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	now      Clock
	cleanupN uint64
}

// NewMemory returns an empty in-process limiter. A nil clock uses time.Now.
func NewMemory(clock Clock) *Memory {
	if clock == nil {
		clock = systemClock
	}
	return &Memory{buckets: make(map[string]*bucket), now: clock}
}

// Allow implements Limiter. It never returns an error.
func (m *Memory) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.cleanupN++
	if m.cleanupN >= 5000 {
		for k, b := range m.buckets {
			if now.After(b.resetAt) {
				delete(m.buckets, k)
			}
		}
		m.cleanupN = 0
	}

	b, ok := m.buckets[key]
	if !ok || now.After(b.resetAt) {
		m.buckets[key] = &bucket{hits: 1, resetAt: now.Add(window)}
		return true, nil
	}
	if b.hits >= limit {
		return false, nil
	}
	b.hits++
	return true, nil
}

// Len reports the number of tracked buckets.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets)
}
