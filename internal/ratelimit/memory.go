package ratelimit

import (
	"context"
	"sync"
	"time"
)

const staleThreshold = 10 * time.Minute

// memoryBackend keeps a sliding window of request timestamps per key.
// A background goroutine evicts idle keys every minute to bound memory.
type memoryBackend struct {
	mu      sync.Mutex
	windows map[string]*window

	stopOnce sync.Once
	done     chan struct{}
}

type window struct {
	hits       []time.Time
	lastAccess time.Time
}

func newMemoryBackend() *memoryBackend {
	m := &memoryBackend{
		windows: make(map[string]*window),
		done:    make(chan struct{}),
	}
	go m.cleanup()
	return m
}

func (m *memoryBackend) take(_ context.Context, key string, limit int, dur time.Duration) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	w, ok := m.windows[key]
	if !ok {
		w = &window{}
		m.windows[key] = w
	}
	w.lastAccess = now

	// Drop hits that left the window.
	cutoff := now.Add(-dur)
	kept := w.hits[:0]
	for _, h := range w.hits {
		if h.After(cutoff) {
			kept = append(kept, h)
		}
	}
	w.hits = kept

	if len(w.hits) >= limit {
		return Result{
			Allowed:   false,
			Remaining: 0,
			ResetAt:   w.hits[0].Add(dur),
		}, nil
	}

	w.hits = append(w.hits, now)
	return Result{
		Allowed:   true,
		Remaining: limit - len(w.hits),
		ResetAt:   now.Add(dur),
	}, nil
}

func (m *memoryBackend) close() error {
	m.stopOnce.Do(func() { close(m.done) })
	return nil
}

func (m *memoryBackend) cleanup() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.evictStale()
		}
	}
}

func (m *memoryBackend) evictStale() {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-staleThreshold)
	for key, w := range m.windows {
		if w.lastAccess.Before(cutoff) {
			delete(m.windows, key)
		}
	}
}
