package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// browserEntry holds one browser's values. A browser's data expires as a
// whole once it has been idle for the TTL.
type browserEntry struct {
	values    map[string]string
	expiresAt time.Time
}

func (e *browserEntry) isExpired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Memory is an in-memory backend with idle expiry. Data does not survive a
// restart; it suits development and tests.
type Memory struct {
	mu       sync.RWMutex
	browsers map[string]*browserEntry
	ttl      time.Duration

	// For background cleanup
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once // Ensures Close() is idempotent
}

// NewMemory creates an in-memory backend. ttl <= 0 disables expiry.
func NewMemory(ttl time.Duration) *Memory {
	m := &Memory{
		browsers:        make(map[string]*browserEntry),
		ttl:             ttl,
		cleanupInterval: time.Minute,
		stopCleanup:     make(chan struct{}),
	}
	go m.cleanupLoop()
	return m
}

// lookup returns the live entry of a browser, touching its expiry.
// Caller holds m.mu for writing.
func (m *Memory) lookup(browser string, create bool) *browserEntry {
	now := time.Now()
	e, ok := m.browsers[browser]
	if ok && e.isExpired(now) {
		delete(m.browsers, browser)
		ok = false
	}
	if !ok {
		if !create {
			return nil
		}
		e = &browserEntry{values: make(map[string]string)}
		m.browsers[browser] = e
	}
	e.expiresAt = expiry(m.ttl)
	return e
}

func (m *Memory) Get(_ context.Context, browser, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.lookup(browser, false)
	if e == nil {
		return "", false, nil
	}
	v, ok := e.values[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, browser, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookup(browser, true).values[key] = value
	return nil
}

func (m *Memory) Delete(_ context.Context, browser string, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.lookup(browser, false)
	if e == nil {
		return nil
	}
	for _, k := range keys {
		delete(e.values, k)
	}
	return nil
}

func (m *Memory) Keys(_ context.Context, browser, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.lookup(browser, false)
	if e == nil {
		return nil, nil
	}
	var out []string
	for k := range e.values {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

// cleanupLoop periodically removes expired browsers
func (m *Memory) cleanupLoop() {
	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanup()
		case <-m.stopCleanup:
			return
		}
	}
}

// cleanup removes all expired browsers
func (m *Memory) cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for browser, e := range m.browsers {
		if e.isExpired(now) {
			delete(m.browsers, browser)
		}
	}
}

// Close stops the background cleanup goroutine
// Safe to call multiple times
func (m *Memory) Close() error {
	m.stopOnce.Do(func() {
		close(m.stopCleanup)
	})
	return nil
}

// Len returns the number of browsers held (for testing)
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.browsers)
}
