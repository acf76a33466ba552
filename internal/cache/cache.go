// package cache holds the FailedQueryCache: the set of normalized (title, artist) keys known
// to have failed matching.
//
// Implementations must be safe for concurrent use. The cache is injected wherever it is
// needed; there is no package-level instance.
package cache

import (
	"context"
	"sync"
	"time"
)

// FailedQueries is a negative cache of track keys. Membership checks never fail: a backend
// error reads as "not cached".
type FailedQueries interface {
	Contains(ctx context.Context, key string) bool
	Add(ctx context.Context, key string)
}

// Clearer is implemented by caches that can drop every entry.
type Clearer interface {
	Clear(ctx context.Context) (int, error)
}

// Memory is an in-process [FailedQueries]. A zero TTL keeps entries for the life of the process.
type Memory struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]time.Time
}

// NewMemory creates an in-memory cache.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{ttl: ttl, now: time.Now, entries: make(map[string]time.Time)}
}

// Contains reports whether key was added and has not expired.
func (m *Memory) Contains(_ context.Context, key string) bool {
	m.mu.RLock()
	added, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	if m.ttl > 0 && m.now().Sub(added) >= m.ttl {
		m.mu.Lock()
		if cur, still := m.entries[key]; still && cur.Equal(added) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return false
	}
	return true
}

// Add records key. Re-adding refreshes its expiry.
func (m *Memory) Add(_ context.Context, key string) {
	m.mu.Lock()
	m.entries[key] = m.now()
	m.mu.Unlock()
}

// Len returns the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Reset drops every entry.
func (m *Memory) Reset() {
	m.mu.Lock()
	m.entries = make(map[string]time.Time)
	m.mu.Unlock()
}

// Clear implements [Clearer].
func (m *Memory) Clear(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.entries)
	m.entries = make(map[string]time.Time)
	return n, nil
}

// Noop never remembers anything.
type Noop struct{}

func (Noop) Contains(context.Context, string) bool { return false }
func (Noop) Add(context.Context, string)           {}
