// Package cache holds audited reports between repeated requests for the same
// canonical key. The cache is advisory: entries expire by TTL and degraded
// (blocked/timeout) reports are never stored.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/sitescan/engine/pkg/types"
)

// DefaultTTL bounds how long a report may be served from cache.
const DefaultTTL = 90 * time.Second

// Store is the report cache contract. Get returns the payload and its age
// when a fresh entry exists. Implementations may be process-local or backed
// by an external store.
type Store interface {
	Get(ctx context.Context, key string) (*types.Report, time.Duration, bool)
	Set(ctx context.Context, key string, report *types.Report)
}

// Cacheable reports whether a report may be stored: degraded outcomes are
// kept out so a later retry gets a fresh audit.
func Cacheable(r *types.Report) bool {
	return r != nil && !r.Blocked && !r.Timeout
}

type memoryEntry struct {
	payload   *types.Report
	createdAt time.Time
	expiresAt time.Time
}

// Memory is the in-process Store: a TTL map with lazy eviction on read.
// Safe for concurrent use. There is no LRU bound; memory is reclaimed only
// by expiry.
type Memory struct {
	mu    sync.RWMutex
	store map[string]memoryEntry
	ttl   time.Duration
}

// NewMemory creates an in-process cache with the given TTL (DefaultTTL when
// zero).
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{
		store: make(map[string]memoryEntry),
		ttl:   ttl,
	}
}

// Get returns the cached report and its age, evicting the entry when it has
// expired.
func (m *Memory) Get(_ context.Context, key string) (*types.Report, time.Duration, bool) {
	m.mu.RLock()
	e, ok := m.store[key]
	m.mu.RUnlock()
	if !ok {
		return nil, 0, false
	}

	if time.Now().After(e.expiresAt) {
		m.mu.Lock()
		// Re-check under the write lock; another writer may have refreshed it.
		if cur, ok := m.store[key]; ok && time.Now().After(cur.expiresAt) {
			delete(m.store, key)
		}
		m.mu.Unlock()
		return nil, 0, false
	}

	return e.payload, time.Since(e.createdAt), true
}

// Set stores the report, overwriting any previous entry for the key.
func (m *Memory) Set(_ context.Context, key string, report *types.Report) {
	now := time.Now()
	m.mu.Lock()
	m.store[key] = memoryEntry{
		payload:   report,
		createdAt: now,
		expiresAt: now.Add(m.ttl),
	}
	m.mu.Unlock()
}

// Len returns the number of live and expired entries currently held.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.store)
}
