// Package cache stores resolved link titles keyed by URL.
package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"titlelink/api/internal/links"
)

// ErrNotFound is returned by Get when no entry exists for a key.
var ErrNotFound = errors.New("cache entry not found")

// Entry is a resolved title for one link.
type Entry struct {
	URL      string         `json:"url"`
	Kind     links.Kind     `json:"kind"`
	Title    string         `json:"title"`
	ItemType links.ItemType `json:"itemType"`
	// NeedsAuth marks a placeholder stored while a sign-in retry is pending.
	NeedsAuth bool `json:"needsAuth,omitempty"`
	// Authoritative is false for deterministic fallback titles.
	Authoritative bool      `json:"authoritative"`
	ResolvedAt    time.Time `json:"resolvedAt"`
}

// Cache is implemented by Memory and Redis.
type Cache interface {
	Get(ctx context.Context, key string) (Entry, error)
	// Set stores entry under every given key.
	Set(ctx context.Context, entry Entry, keys ...string) error
	Ping(ctx context.Context) error
	Close() error
}

// Memory is a process-lifetime cache. Entries are never evicted.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]Entry)}
}

func (m *Memory) Get(_ context.Context, key string) (Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[key]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return entry, nil
}

func (m *Memory) Set(_ context.Context, entry Entry, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		if key == "" {
			continue
		}
		m.entries[key] = entry
	}
	return nil
}

// Len reports the number of keys held.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
