package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"titlelink/api/internal/links"
)

func setupTestRedis(t *testing.T, ttl time.Duration) (*Redis, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	store, err := NewRedis("redis://"+s.Addr(), ttl)
	if err != nil {
		t.Fatalf("failed to create redis cache: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, s
}

func sampleEntry() Entry {
	return Entry{
		URL:           "https://example.atlassian.net/browse/ABC-123",
		Kind:          links.KindJira,
		Title:         "ABC-123: Fix login bug",
		ItemType:      links.TypeBug,
		Authoritative: true,
		ResolvedAt:    time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func exerciseCache(t *testing.T, c Cache) {
	t.Helper()
	ctx := context.Background()

	if _, err := c.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	entry := sampleEntry()
	if err := c.Set(ctx, entry, entry.URL, "https://example.atlassian.net/browse/ABC-123?x=1", ""); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	for _, key := range []string{entry.URL, "https://example.atlassian.net/browse/ABC-123?x=1"} {
		got, err := c.Get(ctx, key)
		if err != nil {
			t.Fatalf("Get(%q) failed: %v", key, err)
		}
		if got.Title != entry.Title || got.ItemType != entry.ItemType || !got.Authoritative {
			t.Errorf("Get(%q) = %+v, want %+v", key, got, entry)
		}
		if !got.ResolvedAt.Equal(entry.ResolvedAt) {
			t.Errorf("resolvedAt mismatch: %s vs %s", got.ResolvedAt, entry.ResolvedAt)
		}
	}

	entry.Title = "ABC-123: Fix login bug for good"
	if err := c.Set(ctx, entry, entry.URL); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	got, err := c.Get(ctx, entry.URL)
	if err != nil {
		t.Fatalf("Get after overwrite failed: %v", err)
	}
	if got.Title != entry.Title {
		t.Errorf("expected overwritten title, got %q", got.Title)
	}

	if err := c.Ping(ctx); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestMemoryCache(t *testing.T) {
	c := NewMemory()
	exerciseCache(t, c)
	if c.Len() != 2 {
		t.Errorf("expected 2 keys (blank key skipped), got %d", c.Len())
	}
}

func TestRedisCache(t *testing.T) {
	c, _ := setupTestRedis(t, 0)
	exerciseCache(t, c)
}

func TestRedisCacheKeysArePrefixed(t *testing.T) {
	c, s := setupTestRedis(t, 0)
	entry := sampleEntry()
	if err := c.Set(context.Background(), entry, entry.URL); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if !s.Exists("title:" + entry.URL) {
		t.Errorf("expected prefixed key in redis, keys=%v", s.Keys())
	}
}

func TestRedisCacheExpiry(t *testing.T) {
	c, s := setupTestRedis(t, time.Minute)
	ctx := context.Background()
	entry := sampleEntry()
	if err := c.Set(ctx, entry, entry.URL); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	s.FastForward(2 * time.Minute)

	if _, err := c.Get(ctx, entry.URL); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected expired entry, got %v", err)
	}
}

func TestRedisCacheCorruptValue(t *testing.T) {
	c, s := setupTestRedis(t, 0)
	if err := s.Set("title:bad", "{not json"); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	_, err := c.Get(context.Background(), "bad")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("expected decode error, got %v", err)
	}
}
