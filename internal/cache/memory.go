package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Memory is an in-process cache backed by go-cache.
type Memory struct {
	c *gocache.Cache
}

// NewMemory creates a memory cache. Entries set with a zero TTL use
// defaultTTL; expired entries are purged every cleanupInterval.
func NewMemory(defaultTTL, cleanupInterval time.Duration) *Memory {
	return &Memory{c: gocache.New(defaultTTL, cleanupInterval)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return nil, ErrMiss
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, ErrMiss
	}
	return b, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = gocache.DefaultExpiration
	}
	m.c.Set(key, value, ttl)
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.c.Delete(key)
	return nil
}

// Len returns the number of entries, including expired ones not yet purged.
func (m *Memory) Len() int {
	return m.c.ItemCount()
}

func (m *Memory) Close() error {
	m.c.Flush()
	return nil
}
