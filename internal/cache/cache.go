// Package cache stores preprocessed results keyed by input content.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache: key not found")

// Cache is a byte-value store with per-entry TTL.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Nop caches nothing. Every Get misses.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, error) { return nil, ErrMiss }

func (Nop) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (Nop) Delete(context.Context, string) error { return nil }

func (Nop) Close() error { return nil }
