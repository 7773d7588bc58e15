package cache

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"
)

// Config selects a backend.
type Config struct {
	Backend         string // memory, redis or none
	TTL             time.Duration
	Redis           RedisOptions
	ConnectAttempts int // redis only; default 3
}

// Open builds the configured backend. Redis connections are retried with
// backoff before giving up.
func Open(ctx context.Context, cfg Config, log *slog.Logger) (Cache, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemory(cfg.TTL, 5*time.Minute), nil
	case "none":
		return Nop{}, nil
	case "redis":
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}

	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	attempts := cfg.ConnectAttempts
	if attempts <= 0 {
		attempts = 3
	}
	var lastErr error
	for attempt := range attempts {
		r, err := NewRedis(ctx, cfg.Redis)
		if err == nil {
			return r, nil
		}
		lastErr = err
		if cfg.Redis.Addr == "" || attempt == attempts-1 {
			break
		}
		wait := Backoff(attempt)
		log.Warn("redis unavailable, retrying", "attempt", attempt+1, "wait", wait, "error", err)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("open redis cache: %w", lastErr)
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}
