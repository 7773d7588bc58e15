package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exercise(t *testing.T, c Cache) {
	t.Helper()
	ctx := context.Background()

	_, err := c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, c.Delete(ctx, "k"))
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, c.Delete(ctx, "never-set"))
}

func TestMemory(t *testing.T) {
	m := NewMemory(time.Minute, time.Minute)
	defer m.Close()
	exercise(t, m)
}

func TestMemory_Expiry(t *testing.T) {
	m := NewMemory(time.Minute, time.Minute)
	ctx := context.Background()
	require.NoError(t, m.Set(ctx, "short", []byte("x"), 20*time.Millisecond))
	require.NoError(t, m.Set(ctx, "default", []byte("y"), 0))

	time.Sleep(50 * time.Millisecond)
	_, err := m.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrMiss)
	_, err = m.Get(ctx, "default")
	assert.NoError(t, err)
}

func TestNop(t *testing.T) {
	var c Cache = Nop{}
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestNewRedis_EmptyAddress(t *testing.T) {
	r, err := NewRedis(context.Background(), RedisOptions{})
	assert.Error(t, err)
	assert.Nil(t, r)
}

// TestRedis runs against a live server named by REDIS_TEST_ADDR.
func TestRedis(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	r, err := NewRedis(context.Background(), RedisOptions{Addr: addr, Prefix: "epiprep-test:"})
	require.NoError(t, err)
	defer r.Close()
	exercise(t, r)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	c, err := Open(ctx, Config{Backend: "memory", TTL: time.Minute}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, c)

	c, err = Open(ctx, Config{Backend: "none"}, nil)
	require.NoError(t, err)
	assert.IsType(t, Nop{}, c)

	_, err = Open(ctx, Config{Backend: "disk"}, nil)
	assert.Error(t, err)

	// An empty address is not retried.
	_, err = Open(ctx, Config{Backend: "redis"}, nil)
	assert.Error(t, err)
}

func TestBackoff(t *testing.T) {
	for attempt, base := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second} {
		d := Backoff(attempt)
		assert.GreaterOrEqual(t, d, base)
		assert.Less(t, d, base+base/2)
	}
	assert.Less(t, Backoff(10), 45*time.Second)
}
