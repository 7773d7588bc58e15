package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatencyStats_Percentiles(t *testing.T) {
	stats := NewLatencyStats(time.Hour)
	for _, ms := range []int{100, 200, 300, 400, 500} {
		stats.Record(time.Duration(ms) * time.Millisecond)
	}

	snap := stats.Snapshot()
	require.Equal(t, 5, snap.Count)
	assert.Equal(t, 100.0, snap.MinMs)
	assert.Equal(t, 500.0, snap.MaxMs)
	assert.Equal(t, 300.0, snap.AvgMs)
	assert.Equal(t, 300.0, snap.P50Ms)
	assert.InDelta(t, 480.0, snap.P95Ms, 1e-9)
	assert.InDelta(t, 496.0, snap.P99Ms, 1e-9)
}

func TestLatencyStats_PrunesExpired(t *testing.T) {
	now := time.Now()
	stats := NewLatencyStats(time.Minute)
	stats.now = func() time.Time { return now }
	stats.Record(100 * time.Millisecond)

	now = now.Add(2 * time.Minute)
	assert.Zero(t, stats.Snapshot().Count)

	stats.Record(200 * time.Millisecond)
	snap := stats.Snapshot()
	require.Equal(t, 1, snap.Count)
	assert.Equal(t, 200.0, snap.MinMs)
	assert.Equal(t, 200.0, snap.MaxMs)
}

func TestLatencyStats_ClampsNegative(t *testing.T) {
	stats := NewLatencyStats(time.Hour)
	stats.Record(-10 * time.Millisecond)
	snap := stats.Snapshot()
	require.Equal(t, 1, snap.Count)
	assert.Zero(t, snap.MaxMs)
}

func TestLatencyStats_Empty(t *testing.T) {
	assert.Equal(t, LatencySnapshot{}, NewLatencyStats(0).Snapshot())
}
