package pipeline

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/epiprep/internal/preprocess"
)

func waitDone(t *testing.T, job *Job) JobSnapshot {
	t.Helper()
	var snap JobSnapshot
	require.Eventually(t, func() bool {
		snap = job.Snapshot()
		return snap.Status.Done()
	}, 5*time.Second, 5*time.Millisecond)
	return snap
}

func TestOrchestrator_ProcessesJobs(t *testing.T) {
	r, m := newTestRunner(nil)
	o := NewOrchestrator(Options{WorkerCount: 2, MaxQueueSize: 10, JobTTL: time.Hour}, r, slog.New(slog.DiscardHandler), m)
	o.Start(context.Background())
	defer o.Stop()

	good := NewJob("good.json", sampleBundle, preprocess.DefaultOptions())
	bad := NewJob("bad.json", []byte("{"), preprocess.DefaultOptions())
	require.NoError(t, o.Submit(good))
	require.NoError(t, o.Submit(bad))

	snap := waitDone(t, good)
	assert.Equal(t, StatusCompleted, snap.Status)
	assert.Equal(t, 2, snap.Progress.CompositionsProcessed)
	assert.Equal(t, 3, snap.Progress.FragmentsOptimized)
	require.NotNil(t, good.Result())
	assert.NotEmpty(t, good.Result().Output)

	snap = waitDone(t, bad)
	assert.Equal(t, StatusFailed, snap.Status)
	assert.NotEmpty(t, snap.Progress.Errors)

	assert.Same(t, good, o.GetJob(good.ID))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Jobs.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Jobs.WithLabelValues("failed")))
}

func TestOrchestrator_QueueFull(t *testing.T) {
	r, _ := newTestRunner(nil)
	// Not started: nothing drains the queue.
	o := NewOrchestrator(Options{WorkerCount: 1, MaxQueueSize: 1}, r, slog.New(slog.DiscardHandler), nil)

	require.NoError(t, o.Submit(NewJob("1.json", sampleBundle, preprocess.Options{})))
	overflow := NewJob("2.json", sampleBundle, preprocess.Options{})
	err := o.Submit(overflow)
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, StatusFailed, overflow.Snapshot().Status)
	assert.Equal(t, 1, o.QueueDepth())
}

func TestOrchestrator_SubmitAfterStop(t *testing.T) {
	r, _ := newTestRunner(nil)
	o := NewOrchestrator(Options{}, r, slog.New(slog.DiscardHandler), nil)
	o.Start(context.Background())
	o.Stop()
	o.Stop()

	err := o.Submit(NewJob("late.json", sampleBundle, preprocess.Options{}))
	assert.ErrorIs(t, err, ErrStopped)
}
