package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/epiprep/internal/metrics"
)

var (
	ErrQueueFull = errors.New("job queue is full")
	ErrStopped   = errors.New("pipeline is stopped")
)

// Options sizes the worker pool.
type Options struct {
	WorkerCount     int
	MaxQueueSize    int
	JobTTL          time.Duration
	CleanupInterval time.Duration // default 5m
}

// Orchestrator runs queued jobs on a fixed pool of workers.
type Orchestrator struct {
	jobs    *JobStore
	queue   chan *Job
	runner  *Runner
	log     *slog.Logger
	metrics *metrics.Metrics
	opts    Options

	mu      sync.RWMutex
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewOrchestrator creates the pipeline; call Start to launch workers.
func NewOrchestrator(opts Options, runner *Runner, log *slog.Logger, m *metrics.Metrics) *Orchestrator {
	if opts.WorkerCount <= 0 {
		opts.WorkerCount = 1
	}
	if opts.MaxQueueSize <= 0 {
		opts.MaxQueueSize = 1
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = 5 * time.Minute
	}
	return &Orchestrator{
		jobs:    NewJobStore(opts.JobTTL),
		queue:   make(chan *Job, opts.MaxQueueSize),
		runner:  runner,
		log:     log,
		metrics: m,
		opts:    opts,
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range o.opts.WorkerCount {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := NewWorker(o.runner, o.log, o.metrics)
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					w.Process(workerCtx, job)
				}
			}
		}()
	}

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(o.opts.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				if n := o.jobs.Cleanup(); n > 0 {
					o.log.Debug("evicted expired jobs", "count", n)
				}
			}
		}
	}()
}

// Stop lets workers finish their current job and shuts the pool down.
// Jobs still queued are abandoned.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	close(o.queue)
	o.mu.Unlock()

	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
}

// Submit queues a job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.stopped {
		return ErrStopped
	}

	o.jobs.Put(job)
	select {
	case o.queue <- job:
		return nil
	default:
		job.Fail(ErrQueueFull)
		o.metrics.IncJob(string(StatusFailed))
		return fmt.Errorf("%w (%d)", ErrQueueFull, o.opts.MaxQueueSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// Runner returns the runner shared by the workers, for synchronous use.
func (o *Orchestrator) Runner() *Runner {
	return o.runner
}
