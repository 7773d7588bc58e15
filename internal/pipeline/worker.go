package pipeline

import (
	"context"
	"log/slog"

	"github.com/dustin/go-humanize"

	"github.com/dgallion1/epiprep/internal/metrics"
)

// Worker processes queued preprocessing jobs.
type Worker struct {
	runner  *Runner
	log     *slog.Logger
	metrics *metrics.Metrics
}

func NewWorker(runner *Runner, log *slog.Logger, m *metrics.Metrics) *Worker {
	return &Worker{runner: runner, log: log, metrics: m}
}

// Process runs the pipeline for a job and records the outcome on it.
func (w *Worker) Process(ctx context.Context, job *Job) {
	input := job.Input()
	log := w.log.With("job_id", job.ID, "filename", job.Filename)
	log.Info("processing job", "size", humanize.Bytes(uint64(len(input))))

	res, err := w.runner.run(ctx, input, job.Options, job)
	if err != nil {
		log.Error("preprocessing failed", "phase", job.Snapshot().Phase, "error", err)
		job.Fail(err)
		w.metrics.IncJob(string(StatusFailed))
		return
	}

	job.Complete(res)
	w.metrics.IncJob(string(StatusCompleted))
	log.Info("job complete",
		"compositions", res.Compositions,
		"fragments_optimized", res.Stats.FragmentsOptimized,
		"annotations_removed", res.Stats.AnnotationsRemoved,
		"cached", res.Cached,
	)
}
