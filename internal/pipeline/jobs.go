package pipeline

import (
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/dgallion1/epiprep/internal/preprocess"
)

// JobStatus represents the state of a preprocessing job.
type JobStatus string

const (
	StatusQueued        JobStatus = "queued"
	StatusDecoding      JobStatus = "decoding"
	StatusPreprocessing JobStatus = "preprocessing"
	StatusEncoding      JobStatus = "encoding"
	StatusCompleted     JobStatus = "completed"
	StatusFailed        JobStatus = "failed"
)

// Done reports whether the status is final.
func (s JobStatus) Done() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job tracks one document submitted for asynchronous preprocessing.
type Job struct {
	mu sync.Mutex

	ID       string             `json:"job_id"`
	Filename string             `json:"filename"`
	Options  preprocess.Options `json:"options"`

	Status JobStatus `json:"status"`
	Phase  string    `json:"phase"`

	Progress Progress `json:"progress"`

	ContentHash string    `json:"content_hash,omitempty"`
	Cached      bool      `json:"cached"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	input  []byte
	result *Result
	errors []string
}

// Progress tracks processing progress.
type Progress struct {
	TotalCompositions     int      `json:"total_compositions"`
	CompositionsProcessed int      `json:"compositions_processed"`
	FragmentsOptimized    int      `json:"fragments_optimized"`
	AnnotationsRemoved    int      `json:"annotations_removed"`
	Errors                []string `json:"errors"`
}

// NewJob creates a queued job for input.
func NewJob(filename string, input []byte, opts preprocess.Options) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.NewString(),
		Filename:  filename,
		Options:   opts,
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: now,
		UpdatedAt: now,
		input:     input,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Len returns the number of stored jobs.
func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Cleanup removes jobs not updated within the TTL and returns how many.
func (s *JobStore) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	n := 0
	for id, job := range s.jobs {
		job.mu.Lock()
		expired := now.Sub(job.UpdatedAt) > s.ttl
		job.mu.Unlock()
		if expired {
			delete(s.jobs, id)
			n++
		}
	}
	return n
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// Fail records err and marks the job failed in its current phase.
func (j *Job) Fail(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err.Error())
	j.Progress.Errors = j.errors
	j.Status = StatusFailed
	j.input = nil
	j.UpdatedAt = time.Now()
}

// SetTotalCompositions records how many compositions the input holds.
func (j *Job) SetTotalCompositions(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.TotalCompositions = n
	j.UpdatedAt = time.Now()
}

// CompositionDone adds one composition's counters to the progress.
func (j *Job) CompositionDone(st preprocess.Stats) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.CompositionsProcessed++
	j.Progress.FragmentsOptimized += st.FragmentsOptimized
	j.Progress.AnnotationsRemoved += st.AnnotationsRemoved
	j.UpdatedAt = time.Now()
}

// Input returns the submitted bytes; nil once the job has finished.
func (j *Job) Input() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.input
}

// Complete stores the result, releases the input and marks the job done.
func (j *Job) Complete(res *Result) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.result = res
	j.input = nil
	j.ContentHash = res.ContentHash
	j.Cached = res.Cached
	if res.Cached {
		j.Progress.TotalCompositions = res.Compositions
		j.Progress.CompositionsProcessed = res.Compositions
		j.Progress.FragmentsOptimized = res.Stats.FragmentsOptimized
		j.Progress.AnnotationsRemoved = res.Stats.AnnotationsRemoved
	}
	j.Status = StatusCompleted
	j.Phase = "done"
	j.UpdatedAt = time.Now()
}

// Result returns the outcome of a completed job, or nil.
func (j *Job) Result() *Result {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID          string             `json:"job_id"`
	Filename    string             `json:"filename"`
	Options     preprocess.Options `json:"options"`
	Status      JobStatus          `json:"status"`
	Phase       string             `json:"phase"`
	Progress    Progress           `json:"progress"`
	ContentHash string             `json:"content_hash,omitempty"`
	Cached      bool               `json:"cached"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	progress := j.Progress
	progress.Errors = append([]string{}, j.Progress.Errors...)
	return JobSnapshot{
		ID:          j.ID,
		Filename:    j.Filename,
		Options:     j.Options,
		Status:      j.Status,
		Phase:       j.Phase,
		Progress:    progress,
		ContentHash: j.ContentHash,
		Cached:      j.Cached,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
}

// ContentHashHex computes the BLAKE3-256 of content as hex.
func ContentHashHex(data []byte) string {
	h := blake3.Sum256(data)
	return hex.EncodeToString(h[:])
}

// CacheKey identifies the result of preprocessing content with opts.
func CacheKey(contentHash string, opts preprocess.Options) string {
	return fmt.Sprintf("epiprep:v1:%s:o%dr%dc%d", contentHash,
		b2i(opts.OptimizeMarkup), b2i(opts.ReconcileAnnotations), b2i(opts.CleanupStyles))
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
