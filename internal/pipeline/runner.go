package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/epiprep/internal/bundle"
	"github.com/dgallion1/epiprep/internal/cache"
	"github.com/dgallion1/epiprep/internal/metrics"
	"github.com/dgallion1/epiprep/internal/preprocess"
)

// Result is the outcome of preprocessing one resource.
type Result struct {
	Output       []byte           `json:"output"`
	Kind         string           `json:"kind"` // Bundle or Composition
	Compositions int              `json:"compositions"`
	Stats        preprocess.Stats `json:"stats"`
	ContentHash  string           `json:"content_hash"`
	Cached       bool             `json:"cached"`
}

// progress receives phase changes from a run. Job implements it.
type progress interface {
	SetStatus(status JobStatus, phase string)
	SetTotalCompositions(n int)
	CompositionDone(st preprocess.Stats)
}

type noProgress struct{}

func (noProgress) SetStatus(JobStatus, string) {}

func (noProgress) SetTotalCompositions(int) {}

func (noProgress) CompositionDone(preprocess.Stats) {}

// Runner decodes a resource, preprocesses every composition in it and
// encodes the result, consulting the result cache first.
type Runner struct {
	cache   cache.Cache
	ttl     time.Duration
	log     *slog.Logger
	metrics *metrics.Metrics
	latency *LatencyStats
}

// NewRunner creates a Runner. A nil cache disables caching; log and m
// may be nil.
func NewRunner(c cache.Cache, ttl time.Duration, log *slog.Logger, m *metrics.Metrics) *Runner {
	if c == nil {
		c = cache.Nop{}
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Runner{
		cache:   c,
		ttl:     ttl,
		log:     log,
		metrics: m,
		latency: NewLatencyStats(time.Hour),
	}
}

// Latency returns run durations of the last hour. Cache hits are not
// recorded.
func (r *Runner) Latency() *LatencyStats {
	return r.latency
}

// Run preprocesses input synchronously.
func (r *Runner) Run(ctx context.Context, input []byte, opts preprocess.Options) (*Result, error) {
	return r.run(ctx, input, opts, noProgress{})
}

func (r *Runner) run(ctx context.Context, input []byte, opts preprocess.Options, p progress) (*Result, error) {
	start := time.Now()
	hash := ContentHashHex(input)
	key := CacheKey(hash, opts)

	p.SetStatus(StatusDecoding, "decoding")
	if res, ok := r.lookup(ctx, key); ok {
		res.ContentHash = hash
		res.Cached = true
		return res, nil
	}

	doc, err := bundle.Parse(input)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	comps := doc.Compositions()
	p.SetTotalCompositions(len(comps))

	p.SetStatus(StatusPreprocessing, "preprocessing")
	pp := preprocess.New(opts, r.log, r.metrics)
	r.log.Debug("preprocessing", "content_hash", hash, "compositions", len(comps), "options", pp.Options())
	var total preprocess.Stats
	for _, c := range comps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		st := pp.Run(c)
		total.Add(st)
		p.CompositionDone(st)
	}

	p.SetStatus(StatusEncoding, "encoding")
	out, err := doc.Marshal()
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}

	res := &Result{
		Output:       out,
		Kind:         doc.Kind(),
		Compositions: len(comps),
		Stats:        total,
		ContentHash:  hash,
	}
	r.store(ctx, key, res)
	r.latency.Record(time.Since(start))
	return res, nil
}

// lookup reads a cached result. Cache failures are logged and treated
// as misses.
func (r *Runner) lookup(ctx context.Context, key string) (*Result, bool) {
	data, err := r.cache.Get(ctx, key)
	switch {
	case errors.Is(err, cache.ErrMiss):
		r.metrics.IncCacheLookup("miss")
		return nil, false
	case err != nil:
		r.metrics.IncCacheLookup("error")
		r.log.Warn("cache lookup failed", "error", err)
		return nil, false
	}

	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		r.metrics.IncCacheLookup("error")
		r.log.Warn("discarding unreadable cache entry", "key", key, "error", err)
		_ = r.cache.Delete(ctx, key)
		return nil, false
	}
	r.metrics.IncCacheLookup("hit")
	return &res, true
}

func (r *Runner) store(ctx context.Context, key string, res *Result) {
	data, err := json.Marshal(res)
	if err != nil {
		r.log.Warn("cache entry not encoded", "error", err)
		return
	}
	if err := r.cache.Set(ctx, key, data, r.ttl); err != nil {
		r.log.Warn("cache store failed", "error", err)
	}
}
