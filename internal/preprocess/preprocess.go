// Package preprocess sequences markup optimization, class collection,
// annotation reconciliation and optional style cleanup over one
// composition.
package preprocess

import (
	"log/slog"
	"time"

	"github.com/dgallion1/epiprep/internal/annotation"
	"github.com/dgallion1/epiprep/internal/doctree"
	"github.com/dgallion1/epiprep/internal/markup"
	"github.com/dgallion1/epiprep/internal/metrics"
)

// Options selects which stages run. Resolve them once from configuration;
// nothing in this package reads the environment.
type Options struct {
	OptimizeMarkup       bool `json:"optimize_markup"`
	ReconcileAnnotations bool `json:"reconcile_annotations"`
	CleanupStyles        bool `json:"cleanup_styles"`
}

// DefaultOptions enables optimization and reconciliation.
func DefaultOptions() Options {
	return Options{OptimizeMarkup: true, ReconcileAnnotations: true}
}

// Stage is the position of a composition in the pipeline.
type Stage string

const (
	StageReceived   Stage = "received"
	StageOptimized  Stage = "optimized"
	StageReconciled Stage = "reconciled"
	StageReturned   Stage = "returned"
)

// Stats is the statistics record of one run. Counters for disabled stages
// stay zero.
type Stats struct {
	FragmentsVisited      int `json:"fragments_visited"`
	FragmentsEmpty        int `json:"fragments_empty"`
	FragmentsOptimized    int `json:"fragments_optimized"`
	OptimizationsRejected int `json:"optimizations_rejected"`
	FragmentsMalformed    int `json:"fragments_malformed"`
	StructuralAnomalies   int `json:"structural_anomalies"`
	MaxDepth              int `json:"max_depth"`
	TagsRemoved           int `json:"tags_removed"`
	TagsMerged            int `json:"tags_merged"`

	ClassesFound       int  `json:"classes_found"`
	AnnotationsTotal   int  `json:"annotations_total"`
	AnnotationsRemoved int  `json:"annotations_removed"`
	ReconcileSkipped   bool `json:"reconcile_skipped"` // a malformed fragment hid its classes

	FragmentsCleaned int `json:"fragments_cleaned"`
	CleanupsRejected int `json:"cleanups_rejected"`
	StylesRemoved    int `json:"styles_removed"`
	ClassesStripped  int `json:"classes_stripped"`

	Stage Stage `json:"stage"`
}

// Add accumulates o into s, for documents that hold several compositions.
func (s *Stats) Add(o Stats) {
	s.FragmentsVisited += o.FragmentsVisited
	s.FragmentsEmpty += o.FragmentsEmpty
	s.FragmentsOptimized += o.FragmentsOptimized
	s.OptimizationsRejected += o.OptimizationsRejected
	s.FragmentsMalformed += o.FragmentsMalformed
	s.StructuralAnomalies += o.StructuralAnomalies
	s.MaxDepth = max(s.MaxDepth, o.MaxDepth)
	s.TagsRemoved += o.TagsRemoved
	s.TagsMerged += o.TagsMerged
	s.ClassesFound += o.ClassesFound
	s.AnnotationsTotal += o.AnnotationsTotal
	s.AnnotationsRemoved += o.AnnotationsRemoved
	s.ReconcileSkipped = s.ReconcileSkipped || o.ReconcileSkipped
	s.FragmentsCleaned += o.FragmentsCleaned
	s.CleanupsRejected += o.CleanupsRejected
	s.StylesRemoved += o.StylesRemoved
	s.ClassesStripped += o.ClassesStripped
	s.Stage = o.Stage
}

// Preprocessor runs the pipeline with fixed options. It holds no
// per-document state and is safe for concurrent use.
type Preprocessor struct {
	opts    Options
	log     *slog.Logger
	metrics *metrics.Metrics
}

// New creates a Preprocessor. log and m may be nil.
func New(opts Options, log *slog.Logger, m *metrics.Metrics) *Preprocessor {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Preprocessor{opts: opts, log: log, metrics: m}
}

// Options returns the stage selection of p.
func (p *Preprocessor) Options() Options {
	return p.opts
}

// Run preprocesses c in place. No stage fails: a fragment that cannot be
// read or safely rewritten is left as it was and counted.
func (p *Preprocessor) Run(c *doctree.Composition) Stats {
	start := time.Now()
	st := Stats{Stage: StageReceived}
	log := p.log.With("composition_id", c.ID)

	if p.opts.OptimizeMarkup {
		p.optimize(c, &st, log)
	}
	st.Stage = StageOptimized

	classes, malformed := annotation.CollectClasses(c)
	ws := doctree.Walk(c, func(*doctree.Visit) {})
	st.FragmentsVisited = ws.Visited
	st.FragmentsEmpty = ws.Empty
	st.StructuralAnomalies = ws.Anomalies
	st.MaxDepth = ws.MaxDepth
	st.FragmentsMalformed = malformed
	st.ClassesFound = len(classes)
	st.AnnotationsTotal = len(c.Annotations)

	if p.opts.ReconcileAnnotations {
		p.reconcile(c, classes, &st, log)
	}
	st.Stage = StageReconciled

	if p.opts.CleanupStyles {
		p.cleanup(c, &st, log)
	}
	st.Stage = StageReturned

	p.metrics.ObservePreprocess(time.Since(start))
	log.Debug("composition preprocessed",
		"fragments", st.FragmentsVisited,
		"optimized", st.FragmentsOptimized,
		"annotations_removed", st.AnnotationsRemoved)
	return st
}

func (p *Preprocessor) optimize(c *doctree.Composition, st *Stats, log *slog.Logger) {
	doctree.Walk(c, func(v *doctree.Visit) {
		div := v.Fragment()
		if div == "" {
			return
		}
		res := markup.Simplify(div)
		switch {
		case res.Malformed:
			p.metrics.IncFragment("malformed")
		case res.Rejected:
			st.OptimizationsRejected++
			p.metrics.IncFragment("rejected")
			log.Debug("optimization rejected by integrity check", "path", v.Path())
		case res.Changed:
			v.Replace(res.Text)
			st.FragmentsOptimized++
			st.TagsRemoved += res.Removed
			st.TagsMerged += res.Merged
			p.metrics.IncFragment("optimized")
		default:
			p.metrics.IncFragment("unchanged")
		}
	})
}

func (p *Preprocessor) reconcile(c *doctree.Composition, classes markup.ClassSet, st *Stats, log *slog.Logger) {
	if st.FragmentsMalformed > 0 {
		st.ReconcileSkipped = true
		log.Debug("reconciliation skipped", "malformed_fragments", st.FragmentsMalformed)
		return
	}
	kept, removed := annotation.Reconcile(c, classes)
	c.Annotations = kept
	st.AnnotationsRemoved = removed
	p.metrics.AddAnnotationsRemoved(removed)
}

// cleanup keeps only classes some annotation still references, so it runs
// after reconciliation and never strips a linked class.
func (p *Preprocessor) cleanup(c *doctree.Composition, st *Stats, log *slog.Logger) {
	allowed := markup.NewClassSet(annotation.ElementClasses(c)...)
	doctree.Walk(c, func(v *doctree.Visit) {
		div := v.Fragment()
		if div == "" {
			return
		}
		res := markup.CleanStyles(div, allowed)
		switch {
		case res.Rejected:
			st.CleanupsRejected++
			log.Debug("style cleanup rejected by integrity check", "path", v.Path())
		case res.Changed:
			v.Replace(res.Text)
			st.FragmentsCleaned++
			st.StylesRemoved += res.StylesRemoved
			st.ClassesStripped += res.ClassesRemoved
			p.metrics.AddCleanupRemovals("style", res.StylesRemoved)
			p.metrics.AddCleanupRemovals("class", res.ClassesRemoved)
		}
	})
}

// Preprocess runs the pipeline over c with opts and returns c.
func Preprocess(c *doctree.Composition, opts Options) (*doctree.Composition, Stats) {
	return c, New(opts, nil, nil).Run(c)
}

// ListAnnotations returns the composition's annotations in order.
func ListAnnotations(c *doctree.Composition) []doctree.Annotation {
	return annotation.List(c)
}

// ExtractFragmentClasses returns the class tokens used in one fragment.
func ExtractFragmentClasses(fragment string) markup.ClassSet {
	return markup.ExtractClasses(fragment)
}

// ValidateIntegrity reports whether candidate renders the same text as
// original.
func ValidateIntegrity(original, candidate string) bool {
	return markup.Validate(original, candidate)
}
