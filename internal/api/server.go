package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dgallion1/epiprep/internal/config"
	"github.com/dgallion1/epiprep/internal/pipeline"
)

// Server is the HTTP API server for epiprep.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	gatherer     prometheus.Gatherer
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. /metrics serves
// gatherer; a nil gatherer disables the route.
func NewServer(orch *pipeline.Orchestrator, gatherer prometheus.Gatherer, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		gatherer:     gatherer,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/preprocess", s.handlePreprocess)
		r.Post("/api/preprocess/batch", s.handleBatchPreprocess)
		r.Get("/api/jobs/{jobID}/status", s.handleJobStatus)
		r.Get("/api/jobs/{jobID}/result", s.handleJobResult)

		r.Post("/api/annotations", s.handleAnnotations)
		r.Post("/api/fragments/classes", s.handleFragmentClasses)
		r.Post("/api/fragments/summary", s.handleFragmentSummary)
		r.Post("/api/fragments/integrity", s.handleFragmentIntegrity)

		r.Get("/api/stats/preprocess", s.handlePreprocessStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"queue_depth": s.orchestrator.QueueDepth(),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
