package api

import (
	"net/http"
)

func (s *Server) handlePreprocessStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"options":     s.cfg.PreprocessOptions(),
		"queue_depth": s.orchestrator.QueueDepth(),
		"latency":     s.orchestrator.Runner().Latency().Snapshot(),
	})
}
