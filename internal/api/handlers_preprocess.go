package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/epiprep/internal/bundle"
	"github.com/dgallion1/epiprep/internal/config"
	"github.com/dgallion1/epiprep/internal/pipeline"
	"github.com/dgallion1/epiprep/internal/preprocess"
)

// preprocessResponse wraps a processed resource with its statistics.
type preprocessResponse struct {
	Kind         string           `json:"kind"`
	Compositions int              `json:"compositions"`
	Stats        preprocess.Stats `json:"stats"`
	ContentHash  string           `json:"content_hash"`
	Cached       bool             `json:"cached"`
	Result       json.RawMessage  `json:"result"`
}

func newPreprocessResponse(res *pipeline.Result) preprocessResponse {
	return preprocessResponse{
		Kind:         res.Kind,
		Compositions: res.Compositions,
		Stats:        res.Stats,
		ContentHash:  res.ContentHash,
		Cached:       res.Cached,
		Result:       json.RawMessage(res.Output),
	}
}

// handlePreprocess runs the pipeline on the request body and returns the
// result. With ?raw=true only the processed resource is written.
func (s *Server) handlePreprocess(w http.ResponseWriter, r *http.Request) {
	opts, err := s.requestOptions(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	raw, err := queryFlag(r, "raw")
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	data, ok := s.readBody(w, r)
	if !ok {
		return
	}

	res, err := s.orchestrator.Runner().Run(r.Context(), data, opts)
	if err != nil {
		jsonError(w, err.Error(), decodeStatus(err))
		return
	}

	if raw {
		w.Header().Set("Content-Type", "application/fhir+json")
		w.Write(res.Output)
		return
	}
	writeJSON(w, http.StatusOK, newPreprocessResponse(res))
}

func (s *Server) handleBatchPreprocess(w http.ResponseWriter, r *http.Request) {
	opts, err := s.requestOptions(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes*10+10*1024*1024)
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}

	results := make([]map[string]any, 0, len(files))
	for _, fh := range files {
		filename := sanitizeFilename(fh.Filename)
		if ext := strings.ToLower(filepath.Ext(filename)); ext != ".json" {
			results = append(results, map[string]any{
				"filename": filename,
				"error":    fmt.Sprintf("unsupported file type: %s", ext),
			})
			continue
		}

		f, err := fh.Open()
		if err != nil {
			results = append(results, map[string]any{
				"filename": filename,
				"error":    "failed to open file",
			})
			continue
		}
		data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxUploadBytes+1))
		f.Close()
		if err != nil || int64(len(data)) > s.cfg.MaxUploadBytes {
			results = append(results, map[string]any{
				"filename": filename,
				"error":    "file too large or read error",
			})
			continue
		}

		job := pipeline.NewJob(filename, data, opts)
		if err := s.orchestrator.Submit(job); err != nil {
			results = append(results, map[string]any{
				"filename": filename,
				"job_id":   job.ID,
				"error":    err.Error(),
			})
			continue
		}

		results = append(results, map[string]any{
			"filename": filename,
			"job_id":   job.ID,
			"status":   pipeline.StatusQueued,
			"poll_url": fmt.Sprintf("/api/jobs/%s/status", job.ID),
		})
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"jobs": results})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

func (s *Server) handleJobResult(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	snap := job.Snapshot()
	switch snap.Status {
	case pipeline.StatusCompleted:
		writeJSON(w, http.StatusOK, newPreprocessResponse(job.Result()))
	case pipeline.StatusFailed:
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  "job failed",
			"job_id": snap.ID,
			"errors": snap.Progress.Errors,
		})
	default:
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":  "job not finished",
			"job_id": snap.ID,
			"status": snap.Status,
		})
	}
}

// requestOptions applies the optimize, reconcile and cleanup query
// parameters over the configured stage selection.
func (s *Server) requestOptions(r *http.Request) (preprocess.Options, error) {
	opts := s.cfg.PreprocessOptions()
	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  *bool
	}{
		{"optimize", &opts.OptimizeMarkup},
		{"reconcile", &opts.ReconcileAnnotations},
		{"cleanup", &opts.CleanupStyles},
	} {
		if q.Get(p.name) == "" {
			continue
		}
		b, err := queryFlag(r, p.name)
		if err != nil {
			return opts, err
		}
		*p.dst = b
	}
	return opts, nil
}

// queryFlag parses a boolean query parameter; absent means false.
func queryFlag(r *http.Request, name string) (bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return false, nil
	}
	b, err := config.ParseFlag(v)
	if err != nil {
		return false, fmt.Errorf("query parameter %s: %w", name, err)
	}
	return b, nil
}

// readBody reads the whole request body within the upload limit. It
// writes the error response itself and reports whether to continue.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, fmt.Sprintf("body exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
			return nil, false
		}
		jsonError(w, "failed to read body", http.StatusBadRequest)
		return nil, false
	}
	if len(data) == 0 {
		jsonError(w, "request body is empty", http.StatusBadRequest)
		return nil, false
	}
	return data, true
}

// decodeStatus maps a decode failure to a client error.
func decodeStatus(err error) int {
	var (
		syntax   *json.SyntaxError
		mismatch *json.UnmarshalTypeError
	)
	switch {
	case errors.Is(err, bundle.ErrNotBundle), errors.Is(err, bundle.ErrNoComposition):
		return http.StatusUnprocessableEntity
	case errors.As(err, &syntax), errors.As(err, &mismatch), errors.Is(err, io.ErrUnexpectedEOF):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	// Remove any path separators that might have survived.
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
