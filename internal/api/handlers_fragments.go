package api

import (
	"encoding/json"
	"net/http"

	"github.com/dgallion1/epiprep/internal/annotation"
	"github.com/dgallion1/epiprep/internal/bundle"
	"github.com/dgallion1/epiprep/internal/doctree"
	"github.com/dgallion1/epiprep/internal/markup"
)

type fragmentRequest struct {
	Fragment  string   `json:"fragment"`
	Fragments []string `json:"fragments"`
	Class     string   `json:"class"`
	Tag       string   `json:"tag"`
}

type integrityRequest struct {
	Original  string `json:"original"`
	Candidate string `json:"candidate"`
}

// compositionAnnotations is the per-composition view of
// /api/annotations.
type compositionAnnotations struct {
	ID          string               `json:"id,omitempty"`
	Title       string               `json:"title,omitempty"`
	Annotations []doctree.Annotation `json:"annotations"`
	Usage       annotation.Usage     `json:"usage"`
	Malformed   int                  `json:"malformed_fragments"`
}

// decodeJSON reads a JSON request body into v within the upload limit.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	data, ok := s.readBody(w, r)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		jsonError(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (s *Server) handleFragmentClasses(w http.ResponseWriter, r *http.Request) {
	var req fragmentRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	classes := markup.ExtractClasses(req.Fragment)
	for _, f := range req.Fragments {
		classes.Union(markup.ExtractClasses(f))
	}
	writeJSON(w, http.StatusOK, map[string]any{"classes": classes.Sorted()})
}

func (s *Server) handleFragmentSummary(w http.ResponseWriter, r *http.Request) {
	var req fragmentRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.Fragment == "" {
		jsonError(w, "fragment is required", http.StatusBadRequest)
		return
	}

	summary, err := markup.Summarize(req.Fragment)
	if err != nil {
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	resp := map[string]any{"summary": summary}

	if req.Class != "" {
		matches, err := markup.FindByClass(req.Fragment, req.Class)
		if err != nil {
			jsonError(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		resp["class_matches"] = nonNil(matches)
	}
	if req.Tag != "" {
		matches, err := markup.FindByTag(req.Fragment, req.Tag)
		if err != nil {
			jsonError(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		resp["tag_matches"] = nonNil(matches)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleFragmentIntegrity checks a candidate against an original. With no
// candidate, the original is optimized and the result checked.
func (s *Server) handleFragmentIntegrity(w http.ResponseWriter, r *http.Request) {
	var req integrityRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.Candidate != "" {
		writeJSON(w, http.StatusOK, map[string]any{
			"valid": markup.Validate(req.Original, req.Candidate),
		})
		return
	}

	res := markup.Simplify(req.Original)
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":     markup.Validate(req.Original, res.Text),
		"optimized": res.Text,
		"changed":   res.Changed,
		"rejected":  res.Rejected,
		"malformed": res.Malformed,
		"removed":   res.Removed,
		"merged":    res.Merged,
	})
}

// handleAnnotations lists the HtmlElementLink annotations of every
// composition in the posted resource and how they match the narrative.
func (s *Server) handleAnnotations(w http.ResponseWriter, r *http.Request) {
	data, ok := s.readBody(w, r)
	if !ok {
		return
	}
	doc, err := bundle.Parse(data)
	if err != nil {
		jsonError(w, err.Error(), decodeStatus(err))
		return
	}

	out := make([]compositionAnnotations, 0, len(doc.Compositions()))
	for _, c := range doc.Compositions() {
		classes, malformed := annotation.CollectClasses(c)
		out = append(out, compositionAnnotations{
			ID:          c.ID,
			Title:       c.Title,
			Annotations: annotation.List(c),
			Usage:       annotation.Analyze(c, classes),
			Malformed:   malformed,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"compositions": out})
}

func nonNil(v []markup.ElementInfo) []markup.ElementInfo {
	if v == nil {
		return []markup.ElementInfo{}
	}
	return v
}
