package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/modelink/modelink/internal/download"
	"github.com/modelink/modelink/internal/planner"
	"github.com/modelink/modelink/internal/state"
	"github.com/modelink/modelink/pkg/core"
)

// maxBodySize caps request bodies; workflows are JSON, not weights.
const maxBodySize = 32 << 20

type analyzeRequest struct {
	Workflow json.RawMessage `json:"workflow"`
}

type resolveRequest struct {
	Workflow    json.RawMessage      `json:"workflow"`
	Resolutions []planner.Resolution `json:"resolutions"`
}

type resolveResponse struct {
	Success  bool            `json:"success"`
	Workflow json.RawMessage `json:"workflow,omitempty"`
	Error    string          `json:"error,omitempty"`
}

type downloadRequest struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Category string `json:"category"`
}

type downloadResponse struct {
	Success    bool   `json:"success"`
	DownloadID string `json:"downloadId,omitempty"`
	Error      string `json:"error,omitempty"`
}

type downloadsListResponse struct {
	Active  []core.DownloadJob     `json:"active"`
	History []state.DownloadRecord `json:"history"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Workflow) == 0 {
		s.writeError(w, http.StatusBadRequest, errors.New("workflow is required"))
		return
	}
	analysis, err := s.engine.Analyze(r.Context(), req.Workflow)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, analysis)
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Workflow) == 0 {
		s.writeError(w, http.StatusBadRequest, errors.New("workflow is required"))
		return
	}
	patched, err := s.engine.Resolve(r.Context(), req.Workflow, req.Resolutions)
	if err != nil {
		// A failed batch leaves the workflow untouched; report the reason
		// in-band so callers can present it.
		s.writeJSON(w, http.StatusUnprocessableEntity, resolveResponse{Error: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, resolveResponse{Success: true, Workflow: patched})
}

func (s *Server) handleStartDownload(w http.ResponseWriter, r *http.Request) {
	var req downloadRequest
	if !s.decode(w, r, &req) {
		return
	}
	id, err := s.engine.StartDownload(r.Context(), req.URL, req.Filename, req.Category)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, download.ErrFileExists) {
			status = http.StatusConflict
		}
		s.writeJSON(w, status, downloadResponse{Error: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusAccepted, downloadResponse{Success: true, DownloadID: id})
}

func (s *Server) handleDownloadProgress(w http.ResponseWriter, r *http.Request) {
	job, err := s.engine.Progress(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleCancelDownload(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.CancelDownload(chi.URLParam(r, "id")); err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}

func (s *Server) handleListDownloads(w http.ResponseWriter, r *http.Request) {
	history, err := s.engine.DownloadHistory(50)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, downloadsListResponse{
		Active:  s.engine.ActiveDownloads(),
		History: history,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	filename := r.URL.Query().Get("filename")
	if filename == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("filename is required"))
		return
	}
	category := r.URL.Query().Get("category")
	s.writeJSON(w, http.StatusOK, s.engine.Search(r.Context(), filename, category))
}

func (s *Server) handleRescan(w http.ResponseWriter, r *http.Request) {
	s.engine.Rescan()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"files":      s.engine.Index().Len(),
		"categories": s.engine.Index().CountByCategory(),
	})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("writing response failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
