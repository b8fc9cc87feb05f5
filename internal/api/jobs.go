package api

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/snarg/sherpa-serve/internal/artifact"
	"github.com/snarg/sherpa-serve/internal/job"
	"github.com/snarg/sherpa-serve/internal/store"
)

// JobsHandler serves the synchronous job API and the job history lookups.
type JobsHandler struct {
	proc      *job.Processor
	history   *store.Store
	artifacts artifact.Store
}

func NewJobsHandler(proc *job.Processor, history *store.Store, artifacts artifact.Store) *JobsHandler {
	return &JobsHandler{proc: proc, history: history, artifacts: artifacts}
}

// Routes registers the job endpoints on a chi router.
func (h *JobsHandler) Routes(r chi.Router) {
	r.Post("/api/v1/jobs", h.Submit)
	r.Get("/api/v1/jobs", h.Recent)
	r.Get("/api/v1/jobs/{id}", h.Get)
	r.Get("/api/v1/jobs/{id}/artifact", h.Artifact)
}

// Submit runs one recognition job synchronously and replies with the shaped
// result. The connection stays open for the duration of the decode.
func (h *JobsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req job.Request
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	result, err := h.proc.Process(r.Context(), req, "http")
	if err != nil {
		var jerr *job.Error
		if errors.As(err, &jerr) {
			WriteJSON(w, statusForStage(jerr.Stage), jerr)
			return
		}
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, result)
}

// statusForStage maps a job failure stage to an HTTP status. Bad input is the
// caller's fault; everything past validation is an upstream tool failure.
func statusForStage(stage string) int {
	if stage == job.StageInput {
		return http.StatusBadRequest
	}
	return http.StatusBadGateway
}

// Get returns the history row for one job id.
func (h *JobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		WriteError(w, http.StatusNotFound, "job history disabled")
		return
	}

	row, err := h.history.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, row)
}

// Recent lists the most recent jobs, newest first.
func (h *JobsHandler) Recent(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		WriteJSON(w, http.StatusOK, map[string]any{"jobs": []store.Row{}})
		return
	}

	limit, err := ParseLimit(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	rows, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rows == nil {
		rows = []store.Row{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"jobs": rows})
}

// Artifact streams the persisted JSON artifact for a finished job.
func (h *JobsHandler) Artifact(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		WriteError(w, http.StatusNotFound, "job history disabled")
		return
	}

	row, err := h.history.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if row.ArtifactPath == "" {
		WriteError(w, http.StatusNotFound, "no artifact for this job")
		return
	}
	name := filepath.Base(row.ArtifactPath)

	// ?presign=1 asks for a shareable URL instead of the document itself;
	// only the mirrored backend can provide one.
	if r.URL.Query().Get("presign") == "1" {
		url, err := h.artifacts.URL(r.Context(), name)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if url == "" {
			WriteError(w, http.StatusNotFound, "presigned URLs require an s3 mirror")
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"url": url})
		return
	}

	rc, err := h.artifacts.Open(r.Context(), name)
	if err != nil {
		WriteError(w, http.StatusNotFound, "artifact unavailable")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/json")
	io.Copy(w, rc)
}
