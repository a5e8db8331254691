package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mediagrab/orchestrator/internal/diagnostics"
	"github.com/mediagrab/orchestrator/internal/job"
	"github.com/mediagrab/orchestrator/internal/scheduler"
	"github.com/mediagrab/orchestrator/internal/storage"
)

type Handlers struct {
	sched   *scheduler.Scheduler
	store   job.JobStore
	files   *storage.Store
	checker *diagnostics.Checker
}

func NewHandlers(sched *scheduler.Scheduler, store job.JobStore, files *storage.Store, checker *diagnostics.Checker) *Handlers {
	return &Handlers{sched: sched, store: store, files: files, checker: checker}
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.checker.Run(r.Context()))
}

func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	pending, active, completed, failed := h.store.Stats()
	total := pending + active + completed + failed

	successRate := 0.0
	if done := completed + failed; done > 0 {
		successRate = float64(completed) / float64(done) * 100
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total_downloads":     total,
		"pending":             pending,
		"active":              active,
		"completed_downloads": completed,
		"failed_downloads":    failed,
		"success_rate":        successRate,
		"running":             h.sched.Running(),
		"queued":              h.sched.QueueLength(),
	})
}

// Submit accepts a download request and returns the job id without waiting
// for extraction. Validation failures never create a job.
func (h *Handlers) Submit(w http.ResponseWriter, r *http.Request) {
	var req job.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	j, err := h.sched.Submit(req)
	switch {
	case errors.Is(err, job.ErrInvalidRequest):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	case errors.Is(err, scheduler.ErrCapacityExceeded):
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": err.Error()})
		return
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"download_id": j.ID,
		"message":     "download started",
	})
}

func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	j, ok := h.store.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "download not found"})
		return
	}
	writeJSON(w, http.StatusOK, j)
}

func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	status := r.URL.Query().Get("status")

	if limit <= 0 {
		limit = 20
	}

	jobs, total := h.store.List(limit, offset, status)
	writeJSON(w, http.StatusOK, map[string]any{
		"downloads": jobs,
		"total":     total,
		"limit":     limit,
		"offset":    offset,
	})
}

// Retrieve streams the completed result file to the client.
func (h *Handlers) Retrieve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	j, ok := h.store.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "download not found"})
		return
	}
	if j.Status != job.StatusCompleted {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "download not completed"})
		return
	}

	path, err := h.files.FilePath(id, j.Filename)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "file not found"})
		return
	}
	if _, err := os.Stat(path); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "file not found"})
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+j.Filename+`"`)
	http.ServeFile(w, r, path)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
