package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mediagrab/orchestrator/internal/diagnostics"
	"github.com/mediagrab/orchestrator/internal/hub"
	"github.com/mediagrab/orchestrator/internal/job"
	"github.com/mediagrab/orchestrator/internal/scheduler"
	"github.com/mediagrab/orchestrator/internal/storage"
)

func NewRouter(sched *scheduler.Scheduler, store job.JobStore, notifier *hub.Hub, files *storage.Store, checker *diagnostics.Checker) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	h := NewHandlers(sched, store, files, checker)
	ws := NewWSHandler(store, notifier)

	// Health & Info
	r.Get("/health", h.Health)
	r.Get("/api/stats", h.Stats)

	// Downloads API
	r.Post("/api/downloads", h.Submit)
	r.Get("/api/downloads", h.List)
	r.Get("/api/downloads/{id}", h.Status)
	r.Get("/api/downloads/{id}/file", h.Retrieve)

	// WebSocket progress stream
	r.Get("/ws/downloads/{id}", ws.Subscribe)

	return r
}
