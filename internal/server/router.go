package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Pinger reports backing-store health. *repository.DB implements it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewRouter assembles the control API routes.
func NewRouter(h *Handler, db Pinger, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	if requestTimeout > 0 {
		r.Use(chimiddleware.Timeout(requestTimeout))
	}

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if db != nil {
			ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(w).Encode(map[string]string{"status": "degraded", "detail": err.Error()})
				return
			}
		}
		_, _ = w.Write([]byte(`{"status":"ok","service":"docflow"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/run", func(r chi.Router) {
			r.Post("/start", h.StartRun)
			r.Post("/pause", h.PauseRun)
			r.Post("/stop", h.StopRun)
		})

		r.Post("/items", h.EnqueueItem)
		r.Get("/items", h.ListItems)
		r.Get("/items/{id}", h.GetItem)
		r.Post("/scan", h.ScanDirectory)
		r.Get("/progress", h.GetProgress)

		r.Route("/records", func(r chi.Router) {
			r.Get("/", h.ListRecords)
			r.Get("/categories", h.CategoryCounts)
		})

		r.Get("/runs", h.ListRuns)
		r.Get("/export", h.ExportRecords)
	})

	return r
}
