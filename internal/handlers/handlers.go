package handlers

import (
	"shopsync/internal/config"
	"shopsync/internal/middleware"
	"shopsync/internal/remote"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Handler struct {
	Router chi.Router
}

// NewHandler wires the document server routes. hub is the live document
// store; persist may be nil when the server runs memory-only.
func NewHandler(
	hub *remote.MemoryStore,
	persist *Persistence,
	logger *zap.SugaredLogger,
	cfg *config.Config,
) *Handler {
	r := chi.NewRouter()

	r.Use(middleware.WithLogging)
	r.Use(middleware.WithAuth(cfg.AuthSecret))

	docs := NewDocsHandler(hub, persist, logger)

	r.Get("/api/docs", docs.List)
	r.Get("/api/docs/ids", docs.IDs)
	r.Post("/api/docs/query", docs.Query)
	r.Post("/api/docs/commit", docs.Commit)
	r.Get("/api/docs/watch", docs.Watch)

	return &Handler{Router: r}
}
