package versionpack

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/aidaddydog/huandan.server/pkg/audit"
)

// Router creates a chi.Router for the version pack API.
func Router(store *Store, builder *Builder, auditStore *audit.Store, logger *slog.Logger) chi.Router {
	r := chi.NewRouter()
	r.Post("/build", BuildHandler(builder, auditStore, logger))
	r.Get("/list", ListPacksHandler(store))
	r.Post("/rollback", RollbackHandler(store, auditStore, logger))
	r.Get("/{version}", GetPackHandler(store))
	return r
}
