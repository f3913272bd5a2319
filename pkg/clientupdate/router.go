package clientupdate

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/aidaddydog/huandan.server/pkg/audit"
)

// Router creates a chi.Router for the client update API.
func Router(store *Store, auditStore *audit.Store, logger *slog.Logger) chi.Router {
	r := chi.NewRouter()
	r.Get("/check", CheckHandler(store))
	r.Post("/upload", UploadHandler(store, auditStore, logger))
	r.Get("/packages", ListHandler(store))
	r.Get("/download/{id}", DownloadHandler(store))
	return r
}
