package importer

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/aidaddydog/huandan.server/pkg/audit"
)

// Router creates a chi.Router for the import API.
func Router(ing *Ingestor, enqueuer Enqueuer, uploadsDir string, auditStore *audit.Store, logger *slog.Logger) chi.Router {
	r := chi.NewRouter()
	r.Post("/orders", ImportOrdersHandler(ing, auditStore, logger))
	r.Post("/pdfs_zip", ImportLabelsHandler(ing, enqueuer, uploadsDir, auditStore, logger))
	return r
}
