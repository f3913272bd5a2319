package printing

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/aidaddydog/huandan.server/pkg/audit"
	"github.com/aidaddydog/huandan.server/pkg/mapping"
)

// Router creates a chi.Router for the print API.
func Router(merger *Merger, orders *mapping.Store, auditStore *audit.Store, logger *slog.Logger) chi.Router {
	r := chi.NewRouter()
	r.Post("/merge", MergeHandler(merger, auditStore, logger))
	r.Post("/report", ReportHandler(orders, auditStore, logger))
	return r
}
