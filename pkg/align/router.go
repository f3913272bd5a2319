package align

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/aidaddydog/huandan.server/pkg/audit"
)

// Router creates a chi.Router for the alignment API.
func Router(scanner *Scanner, fixer *Fixer, auditStore *audit.Store, logger *slog.Logger) chi.Router {
	r := chi.NewRouter()
	r.Get("/scan", ScanHandler(scanner))
	r.Post("/fix", FixHandler(fixer, auditStore, logger))
	return r
}
