package align

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aidaddydog/huandan.server/pkg/audit"
)

// ScanHandler handles GET /api/v1/align/scan
func ScanHandler(scanner *Scanner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := scanner.Scan()
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("scan failed: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

// FixHandler handles POST /api/v1/align/fix
func FixHandler(fixer *Fixer, auditStore *audit.Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := fixer.Fix()
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("fix failed: %v", err))
			return
		}

		for _, action := range result.Actions {
			audit.Try(auditStore, logger, &audit.EventRecord{
				EventType:  audit.EventAlignFix,
				Actor:      audit.Actor(r),
				TrackingNo: action.TrackingNo,
				Detail:     fmt.Sprintf("%s: %s -> %s (%s)", action.Kind, action.OldStatus, action.NewStatus, action.Detail),
			})
		}

		writeJSON(w, http.StatusOK, result)
	}
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
