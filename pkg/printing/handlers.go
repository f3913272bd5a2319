package printing

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aidaddydog/huandan.server/pkg/audit"
	"github.com/aidaddydog/huandan.server/pkg/mapping"
	"github.com/aidaddydog/huandan.server/pkg/versionpack"
)

// MergeHandler handles POST /api/v1/print/merge. Responds with the merged
// PDF; tracking numbers absent from the active pack are reported in the
// X-Missing-Tracking-Nos header so a partial print is still visible to the
// operator.
func MergeHandler(merger *Merger, auditStore *audit.Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req MergeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		if len(req.TrackingNos) == 0 {
			writeError(w, http.StatusBadRequest, "tracking_nos is required")
			return
		}

		result, err := merger.Merge(req)
		if err != nil {
			var missingErr *MissingError
			switch {
			case errors.Is(err, versionpack.ErrNoActiveVersion):
				writeError(w, http.StatusConflict, "no active version; build a pack first")
			case errors.As(err, &missingErr):
				writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
					"error":   "requested labels missing from active version",
					"missing": missingErr.Missing,
				})
			case errors.Is(err, ErrNothingToMerge):
				writeError(w, http.StatusNotFound, "none of the requested labels are in the active version")
			default:
				writeError(w, http.StatusInternalServerError, fmt.Sprintf("merge failed: %v", err))
			}
			return
		}

		audit.Try(auditStore, logger, &audit.EventRecord{
			EventType: audit.EventPrintMerge,
			Actor:     audit.Actor(r),
			Version:   result.Version,
			Detail:    fmt.Sprintf("%d merged, %d missing", len(result.Merged), len(result.Missing)),
		})

		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=%q", "print-"+time.Now().Format("20060102-150405")+".pdf"))
		w.Header().Set("X-Merge-Version", result.Version)
		if len(result.Missing) > 0 {
			w.Header().Set("X-Missing-Tracking-Nos", strings.Join(result.Missing, ","))
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(result.Document)
	}
}

// ReportHandler handles POST /api/v1/print/report. The desktop client
// reports tracking numbers it has physically printed; matching order rows
// are stamped.
func ReportHandler(orders *mapping.Store, auditStore *audit.Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			TrackingNos []string `json:"tracking_nos"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		if len(req.TrackingNos) == 0 {
			writeError(w, http.StatusBadRequest, "tracking_nos is required")
			return
		}

		var marked, unknown int
		for _, no := range req.TrackingNos {
			n, err := orders.MarkPrinted(no)
			if err != nil {
				writeError(w, http.StatusInternalServerError, fmt.Sprintf("report failed: %v", err))
				return
			}
			if n == 0 {
				unknown++
			} else {
				marked++
			}
		}

		audit.Try(auditStore, logger, &audit.EventRecord{
			EventType: audit.EventPrintReport,
			Actor:     audit.Actor(r),
			Detail:    fmt.Sprintf("%d marked, %d unknown", marked, unknown),
		})
		writeJSON(w, http.StatusOK, map[string]int{
			"marked":  marked,
			"unknown": unknown,
		})
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
