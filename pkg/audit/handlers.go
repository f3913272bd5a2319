package audit

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// eventResponse is the API representation of one audit event.
type eventResponse struct {
	ID         string `json:"id"`
	EventType  string `json:"event_type"`
	Actor      string `json:"actor"`
	Outcome    string `json:"outcome"`
	TrackingNo string `json:"tracking_no,omitempty"`
	Version    string `json:"version,omitempty"`
	Detail     string `json:"detail,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// ListEventsHandler handles GET /api/v1/audit/events
// Query params: eventType, outcome, trackingNo, since (RFC3339), pageSize, pageToken
func ListEventsHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := ListFilter{
			EventType:  r.URL.Query().Get("eventType"),
			Outcome:    r.URL.Query().Get("outcome"),
			TrackingNo: r.URL.Query().Get("trackingNo"),
		}
		if v := r.URL.Query().Get("since"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid since: %v", err))
				return
			}
			filter.Since = t
		}

		pageSize := 50
		if ps := r.URL.Query().Get("pageSize"); ps != "" {
			if v, err := strconv.Atoi(ps); err == nil && v > 0 {
				pageSize = v
			}
		}
		pageToken := r.URL.Query().Get("pageToken")

		records, nextToken, total, err := store.List(filter, pageSize, pageToken)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list audit events: %v", err))
			return
		}

		events := make([]eventResponse, len(records))
		for i, rec := range records {
			events[i] = eventResponse{
				ID:         rec.ID,
				EventType:  rec.EventType,
				Actor:      rec.Actor,
				Outcome:    rec.Outcome,
				TrackingNo: rec.TrackingNo,
				Version:    rec.Version,
				Detail:     rec.Detail,
				CreatedAt:  rec.CreatedAt.Format(time.RFC3339),
			}
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"events":        events,
			"nextPageToken": nextToken,
			"totalSize":     total,
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
