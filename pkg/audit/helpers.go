package audit

import (
	"log/slog"
	"net/http"
)

// Try appends an event, swallowing failures. Safe to call with a nil
// store (audit disabled); operations must never fail because the trail
// could not be written.
func Try(store *Store, logger *slog.Logger, event *EventRecord) {
	if store == nil {
		return
	}
	if err := store.Append(event); err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error("failed to append audit event", "eventType", event.EventType, "error", err)
	}
}

// Actor extracts the acting principal from a request. The engine carries
// no authentication (handled upstream); a reverse proxy may stamp the
// header.
func Actor(r *http.Request) string {
	if principal := r.Header.Get("X-User-Principal"); principal != "" {
		return principal
	}
	return "system"
}
