package clientupdate

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aidaddydog/huandan.server/pkg/audit"
)

// maxPackageBytes caps a client build upload at 256 MiB.
const maxPackageBytes = 256 << 20

// packageResponse is the API representation of a client package.
type packageResponse struct {
	ID          string `json:"id"`
	Channel     string `json:"channel"`
	Version     string `json:"version"`
	FileName    string `json:"file_name"`
	SizeBytes   int64  `json:"size_bytes"`
	SHA256      string `json:"sha256"`
	Notes       string `json:"notes,omitempty"`
	UploadedAt  string `json:"uploaded_at"`
	DownloadURL string `json:"download_url"`
}

// CheckHandler handles GET /api/v1/client/update/check?channel&version.
// The desktop client reports its running version and learns whether a
// newer build is available on its channel.
func CheckHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		channel := r.URL.Query().Get("channel")
		current := r.URL.Query().Get("version")

		latest, err := store.Latest(channel)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("check failed: %v", err))
			return
		}
		if latest == nil {
			writeJSON(w, http.StatusOK, map[string]any{"update_available": false})
			return
		}

		available := NewerThan(latest.Version, current)
		resp := map[string]any{"update_available": available}
		if available {
			resp["latest"] = toResponse(latest)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// UploadHandler handles POST /api/v1/client/update/upload. Multipart form
// with "file", "version", and optional "channel" and "notes" fields.
func UploadHandler(store *Store, auditStore *audit.Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxPackageBytes)
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "file field is required")
			return
		}
		defer file.Close()

		version := r.FormValue("version")
		if version == "" {
			writeError(w, http.StatusBadRequest, "version is required")
			return
		}

		data, err := io.ReadAll(file)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("read upload: %v", err))
			return
		}

		record, err := store.Put(r.FormValue("channel"), version, header.Filename, r.FormValue("notes"), data)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("upload failed: %v", err))
			return
		}

		audit.Try(auditStore, logger, &audit.EventRecord{
			EventType: audit.EventClientUpload,
			Actor:     audit.Actor(r),
			Version:   record.Version,
			Detail:    fmt.Sprintf("%s on %s, %d bytes", record.FileName, record.Channel, record.SizeBytes),
		})
		writeJSON(w, http.StatusCreated, toResponse(record))
	}
}

// ListHandler handles GET /api/v1/client/update/packages
func ListHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := store.List()
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list packages: %v", err))
			return
		}
		out := make([]packageResponse, len(records))
		for i := range records {
			out[i] = toResponse(&records[i])
		}
		writeJSON(w, http.StatusOK, map[string]any{"packages": out})
	}
}

// DownloadHandler handles GET /api/v1/client/update/download/{id}
func DownloadHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		record, err := store.Get(id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get package: %v", err))
			return
		}
		if record == nil {
			writeError(w, http.StatusNotFound, fmt.Sprintf("package %q not found", id))
			return
		}

		f, err := os.Open(record.FilePath)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("open package: %v", err))
			return
		}
		defer f.Close()

		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", record.FileName))
		http.ServeContent(w, r, record.FileName, record.UploadedAt, f)
	}
}

func toResponse(record *ClientPackage) packageResponse {
	return packageResponse{
		ID:          record.ID,
		Channel:     record.Channel,
		Version:     record.Version,
		FileName:    record.FileName,
		SizeBytes:   record.SizeBytes,
		SHA256:      record.SHA256,
		Notes:       record.Notes,
		UploadedAt:  record.UploadedAt.Format(time.RFC3339),
		DownloadURL: "/api/v1/client/update/download/" + record.ID,
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
