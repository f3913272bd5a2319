package importer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/aidaddydog/huandan.server/pkg/audit"
)

// maxUploadBytes caps a single upload at 512 MiB; label archives for a
// day's batch stay well under this.
const maxUploadBytes = 512 << 20

// Enqueuer hands an uploaded archive off for asynchronous ingestion.
type Enqueuer interface {
	EnqueueArchive(archiveName, path, batchID string) (string, error)
}

// ImportOrdersHandler handles POST /api/v1/import/orders. Expects a
// multipart form with a "file" field holding a CSV or XLSX export.
func ImportOrdersHandler(ing *Ingestor, auditStore *audit.Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "file field is required")
			return
		}
		defer file.Close()

		result, err := ing.IngestOrders(r.Context(), header.Filename, file)
		if err != nil {
			var formatErr *FormatError
			if errors.As(err, &formatErr) {
				writeError(w, http.StatusUnprocessableEntity, formatErr.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("import failed: %v", err))
			return
		}

		audit.Try(auditStore, logger, &audit.EventRecord{
			EventType: audit.EventImportOrders,
			Actor:     audit.Actor(r),
			Detail: fmt.Sprintf("%s: %d inserted, %d updated, %d rejected",
				header.Filename, result.Inserted, result.Updated, result.Rejected),
		})
		writeJSON(w, http.StatusOK, result)
	}
}

// ImportLabelsHandler handles POST /api/v1/import/pdfs_zip. Expects a
// multipart form with a "file" field holding a zip of label PDFs. With
// ?async=1 the archive is parked on disk and queued; the response carries
// the job id instead of an ingestion result.
func ImportLabelsHandler(ing *Ingestor, enqueuer Enqueuer, uploadsDir string, auditStore *audit.Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "file field is required")
			return
		}
		defer file.Close()

		batchID := uuid.New().String()

		if r.URL.Query().Get("async") == "1" && enqueuer != nil {
			jobID, err := parkAndEnqueue(enqueuer, uploadsDir, header.Filename, batchID, file)
			if err != nil {
				writeError(w, http.StatusInternalServerError, fmt.Sprintf("enqueue failed: %v", err))
				return
			}
			writeJSON(w, http.StatusAccepted, map[string]string{
				"job_id":   jobID,
				"batch_id": batchID,
			})
			return
		}

		data, err := io.ReadAll(file)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("read upload: %v", err))
			return
		}
		result, err := ing.IngestLabelArchive(r.Context(), header.Filename, batchID, data)
		if err != nil {
			var formatErr *FormatError
			if errors.As(err, &formatErr) {
				writeError(w, http.StatusUnprocessableEntity, formatErr.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("import failed: %v", err))
			return
		}

		audit.Try(auditStore, logger, &audit.EventRecord{
			EventType: audit.EventImportLabels,
			Actor:     audit.Actor(r),
			Detail: fmt.Sprintf("%s: %d inserted, %d duplicates, %d rejected",
				header.Filename, result.Inserted, result.Duplicates, result.Rejected),
		})
		writeJSON(w, http.StatusOK, result)
	}
}

// parkAndEnqueue spools the upload under uploadsDir and queues it.
func parkAndEnqueue(enqueuer Enqueuer, uploadsDir, fileName, batchID string, file io.Reader) (string, error) {
	if err := os.MkdirAll(uploadsDir, 0o755); err != nil {
		return "", fmt.Errorf("create uploads dir: %w", err)
	}
	parked := filepath.Join(uploadsDir, batchID+".zip")
	out, err := os.Create(parked)
	if err != nil {
		return "", fmt.Errorf("park upload: %w", err)
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		os.Remove(parked)
		return "", fmt.Errorf("park upload: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(parked)
		return "", fmt.Errorf("park upload: %w", err)
	}
	return enqueuer.EnqueueArchive(fileName, parked, batchID)
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
