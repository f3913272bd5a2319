package jobs

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

// jobResponse is the API representation of an ingest job.
type jobResponse struct {
	ID           string `json:"id"`
	ArchiveName  string `json:"archive_name"`
	BatchID      string `json:"batch_id"`
	State        string `json:"state"`
	RequestedAt  string `json:"requested_at"`
	StartedAt    string `json:"started_at,omitempty"`
	FinishedAt   string `json:"finished_at,omitempty"`
	AttemptCount int    `json:"attempt_count"`
	LastError    string `json:"last_error,omitempty"`
	Message      string `json:"message,omitempty"`
	Inserted     int    `json:"inserted"`
	Duplicates   int    `json:"duplicates"`
	Rejected     int    `json:"rejected"`
	DurationMs   int64  `json:"duration_ms,omitempty"`
}

// GetJobHandler handles GET /api/v1/jobs/{jobId}
func GetJobHandler(store *JobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "jobId")
		job, err := store.Get(jobID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get job: %v", err))
			return
		}
		if job == nil {
			writeError(w, http.StatusNotFound, fmt.Sprintf("job %q not found", jobID))
			return
		}
		writeJSON(w, http.StatusOK, jobToResponse(job))
	}
}

// ListJobsHandler handles GET /api/v1/jobs?state&pageSize&pageToken
func ListJobsHandler(store *JobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pageSize := 20
		if ps := r.URL.Query().Get("pageSize"); ps != "" {
			if v, err := strconv.Atoi(ps); err == nil && v > 0 {
				pageSize = v
			}
		}

		records, nextToken, total, err := store.List(
			r.URL.Query().Get("state"), pageSize, r.URL.Query().Get("pageToken"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list jobs: %v", err))
			return
		}

		jobsOut := make([]jobResponse, len(records))
		for i := range records {
			jobsOut[i] = jobToResponse(&records[i])
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"jobs":          jobsOut,
			"nextPageToken": nextToken,
			"totalSize":     total,
		})
	}
}

// CancelJobHandler handles POST /api/v1/jobs/{jobId}:cancel
func CancelJobHandler(store *JobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "jobId")
		if err := store.Cancel(jobID); err != nil {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		job, err := store.Get(jobID)
		if err != nil || job == nil {
			writeError(w, http.StatusInternalServerError, "canceled but failed to reload job")
			return
		}
		writeJSON(w, http.StatusOK, jobToResponse(job))
	}
}

func jobToResponse(job *IngestJob) jobResponse {
	resp := jobResponse{
		ID:           job.ID,
		ArchiveName:  job.ArchiveName,
		BatchID:      job.BatchID,
		State:        string(job.State),
		RequestedAt:  job.RequestedAt.Format(time.RFC3339),
		AttemptCount: job.AttemptCount,
		LastError:    job.LastError,
		Message:      job.Message,
		Inserted:     job.Inserted,
		Duplicates:   job.Duplicates,
		Rejected:     job.Rejected,
		DurationMs:   job.DurationMs,
	}
	if job.StartedAt != nil {
		resp.StartedAt = job.StartedAt.Format(time.RFC3339)
	}
	if job.FinishedAt != nil {
		resp.FinishedAt = job.FinishedAt.Format(time.RFC3339)
	}
	return resp
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
