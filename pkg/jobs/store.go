package jobs

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JobStore provides database operations for ingest jobs.
type JobStore struct {
	db *gorm.DB
}

// NewJobStore creates a new JobStore.
func NewJobStore(db *gorm.DB) *JobStore {
	return &JobStore{db: db}
}

// AutoMigrate creates or updates the ingest_jobs table.
func (s *JobStore) AutoMigrate() error {
	return s.db.AutoMigrate(&IngestJob{})
}

// EnqueueArchive queues a parked archive for ingestion and returns the job
// id. The batch id is unique per upload, so re-submitting the same upload
// returns the existing job instead of queueing it twice.
func (s *JobStore) EnqueueArchive(archiveName, path, batchID string) (string, error) {
	var jobID string
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var existing IngestJob
		err := tx.Where("batch_id = ?", batchID).First(&existing).Error
		if err == nil {
			jobID = existing.ID
			return nil
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}

		job := &IngestJob{
			ID:          uuid.New().String(),
			ArchiveName: archiveName,
			ArchivePath: path,
			BatchID:     batchID,
			State:       JobStateQueued,
			RequestedAt: time.Now(),
		}
		if err := tx.Create(job).Error; err != nil {
			return err
		}
		jobID = job.ID
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("enqueue archive %s: %w", archiveName, err)
	}
	return jobID, nil
}

// Claim atomically picks the oldest queued job and transitions it to
// running. Returns nil if no jobs are available.
func (s *JobStore) Claim(maxRetries int) (*IngestJob, error) {
	var job IngestJob

	err := s.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("state = ? AND attempt_count <= ?", JobStateQueued, maxRetries).
			Order("requested_at ASC").
			Limit(1).
			First(&job).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil
			}
			return err
		}

		now := time.Now()
		return tx.Model(&IngestJob{}).Where("id = ? AND state = ?", job.ID, JobStateQueued).
			Updates(map[string]any{
				"state":         JobStateRunning,
				"started_at":    now,
				"attempt_count": gorm.Expr("attempt_count + 1"),
			}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	if job.ID == "" {
		return nil, nil
	}

	if err := s.db.First(&job, "id = ?", job.ID).Error; err != nil {
		return nil, fmt.Errorf("reload claimed job: %w", err)
	}
	return &job, nil
}

// Complete marks a job as succeeded with its ingestion counts.
func (s *JobStore) Complete(jobID string, inserted, duplicates, rejected int, durationMs int64) error {
	result := s.db.Model(&IngestJob{}).Where("id = ?", jobID).Updates(map[string]any{
		"state":       JobStateSucceeded,
		"finished_at": time.Now(),
		"inserted":    inserted,
		"duplicates":  duplicates,
		"rejected":    rejected,
		"duration_ms": durationMs,
		"message": fmt.Sprintf("%d inserted, %d duplicates, %d rejected",
			inserted, duplicates, rejected),
	})
	if result.Error != nil {
		return fmt.Errorf("complete job: %w", result.Error)
	}
	return nil
}

// Fail marks a job as failed, or re-queues it while retries remain.
func (s *JobStore) Fail(jobID string, errMsg string, maxRetries int) error {
	var job IngestJob
	if err := s.db.First(&job, "id = ?", jobID).Error; err != nil {
		return fmt.Errorf("load job for fail: %w", err)
	}

	updates := map[string]any{
		"last_error":  errMsg,
		"finished_at": time.Now(),
	}
	if job.AttemptCount < maxRetries {
		updates["state"] = JobStateQueued
		updates["started_at"] = nil
		updates["finished_at"] = nil
	} else {
		updates["state"] = JobStateFailed
		updates["message"] = "Max retries exceeded: " + errMsg
	}

	result := s.db.Model(&IngestJob{}).Where("id = ?", jobID).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("fail job: %w", result.Error)
	}
	return nil
}

// Cancel marks a queued job as canceled. Running jobs cannot be canceled.
func (s *JobStore) Cancel(jobID string) error {
	result := s.db.Model(&IngestJob{}).
		Where("id = ? AND state = ?", jobID, JobStateQueued).
		Updates(map[string]any{
			"state":       JobStateCanceled,
			"finished_at": time.Now(),
			"message":     "Canceled by user",
		})
	if result.Error != nil {
		return fmt.Errorf("cancel job: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		var job IngestJob
		if err := s.db.First(&job, "id = ?", jobID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("job not found: %s", jobID)
			}
			return fmt.Errorf("check job: %w", err)
		}
		return fmt.Errorf("job %s is in state %s, only queued jobs can be canceled", jobID, job.State)
	}
	return nil
}

// Get retrieves a job by ID. Returns nil, nil if none exists.
func (s *JobStore) Get(jobID string) (*IngestJob, error) {
	var job IngestJob
	if err := s.db.First(&job, "id = ?", jobID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &job, nil
}

// List returns paginated jobs, newest first, optionally filtered by state.
func (s *JobStore) List(state string, pageSize int, pageToken string) ([]IngestJob, string, int, error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	buildQuery := func(base *gorm.DB) *gorm.DB {
		q := base.Model(&IngestJob{})
		if state != "" {
			q = q.Where("state = ?", state)
		}
		return q
	}

	var totalSize int64
	if err := buildQuery(s.db).Count(&totalSize).Error; err != nil {
		return nil, "", 0, fmt.Errorf("count jobs: %w", err)
	}

	query := buildQuery(s.db).Order("requested_at DESC").Limit(pageSize + 1)
	if pageToken != "" {
		t, err := time.Parse(time.RFC3339Nano, pageToken)
		if err != nil {
			return nil, "", 0, fmt.Errorf("invalid page token: %w", err)
		}
		query = query.Where("requested_at < ?", t)
	}

	var records []IngestJob
	if err := query.Find(&records).Error; err != nil {
		return nil, "", 0, fmt.Errorf("list jobs: %w", err)
	}

	var nextToken string
	if len(records) > pageSize {
		nextToken = records[pageSize-1].RequestedAt.Format(time.RFC3339Nano)
		records = records[:pageSize]
	}
	return records, nextToken, int(totalSize), nil
}

// CleanupStuckJobs transitions running jobs whose started_at is older than
// claimTimeout back to queued for retry.
func (s *JobStore) CleanupStuckJobs(claimTimeout time.Duration) (int64, error) {
	cutoff := time.Now().Add(-claimTimeout)
	result := s.db.Model(&IngestJob{}).
		Where("state = ? AND started_at < ?", JobStateRunning, cutoff).
		Updates(map[string]any{
			"state":      JobStateQueued,
			"started_at": nil,
			"last_error": "Timed out (stuck job recovery)",
		})
	if result.Error != nil {
		return 0, fmt.Errorf("cleanup stuck jobs: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// DeleteOlderThan removes terminal jobs older than the given cutoff.
func (s *JobStore) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result := s.db.Where("state IN ? AND finished_at < ?",
		[]JobState{JobStateSucceeded, JobStateFailed, JobStateCanceled}, cutoff).
		Delete(&IngestJob{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete old jobs: %w", result.Error)
	}
	return result.RowsAffected, nil
}
