// Package jobs runs asynchronous label-archive ingestion: large uploads
// are parked on disk, queued, and processed by a worker pool so the upload
// request returns immediately.
package jobs

import (
	"time"
)

// JobState represents the lifecycle state of an ingest job.
type JobState string

const (
	JobStateQueued    JobState = "queued"
	JobStateRunning   JobState = "running"
	JobStateSucceeded JobState = "succeeded"
	JobStateFailed    JobState = "failed"
	JobStateCanceled  JobState = "canceled"
)

// IngestJob is the GORM model for one queued archive ingestion.
type IngestJob struct {
	ID           string     `gorm:"primaryKey;column:id;type:varchar(36)"`
	ArchiveName  string     `gorm:"column:archive_name;not null"`
	ArchivePath  string     `gorm:"column:archive_path;not null"`
	BatchID      string     `gorm:"column:batch_id;uniqueIndex:idx_job_batch;not null"`
	State        JobState   `gorm:"column:state;index:idx_job_state;not null;default:queued"`
	RequestedAt  time.Time  `gorm:"column:requested_at;not null"`
	StartedAt    *time.Time `gorm:"column:started_at"`
	FinishedAt   *time.Time `gorm:"column:finished_at"`
	AttemptCount int        `gorm:"column:attempt_count;default:0"`
	LastError    string     `gorm:"column:last_error"`
	Message      string     `gorm:"column:message"`
	Inserted     int        `gorm:"column:inserted"`
	Duplicates   int        `gorm:"column:duplicates"`
	Rejected     int        `gorm:"column:rejected"`
	DurationMs   int64      `gorm:"column:duration_ms"`
}

// TableName returns the GORM table name.
func (IngestJob) TableName() string { return "ingest_jobs" }

// IsTerminal returns true if the job is in a terminal state.
func (j *IngestJob) IsTerminal() bool {
	switch j.State {
	case JobStateSucceeded, JobStateFailed, JobStateCanceled:
		return true
	}
	return false
}
