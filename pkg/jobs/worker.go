package jobs

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/aidaddydog/huandan.server/pkg/importer"
)

// ArchiveIngestor is the interface the worker uses to run an ingestion.
// It is satisfied by importer.Ingestor.
type ArchiveIngestor interface {
	IngestLabelArchive(ctx context.Context, archiveName, batchID string, data []byte) (*importer.LabelImportResult, error)
}

// WorkerPool processes queued ingest jobs using a pool of goroutines.
type WorkerPool struct {
	store    *JobStore
	ingestor ArchiveIngestor
	cfg      *JobConfig
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(store *JobStore, ingestor ArchiveIngestor, cfg *JobConfig, logger *slog.Logger) *WorkerPool {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkerPool{
		store:    store,
		ingestor: ingestor,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run starts the worker pool. It spawns cfg.Concurrency goroutines, each
// polling for jobs, blocks until the context is cancelled, then waits for
// all workers to finish.
func (wp *WorkerPool) Run(ctx context.Context) {
	if wp.store == nil || !wp.cfg.Enabled {
		wp.logger.Info("ingest worker pool disabled")
		return
	}

	wp.logger.Info("ingest worker pool starting",
		"concurrency", wp.cfg.Concurrency,
		"maxRetries", wp.cfg.MaxRetries,
		"pollInterval", wp.cfg.PollInterval.String())

	wp.wg.Add(1)
	go func() {
		defer wp.wg.Done()
		wp.cleanupLoop(ctx)
	}()

	for i := 0; i < wp.cfg.Concurrency; i++ {
		wp.wg.Add(1)
		go func(workerID int) {
			defer wp.wg.Done()
			wp.workerLoop(ctx, workerID)
		}(i)
	}

	<-ctx.Done()
	wp.logger.Info("ingest worker pool shutting down, waiting for workers to finish")
	wp.wg.Wait()
	wp.logger.Info("ingest worker pool stopped")
}

// workerLoop is the main loop for a single worker goroutine.
func (wp *WorkerPool) workerLoop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(wp.cfg.PollInterval)
	defer ticker.Stop()

	wp.logger.Info("worker started", "workerID", workerID)

	for {
		select {
		case <-ctx.Done():
			wp.logger.Info("worker stopped", "workerID", workerID)
			return
		case <-ticker.C:
			wp.processOne(ctx, workerID)
		}
	}
}

// processOne tries to claim and process a single job.
func (wp *WorkerPool) processOne(ctx context.Context, workerID int) {
	job, err := wp.store.Claim(wp.cfg.MaxRetries)
	if err != nil {
		wp.logger.Error("failed to claim job", "workerID", workerID, "error", err)
		return
	}
	if job == nil {
		return
	}

	wp.logger.Info("processing ingest job",
		"workerID", workerID,
		"jobID", job.ID,
		"archive", job.ArchiveName,
		"attempt", job.AttemptCount)

	started := time.Now()
	data, err := os.ReadFile(job.ArchivePath)
	if err != nil {
		wp.failJob(job.ID, "read parked archive: "+err.Error())
		return
	}

	result, err := wp.ingestor.IngestLabelArchive(ctx, job.ArchiveName, job.BatchID, data)
	if err != nil {
		wp.failJob(job.ID, err.Error())
		return
	}

	if err := wp.store.Complete(job.ID, result.Inserted, result.Duplicates, result.Rejected,
		time.Since(started).Milliseconds()); err != nil {
		wp.logger.Error("failed to mark job as complete", "jobID", job.ID, "error", err)
		return
	}

	// The parked copy is only needed until ingestion lands.
	if err := os.Remove(job.ArchivePath); err != nil && !os.IsNotExist(err) {
		wp.logger.Warn("failed to remove parked archive", "path", job.ArchivePath, "error", err)
	}

	wp.logger.Info("ingest job completed",
		"workerID", workerID,
		"jobID", job.ID,
		"inserted", result.Inserted,
		"duplicates", result.Duplicates,
		"rejected", result.Rejected)
}

func (wp *WorkerPool) failJob(jobID, errMsg string) {
	wp.logger.Error("ingest job failed", "jobID", jobID, "error", errMsg)
	if err := wp.store.Fail(jobID, errMsg, wp.cfg.MaxRetries); err != nil {
		wp.logger.Error("failed to mark job as failed", "jobID", jobID, "error", err)
	}
}

// cleanupLoop periodically recovers stuck jobs and deletes old terminal
// jobs.
func (wp *WorkerPool) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if wp.cfg.ClaimTimeout > 0 {
				recovered, err := wp.store.CleanupStuckJobs(wp.cfg.ClaimTimeout)
				if err != nil {
					wp.logger.Error("failed to cleanup stuck jobs", "error", err)
				} else if recovered > 0 {
					wp.logger.Info("recovered stuck jobs", "count", recovered)
				}
			}

			if wp.cfg.RetentionDays > 0 {
				cutoff := time.Now().AddDate(0, 0, -wp.cfg.RetentionDays)
				deleted, err := wp.store.DeleteOlderThan(cutoff)
				if err != nil {
					wp.logger.Error("failed to delete old jobs", "error", err)
				} else if deleted > 0 {
					wp.logger.Info("deleted old jobs", "count", deleted)
				}
			}
		}
	}
}
