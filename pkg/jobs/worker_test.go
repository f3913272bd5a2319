package jobs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aidaddydog/huandan.server/pkg/importer"
)

// fakeIngestor records what it was asked to ingest.
type fakeIngestor struct {
	result *importer.LabelImportResult
	err    error
	calls  []string
}

func (f *fakeIngestor) IngestLabelArchive(_ context.Context, archiveName, _ string, _ []byte) (*importer.LabelImportResult, error) {
	f.calls = append(f.calls, archiveName)
	return f.result, f.err
}

func parkArchive(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "parked.zip")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestWorkerPool_ProcessesJobAndRemovesParkedFile(t *testing.T) {
	store := newTestJobStore(t)
	ingestor := &fakeIngestor{result: &importer.LabelImportResult{Inserted: 3, Duplicates: 1}}
	cfg := DefaultJobConfig()
	pool := NewWorkerPool(store, ingestor, cfg, nil)

	parked := parkArchive(t, "zipbytes")
	id, err := store.EnqueueArchive("labels.zip", parked, "b1")
	require.NoError(t, err)

	pool.processOne(context.Background(), 0)

	job, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, JobStateSucceeded, job.State)
	assert.Equal(t, 3, job.Inserted)
	assert.Equal(t, 1, job.Duplicates)
	assert.Equal(t, []string{"labels.zip"}, ingestor.calls)

	_, statErr := os.Stat(parked)
	assert.True(t, os.IsNotExist(statErr))
}

func TestWorkerPool_FailedIngestRequeues(t *testing.T) {
	store := newTestJobStore(t)
	ingestor := &fakeIngestor{err: errors.New("corrupt archive")}
	cfg := DefaultJobConfig()
	pool := NewWorkerPool(store, ingestor, cfg, nil)

	parked := parkArchive(t, "zipbytes")
	id, err := store.EnqueueArchive("labels.zip", parked, "b1")
	require.NoError(t, err)

	pool.processOne(context.Background(), 0)

	job, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, JobStateQueued, job.State) // retry remains
	assert.Equal(t, "corrupt archive", job.LastError)

	// The parked file survives for the retry.
	_, statErr := os.Stat(parked)
	assert.NoError(t, statErr)
}

func TestWorkerPool_MissingParkedFileFailsJob(t *testing.T) {
	store := newTestJobStore(t)
	ingestor := &fakeIngestor{result: &importer.LabelImportResult{}}
	cfg := DefaultJobConfig()
	cfg.MaxRetries = 0
	pool := NewWorkerPool(store, ingestor, cfg, nil)

	id, err := store.EnqueueArchive("labels.zip", "/nonexistent/parked.zip", "b1")
	require.NoError(t, err)

	pool.processOne(context.Background(), 0)

	job, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, JobStateFailed, job.State)
	assert.Empty(t, ingestor.calls)
}

func TestWorkerPool_RunStopsOnContextCancel(t *testing.T) {
	store := newTestJobStore(t)
	cfg := DefaultJobConfig()
	cfg.PollInterval = 10 * time.Millisecond
	pool := NewWorkerPool(store, &fakeIngestor{result: &importer.LabelImportResult{}}, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker pool did not stop after cancel")
	}
}
