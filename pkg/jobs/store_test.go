package jobs

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestJobStore(t *testing.T) *JobStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	store := NewJobStore(db)
	require.NoError(t, store.AutoMigrate())
	return store
}

func TestJobStore_EnqueueIsIdempotentPerBatch(t *testing.T) {
	store := newTestJobStore(t)

	first, err := store.EnqueueArchive("labels.zip", "/tmp/b1.zip", "b1")
	require.NoError(t, err)
	second, err := store.EnqueueArchive("labels.zip", "/tmp/b1.zip", "b1")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := store.EnqueueArchive("labels.zip", "/tmp/b2.zip", "b2")
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestJobStore_ClaimOldestFirst(t *testing.T) {
	store := newTestJobStore(t)

	firstID, err := store.EnqueueArchive("a.zip", "/tmp/a.zip", "ba")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = store.EnqueueArchive("b.zip", "/tmp/b.zip", "bb")
	require.NoError(t, err)

	job, err := store.Claim(3)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, firstID, job.ID)
	assert.Equal(t, JobStateRunning, job.State)
	assert.Equal(t, 1, job.AttemptCount)
	require.NotNil(t, job.StartedAt)
}

func TestJobStore_ClaimEmptyQueue(t *testing.T) {
	store := newTestJobStore(t)

	job, err := store.Claim(3)
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestJobStore_CompleteAndGet(t *testing.T) {
	store := newTestJobStore(t)

	id, err := store.EnqueueArchive("a.zip", "/tmp/a.zip", "ba")
	require.NoError(t, err)
	_, err = store.Claim(3)
	require.NoError(t, err)

	require.NoError(t, store.Complete(id, 5, 1, 2, 120))

	job, err := store.Get(id)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, JobStateSucceeded, job.State)
	assert.Equal(t, 5, job.Inserted)
	assert.Equal(t, 1, job.Duplicates)
	assert.Equal(t, 2, job.Rejected)
	assert.True(t, job.IsTerminal())
}

func TestJobStore_FailRequeuesUntilMaxRetries(t *testing.T) {
	store := newTestJobStore(t)

	id, err := store.EnqueueArchive("a.zip", "/tmp/a.zip", "ba")
	require.NoError(t, err)

	// First two attempts requeue, third fails terminally.
	for attempt := 1; attempt <= 3; attempt++ {
		job, err := store.Claim(2)
		require.NoError(t, err)
		require.NotNil(t, job, "attempt %d", attempt)
		require.NoError(t, store.Fail(id, "boom", 2))
	}

	job, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, JobStateFailed, job.State)
	assert.Contains(t, job.Message, "Max retries exceeded")

	claimed, err := store.Claim(2)
	require.NoError(t, err)
	assert.Nil(t, claimed)
}

func TestJobStore_CancelOnlyQueued(t *testing.T) {
	store := newTestJobStore(t)

	id, err := store.EnqueueArchive("a.zip", "/tmp/a.zip", "ba")
	require.NoError(t, err)
	require.NoError(t, store.Cancel(id))

	job, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, JobStateCanceled, job.State)

	// A running job refuses cancellation.
	id2, err := store.EnqueueArchive("b.zip", "/tmp/b.zip", "bb")
	require.NoError(t, err)
	_, err = store.Claim(3)
	require.NoError(t, err)
	require.Error(t, store.Cancel(id2))

	require.Error(t, store.Cancel("no-such-job"))
}

func TestJobStore_CleanupStuckJobs(t *testing.T) {
	store := newTestJobStore(t)

	_, err := store.EnqueueArchive("a.zip", "/tmp/a.zip", "ba")
	require.NoError(t, err)
	job, err := store.Claim(3)
	require.NoError(t, err)
	require.NotNil(t, job)

	time.Sleep(5 * time.Millisecond)
	recovered, err := store.CleanupStuckJobs(time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, int64(1), recovered)

	reloaded, err := store.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStateQueued, reloaded.State)
}
