package audit

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	store := NewStore(db)
	require.NoError(t, store.AutoMigrate())
	return store
}

func TestStore_AppendDefaults(t *testing.T) {
	store := newTestStore(t)

	event := &EventRecord{EventType: EventPackBuild, Version: "20250901-01"}
	require.NoError(t, store.Append(event))

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, "system", event.Actor)
	assert.Equal(t, "success", event.Outcome)
	assert.False(t, event.CreatedAt.IsZero())
}

func TestStore_ListFilters(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Append(&EventRecord{EventType: EventPackBuild, Version: "20250901-01"}))
	require.NoError(t, store.Append(&EventRecord{EventType: EventPackRollback, Version: "20250901-01"}))
	require.NoError(t, store.Append(&EventRecord{EventType: EventPrintMerge, TrackingNo: "T1", Outcome: "partial"}))

	records, _, total, err := store.List(ListFilter{EventType: EventPackBuild}, 10, "")
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, records, 1)
	assert.Equal(t, EventPackBuild, records[0].EventType)

	records, _, total, err = store.List(ListFilter{Outcome: "partial"}, 10, "")
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "T1", records[0].TrackingNo)

	_, _, total, err = store.List(ListFilter{}, 10, "")
	require.NoError(t, err)
	assert.Equal(t, 3, total)
}

func TestStore_DeleteOlderThan(t *testing.T) {
	store := newTestStore(t)

	old := &EventRecord{EventType: EventAlignFix, CreatedAt: time.Now().AddDate(0, 0, -120)}
	require.NoError(t, store.Append(old))
	require.NoError(t, store.Append(&EventRecord{EventType: EventAlignFix}))

	deleted, err := store.DeleteOlderThan(time.Now().AddDate(0, 0, -90))
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	_, _, total, err := store.List(ListFilter{}, 10, "")
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}
