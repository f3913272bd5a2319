package printing

import (
	"io"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/aidaddydog/huandan.server/pkg/labels"
	"github.com/aidaddydog/huandan.server/pkg/mapping"
	"github.com/aidaddydog/huandan.server/pkg/versionpack"
)

// fakeConcat joins raw document bytes with a separator, standing in for
// the pdfcpu backend so tests do not need real PDFs.
type fakeConcat struct{}

func (fakeConcat) Concat(docs []io.ReadSeeker, w io.Writer) error {
	for i, doc := range docs {
		if i > 0 {
			if _, err := w.Write([]byte("|")); err != nil {
				return err
			}
		}
		if _, err := io.Copy(w, doc); err != nil {
			return err
		}
	}
	return nil
}

// newMergerFixture builds an active pack from aligned pairs and returns a
// merger over it.
func newMergerFixture(t *testing.T, pairs map[string]string) (*Merger, *versionpack.Store) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	orders := mapping.NewStore(db)
	require.NoError(t, orders.AutoMigrate())
	labelStore := labels.NewStore(db, t.TempDir())
	require.NoError(t, labelStore.AutoMigrate())
	packs := versionpack.NewStore(db)
	require.NoError(t, packs.AutoMigrate())
	require.NoError(t, packs.Init())

	for no, data := range pairs {
		_, err := orders.Upsert(&mapping.OrderMapping{OrderID: "O-" + no, TrackingNo: no})
		require.NoError(t, err)
		_, err = labelStore.Put(no, no+".pdf", "test.zip", "b1", []byte(data))
		require.NoError(t, err)
	}
	if len(pairs) > 0 {
		builder := versionpack.NewBuilder(db, orders, labelStore, packs, t.TempDir(), nil)
		_, err = builder.Build()
		require.NoError(t, err)
	}
	return NewMerger(packs, fakeConcat{}, nil), packs
}

func TestMerger_PreservesRequestOrder(t *testing.T) {
	merger, _ := newMergerFixture(t, map[string]string{
		"T1": "aaa", "T2": "bbb", "T3": "ccc",
	})

	result, err := merger.Merge(MergeRequest{TrackingNos: []string{"T3", "T1", "T2"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"T3", "T1", "T2"}, result.Merged)
	assert.Equal(t, []byte("ccc|aaa|bbb"), result.Document)
	assert.Empty(t, result.Missing)
}

func TestMerger_DeduplicatesAtFirstPosition(t *testing.T) {
	merger, _ := newMergerFixture(t, map[string]string{"T1": "aaa", "T2": "bbb"})

	result, err := merger.Merge(MergeRequest{TrackingNos: []string{"T2", "t2", "T1", " T2 "}})
	require.NoError(t, err)

	assert.Equal(t, []string{"T2", "T1"}, result.Merged)
	assert.Equal(t, []byte("bbb|aaa"), result.Document)
}

func TestMerger_PartialMissingIsReported(t *testing.T) {
	merger, _ := newMergerFixture(t, map[string]string{"T1": "aaa"})

	result, err := merger.Merge(MergeRequest{TrackingNos: []string{"T1", "T9"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"T1"}, result.Merged)
	assert.Equal(t, []string{"T9"}, result.Missing)
	assert.Equal(t, []byte("aaa"), result.Document)
}

func TestMerger_StrictModeRefusesOnMissing(t *testing.T) {
	merger, _ := newMergerFixture(t, map[string]string{"T1": "aaa"})

	_, err := merger.Merge(MergeRequest{TrackingNos: []string{"T1", "T9"}, Strict: true})
	require.Error(t, err)

	var missingErr *MissingError
	require.ErrorAs(t, err, &missingErr)
	assert.Equal(t, []string{"T9"}, missingErr.Missing)
}

func TestMerger_AllMissing(t *testing.T) {
	merger, _ := newMergerFixture(t, map[string]string{"T1": "aaa"})

	_, err := merger.Merge(MergeRequest{TrackingNos: []string{"T8", "T9"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNothingToMerge)
}

func TestMerger_NoActiveVersion(t *testing.T) {
	merger, _ := newMergerFixture(t, nil)

	_, err := merger.Merge(MergeRequest{TrackingNos: []string{"T1"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, versionpack.ErrNoActiveVersion)
}

func TestMerger_ReadsFromActiveNotWorkingIndex(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	orders := mapping.NewStore(db)
	require.NoError(t, orders.AutoMigrate())
	labelStore := labels.NewStore(db, t.TempDir())
	require.NoError(t, labelStore.AutoMigrate())
	packs := versionpack.NewStore(db)
	require.NoError(t, packs.AutoMigrate())
	require.NoError(t, packs.Init())
	builder := versionpack.NewBuilder(db, orders, labelStore, packs, t.TempDir(), nil)

	_, err = orders.Upsert(&mapping.OrderMapping{OrderID: "O1", TrackingNo: "T1"})
	require.NoError(t, err)
	_, err = labelStore.Put("T1", "T1.pdf", "test.zip", "b1", []byte("frozen"))
	require.NoError(t, err)
	_, err = builder.Build()
	require.NoError(t, err)

	// Working-index changes after the build are invisible to the merger.
	_, err = orders.Upsert(&mapping.OrderMapping{OrderID: "O2", TrackingNo: "T2"})
	require.NoError(t, err)
	_, err = labelStore.Put("T2", "T2.pdf", "test.zip", "b2", []byte("unfrozen"))
	require.NoError(t, err)

	merger := NewMerger(packs, fakeConcat{}, nil)
	result, err := merger.Merge(MergeRequest{TrackingNos: []string{"T1", "T2"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"T1"}, result.Merged)
	assert.Equal(t, []string{"T2"}, result.Missing)
	assert.Equal(t, []byte("frozen"), result.Document)
}
