package importer

import (
	"archive/zip"
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/aidaddydog/huandan.server/pkg/labels"
	"github.com/aidaddydog/huandan.server/pkg/mapping"
)

func newTestIngestor(t *testing.T) (*Ingestor, *mapping.Store, *labels.Store) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	orders := mapping.NewStore(db)
	require.NoError(t, orders.AutoMigrate())
	labelStore := labels.NewStore(db, t.TempDir())
	require.NoError(t, labelStore.AutoMigrate())
	return NewIngestor(orders, labelStore, nil), orders, labelStore
}

func zipOf(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestIngestOrders_CSV(t *testing.T) {
	ing, orders, _ := newTestIngestor(t)

	csv := strings.Join([]string{
		"order_id,tracking_no,platform,country",
		"O1,t1,amazon,DE",
		"O2, T2 ,ebay,FR",
		",T3,shein,US", // missing order id
	}, "\n")

	result, err := ing.IngestOrders(context.Background(), "orders.csv", strings.NewReader(csv))
	require.NoError(t, err)

	assert.Equal(t, 2, result.Inserted)
	assert.Zero(t, result.Updated)
	assert.Equal(t, 1, result.Rejected)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 4, result.Errors[0].Row)

	rows, err := orders.AllWithTracking()
	require.NoError(t, err)
	require.Len(t, rows, 2)

	record, err := orders.FindByOrderOrCustomer("O2")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "T2", record.TrackingNo) // normalized
	assert.Equal(t, "ebay", record.Platform)
}

func TestIngestOrders_ChineseHeaders(t *testing.T) {
	ing, orders, _ := newTestIngestor(t)

	csv := strings.Join([]string{
		"订单号,运单号,平台,买家ID",
		"O1,T1,tiktok,B9",
	}, "\n")

	result, err := ing.IngestOrders(context.Background(), "orders.csv", strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Inserted)

	record, err := orders.FindByOrderOrCustomer("O1")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "T1", record.TrackingNo)
	assert.Equal(t, "tiktok", record.Platform)
	assert.Equal(t, "B9", record.BuyerID)
}

func TestIngestOrders_ReimportUpdatesByOrderID(t *testing.T) {
	ing, orders, _ := newTestIngestor(t)

	first := "order_id,tracking_no,platform\nO1,T1,amazon\n"
	result, err := ing.IngestOrders(context.Background(), "a.csv", strings.NewReader(first))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Inserted)

	// A sparser re-export with a new tracking number must not erase the
	// platform captured earlier.
	second := "order_id,tracking_no\nO1,T1B\n"
	result, err = ing.IngestOrders(context.Background(), "b.csv", strings.NewReader(second))
	require.NoError(t, err)
	assert.Zero(t, result.Inserted)
	assert.Equal(t, 1, result.Updated)

	record, err := orders.FindByOrderOrCustomer("O1")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "T1B", record.TrackingNo)
	assert.Equal(t, "amazon", record.Platform)
}

func TestIngestOrders_UnparseableFile(t *testing.T) {
	ing, _, _ := newTestIngestor(t)

	_, err := ing.IngestOrders(context.Background(), "orders.txt", strings.NewReader("whatever"))
	require.Error(t, err)
	var formatErr *FormatError
	assert.ErrorAs(t, err, &formatErr)

	_, err = ing.IngestOrders(context.Background(), "orders.csv", strings.NewReader("name,color\na,b\n"))
	require.Error(t, err)
	assert.ErrorAs(t, err, &formatErr)
}

func TestIngestLabelArchive(t *testing.T) {
	ing, _, labelStore := newTestIngestor(t)

	archive := zipOf(t, map[string]string{
		"T1.pdf":        "label one",
		"batch/T2.pdf":  "label two",
		"readme.txt":    "not a label",
		"bad name!.pdf": "invalid stem",
	})

	result, err := ing.IngestLabelArchive(context.Background(), "labels.zip", "b1", archive)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Inserted)
	assert.Zero(t, result.Duplicates)
	assert.Equal(t, 2, result.Rejected)
	assert.Len(t, result.Errors, 2)

	label, err := labelStore.Latest("T2")
	require.NoError(t, err)
	require.NotNil(t, label)
	data, err := labelStore.Read(label)
	require.NoError(t, err)
	assert.Equal(t, []byte("label two"), data)
	assert.Equal(t, "labels.zip", label.SourceArchive)
	assert.Equal(t, "b1", label.BatchID)
}

func TestIngestLabelArchive_DuplicatesRetained(t *testing.T) {
	ing, _, labelStore := newTestIngestor(t)

	// Two files for the same tracking number in different folders. Both
	// are kept; the fixer decides later which survives.
	archive := zipOf(t, map[string]string{
		"a/T3.pdf": "first",
		"b/T3.pdf": "second",
	})

	result, err := ing.IngestLabelArchive(context.Background(), "labels.zip", "b1", archive)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Inserted)
	assert.Equal(t, 1, result.Duplicates)

	rows, err := labelStore.ByTrackingNo("T3")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestIngestLabelArchive_NotAZip(t *testing.T) {
	ing, _, _ := newTestIngestor(t)

	_, err := ing.IngestLabelArchive(context.Background(), "labels.zip", "b1", []byte("not a zip"))
	require.Error(t, err)
	var formatErr *FormatError
	assert.ErrorAs(t, err, &formatErr)
}

func TestIngestLabelArchive_CancelledContext(t *testing.T) {
	ing, _, _ := newTestIngestor(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	archive := zipOf(t, map[string]string{"T1.pdf": "x"})
	result, err := ing.IngestLabelArchive(ctx, "labels.zip", "b1", archive)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, result.Inserted)
}
