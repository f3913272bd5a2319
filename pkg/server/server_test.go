package server

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aidaddydog/huandan.server/pkg/printing"
)

// joinConcat stands in for the PDF backend so the flow tests can use plain
// byte payloads.
type joinConcat struct{}

func (joinConcat) Concat(docs []io.ReadSeeker, w io.Writer) error {
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

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.WatchLabels = false
	cfg.applyDerived()
	// applyDerived only fills empty paths; reset them under the temp dir.
	cfg.DBPath = cfg.DataDir + "/huandan.db"
	cfg.LabelsDir = cfg.DataDir + "/labels"
	cfg.PacksDir = cfg.DataDir + "/packs"
	cfg.UploadsDir = cfg.DataDir + "/uploads"
	cfg.ClientDir = cfg.DataDir + "/client"

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := New(cfg, logger)
	require.NoError(t, err)
	srv.merger = printing.NewMerger(srv.packs, joinConcat{}, logger)
	return srv, srv.Routes()
}

func postMultipart(t *testing.T, handler http.Handler, url, fileName string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, url, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func postJSON(t *testing.T, handler http.Handler, url string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func get(t *testing.T, handler http.Handler, url string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func zipBytes(t *testing.T, files map[string]string) []byte {
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

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthcheck(t *testing.T) {
	_, handler := newTestServer(t)

	rec := get(t, handler, "/healthcheck")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestImportScanBuildMergeFlow(t *testing.T) {
	_, handler := newTestServer(t)

	rec := postMultipart(t, handler, "/api/v1/import/orders", "orders.csv",
		[]byte("order_id,tracking_no\nO1,T1\n"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = postMultipart(t, handler, "/api/v1/import/pdfs_zip", "labels.zip",
		zipBytes(t, map[string]string{"T1.pdf": "label-one"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = get(t, handler, "/api/v1/align/scan")
	require.Equal(t, http.StatusOK, rec.Code)
	report := decodeBody(t, rec)
	assert.Equal(t, float64(1), report["aligned"])

	rec = postJSON(t, handler, "/api/v1/version/build", map[string]any{})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	built := decodeBody(t, rec)
	version := built["version"].(string)
	require.NotEmpty(t, version)

	rec = postJSON(t, handler, "/api/v1/print/merge", map[string]any{
		"tracking_nos": []string{"T1"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, version, rec.Header().Get("X-Merge-Version"))
	assert.Equal(t, "label-one", rec.Body.String())
	assert.Empty(t, rec.Header().Get("X-Missing-Tracking-Nos"))

	// Orders list shows the imported row.
	rec = get(t, handler, "/api/v1/orders/?q=O1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"tracking_no":"T1"`)
}

func TestBuildRefusedOnOrphanLabel(t *testing.T) {
	_, handler := newTestServer(t)

	rec := postMultipart(t, handler, "/api/v1/import/pdfs_zip", "labels.zip",
		zipBytes(t, map[string]string{"T2.pdf": "no-order"}))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = get(t, handler, "/api/v1/align/scan")
	report := decodeBody(t, rec)
	assert.Equal(t, float64(1), report["orphan_label"])

	rec = postJSON(t, handler, "/api/v1/version/build", map[string]any{})
	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decodeBody(t, rec)
	assert.Contains(t, body["error"], "not aligned")
}

func TestDuplicateLabelFixThenBuild(t *testing.T) {
	_, handler := newTestServer(t)

	rec := postMultipart(t, handler, "/api/v1/import/orders", "orders.csv",
		[]byte("order_id,tracking_no\nO3,T3\n"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postMultipart(t, handler, "/api/v1/import/pdfs_zip", "labels.zip",
		zipBytes(t, map[string]string{"a/T3.pdf": "early", "b/T3.pdf": "late"}))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = get(t, handler, "/api/v1/align/scan")
	report := decodeBody(t, rec)
	assert.Equal(t, float64(1), report["duplicate_label"])

	rec = postJSON(t, handler, "/api/v1/align/fix", map[string]any{})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = get(t, handler, "/api/v1/align/scan")
	report = decodeBody(t, rec)
	assert.Equal(t, float64(1), report["aligned"])

	rec = postJSON(t, handler, "/api/v1/version/build", map[string]any{})
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestRollbackSwitchesActiveVersion(t *testing.T) {
	_, handler := newTestServer(t)

	rec := postMultipart(t, handler, "/api/v1/import/orders", "orders.csv",
		[]byte("order_id,tracking_no\nO1,T1\n"))
	require.Equal(t, http.StatusOK, rec.Code)
	rec = postMultipart(t, handler, "/api/v1/import/pdfs_zip", "labels.zip",
		zipBytes(t, map[string]string{"T1.pdf": "v1-label"}))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, handler, "/api/v1/version/build", map[string]any{})
	require.Equal(t, http.StatusCreated, rec.Code)
	first := decodeBody(t, rec)["version"].(string)

	rec = postMultipart(t, handler, "/api/v1/import/orders", "orders.csv",
		[]byte("order_id,tracking_no\nO2,T2\n"))
	require.Equal(t, http.StatusOK, rec.Code)
	rec = postMultipart(t, handler, "/api/v1/import/pdfs_zip", "labels.zip",
		zipBytes(t, map[string]string{"T2.pdf": "v2-label"}))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, handler, "/api/v1/version/build", map[string]any{})
	require.Equal(t, http.StatusCreated, rec.Code)
	second := decodeBody(t, rec)["version"].(string)
	require.NotEqual(t, first, second)

	// The desktop client passes the target version as a query parameter
	// with an empty body.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/version/rollback?version="+first, nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, first, decodeBody(t, rec)["active"])

	rec = get(t, handler, "/api/v1/version/list")
	require.Equal(t, http.StatusOK, rec.Code)
	listBody := decodeBody(t, rec)
	assert.Equal(t, first, listBody["active"])
	packs := listBody["packs"].([]any)
	require.NotEmpty(t, packs)
	pack := packs[0].(map[string]any)
	assert.Contains(t, pack, "size")
	assert.Contains(t, pack, "url")

	// After rollback the merge serves the first pack only.
	rec = postJSON(t, handler, "/api/v1/print/merge", map[string]any{
		"tracking_nos": []string{"T1", "T2"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "v1-label", rec.Body.String())
	assert.Equal(t, "T2", rec.Header().Get("X-Missing-Tracking-Nos"))

	rec = postJSON(t, handler, "/api/v1/version/rollback", map[string]string{"version": "20990101-01"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestClientMappingAndFile(t *testing.T) {
	_, handler := newTestServer(t)

	rec := get(t, handler, "/api/v1/client/mapping")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = postMultipart(t, handler, "/api/v1/import/orders", "orders.csv",
		[]byte("order_id,tracking_no\nO1,T1\n"))
	require.Equal(t, http.StatusOK, rec.Code)
	rec = postMultipart(t, handler, "/api/v1/import/pdfs_zip", "labels.zip",
		zipBytes(t, map[string]string{"T1.pdf": "payload"}))
	require.Equal(t, http.StatusOK, rec.Code)
	rec = postJSON(t, handler, "/api/v1/version/build", map[string]any{})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = get(t, handler, "/api/v1/client/mapping")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "T1")

	rec = get(t, handler, "/api/v1/client/file/T1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "payload", rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
}

func TestPrintReportMarksPrinted(t *testing.T) {
	_, handler := newTestServer(t)

	rec := postMultipart(t, handler, "/api/v1/import/orders", "orders.csv",
		[]byte("order_id,tracking_no\nO1,T1\n"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, handler, "/api/v1/print/report", map[string]any{
		"tracking_nos": []string{"T1", "T9"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["marked"])
	assert.Equal(t, float64(1), body["unknown"])

	rec = get(t, handler, "/api/v1/orders/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "printed_at"))
}
