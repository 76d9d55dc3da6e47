package scans

import (
	"encoding/json"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driveslim/driveslim/internal/classify"
	"github.com/driveslim/driveslim/internal/config"
	"github.com/driveslim/driveslim/internal/db"
	"github.com/driveslim/driveslim/internal/results"
	"github.com/driveslim/driveslim/internal/scan"
)

// nameStrategy classifies by filename so tests control the outcome.
type nameStrategy struct{}

func (nameStrategy) Name() string { return "name" }

func (nameStrategy) Classify(path string, _ fs.FileInfo) (classify.Classification, bool) {
	if strings.Contains(filepath.Base(path), "cloud") {
		return classify.CloudOnly, true
	}
	return classify.Local, true
}

func newHandler(t *testing.T) (*ScansHandler, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "report.docx"), make([]byte, 2000), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "cloud-video.mp4"), make([]byte, 50), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "nested", "notes.txt"), make([]byte, 300), 0o644))

	cfg := config.Default()
	cfg.Path = filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, cfg.SetRootPath(root))

	database, err := db.NewSqliteDB(db.WithPath(filepath.Join(t.TempDir(), "scans.db")))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	store, err := results.NewStore(database)
	require.NoError(t, err)

	classifier := classify.New(classify.WithStrategies(nameStrategy{}))
	return New(cfg, scan.NewScanner(classifier), store), root
}

func newRouter(h *ScansHandler) http.Handler {
	r := gin.New()
	r.POST("/api/scan", h.RunScan)
	r.GET("/api/scan-status", h.Status)
	return r
}

func TestRunScan_ScansAndReturnsFirstPage(t *testing.T) {
	h, _ := newHandler(t)
	router := newRouter(h)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/scan", strings.NewReader(`{"max_depth": -1}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp ScanResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.NotZero(t, resp.SnapshotID)
	assert.Equal(t, 3, resp.FilesScanned)
	assert.Equal(t, 3, resp.Stats.TotalFiles)
	assert.Equal(t, 2, resp.Stats.LocalFiles)
	assert.Equal(t, 1, resp.Stats.CloudOnlyFiles)
	require.Len(t, resp.Files, 3)
}

func TestRunScan_EmptyBodyUsesConfigDefaults(t *testing.T) {
	h, _ := newHandler(t)
	router := newRouter(h)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/scan", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestRunScan_DepthZeroSkipsNested(t *testing.T) {
	h, _ := newHandler(t)
	router := newRouter(h)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/scan", strings.NewReader(`{"max_depth": 0}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp ScanResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.FilesScanned)
}

func TestSplitErrored_DropsUnclassifiedRecords(t *testing.T) {
	records := []scan.FileRecord{
		{Path: "/d/ok.bin", SizeBytes: 10},
		{Path: "/d/gone.bin", Error: "stat failed"},
	}

	classified, errored := splitErrored(records)
	require.Len(t, classified, 1)
	assert.Equal(t, "/d/ok.bin", classified[0].Path)
	assert.Equal(t, 1, errored)
}

func TestRunScan_RootNotConfigured(t *testing.T) {
	h, _ := newHandler(t)
	h.cfg.RootPath = ""
	router := newRouter(h)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/scan", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "E_ROOT_NOT_CONFIGURED")
}

func TestStatus_IdleBeforeAnyScan(t *testing.T) {
	h, _ := newHandler(t)
	router := newRouter(h)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/scan-status", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var snap scan.ProgressSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, "Idle", snap.Status)
	assert.Zero(t, snap.Percent)
}

func TestStatus_CompleteAfterScan(t *testing.T) {
	h, _ := newHandler(t)
	router := newRouter(h)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/scan", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/scan-status", nil))

	var snap scan.ProgressSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, "Scan complete", snap.Status)
	assert.Equal(t, float64(100), snap.Percent)
}
