package files

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driveslim/driveslim/internal/classify"
	"github.com/driveslim/driveslim/internal/config"
	"github.com/driveslim/driveslim/internal/db"
	"github.com/driveslim/driveslim/internal/results"
	"github.com/driveslim/driveslim/internal/scan"
)

func newFixture(t *testing.T) (*config.Config, *results.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "placeholder"), nil, 0o644))

	cfg := config.Default()
	cfg.Path = filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, cfg.SetRootPath(root))

	database, err := db.NewSqliteDB(db.WithPath(filepath.Join(t.TempDir(), "scans.db")))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	store, err := results.NewStore(database)
	require.NoError(t, err)
	return cfg, store
}

func newRouter(h *FilesHandler) http.Handler {
	r := gin.New()
	r.GET("/api/files", h.ListFiles)
	return r
}

func seed(t *testing.T, cfg *config.Config, store *results.Store) {
	t.Helper()
	records := []scan.FileRecord{
		{Path: "/d/big.bin", Name: "big.bin", SizeBytes: 5000, Classification: classify.Local, LastModified: time.Now()},
		{Path: "/d/small.bin", Name: "small.bin", SizeBytes: 100, Classification: classify.Local, LastModified: time.Now()},
		{Path: "/d/photo.jpg", Name: "photo.jpg", SizeBytes: 300, Classification: classify.CloudOnly, LastModified: time.Now()},
	}
	_, err := store.Ingest(context.Background(), cfg.GetRootPath(), records, scan.ComputeStats(records), results.ScanParams{})
	require.NoError(t, err)
}

func TestListFiles_NoScanYet(t *testing.T) {
	cfg, store := newFixture(t)
	router := newRouter(New(cfg, store))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/files", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "E_NO_SCAN_RESULTS")
}

func TestListFiles_ReturnsPageAndStats(t *testing.T) {
	cfg, store := newFixture(t)
	seed(t, cfg, store)
	router := newRouter(New(cfg, store))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/files?sort_by=size&sort_order=desc", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp ListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	require.Len(t, resp.Files, 3)
	assert.Equal(t, "big.bin", resp.Files[0].Name)
	assert.Equal(t, 3, resp.Stats.TotalFiles)
	assert.Equal(t, 2, resp.Stats.LocalFiles)
	assert.Equal(t, int64(5100), resp.Stats.LocalBytes)
	assert.Equal(t, "5.0 KiB", resp.Stats.PotentialSavings)
}

func TestListFiles_CloudOnlyFilter(t *testing.T) {
	cfg, store := newFixture(t)
	seed(t, cfg, store)
	router := newRouter(New(cfg, store))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/files?cloud_only=true", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp ListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Files, 1)
	assert.Equal(t, "photo.jpg", resp.Files[0].Name)
}

func TestListFiles_RootNotConfigured(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	cfg.Path = filepath.Join(t.TempDir(), "config.json")

	database, err := db.NewSqliteDB()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	store, err := results.NewStore(database)
	require.NoError(t, err)

	router := newRouter(New(cfg, store))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/files", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "E_ROOT_NOT_CONFIGURED")
}
