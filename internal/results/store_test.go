package results

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driveslim/driveslim/internal/classify"
	"github.com/driveslim/driveslim/internal/db"
	"github.com/driveslim/driveslim/internal/scan"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.NewSqliteDB(db.WithPath(filepath.Join(t.TempDir(), "scans.db")))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	store, err := NewStore(database)
	require.NoError(t, err)
	return store
}

func rec(name string, size int64, cloud bool) scan.FileRecord {
	classification := classify.Local
	if cloud {
		classification = classify.CloudOnly
	}
	return scan.FileRecord{
		Path:           "/drive/" + name,
		Name:           name,
		ParentFolder:   "drive",
		Extension:      filepath.Ext(name),
		SizeBytes:      size,
		Classification: classification,
		LastModified:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func ingest(t *testing.T, store *Store, root string, records []scan.FileRecord) int64 {
	t.Helper()
	id, err := store.Ingest(context.Background(), root, records, scan.ComputeStats(records), ScanParams{
		MaxDepth:       -1,
		UseConcurrency: true,
		MaxWorkers:     4,
	})
	require.NoError(t, err)
	return id
}

func TestQuery_NoSnapshot(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Query(context.Background(), "/drive", QueryParams{})
	assert.ErrorIs(t, err, ErrNoActiveSnapshot)
}

func TestIngestAndQuery_FilterAndStats(t *testing.T) {
	store := newTestStore(t)
	records := []scan.FileRecord{
		rec("local-1.bin", 10, false),
		rec("local-2.bin", 2048, false),
		rec("local-3.bin", 100, false),
		rec("cloud-1.bin", 500, true),
		rec("cloud-2.bin", 1, true),
	}
	ingest(t, store, "/drive", records)

	local := false
	result, err := store.Query(context.Background(), "/drive", QueryParams{CloudOnly: &local})
	require.NoError(t, err)

	require.Len(t, result.Files, 3)
	for _, f := range result.Files {
		assert.Equal(t, classify.Local, f.Classification)
	}

	// stats are the snapshot aggregate, not the filtered subset
	assert.Equal(t, 5, result.Stats.TotalFiles)
	assert.Equal(t, 3, result.Stats.LocalFiles)
	assert.Equal(t, 2, result.Stats.RemoteFiles)
	assert.Equal(t, int64(2158), result.Stats.LocalBytes)

	cloud := true
	result, err = store.Query(context.Background(), "/drive", QueryParams{CloudOnly: &cloud})
	require.NoError(t, err)
	assert.Len(t, result.Files, 2)
}

func TestIngest_SecondScanSupersedesFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	firstID := ingest(t, store, "/drive", []scan.FileRecord{rec("old.txt", 1, false)})
	secondID := ingest(t, store, "/drive", []scan.FileRecord{rec("new.txt", 2, false)})
	require.NotEqual(t, firstID, secondID)

	result, err := store.Query(ctx, "/drive", QueryParams{})
	require.NoError(t, err)
	require.Len(t, result.Files, 1)
	assert.Equal(t, "new.txt", result.Files[0].Name)

	snaps, err := store.Snapshots(ctx, "/drive")
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	for _, snap := range snaps {
		assert.Equal(t, snap.ID == secondID, snap.Active)
	}
}

func TestIngest_IndependentRoots(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ingest(t, store, "/drive-a", []scan.FileRecord{rec("a.txt", 1, false)})
	ingest(t, store, "/drive-b", []scan.FileRecord{rec("b.txt", 2, false)})

	result, err := store.Query(ctx, "/drive-a", QueryParams{})
	require.NoError(t, err)
	require.Len(t, result.Files, 1)
	assert.Equal(t, "a.txt", result.Files[0].Name)
}

func TestIngest_FailureLeavesPriorSnapshotActive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	goodID := ingest(t, store, "/drive", []scan.FileRecord{rec("keep.txt", 42, false)})

	// duplicate paths violate the per-snapshot uniqueness constraint midway
	// through the batch inserts and must roll the whole ingest back
	bad := []scan.FileRecord{rec("dup.txt", 1, false)}
	for i := 0; i < 150; i++ {
		bad = append(bad, rec(fmt.Sprintf("file-%03d.txt", i), int64(i), false))
	}
	bad = append(bad, rec("dup.txt", 1, false))

	_, err := store.Ingest(ctx, "/drive", bad, scan.ComputeStats(bad), ScanParams{})
	require.Error(t, err)

	result, err := store.Query(ctx, "/drive", QueryParams{})
	require.NoError(t, err)
	require.Len(t, result.Files, 1)
	assert.Equal(t, "keep.txt", result.Files[0].Name)

	snaps, err := store.Snapshots(ctx, "/drive")
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, goodID, snaps[0].ID)
	assert.True(t, snaps[0].Active)
}

func TestQuery_PaginationIsExhaustiveAndDisjoint(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var records []scan.FileRecord
	for i := 0; i < 25; i++ {
		records = append(records, rec(fmt.Sprintf("file-%03d.txt", i), int64(i%7), i%3 == 0))
	}
	ingest(t, store, "/drive", records)

	seen := map[string]bool{}
	params := QueryParams{PerPage: 10, SortColumn: "size", SortDirection: "asc"}

	first, err := store.Query(ctx, "/drive", params)
	require.NoError(t, err)
	assert.Equal(t, int64(25), first.Pagination.TotalItems)
	assert.Equal(t, int64(3), first.Pagination.TotalPages)

	for page := 1; page <= int(first.Pagination.TotalPages); page++ {
		params.Page = page
		result, err := store.Query(ctx, "/drive", params)
		require.NoError(t, err)

		assert.Equal(t, page > 1, result.Pagination.HasPrevious)
		assert.Equal(t, int64(page) < result.Pagination.TotalPages, result.Pagination.HasNext)

		for _, f := range result.Files {
			assert.False(t, seen[f.Path], "duplicate %s on page %d", f.Path, page)
			seen[f.Path] = true
		}
	}
	assert.Len(t, seen, 25)
}

func TestQuery_TiesBreakByNameAscending(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	records := []scan.FileRecord{
		rec("delta.txt", 100, false),
		rec("alpha.txt", 100, false),
		rec("charlie.txt", 100, false),
		rec("bravo.txt", 100, false),
	}
	ingest(t, store, "/drive", records)

	var previous []string
	for i := 0; i < 3; i++ {
		result, err := store.Query(ctx, "/drive", QueryParams{SortColumn: "size", SortDirection: "desc"})
		require.NoError(t, err)

		names := make([]string, 0, len(result.Files))
		for _, f := range result.Files {
			names = append(names, f.Name)
		}
		assert.Equal(t, []string{"alpha.txt", "bravo.txt", "charlie.txt", "delta.txt"}, names)

		if previous != nil {
			assert.Equal(t, previous, names)
		}
		previous = names
	}
}

func TestQuery_SortByNameDescending(t *testing.T) {
	store := newTestStore(t)

	ingest(t, store, "/drive", []scan.FileRecord{
		rec("alpha.txt", 1, false),
		rec("bravo.txt", 2, false),
	})

	result, err := store.Query(context.Background(), "/drive", QueryParams{SortColumn: "name", SortDirection: "desc"})
	require.NoError(t, err)
	require.Len(t, result.Files, 2)
	assert.Equal(t, "bravo.txt", result.Files[0].Name)
}

func TestQuery_SearchIsCaseInsensitive(t *testing.T) {
	store := newTestStore(t)

	ingest(t, store, "/drive", []scan.FileRecord{
		rec("Quarterly-Report.pdf", 100, false),
		rec("holiday.jpg", 200, false),
	})

	result, err := store.Query(context.Background(), "/drive", QueryParams{Search: "report"})
	require.NoError(t, err)
	require.Len(t, result.Files, 1)
	assert.Equal(t, "Quarterly-Report.pdf", result.Files[0].Name)
}

func TestQuery_ClampsPerPageAndPage(t *testing.T) {
	store := newTestStore(t)

	ingest(t, store, "/drive", []scan.FileRecord{rec("a.txt", 1, false)})

	result, err := store.Query(context.Background(), "/drive", QueryParams{Page: -5, PerPage: 2})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Pagination.Page)
	assert.Equal(t, MinPerPage, result.Pagination.PerPage)

	result, err = store.Query(context.Background(), "/drive", QueryParams{PerPage: 9999})
	require.NoError(t, err)
	assert.Equal(t, MaxPerPage, result.Pagination.PerPage)
}

func TestClearStale(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	oldID := ingest(t, store, "/drive", []scan.FileRecord{rec("old.txt", 1, false)})
	ingest(t, store, "/drive", []scan.FileRecord{rec("new.txt", 2, false)})

	// age the superseded snapshot past the retention window
	_, err := store.db.Exec(`UPDATE scan_snapshots SET scan_time = ? WHERE id = ?`,
		time.Now().UTC().Add(-30*24*time.Hour), oldID)
	require.NoError(t, err)

	deleted, err := store.ClearStale(ctx, 7*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	snaps, err := store.Snapshots(ctx, "/drive")
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.True(t, snaps[0].Active)

	// the stale snapshot's records are gone too
	var orphaned int
	require.NoError(t, store.db.Get(&orphaned, `SELECT COUNT(*) FROM scan_files WHERE snapshot_id = ?`, oldID))
	assert.Zero(t, orphaned)
}

func TestClearStale_NeverDeletesActive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id := ingest(t, store, "/drive", []scan.FileRecord{rec("a.txt", 1, false)})

	// even an ancient active snapshot survives
	_, err := store.db.Exec(`UPDATE scan_snapshots SET scan_time = ? WHERE id = ?`,
		time.Now().UTC().Add(-365*24*time.Hour), id)
	require.NoError(t, err)

	deleted, err := store.ClearStale(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, deleted)

	snap, err := store.ActiveSnapshot(ctx, "/drive")
	require.NoError(t, err)
	assert.Equal(t, id, snap.ID)
}
