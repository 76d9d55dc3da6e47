// Package results caches completed scans in SQLite. Each ingest produces an
// immutable snapshot of file records for one root; exactly one snapshot per
// root is active at a time and queries only ever see a fully-committed active
// snapshot.
package results

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"

	"github.com/driveslim/driveslim/internal/scan"
)

const schema = `
CREATE TABLE IF NOT EXISTS scan_snapshots (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    root TEXT NOT NULL,
    max_depth INTEGER NOT NULL,
    scan_time TIMESTAMP NOT NULL,
    params TEXT NOT NULL,
    stats TEXT NOT NULL,
    is_active INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS scan_files (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    snapshot_id INTEGER NOT NULL,
    path TEXT NOT NULL,
    name TEXT NOT NULL,
    extension TEXT NOT NULL,
    size INTEGER NOT NULL,
    is_cloud_only INTEGER NOT NULL,
    last_modified TIMESTAMP NOT NULL,
    relative_folder_path TEXT NOT NULL,
    parent_folder TEXT NOT NULL,
    FOREIGN KEY (snapshot_id) REFERENCES scan_snapshots (id) ON DELETE CASCADE,
    UNIQUE (snapshot_id, path)
);

CREATE INDEX IF NOT EXISTS idx_files_snapshot ON scan_files (snapshot_id);
CREATE INDEX IF NOT EXISTS idx_files_cloud_only ON scan_files (is_cloud_only);
CREATE INDEX IF NOT EXISTS idx_files_size ON scan_files (size);
CREATE INDEX IF NOT EXISTS idx_snapshots_root ON scan_snapshots (root, is_active);
`

// insertBatchSize chunks bulk record inserts for throughput. Chunking happens
// inside the ingest transaction, so it never weakens atomicity.
const insertBatchSize = 100

var ErrNoActiveSnapshot = errors.New("no active snapshot for root")

// ScanParams records how a snapshot was produced.
type ScanParams struct {
	MaxDepth       int  `json:"max_depth"`
	UseConcurrency bool `json:"use_concurrency"`
	MaxWorkers     int  `json:"max_workers"`
}

// Snapshot is the metadata of one completed scan.
type Snapshot struct {
	ID       int64      `json:"id"`
	Root     string     `json:"root"`
	MaxDepth int        `json:"max_depth"`
	ScanTime time.Time  `json:"scan_time"`
	Params   ScanParams `json:"params"`
	Stats    scan.Stats `json:"stats"`
	Active   bool       `json:"active"`
}

// Store is the scan result cache. Safe for concurrent use; ingests for the
// same root are serialized so two scans cannot both claim active.
type Store struct {
	db *sqlx.DB

	mu        sync.Mutex
	rootLocks map[string]*sync.Mutex
}

func NewStore(database *sqlx.DB) (*Store, error) {
	if _, err := database.Exec(schema); err != nil {
		return nil, fmt.Errorf("initialize results schema: %w", err)
	}

	return &Store{
		db:        database,
		rootLocks: make(map[string]*sync.Mutex),
	}, nil
}

func (s *Store) lockRoot(root string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.rootLocks[root]
	if !ok {
		lock = &sync.Mutex{}
		s.rootLocks[root] = lock
	}
	return lock
}

// snapshotRow is the raw snapshot table shape.
type snapshotRow struct {
	ID       int64     `db:"id"`
	Root     string    `db:"root"`
	MaxDepth int       `db:"max_depth"`
	ScanTime time.Time `db:"scan_time"`
	Params   string    `db:"params"`
	Stats    string    `db:"stats"`
	IsActive int       `db:"is_active"`
}

func (r *snapshotRow) toSnapshot() (*Snapshot, error) {
	snap := &Snapshot{
		ID:       r.ID,
		Root:     r.Root,
		MaxDepth: r.MaxDepth,
		ScanTime: r.ScanTime,
		Active:   r.IsActive == 1,
	}
	if err := json.Unmarshal([]byte(r.Params), &snap.Params); err != nil {
		return nil, fmt.Errorf("parse snapshot params: %w", err)
	}
	if err := json.Unmarshal([]byte(r.Stats), &snap.Stats); err != nil {
		return nil, fmt.Errorf("parse snapshot stats: %w", err)
	}
	return snap, nil
}

// fileRow is the raw record table shape.
type fileRow struct {
	SnapshotID         int64     `db:"snapshot_id"`
	Path               string    `db:"path"`
	Name               string    `db:"name"`
	Extension          string    `db:"extension"`
	Size               int64     `db:"size"`
	IsCloudOnly        int       `db:"is_cloud_only"`
	LastModified       time.Time `db:"last_modified"`
	RelativeFolderPath string    `db:"relative_folder_path"`
	ParentFolder       string    `db:"parent_folder"`
}

const insertFileSQL = `
INSERT INTO scan_files
(snapshot_id, path, name, extension, size, is_cloud_only, last_modified, relative_folder_path, parent_folder)
VALUES (:snapshot_id, :path, :name, :extension, :size, :is_cloud_only, :last_modified, :relative_folder_path, :parent_folder)`

// Ingest stores a completed scan as the new active snapshot for root. One
// transaction covers deactivation, the snapshot row and every record chunk:
// no caller can observe a partially-inserted snapshot as active, and any
// failure leaves the previously active snapshot untouched.
func (s *Store) Ingest(ctx context.Context, root string, records []scan.FileRecord, stats scan.Stats, params ScanParams) (int64, error) {
	lock := s.lockRoot(root)
	lock.Lock()
	defer lock.Unlock()

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return 0, fmt.Errorf("marshal scan params: %w", err)
	}
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return 0, fmt.Errorf("marshal scan stats: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin ingest: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE scan_snapshots SET is_active = 0 WHERE root = ?`, root); err != nil {
		return 0, fmt.Errorf("deactivate previous snapshots: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO scan_snapshots (root, max_depth, scan_time, params, stats, is_active) VALUES (?, ?, ?, ?, ?, 1)`,
		root, params.MaxDepth, time.Now().UTC(), string(paramsJSON), string(statsJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("insert snapshot: %w", err)
	}
	snapshotID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("snapshot id: %w", err)
	}

	for start := 0; start < len(records); start += insertBatchSize {
		end := min(start+insertBatchSize, len(records))

		batch := make([]fileRow, 0, end-start)
		for _, r := range records[start:end] {
			row := fileRow{
				SnapshotID:         snapshotID,
				Path:               r.Path,
				Name:               r.Name,
				Extension:          r.Extension,
				Size:               r.SizeBytes,
				LastModified:       r.LastModified.UTC(),
				RelativeFolderPath: r.RelativeFolderPath,
				ParentFolder:       r.ParentFolder,
			}
			if r.IsCloudOnly() {
				row.IsCloudOnly = 1
			}
			if row.LastModified.IsZero() {
				row.LastModified = time.Unix(0, 0).UTC()
			}
			batch = append(batch, row)
		}

		if _, err := tx.NamedExecContext(ctx, insertFileSQL, batch); err != nil {
			return 0, fmt.Errorf("insert record batch: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit ingest: %w", err)
	}

	slog.Info("snapshot ingested", "root", root, "snapshot", snapshotID, "files", len(records))
	return snapshotID, nil
}

// ActiveSnapshot returns the active snapshot metadata for root, or
// ErrNoActiveSnapshot.
func (s *Store) ActiveSnapshot(ctx context.Context, root string) (*Snapshot, error) {
	var row snapshotRow
	err := s.db.GetContext(ctx, &row,
		`SELECT id, root, max_depth, scan_time, params, stats, is_active
		 FROM scan_snapshots
		 WHERE root = ? AND is_active = 1
		 ORDER BY scan_time DESC LIMIT 1`, root)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoActiveSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("query active snapshot: %w", err)
	}
	return row.toSnapshot()
}

// Snapshots lists every snapshot for root, newest first. Superseded snapshots
// are retained until ClearStale removes them.
func (s *Store) Snapshots(ctx context.Context, root string) ([]*Snapshot, error) {
	var rows []snapshotRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, root, max_depth, scan_time, params, stats, is_active
		 FROM scan_snapshots WHERE root = ? ORDER BY scan_time DESC`, root)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}

	snaps := make([]*Snapshot, 0, len(rows))
	for i := range rows {
		snap, err := rows[i].toSnapshot()
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

// ClearStale deletes inactive snapshots older than the retention window,
// along with their records. Active snapshots are never deleted. Records are
// removed explicitly rather than trusting cascade support on every
// connection.
func (s *Store) ClearStale(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin cleanup: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM scan_files WHERE snapshot_id IN
		 (SELECT id FROM scan_snapshots WHERE is_active = 0 AND scan_time < ?)`, cutoff); err != nil {
		return 0, fmt.Errorf("delete stale records: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`DELETE FROM scan_snapshots WHERE is_active = 0 AND scan_time < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete stale snapshots: %w", err)
	}

	deleted, _ := res.RowsAffected()
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit cleanup: %w", err)
	}

	if deleted > 0 {
		slog.Info("stale snapshots cleared", "count", deleted, "cutoff", cutoff)
	}
	return deleted, nil
}
