package results

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/driveslim/driveslim/internal/classify"
	"github.com/driveslim/driveslim/internal/scan"
)

const (
	DefaultPerPage = 50
	MinPerPage     = 10
	MaxPerPage     = 500
)

// sortColumns whitelists user-facing sort keys against schema columns.
var sortColumns = map[string]string{
	"size":          "size",
	"name":          "name",
	"last_modified": "last_modified",
}

// QueryParams select, order and paginate records of the active snapshot.
type QueryParams struct {
	Page    int
	PerPage int
	// SortColumn is one of size, name, last_modified. Defaults to size.
	SortColumn string
	// SortDirection is asc or desc. Defaults to desc.
	SortDirection string
	// CloudOnly filters by classification when non-nil.
	CloudOnly *bool
	// Search is a case-insensitive substring matched against name or path.
	Search string
}

func (q *QueryParams) normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage == 0 {
		q.PerPage = DefaultPerPage
	}
	if q.PerPage < MinPerPage {
		q.PerPage = MinPerPage
	}
	if q.PerPage > MaxPerPage {
		q.PerPage = MaxPerPage
	}
	if _, ok := sortColumns[q.SortColumn]; !ok {
		q.SortColumn = "size"
	}
	if q.SortDirection != "asc" && q.SortDirection != "desc" {
		q.SortDirection = "desc"
	}
}

// Pagination describes the page window of a query result.
type Pagination struct {
	Page        int   `json:"page"`
	PerPage     int   `json:"per_page"`
	TotalItems  int64 `json:"total_files"`
	TotalPages  int64 `json:"total_pages"`
	HasNext     bool  `json:"has_next"`
	HasPrevious bool  `json:"has_previous"`
}

// QueryResult is one page of records plus the snapshot-level aggregates.
// Stats cover the whole snapshot, not the filtered page.
type QueryResult struct {
	Files      []scan.FileRecord `json:"files"`
	Pagination Pagination        `json:"pagination"`
	Stats      scan.Stats        `json:"stats"`
	ScanTime   time.Time         `json:"last_scan_time"`
}

// Query reads a page from the active snapshot for root. Returns
// ErrNoActiveSnapshot when the root has never been scanned (or its snapshot
// was cleared). Ordering is deterministic: ties on the sort column break by
// name ascending, so identical queries always return identical pages.
func (s *Store) Query(ctx context.Context, root string, params QueryParams) (*QueryResult, error) {
	params.normalize()

	snap, err := s.ActiveSnapshot(ctx, root)
	if err != nil {
		return nil, err
	}

	where := []string{"snapshot_id = ?"}
	args := []any{snap.ID}

	if params.CloudOnly != nil {
		where = append(where, "is_cloud_only = ?")
		if *params.CloudOnly {
			args = append(args, 1)
		} else {
			args = append(args, 0)
		}
	}
	if params.Search != "" {
		pattern := "%" + strings.ToLower(params.Search) + "%"
		where = append(where, "(LOWER(name) LIKE ? OR LOWER(path) LIKE ?)")
		args = append(args, pattern, pattern)
	}
	whereClause := strings.Join(where, " AND ")

	var totalItems int64
	countQuery := "SELECT COUNT(*) FROM scan_files WHERE " + whereClause
	if err := s.db.GetContext(ctx, &totalItems, countQuery, args...); err != nil {
		return nil, fmt.Errorf("count records: %w", err)
	}

	column := sortColumns[params.SortColumn]
	orderBy := fmt.Sprintf("ORDER BY %s %s", column, strings.ToUpper(params.SortDirection))
	if column != "name" {
		orderBy += ", name ASC"
	}

	offset := (params.Page - 1) * params.PerPage
	query := fmt.Sprintf(
		`SELECT snapshot_id, path, name, extension, size, is_cloud_only, last_modified, relative_folder_path, parent_folder
		 FROM scan_files WHERE %s %s LIMIT ? OFFSET ?`,
		whereClause, orderBy,
	)
	args = append(args, params.PerPage, offset)

	var rows []fileRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}

	files := make([]scan.FileRecord, 0, len(rows))
	for i := range rows {
		files = append(files, rows[i].toRecord())
	}

	totalPages := (totalItems + int64(params.PerPage) - 1) / int64(params.PerPage)

	return &QueryResult{
		Files: files,
		Pagination: Pagination{
			Page:        params.Page,
			PerPage:     params.PerPage,
			TotalItems:  totalItems,
			TotalPages:  totalPages,
			HasNext:     int64(params.Page) < totalPages,
			HasPrevious: params.Page > 1,
		},
		Stats:    snap.Stats,
		ScanTime: snap.ScanTime,
	}, nil
}

func (r *fileRow) toRecord() scan.FileRecord {
	classification := classify.Local
	if r.IsCloudOnly == 1 {
		classification = classify.CloudOnly
	}
	return scan.FileRecord{
		Path:               r.Path,
		Name:               r.Name,
		ParentFolder:       r.ParentFolder,
		RelativeFolderPath: r.RelativeFolderPath,
		Extension:          r.Extension,
		SizeBytes:          r.Size,
		Classification:     classification,
		LastModified:       r.LastModified,
	}
}
