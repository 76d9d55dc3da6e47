package scan

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/driveslim/driveslim/internal/classify"
)

// FileRecord is one file observed by a scan. Immutable once handed to the
// result store; Error is transient diagnostics for entries that could not be
// fully inspected.
type FileRecord struct {
	Path               string                  `json:"path" db:"path"`
	Name               string                  `json:"name" db:"name"`
	ParentFolder       string                  `json:"parent_folder" db:"parent_folder"`
	RelativeFolderPath string                  `json:"relative_folder_path" db:"relative_folder_path"`
	Extension          string                  `json:"extension" db:"extension"`
	SizeBytes          int64                   `json:"size" db:"size"`
	Classification     classify.Classification `json:"classification" db:"classification"`
	LastModified       time.Time               `json:"last_modified" db:"last_modified"`
	Error              string                  `json:"error,omitempty" db:"-"`
}

// IsCloudOnly is a convenience for templates and stats.
func (r *FileRecord) IsCloudOnly() bool {
	return r.Classification == classify.CloudOnly
}

// HumanSize renders the size for presentation.
func (r *FileRecord) HumanSize() string {
	return humanize.Bytes(uint64(r.SizeBytes))
}

// Stats are the aggregate numbers for one completed scan, computed once at
// scan end and stored with the snapshot.
type Stats struct {
	TotalFiles  int   `json:"total_files"`
	LocalFiles  int   `json:"local_files"`
	RemoteFiles int   `json:"remote_files"`
	TotalBytes  int64 `json:"total_size"`
	LocalBytes  int64 `json:"local_size"`
}

// ComputeStats aggregates over the classified records of a scan, not a
// filtered page. Records carrying a per-entry Error were never classified and
// are excluded from every counter.
func ComputeStats(records []FileRecord) Stats {
	var s Stats
	for i := range records {
		r := &records[i]
		if r.Error != "" {
			continue
		}
		s.TotalFiles++
		s.TotalBytes += r.SizeBytes
		if r.IsCloudOnly() {
			s.RemoteFiles++
		} else {
			s.LocalFiles++
			s.LocalBytes += r.SizeBytes
		}
	}
	return s
}

// relativeFolder derives the folder path of a file relative to the scan root:
// "" for files directly under the root, the relative directory otherwise, and
// the parent folder's name as a fallback when the file is outside the root.
func relativeFolder(root, path string) string {
	dir := filepath.Dir(path)
	rel, err := filepath.Rel(root, dir)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.Base(dir)
	}
	if rel == "." {
		return ""
	}
	return filepath.ToSlash(rel)
}
