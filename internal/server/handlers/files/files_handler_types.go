package files

import (
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/driveslim/driveslim/internal/results"
	"github.com/driveslim/driveslim/internal/scan"
)

type ListRequest struct {
	Page      int    `form:"page"`
	PerPage   int    `form:"per_page"`
	SortBy    string `form:"sort_by"`
	SortOrder string `form:"sort_order"`
	CloudOnly string `form:"cloud_only"`
	Search    string `form:"search"`
}

func (r *ListRequest) toQueryParams() results.QueryParams {
	params := results.QueryParams{
		Page:          r.Page,
		PerPage:       r.PerPage,
		SortColumn:    r.SortBy,
		SortDirection: r.SortOrder,
		Search:        r.Search,
	}
	if v, err := strconv.ParseBool(r.CloudOnly); err == nil {
		params.CloudOnly = &v
	}
	return params
}

// StatsPayload is the snapshot aggregate with human-readable sizes.
// PotentialSavings is the bytes freeable by evicting every local file.
type StatsPayload struct {
	TotalFiles       int    `json:"total_files"`
	LocalFiles       int    `json:"local_files"`
	CloudOnlyFiles   int    `json:"cloud_only_files"`
	TotalBytes       int64  `json:"total_bytes"`
	LocalBytes       int64  `json:"local_bytes"`
	TotalSize        string `json:"total_size"`
	LocalSize        string `json:"local_size"`
	PotentialSavings string `json:"potential_savings"`
}

func NewStatsPayload(stats scan.Stats) StatsPayload {
	return StatsPayload{
		TotalFiles:       stats.TotalFiles,
		LocalFiles:       stats.LocalFiles,
		CloudOnlyFiles:   stats.RemoteFiles,
		TotalBytes:       stats.TotalBytes,
		LocalBytes:       stats.LocalBytes,
		TotalSize:        humanize.IBytes(uint64(stats.TotalBytes)),
		LocalSize:        humanize.IBytes(uint64(stats.LocalBytes)),
		PotentialSavings: humanize.IBytes(uint64(stats.LocalBytes)),
	}
}

type ListResponse struct {
	Files        []scan.FileRecord  `json:"files"`
	Pagination   results.Pagination `json:"pagination"`
	Stats        StatsPayload       `json:"stats"`
	LastScanTime time.Time          `json:"last_scan_time"`
}

func NewListResponse(result *results.QueryResult) *ListResponse {
	return &ListResponse{
		Files:        result.Files,
		Pagination:   result.Pagination,
		Stats:        NewStatsPayload(result.Stats),
		LastScanTime: result.ScanTime,
	}
}
