package scans

import (
	"github.com/driveslim/driveslim/internal/config"
	"github.com/driveslim/driveslim/internal/scan"
	"github.com/driveslim/driveslim/internal/server/handlers/files"
)

// ScanRequest overrides the configured scan defaults. Pointer fields
// distinguish "not sent" from zero values.
type ScanRequest struct {
	MaxDepth       *int     `json:"max_depth"`
	UseConcurrency *bool    `json:"use_concurrency"`
	MaxWorkers     *int     `json:"max_workers"`
	ExcludeGlobs   []string `json:"exclude_globs"`
}

func (r *ScanRequest) toOptions(cfg *config.Config) scan.Options {
	opts := scan.Options{
		MaxDepth:       cfg.MaxDepth,
		UseConcurrency: cfg.UseConcurrency,
		MaxWorkers:     cfg.MaxWorkers,
		ExcludeGlobs:   cfg.ExcludeGlobs,
	}
	if r.MaxDepth != nil {
		opts.MaxDepth = *r.MaxDepth
	}
	if r.UseConcurrency != nil {
		opts.UseConcurrency = *r.UseConcurrency
	}
	if r.MaxWorkers != nil {
		opts.MaxWorkers = *r.MaxWorkers
	}
	if r.ExcludeGlobs != nil {
		opts.ExcludeGlobs = r.ExcludeGlobs
	}
	return opts
}

type ScanResponse struct {
	SnapshotID   int64 `json:"snapshot_id"`
	FilesScanned int   `json:"files_scanned"`
	FilesErrored int   `json:"files_errored"`
	DurationMs   int64 `json:"duration_ms"`
	*files.ListResponse
}
