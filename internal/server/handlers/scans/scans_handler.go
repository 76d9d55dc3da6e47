package scans

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/driveslim/driveslim/internal/config"
	"github.com/driveslim/driveslim/internal/results"
	"github.com/driveslim/driveslim/internal/scan"
	"github.com/driveslim/driveslim/internal/server/handlers/api"
	"github.com/driveslim/driveslim/internal/server/handlers/files"
)

type ScansHandler struct {
	cfg     *config.Config
	scanner *scan.Scanner
	store   *results.Store
}

func New(cfg *config.Config, scanner *scan.Scanner, store *results.Store) *ScansHandler {
	return &ScansHandler{
		cfg:     cfg,
		scanner: scanner,
		store:   store,
	}
}

// RunScan walks the configured root, ingests the snapshot, and returns the
// first result page. Progress is pollable through Status while this runs.
func (h *ScansHandler) RunScan(ctx *gin.Context) {
	root := h.cfg.GetRootPath()
	if root == "" {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeRootNotConfigured, errors.New("no root path configured"))
		return
	}

	// an empty body means "use the configured defaults"
	var req ScanRequest
	if err := ctx.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("failed to bind json: %w", err))
		return
	}

	opts := req.toOptions(h.cfg)

	tstart := time.Now()
	records, err := h.scanner.Scan(ctx.Request.Context(), root, opts)
	if err != nil {
		switch {
		case errors.Is(err, scan.ErrScanInProgress):
			api.AbortWithError(ctx, http.StatusConflict, api.CodeScanInProgress, err)
		case errors.Is(err, scan.ErrInvalidRoot):
			api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRoot, err)
		default:
			api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeScanFailed, err)
		}
		return
	}

	classified, errored := splitErrored(records)
	if errored > 0 {
		slog.Warn("scan finished with unreadable entries", "errored", errored)
	}

	snapshotID, err := h.store.Ingest(ctx.Request.Context(), root, classified, scan.ComputeStats(classified), results.ScanParams{
		MaxDepth:       opts.MaxDepth,
		UseConcurrency: opts.UseConcurrency,
		MaxWorkers:     opts.MaxWorkers,
	})
	if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, fmt.Errorf("failed to store scan results: %w", err))
		return
	}

	result, err := h.store.Query(ctx.Request.Context(), root, results.QueryParams{})
	if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
		return
	}

	ctx.PureJSON(http.StatusOK, &ScanResponse{
		SnapshotID:   snapshotID,
		FilesScanned: len(classified),
		FilesErrored: errored,
		DurationMs:   time.Since(tstart).Milliseconds(),
		ListResponse: files.NewListResponse(result),
	})
}

// splitErrored drops records that carry a per-entry error: they were never
// classified and must not surface as zero-byte local rows in the snapshot.
func splitErrored(records []scan.FileRecord) ([]scan.FileRecord, int) {
	classified := make([]scan.FileRecord, 0, len(records))
	for _, r := range records {
		if r.Error != "" {
			continue
		}
		classified = append(classified, r)
	}
	return classified, len(records) - len(classified)
}

// Status reports the live progress snapshot of the current or last scan.
func (h *ScansHandler) Status(ctx *gin.Context) {
	ctx.PureJSON(http.StatusOK, h.scanner.Progress().Snapshot())
}
