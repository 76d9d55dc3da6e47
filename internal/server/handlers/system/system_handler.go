package system

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v4/disk"

	"github.com/driveslim/driveslim/internal/config"
	"github.com/driveslim/driveslim/internal/server/handlers/api"
)

type SystemHandler struct {
	cfg *config.Config
}

func New(cfg *config.Config) *SystemHandler {
	return &SystemHandler{cfg: cfg}
}

func (h *SystemHandler) GetRootPath(ctx *gin.Context) {
	root := h.cfg.GetRootPath()
	ctx.PureJSON(http.StatusOK, &RootPathResponse{
		RootPath:   root,
		Configured: root != "",
	})
}

// SetRootPath validates the directory and persists it to the config file.
func (h *SystemHandler) SetRootPath(ctx *gin.Context) {
	var req SetRootPathRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("failed to bind json: %w", err))
		return
	}

	if err := h.cfg.SetRootPath(req.Path); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRoot, err)
		return
	}

	ctx.PureJSON(http.StatusOK, &RootPathResponse{
		RootPath:   h.cfg.GetRootPath(),
		Configured: true,
	})
}

// GetDiskUsage reports volume usage for the configured root's filesystem.
func (h *SystemHandler) GetDiskUsage(ctx *gin.Context) {
	root := h.cfg.GetRootPath()
	if root == "" {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeRootNotConfigured, errors.New("no root path configured"))
		return
	}

	usage, err := disk.UsageWithContext(ctx.Request.Context(), root)
	if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeDiskUsageFailed, fmt.Errorf("disk usage for '%s': %w", root, err))
		return
	}

	ctx.PureJSON(http.StatusOK, &DiskUsageResponse{
		Path:        usage.Path,
		TotalBytes:  usage.Total,
		UsedBytes:   usage.Used,
		FreeBytes:   usage.Free,
		UsedPercent: usage.UsedPercent,
		Total:       humanize.IBytes(usage.Total),
		Used:        humanize.IBytes(usage.Used),
		Free:        humanize.IBytes(usage.Free),
		Filesystem:  usage.Fstype,
	})
}
