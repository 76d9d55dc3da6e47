package space

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/driveslim/driveslim/internal/classify"
	"github.com/driveslim/driveslim/internal/config"
	"github.com/driveslim/driveslim/internal/reclaim"
	"github.com/driveslim/driveslim/internal/server/handlers/api"
	"github.com/driveslim/driveslim/internal/utils"
)

type SpaceHandler struct {
	cfg     *config.Config
	mutator *reclaim.Mutator
	checker reclaim.StateChecker
}

func New(cfg *config.Config, mutator *reclaim.Mutator, checker reclaim.StateChecker) *SpaceHandler {
	return &SpaceHandler{
		cfg:     cfg,
		mutator: mutator,
		checker: checker,
	}
}

// FreeSpace evicts the local content of a single file under the scan root.
// With verify_only it only re-checks and reports the file's current state.
func (h *SpaceHandler) FreeSpace(ctx *gin.Context) {
	var req FreeSpaceRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("failed to bind json: %w", err))
		return
	}

	root := h.cfg.GetRootPath()
	if root == "" {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeRootNotConfigured, errors.New("no root path configured"))
		return
	}

	target, ok := resolveWithinRoot(root, req.Path)
	if !ok {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodePathOutsideRoot, fmt.Errorf("path '%s' is outside the scan root", req.Path))
		return
	}

	if req.VerifyOnly {
		ctx.PureJSON(http.StatusOK, &VerifyResponse{
			Path:      target,
			CloudOnly: h.checker.Refresh(target) == classify.CloudOnly,
			Verified:  true,
		})
		return
	}

	result := h.mutator.MakeCloudOnly(ctx.Request.Context(), target)
	status := http.StatusOK
	if !result.Success {
		status = http.StatusUnprocessableEntity
	}
	ctx.PureJSON(status, result)
}

// FreeMultiple evicts a batch of files. Per-path failure is expected and
// reported inline; the status code reflects the aggregate outcome.
func (h *SpaceHandler) FreeMultiple(ctx *gin.Context) {
	var req FreeMultipleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("failed to bind json: %w", err))
		return
	}

	root := h.cfg.GetRootPath()
	if root == "" {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeRootNotConfigured, errors.New("no root path configured"))
		return
	}

	resp := &FreeMultipleResponse{Results: make([]reclaim.Result, 0, len(req.Paths))}
	for _, path := range req.Paths {
		target, ok := resolveWithinRoot(root, path)
		if !ok {
			resp.Results = append(resp.Results, reclaim.Result{
				Path:    path,
				Message: "path is outside the scan root",
			})
			continue
		}
		resp.Results = append(resp.Results, h.mutator.MakeCloudOnly(ctx.Request.Context(), target))
	}

	for _, result := range resp.Results {
		if result.Success {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
	}

	status := http.StatusOK
	if resp.Succeeded == 0 {
		status = http.StatusUnprocessableEntity
	} else if resp.Failed > 0 {
		status = http.StatusMultiStatus
	}
	ctx.PureJSON(status, resp)
}

// resolveWithinRoot normalizes a request path and guards against mutating
// files outside the configured scan root. Links are followed before the
// containment test, so a symlink under the root cannot reach outside it.
func resolveWithinRoot(root, path string) (string, bool) {
	resolved, err := utils.ResolvePath(path)
	if err != nil {
		return "", false
	}

	if target, err := filepath.EvalSymlinks(resolved); err == nil {
		resolved = target
	} else if parent, err := filepath.EvalSymlinks(filepath.Dir(resolved)); err == nil {
		// missing file: normalize through its parent so the check still
		// sees through links on the directory chain
		resolved = filepath.Join(parent, filepath.Base(resolved))
	}
	if target, err := filepath.EvalSymlinks(root); err == nil {
		root = target
	}

	rel, err := filepath.Rel(root, resolved)
	if err != nil {
		return "", false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return resolved, true
}
