package files

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/driveslim/driveslim/internal/config"
	"github.com/driveslim/driveslim/internal/results"
	"github.com/driveslim/driveslim/internal/server/handlers/api"
)

type FilesHandler struct {
	cfg   *config.Config
	store *results.Store
}

func New(cfg *config.Config, store *results.Store) *FilesHandler {
	return &FilesHandler{
		cfg:   cfg,
		store: store,
	}
}

// ListFiles serves one page of the active snapshot for the configured root.
func (h *FilesHandler) ListFiles(ctx *gin.Context) {
	root := h.cfg.GetRootPath()
	if root == "" {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeRootNotConfigured, errors.New("no root path configured"))
		return
	}

	var req ListRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("failed to bind query: %w", err))
		return
	}

	result, err := h.store.Query(ctx.Request.Context(), root, req.toQueryParams())
	if err != nil {
		if errors.Is(err, results.ErrNoActiveSnapshot) {
			api.AbortWithError(ctx, http.StatusNotFound, api.CodeNoScanResults, err)
			return
		}
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
		return
	}

	ctx.PureJSON(http.StatusOK, NewListResponse(result))
}
