package space

import "github.com/driveslim/driveslim/internal/reclaim"

type FreeSpaceRequest struct {
	Path string `json:"path" binding:"required"`
	// VerifyOnly re-checks the file's current state without mutating it.
	VerifyOnly bool `json:"verify_only"`
}

type VerifyResponse struct {
	Path      string `json:"path"`
	CloudOnly bool   `json:"is_cloud_only"`
	Verified  bool   `json:"verified"`
}

type FreeMultipleRequest struct {
	Paths []string `json:"paths" binding:"required,min=1"`
}

type FreeMultipleResponse struct {
	Results   []reclaim.Result `json:"results"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
}
