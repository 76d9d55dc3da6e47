package system

type RootPathResponse struct {
	RootPath   string `json:"root_path"`
	Configured bool   `json:"configured"`
}

type SetRootPathRequest struct {
	Path string `json:"path" binding:"required"`
}

type DiskUsageResponse struct {
	Path        string  `json:"path"`
	TotalBytes  uint64  `json:"total_bytes"`
	UsedBytes   uint64  `json:"used_bytes"`
	FreeBytes   uint64  `json:"free_bytes"`
	UsedPercent float64 `json:"used_percent"`
	Total       string  `json:"total"`
	Used        string  `json:"used"`
	Free        string  `json:"free"`
	Filesystem  string  `json:"filesystem"`
}
