package api

const (
	// Generic request/server errors
	CodeInvalidRequest = "E_INVALID_REQUEST" // bad or invalid request
	CodeRateLimited    = "E_RATE_LIMITED"    // rate limit exceeded
	CodeInternalError  = "E_INTERNAL_ERROR"  // internal server error

	// Root path errors
	CodeRootNotConfigured = "E_ROOT_NOT_CONFIGURED" // no scan root has been set yet
	CodeInvalidRoot       = "E_INVALID_ROOT"        // the given root is missing or not a directory

	// Scan errors
	CodeScanInProgress = "E_SCAN_IN_PROGRESS" // another scan is already running
	CodeScanFailed     = "E_SCAN_FAILED"      // the scan aborted before completion
	CodeNoScanResults  = "E_NO_SCAN_RESULTS"  // the root has no active scan snapshot

	// Disk / mutation errors
	CodeDiskUsageFailed = "E_DISK_USAGE_FAILED" // volume usage probe failed
	CodeMutationFailed  = "E_MUTATION_FAILED"   // no strategy could make the file cloud-only
	CodePathOutsideRoot = "E_PATH_OUTSIDE_ROOT" // target path is not under the scan root
)
