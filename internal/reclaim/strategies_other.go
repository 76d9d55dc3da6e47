//go:build !windows

package reclaim

// Placeholder eviction relies on Windows sync agent mechanisms. On other
// platforms the chain is empty and every mutation reports the diagnostic.
func defaultStrategies() []Strategy {
	return nil
}
