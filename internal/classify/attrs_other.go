//go:build !windows

package classify

// Placeholder attributes are a Windows filesystem feature; elsewhere the probe
// is always inconclusive and later strategies decide.
func placeholderAttrs(string) (cloudOnly bool, ok bool) {
	return false, false
}
