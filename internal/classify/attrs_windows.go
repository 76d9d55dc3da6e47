//go:build windows

package classify

import (
	"golang.org/x/sys/windows"
)

// Placeholder-related file attribute bits. UNPINNED marks content the sync
// agent may evict; a reparse point on a file under a synced root is the cloud
// placeholder tag.
const (
	fileAttributePinned       = 0x00080000
	fileAttributeUnpinned     = 0x00100000
	fileAttributeReparsePoint = 0x00400000
)

func placeholderAttrs(path string) (cloudOnly bool, ok bool) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return false, false
	}

	attrs, err := windows.GetFileAttributes(p)
	if err != nil || attrs == windows.INVALID_FILE_ATTRIBUTES {
		return false, false
	}

	if attrs&fileAttributeReparsePoint != 0 {
		return true, true
	}
	if attrs&fileAttributeUnpinned != 0 && attrs&fileAttributePinned == 0 {
		return true, true
	}

	return false, true
}
