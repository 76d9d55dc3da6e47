package classify

import (
	"context"
	"io/fs"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// DefaultSizeThreshold is the size below which a file is presumed to be a
// placeholder when no platform signal is available. Tunable because small
// genuinely-local files fall under it too.
const DefaultSizeThreshold = 1024

const attribTimeout = 3 * time.Second

// PlaceholderAttrs inspects filesystem reparse/placeholder attributes. This is
// the most reliable signal and runs first. Inconclusive on platforms without
// placeholder attribute support.
type PlaceholderAttrs struct{}

func (s *PlaceholderAttrs) Name() string { return "placeholder_attrs" }

func (s *PlaceholderAttrs) Classify(path string, _ fs.FileInfo) (Classification, bool) {
	cloudOnly, ok := placeholderAttrs(path)
	if !ok {
		return Local, false
	}
	if cloudOnly {
		return CloudOnly, true
	}
	// attributes readable but no placeholder bits; let later strategies decide
	return Local, false
}

// AttribCommand shells out to the platform attribute-inspection command and
// looks for an unpinned-without-pinned marker in its output.
type AttribCommand struct {
	// Timeout for the command, attribTimeout when zero.
	Timeout time.Duration
}

func (s *AttribCommand) Name() string { return "attrib_command" }

func (s *AttribCommand) Classify(path string, _ fs.FileInfo) (Classification, bool) {
	timeout := s.Timeout
	if timeout == 0 {
		timeout = attribTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "attrib", path).Output()
	if err != nil {
		slog.Debug("attrib probe failed", "path", path, "error", err)
		return Local, false
	}

	flags := attribFlags(string(out), path)
	if strings.Contains(flags, "U") && !strings.Contains(flags, "P") {
		return CloudOnly, true
	}
	return Local, false
}

// attribFlags strips the echoed file path from attrib output so a 'U' or 'P'
// in the path itself cannot be mistaken for a flag.
func attribFlags(output, path string) string {
	line := strings.TrimSpace(output)
	if i := strings.Index(strings.ToLower(line), strings.ToLower(path)); i >= 0 {
		line = line[:i]
	}
	return strings.ToUpper(line)
}

// SizeHeuristic presumes a regular file under Threshold bytes is a
// placeholder. Probabilistic: only consulted when every platform signal was
// inconclusive.
type SizeHeuristic struct {
	Threshold int64
}

func (s *SizeHeuristic) Name() string { return "size_heuristic" }

func (s *SizeHeuristic) Classify(_ string, info fs.FileInfo) (Classification, bool) {
	if info == nil || !info.Mode().IsRegular() {
		return Local, false
	}
	if info.Size() < s.Threshold {
		return CloudOnly, true
	}
	return Local, false
}
