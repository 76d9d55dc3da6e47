// Package classify determines whether a file inside a synced drive folder is
// materialized locally or is a cloud-only placeholder.
//
// Classification is heuristic. Platform placeholder attributes are the most
// reliable signal and are checked first; the trailing size heuristic can
// misclassify small genuinely-local files and exists only as a last resort.
// Anything indeterminate resolves to Local so a real local file is never
// treated as already offloaded.
package classify

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	lru "github.com/hashicorp/golang-lru/v2"
)

type Classification string

const (
	Local     Classification = "local"
	CloudOnly Classification = "cloud_only"
)

// Strategy is a single best-effort classification attempt. It returns
// (result, true) for a definitive answer and (_, false) when inconclusive.
// Strategies must swallow their own failures.
type Strategy interface {
	Name() string
	Classify(path string, info fs.FileInfo) (Classification, bool)
}

const defaultCacheSize = 65536

// Classifier runs an ordered chain of strategies, first definitive answer
// wins. Results are cached by (path, size, mtime) so re-scans do not repeat
// command probes for unchanged files.
type Classifier struct {
	strategies []Strategy
	cache      *lru.Cache[string, Classification]
}

type Option func(*Classifier)

// WithStrategies replaces the default strategy chain.
func WithStrategies(strategies ...Strategy) Option {
	return func(c *Classifier) {
		c.strategies = strategies
	}
}

func New(opts ...Option) *Classifier {
	cache, _ := lru.New[string, Classification](defaultCacheSize)
	c := &Classifier{
		strategies: DefaultStrategies(),
		cache:      cache,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DefaultStrategies is the production chain: placeholder attributes, then the
// attrib command probe, then the size heuristic.
func DefaultStrategies() []Strategy {
	return []Strategy{
		&PlaceholderAttrs{},
		&AttribCommand{},
		&SizeHeuristic{Threshold: DefaultSizeThreshold},
	}
}

// Classify reports the state of the file at path. Never returns an error: a
// file that cannot be inspected is reported Local.
func (c *Classifier) Classify(path string) Classification {
	info, err := os.Lstat(path)
	if err != nil {
		slog.Debug("classify stat failed", "path", path, "error", err)
		return Local
	}
	return c.ClassifyFile(path, info)
}

// ClassifyFile is Classify for callers that already hold the file's stat info.
func (c *Classifier) ClassifyFile(path string, info fs.FileInfo) Classification {
	key := cacheKey(path, info)
	if result, ok := c.cache.Get(key); ok {
		return result
	}

	result := c.run(path, info)
	c.cache.Add(key, result)
	return result
}

// Refresh re-runs the chain ignoring any cached result. Used after a mutation
// attempt, when the on-disk state may have changed without the mtime moving.
func (c *Classifier) Refresh(path string) Classification {
	info, err := os.Lstat(path)
	if err != nil {
		return Local
	}

	result := c.run(path, info)
	c.cache.Add(cacheKey(path, info), result)
	return result
}

func (c *Classifier) run(path string, info fs.FileInfo) Classification {
	for _, s := range c.strategies {
		if result, ok := s.Classify(path, info); ok {
			return result
		}
	}
	// all strategies inconclusive
	return Local
}

func cacheKey(path string, info fs.FileInfo) string {
	return fmt.Sprintf("%s|%d|%d", path, info.Size(), info.ModTime().UnixNano())
}
