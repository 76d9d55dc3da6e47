// Package scan walks a directory tree to a bounded depth, classifies every
// file through the classifier, and reports live progress. Traversal may
// parallelize the root-level file batch and shallow subdirectory fan-out;
// total in-flight workers are capped by a shared semaphore so deep trees
// cannot explode the pool.
package scan

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/driveslim/driveslim/internal/classify"
	"github.com/driveslim/driveslim/internal/utils"
)

const (
	// estimation pre-walk caps
	estimateFileCap   = 5000
	estimateSubdirCap = 30
	defaultEstimate   = 100

	// parallelism kicks in above these entry counts
	parallelFileMin   = 10
	parallelSubdirMin = 4

	// DefaultShallowThreshold is the depth below which subdirectory fan-out
	// may parallelize. Deeper levels always recurse sequentially.
	DefaultShallowThreshold = 5

	DefaultMaxWorkers = 4
	maxWorkersCap     = 32
)

var (
	ErrInvalidRoot    = errors.New("scan root is missing or not a directory")
	ErrScanInProgress = errors.New("scan already in progress")
)

// FileClassifier is the slice of the classifier the scanner needs.
type FileClassifier interface {
	ClassifyFile(path string, info fs.FileInfo) classify.Classification
}

// Options control one scan invocation.
type Options struct {
	// MaxDepth limits recursion: -1 is unlimited, 0 scans only the root's
	// immediate files, N stops N levels below the root.
	MaxDepth int
	// UseConcurrency enables the file batch pool and subdirectory fan-out.
	UseConcurrency bool
	// MaxWorkers bounds both pools. Clamped to 1..32, default 4.
	MaxWorkers int
	// ShallowThreshold overrides DefaultShallowThreshold when > 0.
	ShallowThreshold int
	// ExcludeGlobs are doublestar patterns matched against root-relative
	// slash paths; matching files and directories are skipped.
	ExcludeGlobs []string
}

func (o *Options) normalize() {
	if o.MaxDepth < -1 {
		o.MaxDepth = -1
	}
	if o.MaxWorkers < 1 {
		o.MaxWorkers = DefaultMaxWorkers
	}
	if o.MaxWorkers > maxWorkersCap {
		o.MaxWorkers = maxWorkersCap
	}
	if o.ShallowThreshold <= 0 {
		o.ShallowThreshold = DefaultShallowThreshold
	}
}

// Scanner walks directory trees and builds file records. One scan at a time;
// the progress handle outlives each scan so pollers can read the last state.
type Scanner struct {
	classifier FileClassifier
	progress   *Progress
	muScan     sync.Mutex
}

func NewScanner(classifier FileClassifier) *Scanner {
	return &Scanner{
		classifier: classifier,
		progress:   NewProgress(),
	}
}

// Progress returns the shared progress handle.
func (s *Scanner) Progress() *Progress {
	return s.progress
}

// scanState is the per-invocation traversal state shared by all workers.
type scanState struct {
	root     string
	opts     Options
	excludes []string
	// sem caps total concurrently-running subdirectory traversals. Workers
	// that cannot get a slot recurse inline, so exhaustion degrades to
	// sequential traversal instead of deadlocking.
	sem *semaphore.Weighted
	// visited holds resolved directory paths to break symlink cycles.
	visited mapset.Set[string]
}

// Scan walks root and returns one record per file encountered. Records are in
// no particular order. The context is observed at every directory and batch
// boundary; on cancellation the partial result is discarded.
func (s *Scanner) Scan(ctx context.Context, root string, opts Options) ([]FileRecord, error) {
	if !s.muScan.TryLock() {
		return nil, ErrScanInProgress
	}
	defer s.muScan.Unlock()

	resolved, err := utils.ResolvePath(root)
	if err != nil || !utils.DirExists(resolved) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRoot, root)
	}

	opts.normalize()

	runID := s.progress.Begin()
	tstart := time.Now()
	slog.Info("scan start", "run", runID, "root", resolved, "depth", opts.MaxDepth, "concurrency", opts.UseConcurrency, "workers", opts.MaxWorkers)

	state := &scanState{
		root:     resolved,
		opts:     opts,
		excludes: opts.ExcludeGlobs,
		sem:      semaphore.NewWeighted(int64(opts.MaxWorkers)),
		visited:  mapset.NewSet[string](),
	}
	if target, err := filepath.EvalSymlinks(resolved); err == nil {
		state.visited.Add(target)
	}

	s.progress.SetEstimate(s.estimateTotal(ctx, resolved))

	records, err := s.scanDir(ctx, state, resolved, 0)
	if err != nil {
		s.progress.Fail(err)
		return nil, err
	}

	s.progress.Complete()
	slog.Info("scan complete", "run", runID, "files", len(records), "took", time.Since(tstart))
	return records, nil
}

// estimateTotal is a bounded pre-walk producing the progress denominator.
// Progress-only: capped, approximate, and never used for correctness.
func (s *Scanner) estimateTotal(ctx context.Context, root string) int64 {
	var total int64
	queue := []string{root}

	for len(queue) > 0 && total <= estimateFileCap {
		if ctx.Err() != nil {
			break
		}

		dir := queue[0]
		queue = queue[1:]

		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}

		subdirs := 0
		for _, entry := range entries {
			if entry.IsDir() {
				if subdirs < estimateSubdirCap {
					queue = append(queue, filepath.Join(dir, entry.Name()))
					subdirs++
				}
			} else {
				total++
			}
		}
	}

	if total < defaultEstimate {
		total = defaultEstimate
	}
	return total
}

func (s *Scanner) scanDir(ctx context.Context, state *scanState, dir string, depth int) ([]FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.progress.SetCurrentPath(dir)

	entries, err := os.ReadDir(dir)
	if err != nil {
		// directory-level failure kills only this subtree
		s.progress.SetStatus("Error: " + err.Error())
		slog.Warn("scan list dir failed", "dir", dir, "error", err)
		return nil, nil
	}

	files, subdirs := s.partition(state, dir, entries)

	var records []FileRecord
	if state.opts.UseConcurrency && depth == 0 && len(files) > parallelFileMin {
		records, err = s.processFileBatches(ctx, state, dir, files)
	} else {
		records, err = s.processFiles(ctx, state, dir, files)
	}
	if err != nil {
		return nil, err
	}

	if state.opts.MaxDepth != -1 && depth >= state.opts.MaxDepth {
		return records, nil
	}

	if state.opts.UseConcurrency && len(subdirs) > parallelSubdirMin && depth < state.opts.ShallowThreshold {
		subRecords, err := s.scanSubdirsParallel(ctx, state, subdirs, depth)
		if err != nil {
			return nil, err
		}
		records = append(records, subRecords...)
		return records, nil
	}

	for _, sub := range subdirs {
		s.progress.SetStatus("Scanning folder: " + filepath.Base(sub))
		subRecords, err := s.scanDir(ctx, state, sub, depth+1)
		if err != nil {
			return nil, err
		}
		records = append(records, subRecords...)
	}
	return records, nil
}

// partition splits directory entries into file paths and subdirectory paths,
// applying exclude globs and the symlink-cycle guard.
func (s *Scanner) partition(state *scanState, dir string, entries []os.DirEntry) (files, subdirs []string) {
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if s.excluded(state, path) {
			continue
		}

		switch {
		case entry.IsDir():
			subdirs = append(subdirs, path)
		case entry.Type()&fs.ModeSymlink != 0:
			target, err := filepath.EvalSymlinks(path)
			if err != nil {
				continue
			}
			info, err := os.Stat(target)
			if err != nil {
				continue
			}
			if info.IsDir() {
				// follow each real directory once, however many links point at it
				if state.visited.Add(target) {
					subdirs = append(subdirs, path)
				}
			} else {
				files = append(files, path)
			}
		default:
			files = append(files, path)
		}
	}
	return files, subdirs
}

func (s *Scanner) excluded(state *scanState, path string) bool {
	if len(state.excludes) == 0 {
		return false
	}
	rel, err := filepath.Rel(state.root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range state.excludes {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// processFileBatches splits the root-level file list into MaxWorkers batches
// and classifies them through a bounded pool.
func (s *Scanner) processFileBatches(ctx context.Context, state *scanState, dir string, files []string) ([]FileRecord, error) {
	workers := state.opts.MaxWorkers
	s.progress.SetStatus(fmt.Sprintf("Processing %d files with %d workers...", len(files), workers))

	batchSize := (len(files) + workers - 1) / workers
	var batches [][]string
	for start := 0; start < len(files); start += batchSize {
		end := min(start+batchSize, len(files))
		batches = append(batches, files[start:end])
	}

	results := make([][]FileRecord, len(batches))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, batch := range batches {
		g.Go(func() error {
			batchRecords, err := s.processFiles(gctx, state, dir, batch)
			if err != nil {
				return err
			}
			results[i] = batchRecords
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var records []FileRecord
	for _, r := range results {
		records = append(records, r...)
	}
	return records, nil
}

func (s *Scanner) processFiles(ctx context.Context, state *scanState, dir string, files []string) ([]FileRecord, error) {
	records := make([]FileRecord, 0, len(files))
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		s.progress.SetCurrentPath(path)

		record, err := s.buildRecord(state, path)
		if err != nil {
			slog.Warn("scan file failed", "path", path, "error", err)
			records = append(records, FileRecord{
				Path:               path,
				Name:               filepath.Base(path),
				ParentFolder:       filepath.Base(dir),
				RelativeFolderPath: relativeFolder(state.root, path),
				Classification:     classify.Local,
				Error:              err.Error(),
			})
			continue
		}

		records = append(records, record)
		s.progress.Increment()
	}
	return records, nil
}

func (s *Scanner) buildRecord(state *scanState, path string) (FileRecord, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileRecord{}, err
	}

	return FileRecord{
		Path:               path,
		Name:               filepath.Base(path),
		ParentFolder:       filepath.Base(filepath.Dir(path)),
		RelativeFolderPath: relativeFolder(state.root, path),
		Extension:          strings.ToLower(filepath.Ext(path)),
		SizeBytes:          info.Size(),
		Classification:     s.classifier.ClassifyFile(path, info),
		LastModified:       info.ModTime(),
	}, nil
}

// scanSubdirsParallel fans subdirectory traversal out through the shared
// semaphore. A subtree that cannot get a slot runs inline on the caller's
// goroutine, which caps total fan-out at MaxWorkers by construction.
func (s *Scanner) scanSubdirsParallel(ctx context.Context, state *scanState, subdirs []string, depth int) ([]FileRecord, error) {
	s.progress.SetStatus(fmt.Sprintf("Scanning %d subdirectories in parallel...", len(subdirs)))

	results := make([][]FileRecord, len(subdirs))
	errs := make([]error, len(subdirs))
	var wg sync.WaitGroup

	for i, sub := range subdirs {
		if state.sem.TryAcquire(1) {
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer state.sem.Release(1)
				results[i], errs[i] = s.scanDir(ctx, state, sub, depth+1)
			}()
		} else {
			results[i], errs[i] = s.scanDir(ctx, state, sub, depth+1)
		}
	}
	wg.Wait()

	var records []FileRecord
	for i := range results {
		if errs[i] != nil {
			return nil, errs[i]
		}
		records = append(records, results[i]...)
	}
	return records, nil
}
