// Package reclaim converts local files to cloud-only placeholders through the
// platform sync agent. Mutation is best-effort: an ordered list of strategies
// runs until the classifier confirms the file went cloud-only, and exhausting
// every strategy yields a diagnostic result, never an error.
package reclaim

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/driveslim/driveslim/internal/classify"
	"github.com/driveslim/driveslim/internal/utils"
)

// StateChecker re-inspects a file's on-disk state, bypassing any caches.
type StateChecker interface {
	Refresh(path string) classify.Classification
}

// Strategy is one mechanism for evicting local content. Apply is allowed to
// fail; the mutator verifies the outcome through the classifier regardless.
type Strategy interface {
	Name() string
	Apply(ctx context.Context, path string) error
	// SettleDelay is how long to wait after Apply for the sync agent to
	// converge before re-checking the file.
	SettleDelay() time.Duration
}

// Result is the outcome of one mutation attempt.
type Result struct {
	Path      string `json:"path"`
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	CloudOnly bool   `json:"is_cloud_only"`
}

// Mutator drives the strategy chain. Idempotent: a file that is already
// cloud-only succeeds without running any strategy.
type Mutator struct {
	checker    StateChecker
	strategies []Strategy
}

type Option func(*Mutator)

// WithStrategies replaces the platform default strategy chain.
func WithStrategies(strategies ...Strategy) Option {
	return func(m *Mutator) {
		m.strategies = strategies
	}
}

func New(checker StateChecker, opts ...Option) *Mutator {
	m := &Mutator{
		checker:    checker,
		strategies: defaultStrategies(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MakeCloudOnly attempts to evict the local content of path. The file's state
// is unchanged on failure.
func (m *Mutator) MakeCloudOnly(ctx context.Context, path string) Result {
	if !utils.FileExists(path) {
		return Result{Path: path, Message: "file not found"}
	}

	if m.checker.Refresh(path) == classify.CloudOnly {
		return Result{Path: path, Success: true, CloudOnly: true, Message: "file is already cloud-only"}
	}

	for _, strategy := range m.strategies {
		if ctx.Err() != nil {
			return Result{Path: path, Message: "cancelled: " + ctx.Err().Error()}
		}

		slog.Debug("reclaim attempt", "strategy", strategy.Name(), "path", path)
		if err := strategy.Apply(ctx, path); err != nil {
			slog.Warn("reclaim strategy failed", "strategy", strategy.Name(), "path", path, "error", err)
			continue
		}

		if !settle(ctx, strategy.SettleDelay()) {
			return Result{Path: path, Message: "cancelled: " + ctx.Err().Error()}
		}

		if m.checker.Refresh(path) == classify.CloudOnly {
			return Result{
				Path:      path,
				Success:   true,
				CloudOnly: true,
				Message:   fmt.Sprintf("file made cloud-only via %s", strategy.Name()),
			}
		}
	}

	return Result{Path: path, Message: failureDiagnostic(len(m.strategies))}
}

// MakeCloudOnlyBatch mutates each path independently and reports per-path
// results. Partial failure is expected; ok is true when any path succeeded.
func (m *Mutator) MakeCloudOnlyBatch(ctx context.Context, paths []string) (results []Result, ok bool) {
	results = make([]Result, 0, len(paths))
	for _, path := range paths {
		result := m.MakeCloudOnly(ctx, path)
		ok = ok || result.Success
		results = append(results, result)
	}
	return results, ok
}

func settle(ctx context.Context, delay time.Duration) bool {
	if delay <= 0 {
		return true
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func failureDiagnostic(attempts int) string {
	return fmt.Sprintf("failed to make file cloud-only after %d attempts; check that: "+
		"you have sufficient permissions, the file is not currently in use, "+
		"the sync agent is running and healthy, and the file is inside a synced folder", attempts)
}

// CommandStrategy shells out to a platform command with its own timeout.
type CommandStrategy struct {
	StrategyName string
	Timeout      time.Duration
	Settle       time.Duration
	// Command returns the executable and arguments for a given path.
	Command func(path string) (name string, args []string)
}

func (s *CommandStrategy) Name() string { return s.StrategyName }

func (s *CommandStrategy) SettleDelay() time.Duration { return s.Settle }

func (s *CommandStrategy) Apply(ctx context.Context, path string) error {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	name, args := s.Command(path)
	if out, err := exec.CommandContext(ctx, name, args...).CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w (%s)", s.StrategyName, err, string(out))
	}
	return nil
}
