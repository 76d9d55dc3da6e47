package scan

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// StaleAfter is how long a progress handle stays meaningful without an
// update. Past it, Snapshot reports idle: the scan either finished long ago or
// its process died.
const StaleAfter = 5 * time.Minute

const idleStatus = "Idle"

// Progress is the live state of a scan, shared between every worker of the
// traversal and any poller. The processed counter is atomic; the compound
// fields are mutex-guarded so readers never observe torn values.
type Progress struct {
	filesProcessed atomic.Int64
	totalEstimate  atomic.Int64

	mu          sync.Mutex
	runID       string
	status      string
	currentPath string
	lastUpdated time.Time
	completed   bool
	started     bool
}

// ProgressSnapshot is a consistent copy of the progress state.
type ProgressSnapshot struct {
	RunID          string    `json:"run_id,omitempty"`
	Status         string    `json:"status"`
	CurrentPath    string    `json:"current_path"`
	FilesProcessed int64     `json:"files_processed"`
	TotalEstimate  int64     `json:"total_estimate"`
	Percent        float64   `json:"progress"`
	LastUpdated    time.Time `json:"last_updated"`
}

func NewProgress() *Progress {
	p := &Progress{}
	p.reset()
	return p
}

func (p *Progress) reset() {
	p.filesProcessed.Store(0)
	p.totalEstimate.Store(defaultEstimate)
	p.runID = ""
	p.status = idleStatus
	p.currentPath = ""
	p.lastUpdated = time.Time{}
	p.completed = false
	p.started = false
}

// Begin rearms the handle for a new scan and returns its run id.
func (p *Progress) Begin() string {
	runID := uuid.NewString()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.filesProcessed.Store(0)
	p.totalEstimate.Store(defaultEstimate)
	p.runID = runID
	p.status = "Estimating total files..."
	p.currentPath = ""
	p.completed = false
	p.started = true
	p.lastUpdated = time.Now()

	return runID
}

// SetEstimate records the pre-walk estimate. Progress-only, never shrinks a
// running scan's denominator below the default floor.
func (p *Progress) SetEstimate(total int64) {
	if total < defaultEstimate {
		total = defaultEstimate
	}
	p.totalEstimate.Store(total)
	p.SetStatus("Starting scan...")
}

// Increment bumps the processed-file counter. Safe from any worker.
func (p *Progress) Increment() {
	p.filesProcessed.Add(1)
}

func (p *Progress) SetStatus(status string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = status
	p.lastUpdated = time.Now()
}

func (p *Progress) SetCurrentPath(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.currentPath = path
	p.lastUpdated = time.Now()
}

// Complete marks the scan finished and settles the estimate on the true
// processed count. The only point where the estimate may shrink.
func (p *Progress) Complete() {
	p.totalEstimate.Store(p.filesProcessed.Load())

	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = "Scan complete"
	p.completed = true
	p.lastUpdated = time.Now()
}

// Fail records a scan-level failure.
func (p *Progress) Fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = "Error: " + err.Error()
	p.completed = true
	p.lastUpdated = time.Now()
}

// Snapshot returns a consistent view. A handle with no update for StaleAfter
// resets to idle first.
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started && !p.lastUpdated.IsZero() && time.Since(p.lastUpdated) > StaleAfter {
		p.reset()
	}

	processed := p.filesProcessed.Load()
	estimate := p.totalEstimate.Load()

	var percent float64
	switch {
	case p.completed:
		percent = 100
	case p.started && estimate > 0:
		percent = float64(processed) / float64(estimate) * 100
		// approximate until completion, never reported as done early
		if percent > 99 {
			percent = 99
		}
	}

	return ProgressSnapshot{
		RunID:          p.runID,
		Status:         p.status,
		CurrentPath:    p.currentPath,
		FilesProcessed: processed,
		TotalEstimate:  estimate,
		Percent:        percent,
		LastUpdated:    p.lastUpdated,
	}
}
