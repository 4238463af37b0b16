// Package jobs submits coordinate chunks as independent evaluation jobs to
// an execution backend and tracks their lifecycle and progress.
package jobs

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/tsawler/go-landscape/grid"
	"github.com/tsawler/go-landscape/landscape"
)

// EvaluationError reports that one chunk's evaluation failed. It aborts
// only that job; other jobs keep running, but final reduction needs every
// chunk.
type EvaluationError struct {
	Chunk int
	Err   error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("failed to evaluate chunk %d: %v", e.Chunk, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}

// Status is the lifecycle state of one submitted job.
type Status string

const (
	StatusSubmitted Status = "submitted"
	StatusRunning   Status = "running"
	StatusDone      Status = "done"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the job has finished, successfully or not.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// Resources are the per-job resource parameters handed to the backend.
// Backends without a scheduler ignore what they cannot enforce.
type Resources struct {
	CPUsPerTask int
	MemPerCPU   int // megabytes
	Time        string
	GPUs        int
}

// RetryPolicy resubmits a failed chunk up to MaxRetries extra attempts,
// sleeping Backoff between attempts. The zero value keeps the original
// all-or-nothing behavior.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

// ChunkRunner evaluates one chunk. The production runner is
// landscape.EvalChunk; tests inject their own.
type ChunkRunner func(cfg landscape.EvalConfig, coords []grid.Coord, progress landscape.ProgressFunc) ([]landscape.Result, error)

// JobHandle exposes what the orchestrator needs from one submitted job.
type JobHandle interface {
	ID() string
	// Poll returns the current lifecycle state without blocking.
	Poll() Status
	// Progress is the best-effort count of completed coordinates.
	// Failures to determine it read as zero, never as an error.
	Progress() int
	// Results blocks until the job is terminal.
	Results() ([]landscape.Result, error)
	LogPath() string
}

// Executor submits chunks for evaluation.
type Executor interface {
	Submit(chunk []grid.Coord, cfg landscape.EvalConfig) (JobHandle, error)
}

// Options configures an executor backend.
type Options struct {
	LogDir      string
	MaxParallel int
	Resources   Resources
	Retry       RetryPolicy
	Ledger      *Ledger
	Runner      ChunkRunner
}

// NewExecutor selects a backend by cluster name. The empty name means
// local.
func NewExecutor(cluster string, opts Options) (Executor, error) {
	if opts.Runner == nil {
		opts.Runner = landscape.EvalChunk
	}
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = 1
	}
	switch cluster {
	case "", "local":
		return newLocalExecutor(opts)
	case "debug":
		return newDebugExecutor(opts), nil
	default:
		return nil, fmt.Errorf("unknown cluster '%s'", cluster)
	}
}

var progressMarker = regexp.MustCompile(`(\d+)/(\d+)`)

// parseProgress scrapes a job log for the last "N/total" marker. A missing
// file or absent marker reads as zero progress.
func parseProgress(logPath string) int {
	data, err := os.ReadFile(logPath)
	if err != nil {
		return 0
	}
	matches := progressMarker.FindAllSubmatch(data, -1)
	if len(matches) == 0 {
		return 0
	}
	n, err := strconv.Atoi(string(matches[len(matches)-1][1]))
	if err != nil {
		return 0
	}
	return n
}

// TrackProgress polls the jobs at the given interval until all are
// terminal, reporting a monotonically non-decreasing aggregate count of
// completed coordinates.
func TrackProgress(handles []JobHandle, interval time.Duration, report func(done int)) {
	best := 0
	for {
		done := 0
		terminal := true
		for _, h := range handles {
			done += h.Progress()
			if !h.Poll().Terminal() {
				terminal = false
			}
		}
		if done > best {
			best = done
		}
		if report != nil {
			report(best)
		}
		if terminal {
			return
		}
		time.Sleep(interval)
	}
}
