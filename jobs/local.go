package jobs

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tsawler/go-landscape/grid"
	"github.com/tsawler/go-landscape/landscape"
)

// LocalExecutor runs jobs in a bounded pool inside the current process.
// Each job gets its own log file under the configured log directory.
type LocalExecutor struct {
	opts Options
	sem  chan struct{}

	mu   sync.Mutex
	next int // chunk index assigned to the next submission
}

func newLocalExecutor(opts Options) (*LocalExecutor, error) {
	if opts.LogDir != "" {
		if err := os.MkdirAll(opts.LogDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log dir: %v", err)
		}
	}
	return &LocalExecutor{opts: opts, sem: make(chan struct{}, opts.MaxParallel)}, nil
}

type localJob struct {
	id      string
	chunk   int
	logPath string

	status  atomic.Value // Status
	counter atomic.Int64

	done    chan struct{}
	results []landscape.Result
	err     error
}

func (j *localJob) ID() string      { return j.id }
func (j *localJob) LogPath() string { return j.logPath }

func (j *localJob) Poll() Status {
	return j.status.Load().(Status)
}

// Progress prefers the in-process counter, falling back to scraping the job
// log the way backends without direct counters are read.
func (j *localJob) Progress() int {
	n := int(j.counter.Load())
	if m := parseProgress(j.logPath); m > n {
		n = m
	}
	return n
}

func (j *localJob) Results() ([]landscape.Result, error) {
	<-j.done
	return j.results, j.err
}

// Submit queues one chunk. The job starts as soon as a pool slot frees up.
func (e *LocalExecutor) Submit(chunk []grid.Coord, cfg landscape.EvalConfig) (JobHandle, error) {
	e.mu.Lock()
	idx := e.next
	e.next++
	e.mu.Unlock()

	job := &localJob{id: uuid.New().String(), chunk: idx, done: make(chan struct{})}
	job.status.Store(StatusSubmitted)
	if e.opts.LogDir != "" {
		job.logPath = filepath.Join(e.opts.LogDir, job.id+".log")
	}

	if l := e.opts.Ledger; l != nil {
		if err := l.RecordSubmitted(job.id, idx); err != nil {
			return nil, err
		}
	}

	go e.run(job, chunk, cfg)
	return job, nil
}

func (e *LocalExecutor) run(job *localJob, chunk []grid.Coord, cfg landscape.EvalConfig) {
	defer close(job.done)

	e.sem <- struct{}{}
	defer func() { <-e.sem }()

	job.status.Store(StatusRunning)
	e.recordStatus(job, StatusRunning, 1)
	log.Printf("job %s: chunk %d started (%d coordinates)", job.id, job.chunk, len(chunk))

	var logFile *os.File
	if job.logPath != "" {
		f, err := os.Create(job.logPath)
		if err != nil {
			log.Printf("job %s: failed to create log file: %v", job.id, err)
		} else {
			logFile = f
			defer f.Close()
		}
	}

	progress := func(done, total int) {
		job.counter.Store(int64(done))
		if logFile != nil {
			fmt.Fprintf(logFile, "%d/%d\n", done, total)
		}
	}

	var results []landscape.Result
	var err error
	attempts := 0
	for {
		attempts++
		results, err = e.opts.Runner(cfg, chunk, progress)
		if err == nil || attempts > e.opts.Retry.MaxRetries {
			break
		}
		log.Printf("job %s: attempt %d failed, retrying: %v", job.id, attempts, err)
		e.recordStatus(job, StatusRunning, attempts+1)
		if e.opts.Retry.Backoff > 0 {
			time.Sleep(e.opts.Retry.Backoff)
		}
	}

	if err != nil {
		job.err = &EvaluationError{Chunk: job.chunk, Err: err}
		job.status.Store(StatusFailed)
		e.recordStatus(job, StatusFailed, attempts)
		log.Printf("job %s: chunk %d failed after %d attempt(s): %v", job.id, job.chunk, attempts, err)
		return
	}

	job.results = results
	job.status.Store(StatusDone)
	e.recordStatus(job, StatusDone, attempts)
	log.Printf("job %s: chunk %d done", job.id, job.chunk)
}

func (e *LocalExecutor) recordStatus(job *localJob, status Status, attempts int) {
	if e.opts.Ledger == nil {
		return
	}
	if err := e.opts.Ledger.RecordStatus(job.id, status, attempts); err != nil {
		log.Printf("job %s: failed to update ledger: %v", job.id, err)
	}
}
