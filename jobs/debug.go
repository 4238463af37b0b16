package jobs

import (
	"sync"

	"github.com/google/uuid"

	"github.com/tsawler/go-landscape/grid"
	"github.com/tsawler/go-landscape/landscape"
)

// DebugExecutor evaluates each chunk inline during Submit, with no pool and
// no log files. Useful for stepping through a run in a debugger.
type DebugExecutor struct {
	opts Options

	mu   sync.Mutex
	next int
}

func newDebugExecutor(opts Options) *DebugExecutor {
	return &DebugExecutor{opts: opts}
}

type debugJob struct {
	id       string
	status   Status
	progress int
	results  []landscape.Result
	err      error
}

func (j *debugJob) ID() string                           { return j.id }
func (j *debugJob) Poll() Status                         { return j.status }
func (j *debugJob) Progress() int                        { return j.progress }
func (j *debugJob) LogPath() string                      { return "" }
func (j *debugJob) Results() ([]landscape.Result, error) { return j.results, j.err }

func (e *DebugExecutor) Submit(chunk []grid.Coord, cfg landscape.EvalConfig) (JobHandle, error) {
	e.mu.Lock()
	idx := e.next
	e.next++
	e.mu.Unlock()

	job := &debugJob{id: uuid.New().String(), status: StatusRunning}
	if l := e.opts.Ledger; l != nil {
		if err := l.RecordSubmitted(job.id, idx); err != nil {
			return nil, err
		}
	}

	results, err := e.opts.Runner(cfg, chunk, func(done, total int) {
		job.progress = done
	})
	if err != nil {
		job.err = &EvaluationError{Chunk: idx, Err: err}
		job.status = StatusFailed
	} else {
		job.results = results
		job.status = StatusDone
	}

	if l := e.opts.Ledger; l != nil {
		if err := l.RecordStatus(job.id, job.status, 1); err != nil {
			return nil, err
		}
	}
	return job, nil
}
