package jobs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tsawler/go-landscape/grid"
	"github.com/tsawler/go-landscape/landscape"
	"github.com/tsawler/go-landscape/tensor"
)

// fakeRunner produces one record per coordinate and reports progress the
// way the real evaluator does.
func fakeRunner(cfg landscape.EvalConfig, coords []grid.Coord, progress landscape.ProgressFunc) ([]landscape.Result, error) {
	results := make([]landscape.Result, 0, len(coords))
	for i, c := range coords {
		results = append(results, landscape.Result{
			"coord": tensor.FromVec([]float64{c[0], c[1]}),
			"value": tensor.FromScalar(c[0] + c[1]),
		})
		if progress != nil {
			progress(i+1, len(coords))
		}
	}
	return results, nil
}

func TestLocalExecutorRunsChunks(t *testing.T) {
	logDir := t.TempDir()
	exec, err := NewExecutor("local", Options{LogDir: logDir, MaxParallel: 2, Runner: fakeRunner})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	chunks := [][]grid.Coord{
		{{0, 0}, {0, 1}},
		{{1, 0}, {1, 1}},
		{{2, 0}},
	}
	var handles []JobHandle
	for _, chunk := range chunks {
		h, err := exec.Submit(chunk, landscape.EvalConfig{})
		if err != nil {
			t.Fatalf("failed to submit: %v", err)
		}
		handles = append(handles, h)
	}

	for i, h := range handles {
		results, err := h.Results()
		if err != nil {
			t.Fatalf("job %d failed: %v", i, err)
		}
		if len(results) != len(chunks[i]) {
			t.Errorf("job %d returned %d results, want %d", i, len(results), len(chunks[i]))
		}
		if h.Poll() != StatusDone {
			t.Errorf("job %d status = %s, want %s", i, h.Poll(), StatusDone)
		}
		if got := h.Progress(); got != len(chunks[i]) {
			t.Errorf("job %d progress = %d, want %d", i, got, len(chunks[i]))
		}
		if scraped := parseProgress(h.LogPath()); scraped != len(chunks[i]) {
			t.Errorf("job %d log scrape = %d, want %d", i, scraped, len(chunks[i]))
		}
	}
}

func TestLocalExecutorFailurePropagates(t *testing.T) {
	failing := func(cfg landscape.EvalConfig, coords []grid.Coord, progress landscape.ProgressFunc) ([]landscape.Result, error) {
		return nil, fmt.Errorf("model blew up")
	}
	exec, err := NewExecutor("local", Options{LogDir: t.TempDir(), Runner: failing})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	h, err := exec.Submit([]grid.Coord{{0, 0}}, landscape.EvalConfig{})
	if err != nil {
		t.Fatalf("failed to submit: %v", err)
	}
	_, err = h.Results()
	if err == nil {
		t.Fatal("expected job failure to propagate")
	}
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		t.Errorf("expected EvaluationError, got %T", err)
	} else if evalErr.Chunk != 0 {
		t.Errorf("chunk = %d, want 0", evalErr.Chunk)
	}
	if h.Poll() != StatusFailed {
		t.Errorf("status = %s, want %s", h.Poll(), StatusFailed)
	}
}

func TestRetryPolicy(t *testing.T) {
	var calls atomic.Int64
	flaky := func(cfg landscape.EvalConfig, coords []grid.Coord, progress landscape.ProgressFunc) ([]landscape.Result, error) {
		if calls.Add(1) < 3 {
			return nil, fmt.Errorf("transient failure")
		}
		return fakeRunner(cfg, coords, progress)
	}
	exec, err := NewExecutor("local", Options{
		Runner: flaky,
		Retry:  RetryPolicy{MaxRetries: 3, Backoff: time.Millisecond},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	h, err := exec.Submit([]grid.Coord{{0, 0}}, landscape.EvalConfig{})
	if err != nil {
		t.Fatalf("failed to submit: %v", err)
	}
	results, err := h.Results()
	if err != nil {
		t.Fatalf("expected retries to recover, got %v", err)
	}
	if len(results) != 1 {
		t.Errorf("expected 1 result, got %d", len(results))
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestRetryDisabledByDefault(t *testing.T) {
	var calls atomic.Int64
	failing := func(cfg landscape.EvalConfig, coords []grid.Coord, progress landscape.ProgressFunc) ([]landscape.Result, error) {
		calls.Add(1)
		return nil, fmt.Errorf("boom")
	}
	exec, err := NewExecutor("local", Options{Runner: failing})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h, err := exec.Submit([]grid.Coord{{0, 0}}, landscape.EvalConfig{})
	if err != nil {
		t.Fatalf("failed to submit: %v", err)
	}
	if _, err := h.Results(); err == nil {
		t.Fatal("expected failure")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("expected a single attempt without a retry policy, got %d", got)
	}
}

func TestDebugExecutorInline(t *testing.T) {
	exec, err := NewExecutor("debug", Options{Runner: fakeRunner})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	h, err := exec.Submit([]grid.Coord{{0, 0}, {1, 1}}, landscape.EvalConfig{})
	if err != nil {
		t.Fatalf("failed to submit: %v", err)
	}
	// The debug backend runs inside Submit, so the job is already terminal.
	if h.Poll() != StatusDone {
		t.Errorf("status = %s, want %s", h.Poll(), StatusDone)
	}
	if h.Progress() != 2 {
		t.Errorf("progress = %d, want 2", h.Progress())
	}
	results, err := h.Results()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected 2 results, got %d", len(results))
	}
}

func TestNewExecutorUnknownCluster(t *testing.T) {
	if _, err := NewExecutor("slurm-v2", Options{}); err == nil {
		t.Error("expected error for unknown cluster")
	}
}

func TestParseProgress(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
		want    int
	}{
		{"last marker wins", "1/10\n3/10\n7/10\n", 7},
		{"marker inside noise", "starting up\ndone 4/9 coords, eta soon\n", 4},
		{"no marker", "nothing to see\n", 0},
		{"empty file", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".log")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("failed to write log: %v", err)
			}
			if got := parseProgress(path); got != tt.want {
				t.Errorf("parseProgress = %d, want %d", got, tt.want)
			}
		})
	}

	t.Run("missing file", func(t *testing.T) {
		if got := parseProgress(filepath.Join(dir, "nope.log")); got != 0 {
			t.Errorf("parseProgress = %d, want 0", got)
		}
	})
}

func TestTrackProgress(t *testing.T) {
	exec, err := NewExecutor("debug", Options{Runner: fakeRunner})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var handles []JobHandle
	for _, chunk := range [][]grid.Coord{{{0, 0}, {0, 1}}, {{1, 0}}} {
		h, err := exec.Submit(chunk, landscape.EvalConfig{})
		if err != nil {
			t.Fatalf("failed to submit: %v", err)
		}
		handles = append(handles, h)
	}

	var reports []int
	TrackProgress(handles, time.Millisecond, func(done int) {
		reports = append(reports, done)
	})
	if len(reports) == 0 {
		t.Fatal("expected at least one progress report")
	}
	if last := reports[len(reports)-1]; last != 3 {
		t.Errorf("final aggregate = %d, want 3", last)
	}
	for i := 1; i < len(reports); i++ {
		if reports[i] < reports[i-1] {
			t.Errorf("aggregate progress decreased: %v", reports)
		}
	}
}

func TestGatherOrderAndCheckpointing(t *testing.T) {
	dir := t.TempDir()
	exec, err := NewExecutor("local", Options{MaxParallel: 2, Runner: fakeRunner})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	chunks := [][]grid.Coord{{{0, 0}}, {{1, 0}, {1, 1}}}
	handles := make(map[int]JobHandle, len(chunks))
	for i, chunk := range chunks {
		h, err := exec.Submit(chunk, landscape.EvalConfig{})
		if err != nil {
			t.Fatalf("failed to submit: %v", err)
		}
		handles[i] = h
	}

	gathered, err := Gather(len(chunks), handles, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(gathered) != len(chunks) {
		t.Fatalf("gathered %d chunks, want %d", len(gathered), len(chunks))
	}
	for i, results := range gathered {
		if len(results) != len(chunks[i]) {
			t.Errorf("chunk %d has %d results, want %d", i, len(results), len(chunks[i]))
		}
		for j, rec := range results {
			coord := rec["coord"]
			if coord.Data[0] != chunks[i][j][0] || coord.Data[1] != chunks[i][j][1] {
				t.Errorf("chunk %d record %d out of order: %v", i, j, coord.Data)
			}
		}
	}

	for i := range chunks {
		if !HasChunkResults(dir, i) {
			t.Errorf("chunk %d was not persisted", i)
		}
	}
}

func TestGatherResumesFromPersistedChunks(t *testing.T) {
	dir := t.TempDir()
	persisted := []landscape.Result{{"value": tensor.FromScalar(1.5)}}
	if err := SaveChunkResults(dir, 0, persisted); err != nil {
		t.Fatalf("failed to persist chunk: %v", err)
	}

	exec, err := NewExecutor("debug", Options{Runner: fakeRunner})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h, err := exec.Submit([]grid.Coord{{1, 1}}, landscape.EvalConfig{})
	if err != nil {
		t.Fatalf("failed to submit: %v", err)
	}

	gathered, err := Gather(2, map[int]JobHandle{1: h}, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := gathered[0][0]["value"].Data[0]; got != 1.5 {
		t.Errorf("persisted chunk value = %g, want 1.5", got)
	}
	if got := gathered[1][0]["value"].Data[0]; got != 2 {
		t.Errorf("live chunk value = %g, want 2", got)
	}
}

func TestGatherMissingChunk(t *testing.T) {
	if _, err := Gather(1, nil, t.TempDir()); err == nil {
		t.Error("expected error for a chunk with no job and no artifact")
	}
}

func TestProgressBarMonotonic(t *testing.T) {
	pb := NewProgressBar("eval", 10)
	pb.Update(4)
	pb.Update(2)
	if pb.Current() != 4 {
		t.Errorf("displayed count = %d, want 4", pb.Current())
	}
	pb.Finish()
	if pb.Current() != 10 {
		t.Errorf("displayed count after finish = %d, want 10", pb.Current())
	}
}
