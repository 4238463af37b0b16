// Command landscape evaluates loss and probing metrics of a self-distilled
// model over a two-dimensional slice through its parameter space.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tsawler/go-landscape/grid"
	"github.com/tsawler/go-landscape/jobs"
	"github.com/tsawler/go-landscape/landscape"
	"github.com/tsawler/go-landscape/model"
	"github.com/tsawler/go-landscape/projector"
)

// ResultsRootEnv locates the output tree; runs are written beneath it.
const ResultsRootEnv = "LANDSCAPE_RESULTS"

// invocationArgs is what gets persisted as args.json next to the results.
type invocationArgs struct {
	Vec0 string `json:"vec0"`
	Vec1 string `json:"vec1"`
	Vec2 string `json:"vec2"`

	ProjectorCenter string `json:"projector_center"`
	ProjectorScale  string `json:"projector_scale"`

	Loss     string  `json:"loss"`
	Reduce   string  `json:"reduce"`
	XMin     float64 `json:"xmin"`
	XMax     float64 `json:"xmax"`
	YMin     float64 `json:"ymin"`
	YMax     float64 `json:"ymax"`
	Stepsize float64 `json:"stepsize"`

	Batchsize     int   `json:"batchsize"`
	ProbingEpochs int   `json:"probing_epochs"`
	ProbingK      int   `json:"probing_k"`
	ProberSeed    int64 `json:"prober_seed"`

	Runname      string `json:"runname"`
	NumJobs      int    `json:"num_jobs"`
	NumWorkers   int    `json:"num_workers"`
	MemPerCPU    int    `json:"mem_per_cpu"`
	Time         string `json:"time"`
	GPUs         int    `json:"gpus"`
	Cluster      string `json:"cluster"`
	ForceCPU     bool   `json:"force_cpu"`
	MaxRetries   int    `json:"max_retries"`
	RetryBackoff string `json:"retry_backoff"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var args invocationArgs
	flag.StringVar(&args.ProjectorCenter, "projector_center", "minnorm", "projector centering: '', mean or minnorm")
	flag.StringVar(&args.ProjectorScale, "projector_scale", "l2_ortho", "projector scaling: '', l2_ortho or rms_ortho")
	flag.StringVar(&args.Loss, "loss", "", "single loss to record (MSE or CE); empty records all")
	flag.StringVar(&args.Reduce, "reduce", string(grid.ReduceStacked), "result reduction: stacked or indexed")
	flag.Float64Var(&args.XMin, "xmin", -1, "grid x minimum")
	flag.Float64Var(&args.XMax, "xmax", 1, "grid x maximum")
	flag.Float64Var(&args.YMin, "ymin", -1, "grid y minimum")
	flag.Float64Var(&args.YMax, "ymax", 1, "grid y maximum")
	flag.Float64Var(&args.Stepsize, "stepsize", 0.1, "grid step size")
	flag.IntVar(&args.Batchsize, "batchsize", 512, "evaluation batch size")
	flag.IntVar(&args.ProbingEpochs, "probing_epochs", 10, "linear probe epochs, 0 disables")
	flag.IntVar(&args.ProbingK, "probing_k", 20, "kNN probe neighbors, 0 disables")
	flag.Int64Var(&args.ProberSeed, "prober_seed", 1234567890, "prober seed")
	flag.StringVar(&args.Runname, "runname", time.Now().Format("2006-01-02--15-04"), "run directory name")
	flag.IntVar(&args.NumJobs, "num_jobs", 1, "number of chunks/jobs")
	flag.IntVar(&args.NumWorkers, "num_workers", 4, "CPUs per job")
	flag.IntVar(&args.MemPerCPU, "mem_per_cpu", 4096, "memory per CPU in MB")
	flag.StringVar(&args.Time, "time", "04:00:00", "wall-clock limit per job")
	flag.IntVar(&args.GPUs, "gpus", 1, "accelerators per job")
	flag.StringVar(&args.Cluster, "cluster", "", "execution backend: local or debug; empty means local")
	flag.BoolVar(&args.ForceCPU, "force_cpu", false, "evaluate on CPU even when an accelerator is available")
	flag.IntVar(&args.MaxRetries, "max_retries", 0, "extra attempts per failed job")
	flag.StringVar(&args.RetryBackoff, "retry_backoff", "10s", "delay between job attempts")
	flag.Parse()

	if flag.NArg() != 3 {
		return fmt.Errorf("expected positional arguments: vec0 vec1 vec2")
	}
	args.Vec0, args.Vec1, args.Vec2 = flag.Arg(0), flag.Arg(1), flag.Arg(2)

	backoff, err := time.ParseDuration(args.RetryBackoff)
	if err != nil {
		return fmt.Errorf("invalid retry_backoff: %v", err)
	}

	resultsRoot := os.Getenv(ResultsRootEnv)
	if resultsRoot == "" {
		return fmt.Errorf("%s is not set", ResultsRootEnv)
	}
	runDir := filepath.Join(resultsRoot, "landscape", args.Runname)
	logDir := filepath.Join(runDir, "logs")
	chunkDir := filepath.Join(runDir, "chunks")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return fmt.Errorf("failed to create run dir: %v", err)
	}

	if err := saveArgs(args, runDir, resultsRoot); err != nil {
		return err
	}

	plan, err := grid.Build(args.XMin, args.XMax, args.YMin, args.YMax, args.Stepsize, args.NumJobs)
	if err != nil {
		return err
	}
	fmt.Printf("Evaluating %d coordinates in %d jobs of size ~%d..\n",
		plan.NumCoords(), len(plan.Chunks), len(plan.Chunks[0]))

	ledger, err := jobs.OpenLedger(filepath.Join(runDir, "jobs.db"))
	if err != nil {
		return err
	}
	defer ledger.Close()

	exec, err := jobs.NewExecutor(args.Cluster, jobs.Options{
		LogDir:      logDir,
		MaxParallel: args.NumJobs,
		Resources: jobs.Resources{
			CPUsPerTask: args.NumWorkers,
			MemPerCPU:   args.MemPerCPU,
			Time:        args.Time,
			GPUs:        args.GPUs,
		},
		Retry:  jobs.RetryPolicy{MaxRetries: args.MaxRetries, Backoff: backoff},
		Ledger: ledger,
	})
	if err != nil {
		return err
	}

	evalCfg := landscape.EvalConfig{
		Vec0:          args.Vec0,
		Vec1:          args.Vec1,
		Vec2:          args.Vec2,
		Center:        projector.CenterPolicy(args.ProjectorCenter),
		Scale:         projector.ScalePolicy(args.ProjectorScale),
		Batchsize:     args.Batchsize,
		ProbingEpochs: args.ProbingEpochs,
		ProbingK:      args.ProbingK,
		ProberSeed:    args.ProberSeed,
		Loss:          landscape.LossMode(args.Loss),
		NumWorkers:    args.NumWorkers,
		ForceCPU:      args.ForceCPU,
	}
	if err := evalCfg.Validate(); err != nil {
		return err
	}

	// Chunks persisted by an earlier interrupted run are not resubmitted.
	handles := make(map[int]jobs.JobHandle, len(plan.Chunks))
	var live []jobs.JobHandle
	pending := 0
	for idx, chunk := range plan.Chunks {
		if jobs.HasChunkResults(chunkDir, idx) {
			fmt.Printf("Chunk %d already evaluated, skipping submission\n", idx)
			continue
		}
		h, err := exec.Submit(chunk, evalCfg)
		if err != nil {
			return err
		}
		handles[idx] = h
		live = append(live, h)
		pending += len(chunk)
	}

	if len(live) > 0 {
		base := plan.NumCoords() - pending
		bar := jobs.NewProgressBar("Evaluating", plan.NumCoords())
		jobs.TrackProgress(live, time.Second, func(done int) {
			bar.Update(base + done)
		})
		bar.Finish()
	}

	gathered, err := jobs.Gather(len(plan.Chunks), handles, chunkDir)
	if err != nil {
		return err
	}

	lenX, lenY := plan.Shape()
	results, err := grid.Reduce(grid.ReduceMode(args.Reduce), gathered, lenX, lenY)
	if err != nil {
		return err
	}

	paths, err := grid.SaveResults(results, runDir)
	if err != nil {
		return err
	}
	for key, path := range paths {
		fmt.Printf("Saving %s of shape %v\n", path, results[key].Shape)
	}
	return nil
}

// saveArgs writes args.json into the run directory, with checkpoint paths
// stored relative to the results root for portability.
func saveArgs(args invocationArgs, runDir, resultsRoot string) error {
	args.Vec0 = relIdentifier(args.Vec0, resultsRoot)
	args.Vec1 = relIdentifier(args.Vec1, resultsRoot)
	args.Vec2 = relIdentifier(args.Vec2, resultsRoot)

	data, err := json.MarshalIndent(args, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode args: %v", err)
	}
	if err := os.WriteFile(filepath.Join(runDir, "args.json"), data, 0o644); err != nil {
		return fmt.Errorf("failed to write args.json: %v", err)
	}
	return nil
}

// relIdentifier rewrites a checkpoint identifier's path part relative to
// root. Identifiers that cannot be parsed or relativized stay unchanged.
func relIdentifier(identifier, root string) string {
	id, err := model.ParseIdentifier(identifier)
	if err != nil {
		return identifier
	}
	rel, err := filepath.Rel(root, id.Path)
	if err != nil {
		return identifier
	}
	out := rel + ":" + string(id.Role)
	if id.Init {
		out += ".init"
	}
	return out
}
