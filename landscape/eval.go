package landscape

import (
	"fmt"
	"os"

	"github.com/tsawler/go-landscape/dataset"
	"github.com/tsawler/go-landscape/grid"
	"github.com/tsawler/go-landscape/model"
	"github.com/tsawler/go-landscape/probe"
	"github.com/tsawler/go-landscape/projector"
	"github.com/tsawler/go-landscape/tensor"
)

// Device identifies where a chunk evaluation runs.
type Device string

const DeviceCPU Device = "cpu"

// ResolveDevice picks an evaluation device. Accelerator backends are not
// compiled in, so the answer is the CPU either way; the force flag is kept
// on the config surface so callers can pin it explicitly.
func ResolveDevice(forceCPU bool) Device {
	return DeviceCPU
}

// EvalChunk evaluates every coordinate of one chunk in order and returns one
// result record per coordinate. Models, projector, loaders and prober are
// built once per chunk; coordinates share one mutable student and are
// evaluated strictly sequentially. Any failure fails the whole chunk.
func EvalChunk(cfg EvalConfig, coords []grid.Coord, progress ProgressFunc) ([]Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	fmt.Printf("Evaluating on %s\n", ResolveDevice(cfg.ForceCPU))

	id0, err := model.ParseIdentifier(cfg.Vec0)
	if err != nil {
		return nil, err
	}
	mcfg, err := model.ConfigFromJSON(model.ConfigPathFor(id0.Path))
	if err != nil {
		return nil, err
	}

	teacher, err := model.LoadModel(cfg.Vec0, mcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %v", cfg.Vec0, err)
	}
	model1, err := model.LoadModel(cfg.Vec1, mcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %v", cfg.Vec1, err)
	}
	model2, err := model.LoadModel(cfg.Vec2, mcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %v", cfg.Vec2, err)
	}

	proj, err := projector.New(teacher.ParamVector(), model1.ParamVector(), model2.ParamVector(), cfg.Center, cfg.Scale)
	if err != nil {
		return nil, err
	}

	origin, err := proj.Map(tensor.FromVec([]float64{0, 0}), true)
	if err != nil {
		return nil, err
	}
	fmt.Printf("Norm of origin is %.3f\n", origin.Norm(2))
	fmt.Printf("Norm of %s is %.3f\n", cfg.Vec0, teacher.ParamVector().Norm(2))
	fmt.Printf("Norm of %s is %.3f\n", cfg.Vec1, model1.ParamVector().Norm(2))
	fmt.Printf("Norm of %s is %.3f\n", cfg.Vec2, model2.ParamVector().Norm(2))

	root := os.Getenv(dataset.DataRootEnv)
	trainDS, err := dataset.Load(root, mcfg.Dataset, "train")
	if err != nil {
		return nil, err
	}
	validDS, err := dataset.Load(root, mcfg.Dataset, "valid")
	if err != nil {
		return nil, err
	}
	trainDL, err := dataset.NewDataLoader(trainDS, cfg.Batchsize, false, cfg.NumWorkers)
	if err != nil {
		return nil, err
	}
	validDL, err := dataset.NewDataLoader(validDS, cfg.Batchsize, false, cfg.NumWorkers)
	if err != nil {
		return nil, err
	}

	prober := probe.NewProber(cfg.ProbingEpochs, cfg.ProbingK, mcfg.Classes, cfg.ProberSeed)
	student := model.NewStudent(teacher)

	results := make([]Result, 0, len(coords))
	for i, coord := range coords {
		vec, err := proj.Map(tensor.FromVec([]float64{coord[0], coord[1]}), true)
		if err != nil {
			return nil, fmt.Errorf("failed to map coordinate (%g, %g): %v", coord[0], coord[1], err)
		}
		if err := student.LoadVector(vec); err != nil {
			return nil, err
		}

		rec, err := evalStudent(student, teacher, prober, trainDL, validDL, cfg.Loss)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate coordinate (%g, %g): %v", coord[0], coord[1], err)
		}
		rec["coord"] = tensor.FromVec([]float64{coord[0], coord[1]})
		rec["l2norm"] = tensor.FromScalar(vec.Norm(2))
		results = append(results, rec)

		if progress != nil {
			progress(i+1, len(coords))
		}
	}
	return results, nil
}

// evalStudent runs full train and validation passes for the current student
// parameters and probes the collected embeddings, raw and normalized.
func evalStudent(student *model.StudentHandle, teacher *model.Model, prober *probe.Prober, trainDL, validDL *dataset.DataLoader, mode LossMode) (Result, error) {
	out := make(Result)

	trainData, err := evalSplit(student, teacher, trainDL, mode, out, "train")
	if err != nil {
		return nil, err
	}
	validData, err := evalSplit(student, teacher, validDL, mode, out, "valid")
	if err != nil {
		return nil, err
	}

	metrics, err := prober.EvalProbe(trainData, validData)
	if err != nil {
		return nil, err
	}
	for key, val := range metrics {
		out["probe/"+key] = tensor.FromScalar(val)
	}

	probe.NormalizeData(trainData, validData)
	metrics, err = prober.EvalProbe(trainData, validData)
	if err != nil {
		return nil, err
	}
	for key, val := range metrics {
		out["probe/norm/"+key] = tensor.FromScalar(val)
	}
	return out, nil
}

// evalSplit makes one full pass over the loader, recording averaged losses
// into out under "<split>/<name>" keys and collecting probe samples.
func evalSplit(student *model.StudentHandle, teacher *model.Model, dl *dataset.DataLoader, mode LossMode, out Result, split string) ([]probe.Sample, error) {
	dl.Reset()
	acc := newLossAccumulator(mode)
	var data []probe.Sample

	for dl.HasNext() {
		batch, err := dl.Next()
		if err != nil {
			return nil, err
		}
		if batch == nil {
			break
		}

		teacherOut, err := teacher.Forward(batch.Inputs)
		if err != nil {
			return nil, err
		}
		studentOut, err := student.Forward(batch.Inputs)
		if err != nil {
			return nil, err
		}
		if err := acc.Update(studentOut.Logits, teacherOut.Logits); err != nil {
			return nil, err
		}

		embedDim := studentOut.Embeddings.Shape[1]
		for i, label := range batch.Labels {
			row := studentOut.Embeddings.Data[i*embedDim : (i+1)*embedDim]
			data = append(data, probe.Sample{Embedding: row, Label: label})
		}
	}

	averages, err := acc.Averages()
	if err != nil {
		return nil, fmt.Errorf("%s split: %v", split, err)
	}
	for name, val := range averages {
		out[split+"/"+name] = tensor.FromScalar(val)
	}
	return data, nil
}
