package ml

import (
	"context"
	"fmt"

	"loan-predictor/internal/pyrun"
	"loan-predictor/internal/schema"

	"github.com/rs/zerolog/log"
)

// PythonClassifier runs a pickled scikit-learn model through the embedded
// inference script.
type PythonClassifier struct {
	runner    *pyrun.Runner
	modelPath string
}

type pythonPredictRequest struct {
	Op  string    `json:"op"`
	Row []float64 `json:"row"`
}

type pythonPredictResponse struct {
	Label string `json:"label"`
}

type pythonDescribeResponse struct {
	NFeatures int      `json:"n_features"`
	Features  []string `json:"features"`
}

// NewPythonClassifier checks that the artifact loads and accepts the schema
// width before returning.
func NewPythonClassifier(ctx context.Context, runner *pyrun.Runner, modelPath string) (*PythonClassifier, error) {
	c := &PythonClassifier{runner: runner, modelPath: modelPath}

	var desc pythonDescribeResponse
	if err := runner.Call(ctx, modelPath, map[string]string{"op": "describe"}, &desc); err != nil {
		return nil, &ModelLoadError{Path: modelPath, Reason: "model artifact did not load", Err: err}
	}
	if desc.NFeatures != 0 && desc.NFeatures != schema.Width {
		return nil, &ModelLoadError{
			Path:   modelPath,
			Reason: fmt.Sprintf("model was trained on %d columns, encoder produces %d", desc.NFeatures, schema.Width),
		}
	}
	if len(desc.Features) > 0 && !sameColumns(desc.Features) {
		return nil, &ModelLoadError{
			Path:   modelPath,
			Reason: fmt.Sprintf("model column order %v differs from %v", desc.Features, schema.Names()),
		}
	}

	log.Info().
		Str("model_path", modelPath).
		Str("python_path", runner.Python()).
		Int("n_features", desc.NFeatures).
		Msg("python model loaded")
	return c, nil
}

func (c *PythonClassifier) Classify(ctx context.Context, row []float64) (string, error) {
	var resp pythonPredictResponse
	if err := c.runner.Call(ctx, c.modelPath, pythonPredictRequest{Op: "predict", Row: row}, &resp); err != nil {
		return "", err
	}
	if resp.Label == "" {
		return "", fmt.Errorf("model returned an empty label")
	}
	return resp.Label, nil
}

func sameColumns(names []string) bool {
	want := schema.Names()
	if len(names) != len(want) {
		return false
	}
	for i := range names {
		if names[i] != want[i] {
			return false
		}
	}
	return true
}
