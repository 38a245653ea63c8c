package scaler

import (
	"context"
	"fmt"

	"loan-predictor/internal/pyrun"
	"loan-predictor/internal/schema"
)

// Python delegates to a pickled scaler through the inference script, for
// deployments that ship scaler.pkl rather than exported parameters.
type Python struct {
	runner *pyrun.Runner
	path   string
}

type transformRequest struct {
	Op     string    `json:"op"`
	Values []float64 `json:"values"`
}

type transformResponse struct {
	Values []float64 `json:"values"`
}

type describeResponse struct {
	NFeatures int `json:"n_features"`
}

// LoadPython checks that the pickled scaler loads and was fitted on the
// continuous column count.
func LoadPython(ctx context.Context, runner *pyrun.Runner, path string) (*Python, error) {
	var desc describeResponse
	if err := runner.Call(ctx, path, map[string]string{"op": "describe"}, &desc); err != nil {
		return nil, &UninitializedScalerError{Reason: "scaler artifact did not load", Err: err}
	}
	if desc.NFeatures != 0 && desc.NFeatures != schema.ContinuousWidth {
		return nil, &UninitializedScalerError{
			Reason: fmt.Sprintf("scaler fitted on %d columns, expected %d", desc.NFeatures, schema.ContinuousWidth),
		}
	}
	return &Python{runner: runner, path: path}, nil
}

func (p *Python) Transform(x []float64) ([]float64, error) {
	return p.TransformContext(context.Background(), x)
}

// TransformContext runs the transform in the interpreter. The run ends at
// the runner timeout or when ctx is done, whichever comes first.
func (p *Python) TransformContext(ctx context.Context, x []float64) ([]float64, error) {
	if p == nil || p.runner == nil {
		return nil, &UninitializedScalerError{Reason: "python scaler not loaded"}
	}
	var resp transformResponse
	if err := p.runner.Call(ctx, p.path, transformRequest{Op: "transform", Values: x}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Values) != len(x) {
		return nil, fmt.Errorf("scaler returned %d values for %d inputs", len(resp.Values), len(x))
	}
	return resp.Values, nil
}
