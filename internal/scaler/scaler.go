// Package scaler applies the numeric transform that was fitted offline on the
// continuous training columns. Parameters are loaded, never refitted.
package scaler

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Transformer is the capability the pipeline needs from a fitted scaler.
type Transformer interface {
	Transform(x []float64) ([]float64, error)
}

// UninitializedScalerError reports a scaler without usable parameters.
type UninitializedScalerError struct {
	Reason string
	Err    error
}

func (e *UninitializedScalerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("scaler not initialized: %s: %v", e.Reason, e.Err)
	}
	return "scaler not initialized: " + e.Reason
}

func (e *UninitializedScalerError) Unwrap() error { return e.Err }

// Standard is a fitted standardization: (x - mean) / scale.
//
// A zero scale is treated as 1, so a constant training column is only
// centred. This mirrors how the offline scaler stores zero-variance columns
// and keeps the transform total.
type Standard struct {
	Mean  []float64
	Scale []float64
}

func (s *Standard) Transform(x []float64) ([]float64, error) {
	if s == nil || len(s.Mean) == 0 || len(s.Scale) == 0 {
		return nil, &UninitializedScalerError{Reason: "standard scaler has no mean or scale"}
	}
	if len(s.Mean) != len(s.Scale) {
		return nil, &UninitializedScalerError{Reason: fmt.Sprintf("mean has %d values, scale has %d", len(s.Mean), len(s.Scale))}
	}
	if len(x) != len(s.Mean) {
		return nil, fmt.Errorf("scaler expects %d values, got %d", len(s.Mean), len(x))
	}

	out := make([]float64, len(x))
	copy(out, x)
	floats.Sub(out, s.Mean)
	floats.Div(out, nonZero(s.Scale))
	return out, nil
}

// MinMax is a fitted min-max normalization: (x - min) / (max - min).
// A zero range is treated as 1, like Standard.
type MinMax struct {
	Min []float64
	Max []float64
}

func (m *MinMax) Transform(x []float64) ([]float64, error) {
	if m == nil || len(m.Min) == 0 || len(m.Max) == 0 {
		return nil, &UninitializedScalerError{Reason: "min-max scaler has no min or max"}
	}
	if len(m.Min) != len(m.Max) {
		return nil, &UninitializedScalerError{Reason: fmt.Sprintf("min has %d values, max has %d", len(m.Min), len(m.Max))}
	}
	if len(x) != len(m.Min) {
		return nil, fmt.Errorf("scaler expects %d values, got %d", len(m.Min), len(x))
	}

	span := make([]float64, len(m.Max))
	floats.SubTo(span, m.Max, m.Min)

	out := make([]float64, len(x))
	floats.SubTo(out, x, m.Min)
	floats.Div(out, nonZero(span))
	return out, nil
}

// ContextTransformer is a Transformer whose work can be cancelled, such as
// one backed by a subprocess.
type ContextTransformer interface {
	TransformContext(ctx context.Context, x []float64) ([]float64, error)
}

// Apply runs t over x, failing cleanly when no scaler was loaded.
func Apply(t Transformer, x []float64) ([]float64, error) {
	return ApplyContext(context.Background(), t, x)
}

// ApplyContext is Apply bound to ctx when t supports cancellation.
func ApplyContext(ctx context.Context, t Transformer, x []float64) ([]float64, error) {
	if t == nil {
		return nil, &UninitializedScalerError{Reason: "no scaler loaded"}
	}
	if ct, ok := t.(ContextTransformer); ok {
		return ct.TransformContext(ctx, x)
	}
	return t.Transform(x)
}

func nonZero(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, s := range v {
		if s == 0 {
			out[i] = 1
			continue
		}
		out[i] = s
	}
	return out
}
