package scaler

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"loan-predictor/internal/schema"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const (
	KindStandard = "standard"
	KindMinMax   = "minmax"
)

// Artifact is the exported form of the offline scaler. The training script
// dumps the fitted attributes (mean_/scale_ or data_min_/data_max_) together
// with the column order it was fitted on.
type Artifact struct {
	Kind    string    `json:"kind" yaml:"kind"`
	Columns []string  `json:"columns,omitempty" yaml:"columns,omitempty"`
	Mean    []float64 `json:"mean,omitempty" yaml:"mean,omitempty"`
	Scale   []float64 `json:"scale,omitempty" yaml:"scale,omitempty"`
	Min     []float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max     []float64 `json:"max,omitempty" yaml:"max,omitempty"`
}

// Load reads a scaler artifact. The format follows the file extension:
// .yaml/.yml is YAML, anything else JSON.
func Load(path string) (Transformer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &UninitializedScalerError{Reason: "failed to read scaler artifact " + path, Err: err}
	}

	var a Artifact
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &a)
	default:
		err = json.Unmarshal(data, &a)
	}
	if err != nil {
		return nil, &UninitializedScalerError{Reason: "failed to parse scaler artifact " + path, Err: err}
	}

	t, err := a.Transformer()
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("scaler_path", path).
		Str("kind", a.Kind).
		Strs("columns", schema.ContinuousNames()).
		Msg("scaler artifact loaded")
	return t, nil
}

// Transformer validates the artifact against the schema and builds the
// matching scaler.
func (a Artifact) Transformer() (Transformer, error) {
	if len(a.Columns) > 0 {
		want := schema.ContinuousNames()
		if !equalStrings(a.Columns, want) {
			return nil, &UninitializedScalerError{
				Reason: fmt.Sprintf("scaler fitted on columns %v, model expects %v", a.Columns, want),
			}
		}
	}

	switch strings.ToLower(a.Kind) {
	case KindStandard, "":
		if err := checkWidth("mean", a.Mean); err != nil {
			return nil, err
		}
		if err := checkWidth("scale", a.Scale); err != nil {
			return nil, err
		}
		return &Standard{Mean: a.Mean, Scale: a.Scale}, nil
	case KindMinMax:
		if err := checkWidth("min", a.Min); err != nil {
			return nil, err
		}
		if err := checkWidth("max", a.Max); err != nil {
			return nil, err
		}
		return &MinMax{Min: a.Min, Max: a.Max}, nil
	default:
		return nil, &UninitializedScalerError{Reason: fmt.Sprintf("unknown scaler kind %q", a.Kind)}
	}
}

func checkWidth(name string, v []float64) error {
	if len(v) != schema.ContinuousWidth {
		return &UninitializedScalerError{
			Reason: fmt.Sprintf("%s has %d values, expected %d", name, len(v), schema.ContinuousWidth),
		}
	}
	return nil
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
