package pipeline

import (
	"context"
	"path/filepath"
	"strings"

	"loan-predictor/internal/ml"
	"loan-predictor/internal/pyrun"
	"loan-predictor/internal/scaler"

	"github.com/rs/zerolog/log"
)

// Artifacts names what a Service is built from.
type Artifacts struct {
	Model      ml.LoaderConfig
	ScalerPath string
}

// Load reads both artifacts once and wires a Service. Any error is a
// start-up failure: *ml.ModelLoadError or *scaler.UninitializedScalerError.
func Load(ctx context.Context, a Artifacts, mlMetrics ml.MetricsInterface, metrics MetricsInterface) (*Service, *ml.Model, error) {
	t, err := loadScaler(ctx, a)
	if err != nil {
		return nil, nil, err
	}

	model, err := ml.LoadClassifier(ctx, a.Model, mlMetrics)
	if err != nil {
		return nil, nil, err
	}

	svc, err := New(t, ml.NewWithMetrics(model.Classifier, mlMetrics), metrics)
	if err != nil {
		return nil, nil, err
	}
	return svc, model, nil
}

// loadScaler picks the pickled scaler for .pkl and .joblib files and the
// exported parameter file otherwise.
func loadScaler(ctx context.Context, a Artifacts) (scaler.Transformer, error) {
	switch strings.ToLower(filepath.Ext(a.ScalerPath)) {
	case ".pkl", ".joblib":
		scriptDir := a.Model.ScriptDir
		if scriptDir == "" {
			scriptDir = filepath.Dir(a.ScalerPath)
		}
		runner, err := pyrun.New(a.Model.Python, scriptDir, a.Model.Timeout)
		if err != nil {
			return nil, &scaler.UninitializedScalerError{Reason: "python runtime unavailable", Err: err}
		}
		t, err := scaler.LoadPython(ctx, runner, a.ScalerPath)
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", a.ScalerPath).Msg("pickled scaler loaded")
		return t, nil
	default:
		return scaler.Load(a.ScalerPath)
	}
}
