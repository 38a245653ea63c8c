// Package pipeline runs one applicant through encoder, scaler and predictor.
// A Service is built once at start-up from read-only artifacts and holds no
// per-request state, so one instance serves concurrent callers.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"loan-predictor/internal/encoder"
	"loan-predictor/internal/ml"
	"loan-predictor/internal/scaler"
	"loan-predictor/internal/schema"

	"github.com/rs/zerolog/log"
)

// MetricsInterface defines metrics methods needed by the service
type MetricsInterface interface {
	DomainErrorInc(field string)
	RequestLatencyObserve(float64)
}

// Result is a prediction together with the inputs it was made from. The
// record is echoed for the presentation layer.
type Result struct {
	Label    ml.Label                `json:"label"`
	Approved bool                    `json:"approved"`
	Row      []float64               `json:"row"`
	Record   encoder.ApplicantRecord `json:"record"`
}

type Service struct {
	scaler    scaler.Transformer
	predictor ml.PredictorInterface
	metrics   MetricsInterface
}

// New wires a service. Both artifacts must already be loaded.
func New(t scaler.Transformer, p ml.PredictorInterface, metrics MetricsInterface) (*Service, error) {
	if t == nil {
		return nil, &scaler.UninitializedScalerError{Reason: "no scaler loaded"}
	}
	if p == nil {
		return nil, &ml.ModelLoadError{Reason: "no predictor loaded"}
	}
	return &Service{scaler: t, predictor: p, metrics: metrics}, nil
}

// Row encodes and scales a record into the model's input row without
// predicting.
func (s *Service) Row(rec encoder.ApplicantRecord) ([]float64, error) {
	return s.row(context.Background(), rec)
}

func (s *Service) row(ctx context.Context, rec encoder.ApplicantRecord) ([]float64, error) {
	partial, err := encoder.Encode(rec)
	if err != nil {
		s.recordDomainErrors(err)
		return nil, err
	}

	scaled, err := scaler.ApplyContext(ctx, s.scaler, partial.Continuous[:])
	if err != nil {
		return nil, &ml.PredictionError{Reason: "scaling failed", Err: err}
	}
	if len(scaled) != schema.ContinuousWidth {
		return nil, &ml.PredictionError{
			Reason: fmt.Sprintf("scaler returned %d values, expected %d", len(scaled), schema.ContinuousWidth),
		}
	}

	return partial.Row(scaled), nil
}

// Predict runs the full pipeline. Field errors come back as
// schema.FieldErrors and never reach the predictor.
func (s *Service) Predict(ctx context.Context, rec encoder.ApplicantRecord) (Result, error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RequestLatencyObserve(time.Since(start).Seconds())
		}
	}()

	row, err := s.row(ctx, rec)
	if err != nil {
		return Result{}, err
	}

	label, err := s.predictor.Predict(ctx, row)
	if err != nil {
		return Result{}, err
	}

	return Result{Label: label, Approved: label == ml.Approved, Row: row, Record: rec}, nil
}

// PredictForm parses untyped form values and predicts.
func (s *Service) PredictForm(ctx context.Context, form map[string]string) (Result, error) {
	rec, err := encoder.FromForm(form)
	if err != nil {
		s.recordDomainErrors(err)
		return Result{}, err
	}
	return s.Predict(ctx, rec)
}

func (s *Service) recordDomainErrors(err error) {
	var fe schema.FieldErrors
	if !errors.As(err, &fe) {
		return
	}
	log.Debug().Strs("fields", fe.Fields()).Msg("applicant rejected at validation")
	if s.metrics == nil {
		return
	}
	for _, f := range fe.Fields() {
		s.metrics.DomainErrorInc(f)
	}
}
