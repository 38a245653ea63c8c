package ml

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"loan-predictor/internal/schema"

	"github.com/rs/zerolog/log"
)

// MetricsInterface defines metrics methods needed by the predictor
type MetricsInterface interface {
	MLPredictionsInc()
	MLFailuresInc()
	MLLatencyObserve(float64)
	MLDecisionInc(label string)
	MLModelAgeSet(float64)
}

// Label is the binary outcome of a prediction.
type Label int

const (
	Rejected Label = iota
	Approved
)

func (l Label) String() string {
	if l == Approved {
		return "Approved"
	}
	return "Rejected"
}

func (l Label) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

func (l *Label) UnmarshalText(b []byte) error {
	switch string(b) {
	case "Approved":
		*l = Approved
	case "Rejected":
		*l = Rejected
	default:
		return fmt.Errorf("unknown label %q", b)
	}
	return nil
}

// PredictionError is a failed inference. Expected and Got are set when the
// row width does not match the schema.
type PredictionError struct {
	Expected int
	Got      int
	Reason   string
	Err      error
}

func (e *PredictionError) Error() string {
	msg := "prediction failed"
	if e.Expected != e.Got {
		msg = fmt.Sprintf("prediction failed: row has %d values, model expects %d", e.Got, e.Expected)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PredictionError) Unwrap() error { return e.Err }

// approvalTokens are the raw model outputs that mean approval. The loan data
// set labels approvals "Y"; models trained on a numeric target emit 1.
var approvalTokens = map[string]bool{"Y": true, "1": true, "1.0": true}

// LabelFor maps a raw classifier token to a Label.
func LabelFor(token string) Label {
	if approvalTokens[strings.TrimSpace(token)] {
		return Approved
	}
	return Rejected
}

// Predictor marshals encoded rows into the classifier and maps its output.
// It holds no per-call state; concurrent use is safe when the classifier is.
type Predictor struct {
	classifier Classifier
	metrics    MetricsInterface
}

func New(c Classifier) *Predictor {
	return NewWithMetrics(c, nil)
}

func NewWithMetrics(c Classifier, metrics MetricsInterface) *Predictor {
	return &Predictor{classifier: c, metrics: metrics}
}

// Predict runs one row through the classifier. Malformed rows never reach
// it. Failures are returned, not retried.
func (p *Predictor) Predict(ctx context.Context, row []float64) (Label, error) {
	if p == nil || p.classifier == nil {
		return Rejected, &PredictionError{Reason: "no classifier loaded"}
	}

	start := time.Now()
	defer func() {
		if p.metrics != nil {
			p.metrics.MLLatencyObserve(time.Since(start).Seconds())
		}
	}()

	if err := validateRow(row); err != nil {
		p.fail()
		return Rejected, err
	}

	token, err := p.classifier.Classify(ctx, row)
	if err != nil {
		log.Error().Err(err).Floats64("row", row).Msg("classifier failed")
		p.fail()
		return Rejected, &PredictionError{Expected: schema.Width, Got: len(row), Err: err}
	}

	label := LabelFor(token)
	if p.metrics != nil {
		p.metrics.MLPredictionsInc()
		p.metrics.MLDecisionInc(label.String())
	}

	log.Debug().
		Floats64("row", row).
		Str("token", token).
		Stringer("label", label).
		Msg("prediction successful")

	return label, nil
}

func (p *Predictor) fail() {
	if p.metrics != nil {
		p.metrics.MLFailuresInc()
	}
}

func validateRow(row []float64) error {
	if len(row) != schema.Width {
		return &PredictionError{Expected: schema.Width, Got: len(row)}
	}
	for i, v := range row {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &PredictionError{
				Expected: schema.Width,
				Got:      len(row),
				Reason:   fmt.Sprintf("column %s is not finite", schema.Names()[i]),
			}
		}
	}
	return nil
}
