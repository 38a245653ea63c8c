package ml

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"loan-predictor/internal/schema"

	"gonum.org/v1/gonum/floats"
)

// LinearArtifact is a logistic regression exported from the training
// pipeline as plain coefficients.
type LinearArtifact struct {
	Columns   []string  `json:"columns"`
	Coef      []float64 `json:"coef"`
	Intercept float64   `json:"intercept"`
	Threshold float64   `json:"threshold"`
	Positive  string    `json:"positive"`
	Negative  string    `json:"negative"`
	// Schema is the layout fingerprint the model was trained on. Empty
	// skips the check.
	Schema    string    `json:"schema,omitempty"`
}

// LinearClassifier evaluates a LinearArtifact natively.
type LinearClassifier struct {
	coef      []float64
	intercept float64
	threshold float64
	positive  string
	negative  string
}

// LoadLinearClassifier reads and validates a coefficient artifact.
func LoadLinearClassifier(path string) (*LinearClassifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ModelLoadError{Path: path, Reason: "failed to read model artifact", Err: err}
	}

	var a LinearArtifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, &ModelLoadError{Path: path, Reason: "failed to parse model artifact", Err: err}
	}

	c, err := NewLinearClassifier(a)
	if err != nil {
		if le, ok := err.(*ModelLoadError); ok {
			le.Path = path
		}
		return nil, err
	}
	return c, nil
}

// NewLinearClassifier builds a classifier after checking that the artifact
// was trained on the schema's column order.
func NewLinearClassifier(a LinearArtifact) (*LinearClassifier, error) {
	if a.Schema != "" && a.Schema != schema.Fingerprint() {
		return nil, &ModelLoadError{Reason: fmt.Sprintf("model schema %s differs from %s", a.Schema, schema.Fingerprint())}
	}
	if !sameColumns(a.Columns) {
		return nil, &ModelLoadError{Reason: fmt.Sprintf("model column order %v differs from %v", a.Columns, schema.Names())}
	}
	if len(a.Coef) != schema.Width {
		return nil, &ModelLoadError{Reason: fmt.Sprintf("model has %d coefficients, expected %d", len(a.Coef), schema.Width)}
	}

	c := &LinearClassifier{
		coef:      append([]float64(nil), a.Coef...),
		intercept: a.Intercept,
		threshold: a.Threshold,
		positive:  a.Positive,
		negative:  a.Negative,
	}
	if c.threshold <= 0 || c.threshold >= 1 {
		c.threshold = 0.5
	}
	if c.positive == "" {
		c.positive = "Y"
	}
	if c.negative == "" {
		c.negative = "N"
	}
	return c, nil
}

// Probability returns the positive-class probability for a row.
func (c *LinearClassifier) Probability(row []float64) float64 {
	return sigmoid(floats.Dot(c.coef, row) + c.intercept)
}

func (c *LinearClassifier) Classify(_ context.Context, row []float64) (string, error) {
	if len(row) != len(c.coef) {
		return "", fmt.Errorf("expected %d features, got %d", len(c.coef), len(row))
	}
	if c.Probability(row) >= c.threshold {
		return c.positive, nil
	}
	return c.negative, nil
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}
