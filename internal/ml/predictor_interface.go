// Package ml wraps the offline-trained loan approval classifier behind a
// single predict operation. The classifier itself is opaque: a pickled
// scikit-learn model run through Python, an exported linear model evaluated
// natively, a remote model server, or a credit-history rule.
//
// Every implementation is swappable behind Classifier without touching the
// encoder or the scaler.
package ml

import "context"

// Classifier is the capability of a trained model: it takes one encoded row
// in training column order and returns the model's raw output token
// ("Y"/"N" for the loan data set).
type Classifier interface {
	Classify(ctx context.Context, row []float64) (string, error)
}

// PredictorInterface is what the pipeline needs from the prediction step.
type PredictorInterface interface {
	Predict(ctx context.Context, row []float64) (Label, error)
}
