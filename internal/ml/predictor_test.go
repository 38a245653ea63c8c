package ml

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"loan-predictor/internal/schema"
)

func row(credit float64) []float64 {
	return []float64{1, 1, 0, 1, 0, credit, 2, 0.1, -0.4, 0.2, 0.3}
}

func TestLabelFor(t *testing.T) {
	testCases := []struct {
		token string
		want  Label
	}{
		{"Y", Approved},
		{" Y ", Approved},
		{"1", Approved},
		{"1.0", Approved},
		{"N", Rejected},
		{"y", Rejected},
		{"0", Rejected},
		{"", Rejected},
	}

	for _, tc := range testCases {
		t.Run(tc.token, func(t *testing.T) {
			if got := LabelFor(tc.token); got != tc.want {
				t.Errorf("LabelFor(%q) = %v, want %v", tc.token, got, tc.want)
			}
		})
	}
}

func TestLabel_Text(t *testing.T) {
	b, _ := Approved.MarshalText()
	if string(b) != "Approved" {
		t.Errorf("expected Approved, got %s", b)
	}
	if Rejected.String() != "Rejected" {
		t.Errorf("expected Rejected, got %s", Rejected)
	}

	var l Label
	if err := l.UnmarshalText([]byte("Approved")); err != nil || l != Approved {
		t.Errorf("expected Approved, got %v (%v)", l, err)
	}
	if err := l.UnmarshalText([]byte("Maybe")); err == nil {
		t.Error("expected error for unknown label")
	}
}

func TestPredictor_MapsToken(t *testing.T) {
	metrics := &MockMetrics{}
	stub := &StubClassifier{Token: "Y"}
	p := NewWithMetrics(stub, metrics)

	label, err := p.Predict(context.Background(), row(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if label != Approved {
		t.Errorf("expected Approved, got %v", label)
	}

	stub.Token = "N"
	label, err = p.Predict(context.Background(), row(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if label != Rejected {
		t.Errorf("expected Rejected, got %v", label)
	}

	if metrics.predictions != 2 {
		t.Errorf("expected 2 predictions tracked, got %d", metrics.predictions)
	}
	if metrics.decisions["Approved"] != 1 || metrics.decisions["Rejected"] != 1 {
		t.Errorf("unexpected decision counts: %v", metrics.decisions)
	}
	if metrics.latencyObs != 2 {
		t.Errorf("expected 2 latency observations, got %d", metrics.latencyObs)
	}
}

func TestPredictor_RowWidthMismatch(t *testing.T) {
	testCases := []struct {
		name string
		row  []float64
	}{
		{"nil row", nil},
		{"short row", []float64{1, 0, 1}},
		{"long row", append(row(1), 0)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			metrics := &MockMetrics{}
			stub := &StubClassifier{Token: "Y"}
			p := NewWithMetrics(stub, metrics)

			_, err := p.Predict(context.Background(), tc.row)
			var pe *PredictionError
			if !errors.As(err, &pe) {
				t.Fatalf("expected PredictionError, got %v", err)
			}
			if pe.Expected != schema.Width || pe.Got != len(tc.row) {
				t.Errorf("expected width %d/%d, got %d/%d", schema.Width, len(tc.row), pe.Expected, pe.Got)
			}
			if stub.Calls != 0 {
				t.Error("classifier must not see malformed rows")
			}
			if metrics.failures != 1 {
				t.Errorf("expected 1 failure tracked, got %d", metrics.failures)
			}
		})
	}
}

func TestPredictor_NonFiniteRow(t *testing.T) {
	stub := &StubClassifier{Token: "Y"}
	p := New(stub)

	r := row(1)
	r[8] = math.NaN()
	_, err := p.Predict(context.Background(), r)
	var pe *PredictionError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PredictionError, got %v", err)
	}
	if stub.Calls != 0 {
		t.Error("classifier must not see non-finite rows")
	}
}

func TestPredictor_ClassifierFailure(t *testing.T) {
	cause := errors.New("boom")
	stub := &StubClassifier{Err: cause}
	metrics := &MockMetrics{}
	p := NewWithMetrics(stub, metrics)

	_, err := p.Predict(context.Background(), row(1))
	var pe *PredictionError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PredictionError, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Error("expected cause to be wrapped")
	}
	if stub.Calls != 1 {
		t.Errorf("expected exactly one attempt, got %d", stub.Calls)
	}
	if metrics.failures != 1 || metrics.predictions != 0 {
		t.Errorf("unexpected metrics: failures=%d predictions=%d", metrics.failures, metrics.predictions)
	}
}

func TestPredictor_NilSafety(t *testing.T) {
	var p *Predictor
	if _, err := p.Predict(context.Background(), row(1)); err == nil {
		t.Error("expected error for nil predictor")
	}
	if _, err := New(nil).Predict(context.Background(), row(1)); err == nil {
		t.Error("expected error for predictor without classifier")
	}
}

func TestPredictor_Concurrency(t *testing.T) {
	metrics := &MockMetrics{}
	p := NewWithMetrics(CreditRuleClassifier{}, metrics)

	numGoroutines := 10
	numCalls := 100
	var wg sync.WaitGroup
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < numCalls; j++ {
				if _, err := p.Predict(context.Background(), row(1)); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	if metrics.predictions != numGoroutines*numCalls {
		t.Errorf("expected %d predictions, got %d", numGoroutines*numCalls, metrics.predictions)
	}
}

func TestCreditRuleClassifier(t *testing.T) {
	c := CreditRuleClassifier{}
	if tok, _ := c.Classify(context.Background(), row(1)); tok != "Y" {
		t.Errorf("expected Y for credit history 1, got %s", tok)
	}
	if tok, _ := c.Classify(context.Background(), row(0)); tok != "N" {
		t.Errorf("expected N for credit history 0, got %s", tok)
	}
	if tok, _ := c.Classify(context.Background(), nil); tok != "N" {
		t.Errorf("expected N for empty row, got %s", tok)
	}
}
