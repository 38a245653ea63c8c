package ml

import (
	"context"

	"loan-predictor/internal/schema"
)

// CreditRuleClassifier approves exactly the applicants with a credit history.
// On the loan data set this single column carries most of the signal, which
// makes it the usual baseline. It is only used when configured explicitly.
type CreditRuleClassifier struct{}

func (CreditRuleClassifier) Classify(_ context.Context, row []float64) (string, error) {
	i := schema.Index(schema.CreditHistory)
	if i < len(row) && row[i] == 1 {
		return "Y", nil
	}
	return "N", nil
}
