package encoder

import (
	"net/url"
	"strconv"
	"strings"

	"loan-predictor/internal/schema"
)

// FromForm builds a record from untyped form values keyed by column name.
// Missing and unparsable fields are reported together as schema.FieldErrors;
// domain checks are left to Encode.
func FromForm(values map[string]string) (ApplicantRecord, error) {
	var (
		rec  ApplicantRecord
		errs schema.FieldErrors
	)

	for _, col := range schema.Columns() {
		raw, ok := values[col.Name]
		raw = strings.TrimSpace(raw)
		if !ok || raw == "" {
			errs.Add(&schema.DomainError{Field: col.Name, Value: raw, Reason: "is required"})
			continue
		}

		if col.Domain.Categorical() {
			rec.setCategory(col.Name, raw)
			continue
		}

		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			errs.Add(&schema.DomainError{Field: col.Name, Value: raw, Reason: "must be a number"})
			continue
		}
		rec.setNumber(col.Name, v)
	}

	if err := errs.Err(); err != nil {
		return ApplicantRecord{}, err
	}
	return rec, nil
}

// FromValues is FromForm over the first value of each url.Values key.
func FromValues(v url.Values) (ApplicantRecord, error) {
	flat := make(map[string]string, len(v))
	for k := range v {
		flat[k] = v.Get(k)
	}
	return FromForm(flat)
}

// Form renders the record back into untyped form values.
func (r ApplicantRecord) Form() map[string]string {
	out := make(map[string]string, schema.Width)
	for _, col := range schema.Columns() {
		if col.Domain.Categorical() {
			out[col.Name] = r.category(col.Name)
			continue
		}
		out[col.Name] = strconv.FormatFloat(r.number(col.Name), 'f', -1, 64)
	}
	return out
}

func (r *ApplicantRecord) setCategory(name, v string) {
	switch name {
	case schema.Gender:
		r.Gender = v
	case schema.Married:
		r.Married = v
	case schema.Dependents:
		r.Dependents = v
	case schema.Education:
		r.Education = v
	case schema.SelfEmployed:
		r.SelfEmployed = v
	case schema.PropertyArea:
		r.PropertyArea = v
	}
}

func (r *ApplicantRecord) setNumber(name string, v float64) {
	switch name {
	case schema.CreditHistory:
		r.CreditHistory = v
	case schema.ApplicantIncome:
		r.ApplicantIncome = v
	case schema.CoapplicantIncome:
		r.CoapplicantIncome = v
	case schema.LoanAmount:
		r.LoanAmount = v
	case schema.LoanAmountTerm:
		r.LoanAmountTerm = v
	}
}
