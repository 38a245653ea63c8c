// Package encoder turns a raw applicant entry into the numeric layout the
// trained model expects. It never touches the scaler or the model; the
// continuous fields are returned unscaled for the scaler adapter.
package encoder

import (
	"loan-predictor/internal/schema"
)

// ApplicantRecord is one applicant as entered in the form. Categorical values
// are kept as the user-facing strings; the encoder owns their mapping.
type ApplicantRecord struct {
	Gender            string  `json:"Gender" yaml:"gender"`
	Married           string  `json:"Married" yaml:"married"`
	Dependents        string  `json:"Dependents" yaml:"dependents"`
	Education         string  `json:"Education" yaml:"education"`
	SelfEmployed      string  `json:"Self_Employed" yaml:"selfEmployed"`
	ApplicantIncome   float64 `json:"ApplicantIncome" yaml:"applicantIncome"`
	CoapplicantIncome float64 `json:"CoapplicantIncome" yaml:"coapplicantIncome"`
	LoanAmount        float64 `json:"LoanAmount" yaml:"loanAmount"`
	LoanAmountTerm    float64 `json:"Loan_Amount_Term" yaml:"loanAmountTerm"`
	CreditHistory     float64 `json:"Credit_History" yaml:"creditHistory"`
	PropertyArea      string  `json:"Property_Area" yaml:"propertyArea"`
}

// Partial is the encoder output. Direct holds the categorical and pass-through
// columns in row order; Continuous holds the raw values the scaler consumes.
type Partial struct {
	Direct     [schema.DirectWidth]float64
	Continuous [schema.ContinuousWidth]float64
}

// Encode maps a record onto the training layout. Every invalid field is
// reported, not only the first one, as schema.FieldErrors.
func Encode(rec ApplicantRecord) (Partial, error) {
	var (
		p    Partial
		errs schema.FieldErrors
		di   int
		ci   int
	)

	for _, col := range schema.Columns() {
		v, err := encodeColumn(col, rec)
		if err != nil {
			errs.Add(err)
		}
		switch col.Kind {
		case schema.Direct:
			p.Direct[di] = v
			di++
		case schema.Scaled:
			p.Continuous[ci] = v
			ci++
		}
	}

	if err := errs.Err(); err != nil {
		return Partial{}, err
	}
	return p, nil
}

func encodeColumn(col schema.Column, rec ApplicantRecord) (float64, error) {
	if col.Domain.Categorical() {
		return col.Code(rec.category(col.Name))
	}
	v := rec.number(col.Name)
	if err := col.CheckNumber(v); err != nil {
		return 0, err
	}
	return v, nil
}

func (r ApplicantRecord) category(name string) string {
	switch name {
	case schema.Gender:
		return r.Gender
	case schema.Married:
		return r.Married
	case schema.Dependents:
		return r.Dependents
	case schema.Education:
		return r.Education
	case schema.SelfEmployed:
		return r.SelfEmployed
	case schema.PropertyArea:
		return r.PropertyArea
	}
	return ""
}

func (r ApplicantRecord) number(name string) float64 {
	switch name {
	case schema.CreditHistory:
		return r.CreditHistory
	case schema.ApplicantIncome:
		return r.ApplicantIncome
	case schema.CoapplicantIncome:
		return r.CoapplicantIncome
	case schema.LoanAmount:
		return r.LoanAmount
	case schema.LoanAmountTerm:
		return r.LoanAmountTerm
	}
	return 0
}

// Row concatenates the direct columns with already scaled continuous values.
func (p Partial) Row(scaled []float64) []float64 {
	row := make([]float64, 0, schema.Width)
	row = append(row, p.Direct[:]...)
	return append(row, scaled...)
}
