// Package schema defines the fixed input contract of the offline-trained loan
// approval model: the ordered columns, their domains and which of them go
// through the numeric scaler.
//
// The column order is the order the model saw at training time. Nothing at
// runtime can detect a reordering once the model is opaque, so the order lives
// here as a single tested constant and every other package derives from it.
package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strconv"
	"strings"
)

// Column names as they appear in the training data set.
const (
	Gender            = "Gender"
	Married           = "Married"
	Dependents        = "Dependents"
	Education         = "Education"
	SelfEmployed      = "Self_Employed"
	CreditHistory     = "Credit_History"
	PropertyArea      = "Property_Area"
	ApplicantIncome   = "ApplicantIncome"
	CoapplicantIncome = "CoapplicantIncome"
	LoanAmount        = "LoanAmount"
	LoanAmountTerm    = "Loan_Amount_Term"
)

// Kind tells whether a column is copied into the row as-is or routed through
// the scaler first.
type Kind int

const (
	Direct Kind = iota
	Scaled
)

func (k Kind) String() string {
	switch k {
	case Direct:
		return "direct"
	case Scaled:
		return "scaled"
	default:
		return "unknown"
	}
}

// Category is one enumerated value of a categorical column.
type Category struct {
	Value   string
	Code    float64
	Aliases []string
}

// Domain restricts the values a column accepts. A categorical column sets
// Categories; a numeric column sets NonNegative and optionally Allowed and
// Integer.
type Domain struct {
	Categories  []Category
	Allowed     []float64
	NonNegative bool
	Integer     bool
}

// Categorical reports whether the column takes string input.
func (d Domain) Categorical() bool { return len(d.Categories) > 0 }

type Column struct {
	Name   string
	Kind   Kind
	Domain Domain
}

var loanTermMonths = []float64{12, 36, 60, 84, 120, 180, 240, 300, 360, 480}

// LoanTermMonths lists the loan terms present in the training data.
func LoanTermMonths() []float64 {
	out := make([]float64, len(loanTermMonths))
	copy(out, loanTermMonths)
	return out
}

var columns = []Column{
	{Name: Gender, Kind: Direct, Domain: Domain{Categories: []Category{
		{Value: "Male", Code: 1},
		{Value: "Female", Code: 0},
	}}},
	{Name: Married, Kind: Direct, Domain: Domain{Categories: []Category{
		{Value: "Yes", Code: 1},
		{Value: "No", Code: 0},
	}}},
	{Name: Dependents, Kind: Direct, Domain: Domain{Categories: []Category{
		{Value: "0", Code: 0},
		{Value: "1", Code: 1},
		{Value: "2", Code: 2},
		{Value: "3+", Code: 3},
	}}},
	{Name: Education, Kind: Direct, Domain: Domain{Categories: []Category{
		{Value: "Graduate", Code: 1},
		{Value: "Not Graduate", Code: 0, Aliases: []string{"NotGraduate"}},
	}}},
	{Name: SelfEmployed, Kind: Direct, Domain: Domain{Categories: []Category{
		{Value: "Yes", Code: 1},
		{Value: "No", Code: 0},
	}}},
	// Credit history is fed to the model as the float it was stored as.
	{Name: CreditHistory, Kind: Direct, Domain: Domain{Allowed: []float64{0, 1}}},
	{Name: PropertyArea, Kind: Direct, Domain: Domain{Categories: []Category{
		{Value: "Urban", Code: 2},
		{Value: "Semiurban", Code: 1},
		{Value: "Rural", Code: 0},
	}}},
	{Name: ApplicantIncome, Kind: Scaled, Domain: Domain{NonNegative: true}},
	{Name: CoapplicantIncome, Kind: Scaled, Domain: Domain{NonNegative: true}},
	{Name: LoanAmount, Kind: Scaled, Domain: Domain{NonNegative: true}},
	{Name: LoanAmountTerm, Kind: Scaled, Domain: Domain{NonNegative: true, Integer: true, Allowed: loanTermMonths}},
}

// Width is the length of an encoded row.
const Width = 11

// DirectWidth is the number of columns copied into the row without scaling.
const DirectWidth = 7

// ContinuousWidth is the number of columns routed through the scaler.
const ContinuousWidth = Width - DirectWidth

// Columns returns the ordered training columns. The slice is a copy.
func Columns() []Column {
	out := make([]Column, len(columns))
	copy(out, columns)
	return out
}

// Names returns the column names in row order.
func Names() []string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.Name
	}
	return names
}

// DirectColumns returns the columns copied as-is, in row order.
func DirectColumns() []Column { return byKind(Direct) }

// ContinuousColumns returns the scaled columns, in row order.
func ContinuousColumns() []Column { return byKind(Scaled) }

// ContinuousNames returns the names of the scaled columns, in row order.
func ContinuousNames() []string {
	cols := ContinuousColumns()
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

func byKind(k Kind) []Column {
	var out []Column
	for _, c := range columns {
		if c.Kind == k {
			out = append(out, c)
		}
	}
	return out
}

// Lookup returns the column with the given name.
func Lookup(name string) (Column, bool) {
	for _, c := range columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Index returns the row position of a column, or -1.
func Index(name string) int {
	for i, c := range columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Fingerprint is a short digest of the ordered column names. Model artifacts
// record it so that an artifact trained on another layout fails at load.
func Fingerprint() string {
	sum := sha256.Sum256([]byte(strings.Join(Names(), ",")))
	return hex.EncodeToString(sum[:8])
}

// Code maps a categorical value to its training code.
func (c Column) Code(value string) (float64, error) {
	if !c.Domain.Categorical() {
		return 0, &DomainError{Field: c.Name, Value: value, Reason: "column is not categorical"}
	}
	v := strings.TrimSpace(value)
	for _, cat := range c.Domain.Categories {
		if v == cat.Value {
			return cat.Code, nil
		}
		for _, a := range cat.Aliases {
			if v == a {
				return cat.Code, nil
			}
		}
	}
	return 0, &DomainError{Field: c.Name, Value: value, Reason: "must be one of " + strings.Join(c.Values(), ", ")}
}

// CheckNumber validates a numeric value against the column domain.
func (c Column) CheckNumber(v float64) error {
	raw := strconv.FormatFloat(v, 'f', -1, 64)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &DomainError{Field: c.Name, Value: raw, Reason: "must be a finite number"}
	}
	d := c.Domain
	if d.NonNegative && v < 0 {
		return &DomainError{Field: c.Name, Value: raw, Reason: "must not be negative"}
	}
	if d.Integer && v != float64(int64(v)) {
		return &DomainError{Field: c.Name, Value: raw, Reason: "must be a whole number"}
	}
	if len(d.Allowed) > 0 {
		for _, a := range d.Allowed {
			if v == a {
				return nil
			}
		}
		return &DomainError{Field: c.Name, Value: raw, Reason: "must be one of " + strings.Join(c.Values(), ", ")}
	}
	return nil
}

// Values lists the accepted values of an enumerated column for messages and
// for building form controls.
func (c Column) Values() []string {
	if c.Domain.Categorical() {
		out := make([]string, len(c.Domain.Categories))
		for i, cat := range c.Domain.Categories {
			out[i] = cat.Value
		}
		return out
	}
	out := make([]string, len(c.Domain.Allowed))
	for i, a := range c.Domain.Allowed {
		out[i] = strconv.FormatFloat(a, 'f', -1, 64)
	}
	return out
}
