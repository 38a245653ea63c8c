package schema

import (
	"fmt"
	"strings"
)

// DomainError reports a value outside the enumerated or expected range of a
// column. It is recoverable: the caller rejects the input and asks for a
// correction of the named field.
type DomainError struct {
	Field  string
	Value  string
	Reason string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: invalid value %q: %s", e.Field, e.Value, e.Reason)
}

// FieldErrors collects every field-level error of one record.
type FieldErrors []*DomainError

func (fe FieldErrors) Error() string {
	switch len(fe) {
	case 0:
		return "no field errors"
	case 1:
		return fe[0].Error()
	}
	parts := make([]string, len(fe))
	for i, e := range fe {
		parts[i] = e.Error()
	}
	return fmt.Sprintf("%d invalid fields: %s", len(fe), strings.Join(parts, "; "))
}

// Unwrap exposes the individual errors to errors.As and errors.Is.
func (fe FieldErrors) Unwrap() []error {
	out := make([]error, len(fe))
	for i, e := range fe {
		out[i] = e
	}
	return out
}

// Fields returns the names of the rejected fields in report order.
func (fe FieldErrors) Fields() []string {
	out := make([]string, len(fe))
	for i, e := range fe {
		out[i] = e.Field
	}
	return out
}

// Add appends err when it is a *DomainError or a FieldErrors and reports
// whether it was absorbed.
func (fe *FieldErrors) Add(err error) bool {
	switch e := err.(type) {
	case nil:
		return true
	case *DomainError:
		*fe = append(*fe, e)
		return true
	case FieldErrors:
		*fe = append(*fe, e...)
		return true
	}
	return false
}

// Err returns nil for an empty collection, so callers can return it directly.
func (fe FieldErrors) Err() error {
	if len(fe) == 0 {
		return nil
	}
	return fe
}
