package journal

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedDate is matched by every MalformedDate warning.
var ErrMalformedDate = errors.New("malformed date")

// MalformedDate reports a record skipped by a view because its date could
// not be parsed.
type MalformedDate struct {
	RecordID string `json:"recordId"`
	Value    string `json:"value"`
	Err      error  `json:"-"`
}

func (m MalformedDate) Error() string {
	return fmt.Sprintf("record %s: malformed date %q", m.RecordID, m.Value)
}

func (m MalformedDate) Unwrap() []error {
	if m.Err == nil {
		return []error{ErrMalformedDate}
	}
	return []error{ErrMalformedDate, m.Err}
}

// ValidationError lists the record fields rejected before a save.
type ValidationError struct {
	Fields []FieldError
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "invalid record: " + strings.Join(parts, "; ")
}

// Validate checks the fields a record needs before it can be saved.
func Validate(r Record) error {
	var errs []FieldError
	if strings.TrimSpace(r.Title) == "" {
		errs = append(errs, FieldError{"title", "required"})
	}
	if strings.TrimSpace(r.Date) == "" {
		errs = append(errs, FieldError{"date", "required"})
	} else if _, err := ParseDate(r.Date); err != nil {
		errs = append(errs, FieldError{"date", "must be YYYY-MM-DD"})
	}
	for i, c := range r.Cast {
		if strings.TrimSpace(c.Actor) == "" {
			errs = append(errs, FieldError{fmt.Sprintf("cast[%d].actor", i), "required"})
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
