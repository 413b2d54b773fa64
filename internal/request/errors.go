package request

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrValidation matches every *ValidationError via errors.Is.
var ErrValidation = errors.New("validation failed")

// FieldError is one violated field with its user-facing message.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError enumerates every field that failed validation.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Is lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// fieldErrors accumulates at most one error per field.
type fieldErrors struct {
	seen   map[string]bool
	fields []FieldError
}

func (f *fieldErrors) add(field, message string) {
	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	if f.seen[field] {
		return
	}
	f.seen[field] = true
	f.fields = append(f.fields, FieldError{Field: field, Message: message})
}

func (f *fieldErrors) has(field string) bool {
	return f.seen[field]
}

func (f *fieldErrors) err() error {
	if len(f.fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: f.fields}
}
