package procedure

import (
	"fmt"

	validatorpkg "github.com/go-playground/validator/v10"
)

// FieldError describes one field that failed validation.
type FieldError struct {
	Path    string
	Message string
}

// Validator is the schema contract spec.md §6 requires: any library
// exposing Parse/SafeParse semantics satisfies it. Procedures use it
// for InputSchema/OutputSchema; clients use it for per-method schema
// registration consulted by a validation middleware.
type Validator interface {
	// Parse returns the (possibly coerced) value on success, or an
	// error on failure.
	Parse(v any) (any, error)
	// SafeParse never returns an error; it reports success/failure and
	// the field-level errors on failure.
	SafeParse(v any) (data any, errs []FieldError, ok bool)
}

// StructValidator adapts github.com/go-playground/validator/v10 (the
// struct-tag validation library the wider pack reaches for) to the
// Validator contract. It validates v in place via struct tags (e.g.
// `validate:"required,min=1"`) and returns v unchanged on success.
type StructValidator struct {
	validate *validatorpkg.Validate
}

// NewStructValidator builds a StructValidator backed by a fresh
// validator.Validate instance.
func NewStructValidator() *StructValidator {
	return &StructValidator{validate: validatorpkg.New()}
}

func (s *StructValidator) Parse(v any) (any, error) {
	if err := s.validate.Struct(v); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *StructValidator) SafeParse(v any) (any, []FieldError, bool) {
	err := s.validate.Struct(v)
	if err == nil {
		return v, nil, true
	}
	verrs, ok := err.(validatorpkg.ValidationErrors)
	if !ok {
		return nil, []FieldError{{Message: err.Error()}}, false
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{
			Path:    fe.Namespace(),
			Message: fmt.Sprintf("%s failed on the '%s' tag", fe.Field(), fe.Tag()),
		})
	}
	return nil, out, false
}

// NoopValidator accepts any input unchanged; useful for stub procedures
// registered purely for client-side typing, or tests that don't care
// about validation.
type NoopValidator struct{}

func (NoopValidator) Parse(v any) (any, error) { return v, nil }
func (NoopValidator) SafeParse(v any) (any, []FieldError, bool) { return v, nil, true }
