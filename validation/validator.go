package validation

import (
	"fmt"
	"strings"

	"github.com/kbukum/pixelflow/errors"
)

// FieldError is one problem found at a field path such as
// "nodes[2].class_name".
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) String() string { return e.Field + ": " + e.Message }

// Validator collects every problem of a document before failing. Scoped
// validators returned by At share the parent's list.
type Validator struct {
	prefix string
	errs   *[]FieldError
}

// New returns an empty Validator.
func New() *Validator {
	return &Validator{errs: new([]FieldError)}
}

// At returns a validator whose fields are reported under the formatted
// path, for example v.At("nodes[%d]", i).
func (v *Validator) At(format string, args ...any) *Validator {
	return &Validator{prefix: v.path(fmt.Sprintf(format, args...)), errs: v.errs}
}

func (v *Validator) path(field string) string {
	switch {
	case v.prefix == "":
		return field
	case field == "":
		return v.prefix
	}
	return v.prefix + "." + field
}

// Fail records a problem at field.
func (v *Validator) Fail(field, format string, args ...any) *Validator {
	*v.errs = append(*v.errs, FieldError{Field: v.path(field), Message: fmt.Sprintf(format, args...)})
	return v
}

// Check records the formatted problem unless ok holds.
func (v *Validator) Check(ok bool, field, format string, args ...any) *Validator {
	if !ok {
		v.Fail(field, format, args...)
	}
	return v
}

// Required records a problem when value is blank.
func (v *Validator) Required(field, value string) *Validator {
	return v.Check(strings.TrimSpace(value) != "", field, "is required")
}

// Unique records a problem when value was already added to seen. Blank
// values are left to Required.
func (v *Validator) Unique(field, value string, seen map[string]bool) *Validator {
	if value == "" {
		return v
	}
	v.Check(!seen[value], field, "duplicate value %q", value)
	seen[value] = true
	return v
}

// Errors returns the problems recorded so far, in order.
func (v *Validator) Errors() []FieldError { return *v.errs }

// HasErrors reports whether anything was recorded.
func (v *Validator) HasErrors() bool { return len(*v.errs) > 0 }

// Err returns nil, or an INVALID_INPUT AppError listing every problem with
// the list itself under Details["fields"].
func (v *Validator) Err() error {
	if !v.HasErrors() {
		return nil
	}
	msgs := make([]string, len(*v.errs))
	for i, e := range *v.errs {
		msgs[i] = e.String()
	}
	appErr := errors.Validation(strings.Join(msgs, "; "))
	appErr.Details = map[string]any{"fields": v.Errors()}
	return appErr
}
