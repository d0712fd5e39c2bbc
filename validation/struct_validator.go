package validation

import (
	stderrors "errors"
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/kbukum/pixelflow/errors"
)

var structValidator = sync.OnceValue(func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(tagName)
	return v
})

// tagName reports fields by their json name, then their mapstructure name,
// so config problems read like the YAML keys.
func tagName(f reflect.StructField) string {
	for _, key := range []string{"json", "mapstructure"} {
		if name, _, _ := strings.Cut(f.Tag.Get(key), ","); name != "" && name != "-" {
			return name
		}
	}
	return toSnakeCase(f.Name)
}

// Validate checks s against its `validate` struct tags and reports every
// failing field the same way Validator.Err does.
func Validate(s any) error {
	err := structValidator().Struct(s)
	if err == nil {
		return nil
	}
	var fields validator.ValidationErrors
	if !stderrors.As(err, &fields) {
		return errors.Validation("validation failed").WithCause(err)
	}

	v := New()
	for _, fe := range fields {
		v.Fail(fieldPath(fe), "%s", describe(fe))
	}
	return v.Err()
}

// fieldPath drops the root struct name: "AppConfig.server.port" becomes
// "server.port".
func fieldPath(fe validator.FieldError) string {
	if _, rest, ok := strings.Cut(fe.Namespace(), "."); ok {
		return rest
	}
	return toSnakeCase(fe.Field())
}

var tagMessages = map[string]string{
	"required":      "is required",
	"gte":           "must be greater than or equal to ",
	"lte":           "must be less than or equal to ",
	"gt":            "must be greater than ",
	"lt":            "must be less than ",
	"oneof":         "must be one of: ",
	"url":           "must be a valid URL",
	"hostname_port": "must be a host:port pair",
	"dir":           "must be an existing directory",
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "min", "max":
		bound := "at least "
		if fe.Tag() == "max" {
			bound = "at most "
		}
		msg := "must be " + bound + fe.Param()
		if fe.Kind() == reflect.String || fe.Kind() == reflect.Slice {
			msg += " long"
		}
		return msg
	}
	msg, ok := tagMessages[fe.Tag()]
	if !ok {
		return "is invalid"
	}
	if strings.HasSuffix(msg, " ") {
		msg += fe.Param()
	}
	return msg
}

func toSnakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
