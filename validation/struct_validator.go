package validation

import (
	stderrors "errors"
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/kbukum/warden/errors"
)

// FieldError is one failed constraint, keyed by the config path.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var (
	once     sync.Once
	instance *validator.Validate
)

func engine() *validator.Validate {
	once.Do(func() {
		instance = validator.New(validator.WithRequiredStructEnabled())
		instance.RegisterTagNameFunc(configKey)
	})
	return instance
}

// configKey names fields by their mapstructure key, so reported paths
// match what users write in YAML or the environment.
func configKey(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("mapstructure"), ",")
	if name == "" || name == "-" {
		return toSnakeCase(fld.Name)
	}
	return name
}

// Validate checks s against its `validate` tags. Failures come back as
// an *errors.AppError whose message lists every field and whose
// Details["fields"] holds the []FieldError. The code is MISSING_FIELD when
// only required fields are absent, INVALID_INPUT otherwise.
func Validate(s any) error {
	err := engine().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return errors.Validation("validation failed").WithCause(err)
	}

	code := errors.ErrCodeMissingField
	fields := make([]FieldError, len(verrs))
	lines := make([]string, len(verrs))
	for i, fe := range verrs {
		if fe.Tag() != "required" {
			code = errors.ErrCodeInvalidInput
		}
		fields[i] = FieldError{Field: fieldPath(fe.Namespace()), Message: describe(fe)}
		lines[i] = fields[i].Field + ": " + fields[i].Message
	}

	return errors.New(code, strings.Join(lines, "; ")).WithDetail("fields", fields)
}

// fieldPath drops the root type from a namespace: "Config.retry.timeout"
// becomes "retry.timeout".
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return toSnakeCase(ns)
}

var messages = map[string]string{
	"required":      "is required",
	"url":           "must be a valid URL",
	"hostname_port": "must be a host:port address",
}

var bounds = map[string]string{
	"min":   "must be at least ",
	"max":   "must be at most ",
	"gt":    "must be greater than ",
	"gte":   "must be greater than or equal to ",
	"lt":    "must be less than ",
	"lte":   "must be less than or equal to ",
	"oneof": "must be one of: ",
}

func describe(fe validator.FieldError) string {
	if msg, ok := messages[fe.Tag()]; ok {
		return msg
	}
	if prefix, ok := bounds[fe.Tag()]; ok {
		return prefix + fe.Param()
	}
	return "is invalid"
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
