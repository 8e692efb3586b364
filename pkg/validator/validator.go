// Package validator wraps go-playground/validator with the storefront's
// conventions: fields are reported by their JSON names and every failure
// carries a short human message.
package validator

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

// MaxBodyBytes bounds request bodies read by DecodeAndValidate.
const MaxBodyBytes = 1 << 20

var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(fmt.Sprintf("register notblank validation: %v", err))
	}
	return v
}

// messages renders a failed tag given its parameter.
var messages = map[string]func(param string) string{
	"required": func(string) string { return "is required" },
	"notblank": func(string) string { return "is required" },
	"email":    func(string) string { return "must be a valid email address" },
	"numeric":  func(string) string { return "must contain digits only" },
	"min":      func(p string) string { return "must be at least " + p + " characters" },
	"max":      func(p string) string { return "must be at most " + p + " characters" },
	"len":      func(p string) string { return "must be exactly " + p + " characters" },
	"oneof":    func(p string) string { return "must be one of: " + p },
}

func message(fe validator.FieldError) string {
	if m, ok := messages[fe.Tag()]; ok {
		return m(fe.Param())
	}
	return fmt.Sprintf("failed on '%s' validation", fe.Tag())
}

// Validate checks s against its `validate` tags. Tag failures are returned
// as *ValidationError.
func Validate(s any) error {
	err := validate.Struct(s)
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		return &ValidationError{Errors: fieldErrs}
	}
	return err
}

// ValidationError lists the fields that failed validation.
type ValidationError struct {
	Errors validator.ValidationErrors
}

// Error lists every failure, ordered by field name.
func (e *ValidationError) Error() string {
	fields := e.Fields()
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	msgs := make([]string, len(names))
	for i, name := range names {
		msgs[i] = fmt.Sprintf("field '%s' %s", name, fields[name])
	}
	return strings.Join(msgs, "; ")
}

// Fields maps each failing field's JSON name to its message. Only the first
// failure per field is kept.
func (e *ValidationError) Fields() map[string]string {
	fields := make(map[string]string, len(e.Errors))
	for _, fe := range e.Errors {
		if _, seen := fields[fe.Field()]; !seen {
			fields[fe.Field()] = message(fe)
		}
	}
	return fields
}

// DecodeAndValidate decodes a single JSON value from r's body into dst and
// validates it. Bodies over MaxBodyBytes or with trailing data are rejected.
func DecodeAndValidate(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	if dec.More() {
		return errors.New("decode request body: unexpected data after JSON value")
	}
	return Validate(dst)
}
