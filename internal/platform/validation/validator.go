// Package validation wraps go-playground/validator with a shared instance and
// an error type that lists every failing field.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func instance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Report json names so messages match what the model or client sent.
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

type FieldError struct {
	Field string
	Tag   string
	Param string
}

func (e FieldError) String() string {
	if e.Param != "" {
		return fmt.Sprintf("%s: failed %s=%s", e.Field, e.Tag, e.Param)
	}
	return fmt.Sprintf("%s: failed %s", e.Field, e.Tag)
}

// RequestValidationError collects all field failures of one Struct call.
type RequestValidationError struct {
	Fields []FieldError
}

func (ve *RequestValidationError) Error() string {
	if len(ve.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(ve.Fields))
	for _, f := range ve.Fields {
		parts = append(parts, f.String())
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Struct validates v and returns a *RequestValidationError on field failures.
func Struct(v any) error {
	err := instance().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &RequestValidationError{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{
			Field: fe.Namespace(),
			Tag:   fe.Tag(),
			Param: fe.Param(),
		})
	}
	return out
}
