// Package validation runs go-playground/validator over request structs and
// reports the first failure as a CodeValidation domain error named after the
// JSON field.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	dErrors "warden/pkg/domain-errors"
)

// MaxBodySize is the largest request body the API accepts.
const MaxBodySize = 64 << 10

var usernameChars = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

var validate = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	must(v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	}))
	must(v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernameChars.MatchString(fl.Field().String())
	}))
	return v
}()

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// Rule messages. %[1]s is the field, %[2]s the tag parameter.
var messages = map[string]string{
	"required": "%[1]s is required",
	"notblank": "%[1]s must not be blank",
	"email":    "%[1]s must be a valid email",
	"url":      "%[1]s must be a valid url",
	"min":      "%[1]s must be at least %[2]s characters",
	"max":      "%[1]s must be at most %[2]s characters",
	"len":      "%[1]s must be exactly %[2]s characters",
	"alphanum": "%[1]s must contain only letters and digits",
	"oneof":    "%[1]s must be one of [%[2]s]",
	"username": "%[1]s can only contain letters, numbers, underscores and hyphens",
}

func Validate(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid request body")
	}
	return dErrors.New(dErrors.CodeValidation, describe(fieldErrs[0]))
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	if field == "" {
		field = fe.StructField()
	}
	if tmpl, ok := messages[fe.ActualTag()]; ok {
		if strings.Contains(tmpl, "%[2]s") {
			return fmt.Sprintf(tmpl, field, fe.Param())
		}
		return fmt.Sprintf(tmpl, field)
	}
	return field + " is invalid"
}
