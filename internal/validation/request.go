package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var requestValidate *validator.Validate

func init() {
	requestValidate = validator.New()
	requestValidate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = requestValidate.RegisterValidation("forumtag", func(fl validator.FieldLevel) bool {
		return ValidateTag(strings.TrimSpace(fl.Field().String())) == nil
	})
}

// Struct validates a decoded request body against its `validate` tags and
// returns one readable message for the first failing field.
func Struct(v any) error {
	err := requestValidate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", field)
	case "required_without":
		return fmt.Errorf("%s or %s is required", field, strings.ToLower(fe.Param()))
	case "excluded_with":
		return fmt.Errorf("%s cannot be combined with %s", field, strings.ToLower(fe.Param()))
	case "max":
		return fmt.Errorf("%s must be at most %s", field, fe.Param())
	case "min", "gt", "gte":
		return fmt.Errorf("%s must be at least %s", field, fe.Param())
	case "oneof":
		return fmt.Errorf("%s must be one of: %s", field, fe.Param())
	case "forumtag":
		return fmt.Errorf("%s contains an invalid tag", field)
	default:
		return fmt.Errorf("%s is invalid", field)
	}
}
