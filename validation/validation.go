package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"heartbridge-api/apperror"

	"github.com/go-playground/validator/v10"
)

var phonePattern = regexp.MustCompile(`^\(\d{3}\) \d{3}-\d{4}$|^\d{10}$`)

var validate = newValidator("validate")

func newValidator(tag string) *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.SetTagName(tag)
	if err := register(v); err != nil {
		panic(err)
	}
	return v
}

// register installs the custom rules and JSON field naming on v.
func register(v *validator.Validate) error {
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	if err := v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	}); err != nil {
		return err
	}
	return v.RegisterValidation("strongpassword", func(fl validator.FieldLevel) bool {
		return StrongPassword(fl.Field().String())
	})
}

// StrongPassword requires at least 6 characters with an upper, a lower and a digit.
func StrongPassword(pw string) bool {
	if len(pw) < 6 {
		return false
	}
	var upper, lower, digit bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return upper && lower && digit
}

// ValidPhone reports whether s is "(555) 123-4567" or ten bare digits.
func ValidPhone(s string) bool { return phonePattern.MatchString(s) }

// Struct validates s against its `validate` tags.
func Struct(s any) error {
	return Translate(validate.Struct(s))
}

// Translate converts validator errors into a Validation error with one message per field.
// Other errors are wrapped as Validation with their own message.
func Translate(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperror.Validation("Validation failed: "+err.Error(), nil)
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = message(fe)
	}
	return apperror.Validation("Validation failed", fields)
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("cannot exceed %s characters", fe.Param())
		}
		return "must be at most " + fe.Param()
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return "must be at least " + fe.Param()
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "email":
		return "must be a valid email address"
	case "phone":
		return "must be a valid phone number"
	case "strongpassword":
		return "must be at least 6 characters and contain an uppercase letter, a lowercase letter and a number"
	}
	return "failed " + fe.Tag() + " validation"
}
