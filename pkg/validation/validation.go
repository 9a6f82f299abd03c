package validation

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"unicode"

	"github.com/Payphone-Digital/account-service/internal/constants"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const TagStrongPassword = "strongpassword"

// Register installs the custom rules on v and makes field errors report
// JSON names instead of Go struct field names.
func Register(v *validator.Validate) error {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return v.RegisterValidation(TagStrongPassword, StrongPassword)
}

// RegisterWithGin applies Register to gin's default binding engine.
func RegisterWithGin() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin binding engine is not a go-playground validator")
	}
	return Register(v)
}

// StrongPassword requires at least 8 characters with an upper case letter,
// a lower case letter, a digit and a symbol.
func StrongPassword(fl validator.FieldLevel) bool {
	return IsStrongPassword(fl.Field().String())
}

func IsStrongPassword(password string) bool {
	if len(password) < constants.MinPasswordLength || len(password) > constants.MaxPasswordLength {
		return false
	}

	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}
	return upper && lower && digit && special
}

// FieldErrors converts a binding error into a field-keyed message map.
// It returns nil when err is not a validation or JSON type failure.
func FieldErrors(err error) map[string]string {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		fields := make(map[string]string, len(validationErrs))
		for _, e := range validationErrs {
			field := e.Field()
			if _, seen := fields[field]; seen {
				continue
			}
			if custom := CustomMessage(field); custom != nil {
				if msg, ok := custom[e.Tag()]; ok {
					fields[field] = msg
					continue
				}
			}
			fields[field] = DefaultMessage(field, e.Tag(), e.Param())
		}
		return fields
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return map[string]string{typeErr.Field: typeErr.Field + " has the wrong type, expected " + typeErr.Type.String()}
	}

	return nil
}
