package validation

import (
	"fmt"
)

func DefaultMessage(field, tag, param string) string {
	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "numeric":
		return fmt.Sprintf("%s must be numeric", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters long", field, param)
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters long", field, param)
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "uuid":
		return fmt.Sprintf("%s must be a valid UUID", field)
	case "e164":
		return fmt.Sprintf("%s must be a valid E.164 phone number", field)
	case "alphanum":
		return fmt.Sprintf("%s may only contain letters and numbers", field)
	case "boolean":
		return fmt.Sprintf("%s must be true or false", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, param)
	case "strongpassword":
		return fmt.Sprintf("%s is not strong enough", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
