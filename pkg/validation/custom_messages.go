package validation

import "github.com/Payphone-Digital/account-service/internal/constants"

// CustomMessage returns per-tag overrides for a JSON field name.
func CustomMessage(field string) map[string]string {
	var customValidationMessages = map[string]map[string]string{
		"email": {
			"required": "email is required",
			"email":    "email must be a valid email address",
		},
		"password": {
			"required":       "password is required",
			"strongpassword": constants.PasswordRuleMessage,
		},
		"phonenumber": {
			"e164": "phonenumber must be in E.164 format, e.g. +2348012345678",
		},
		"firstname": {
			"required": "firstname is required",
		},
		"lastname": {
			"required": "lastname is required",
		},
		"emailValidationToken": {
			"required": "emailValidationToken is required",
		},
		"resetToken": {
			"required": "resetToken is required",
		},
	}
	return customValidationMessages[field]
}
