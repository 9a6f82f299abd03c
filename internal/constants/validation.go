package constants

// Field Length Limits
const (
	MinPasswordLength = 8
	MaxPasswordLength = 72
	MaxNameLength     = 50
	MaxEmailLength    = 255
	MaxURLLength      = 2048
)

// CodeCharset is the alphabet one-time codes are drawn from before uppercasing.
const CodeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// PasswordRuleMessage is returned for passwords failing the strength rule.
const PasswordRuleMessage = "Password must be at least 8 characters long, include at least one uppercase letter, one lowercase letter, one number, and one special character."
