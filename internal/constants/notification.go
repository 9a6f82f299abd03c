package constants

// Job names carried by queued notification jobs
const (
	JobSendEmail            = "send-email"
	JobSendPushNotification = "send-push-notification"
)

// Email template identifiers
const (
	TemplateVerifyEmailAddress = "verify-email-address"
	TemplateResetPassword      = "reset-password"
)

// Email subjects
const (
	SubjectVerifyEmail   = "Confirm your email address"
	SubjectResetPassword = "Password Reset"
)
