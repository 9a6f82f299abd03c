package constants

// HTTP Header Names
const (
	HeaderContentType    = "Content-Type"
	HeaderAuthorization  = "Authorization"
	HeaderUserAgent      = "User-Agent"
	HeaderXRequestID     = "X-Request-ID"
	HeaderXCorrelationID = "X-Correlation-ID"
	HeaderRetryAfter     = "Retry-After"
)

const BearerScheme = "Bearer"

// HTTP Error Messages
const (
	MsgUnauthorized    = "Unauthorized"
	MsgBadRequest      = "Invalid request"
	MsgInternalError   = "Something went wrong"
	MsgValidationError = "Validation Error"
	MsgTooManyRequests = "Too many requests"
)

// HTTP Success Messages, one per account operation
const (
	MsgLoginSuccessful         = "login successful"
	MsgSignupSuccessful        = "signup successful"
	MsgVerificationSuccessful  = "verification successful"
	MsgVerificationLinkResent  = "verification link resent"
	MsgSuccess                 = "success"
	MsgPasswordResetSuccessful = "password reset successful"
	MsgMe                      = "me"
	MsgProfileUpdateSuccessful = "profile update successful"
	MsgPasswordChanged         = "password changed"
	MsgLoggedOut               = "logged out"
)
