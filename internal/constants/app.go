package constants

// Application Information
const (
	AppName    = "Account Service"
	AppVersion = "1.0.0"
)

// Environment Types
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Default Application Settings
const (
	DefaultPort        = "2001"
	DefaultEnvironment = EnvDevelopment
)

// Cache Key Prefixes, appended to the configured Redis key prefix
const (
	CacheKeyRevokedToken = "revoked:"
	CacheKeyQueue        = "queue:"
)

// Log Levels
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
	LogLevelFatal = "fatal"
)
