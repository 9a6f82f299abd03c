package ctxutil

import (
	"context"
	"time"

	"github.com/Payphone-Digital/account-service/internal/constants"
)

// Re-export ContextKey type
type ContextKey = constants.ContextKey

// Re-export context keys
const (
	RequestIDKey     = constants.CtxKeyRequestID
	UserIDKey        = constants.CtxKeyUserID
	ClientIPKey      = constants.CtxKeyClientIP
	UserAgentKey     = constants.CtxKeyUserAgent
	CorrelationIDKey = constants.CtxKeyCorrelationID
	StartTimeKey     = constants.CtxKeyStartTime
	ModuleKey        = constants.CtxKeyModule
	FunctionKey      = constants.CtxKeyFunction
	JobIDKey         = constants.CtxKeyJobID
	QueueKey         = constants.CtxKeyQueue
)

// RequestInfo is what the request middleware knows about an inbound call.
type RequestInfo struct {
	RequestID     string
	CorrelationID string
	ClientIP      string
	UserAgent     string
}

// WithValue adds a value to context
func WithValue(ctx context.Context, key ContextKey, value interface{}) context.Context {
	return context.WithValue(ctx, key, value)
}

// WithUserID adds user ID to context
func WithUserID(ctx context.Context, userID interface{}) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// WithFunction tags the context with the calling layer and function name.
func WithFunction(ctx context.Context, module, function string) context.Context {
	ctx = context.WithValue(ctx, ModuleKey, module)
	return context.WithValue(ctx, FunctionKey, function)
}

// WithRequestInfo stores request tracking fields and the start time.
func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	if info.RequestID != "" {
		ctx = context.WithValue(ctx, RequestIDKey, info.RequestID)
	}
	if info.CorrelationID != "" {
		ctx = context.WithValue(ctx, CorrelationIDKey, info.CorrelationID)
	}
	if info.ClientIP != "" {
		ctx = context.WithValue(ctx, ClientIPKey, info.ClientIP)
	}
	if info.UserAgent != "" {
		ctx = context.WithValue(ctx, UserAgentKey, info.UserAgent)
	}
	if GetStartTime(ctx).IsZero() {
		ctx = context.WithValue(ctx, StartTimeKey, time.Now())
	}
	return ctx
}

// WithJob tags a worker context with the job being processed.
func WithJob(ctx context.Context, queue, jobID string) context.Context {
	ctx = context.WithValue(ctx, QueueKey, queue)
	ctx = context.WithValue(ctx, JobIDKey, jobID)
	return context.WithValue(ctx, StartTimeKey, time.Now())
}

// Getter functions
func GetRequestID(ctx context.Context) string {
	if val, ok := ctx.Value(RequestIDKey).(string); ok {
		return val
	}
	return ""
}

func GetCorrelationID(ctx context.Context) string {
	if val, ok := ctx.Value(CorrelationIDKey).(string); ok {
		return val
	}
	return ""
}

func GetClientIP(ctx context.Context) string {
	if val, ok := ctx.Value(ClientIPKey).(string); ok {
		return val
	}
	return ""
}

func GetUserAgent(ctx context.Context) string {
	if val, ok := ctx.Value(UserAgentKey).(string); ok {
		return val
	}
	return ""
}

func GetUserID(ctx context.Context) interface{} {
	return ctx.Value(UserIDKey)
}

func GetUserIDUint(ctx context.Context) (uint, bool) {
	if val, ok := ctx.Value(UserIDKey).(uint); ok {
		return val, true
	}
	return 0, false
}

func GetStartTime(ctx context.Context) time.Time {
	if val, ok := ctx.Value(StartTimeKey).(time.Time); ok {
		return val
	}
	return time.Time{}
}

func GetModule(ctx context.Context) string {
	if val, ok := ctx.Value(ModuleKey).(string); ok {
		return val
	}
	return ""
}

func GetFunction(ctx context.Context) string {
	if val, ok := ctx.Value(FunctionKey).(string); ok {
		return val
	}
	return ""
}

func GetJobID(ctx context.Context) string {
	if val, ok := ctx.Value(JobIDKey).(string); ok {
		return val
	}
	return ""
}

func GetQueue(ctx context.Context) string {
	if val, ok := ctx.Value(QueueKey).(string); ok {
		return val
	}
	return ""
}

// GetDuration calculates duration from start time
func GetDuration(ctx context.Context) time.Duration {
	startTime := GetStartTime(ctx)
	if !startTime.IsZero() {
		return time.Since(startTime)
	}
	return 0
}

// Detach returns a context that keeps the tracking values of ctx but is
// never cancelled, for work that outlives the request.
func Detach(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return context.WithoutCancel(ctx)
}

// NewContextWithRequest tags a handler context with module and function
// and makes sure a start time is present.
func NewContextWithRequest(ctx context.Context, module, function string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	ctx = WithFunction(ctx, module, function)

	if GetStartTime(ctx).IsZero() {
		ctx = context.WithValue(ctx, StartTimeKey, time.Now())
	}

	return ctx
}

// ContextToMap converts context to map for logging
func ContextToMap(ctx context.Context) map[string]interface{} {
	result := make(map[string]interface{})

	if requestID := GetRequestID(ctx); requestID != "" {
		result["request_id"] = requestID
	}
	if correlationID := GetCorrelationID(ctx); correlationID != "" {
		result["correlation_id"] = correlationID
	}
	if clientIP := GetClientIP(ctx); clientIP != "" {
		result["client_ip"] = clientIP
	}
	if module := GetModule(ctx); module != "" {
		result["module"] = module
	}
	if function := GetFunction(ctx); function != "" {
		result["function"] = function
	}
	if userID := GetUserID(ctx); userID != nil {
		result["user_id"] = userID
	}
	if jobID := GetJobID(ctx); jobID != "" {
		result["job_id"] = jobID
	}
	if duration := GetDuration(ctx); duration > 0 {
		result["duration"] = duration
	}

	return result
}
