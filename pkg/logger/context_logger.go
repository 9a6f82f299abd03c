package logger

import (
	"context"
	"time"

	ctxutil "github.com/Payphone-Digital/account-service/pkg/context"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ContextLogBuilder builds one log entry, pulling tracking fields from ctx.
type ContextLogBuilder struct {
	logger     *OptimizedLogger
	ctx        context.Context
	level      zapcore.Level
	fields     []zap.Field
	message    string
	shouldLog  bool
	autoFields bool
}

// WithContext starts a log builder bound to ctx.
func (ol *OptimizedLogger) WithContext(ctx context.Context) *ContextLogBuilder {
	return &ContextLogBuilder{
		logger:     ol,
		ctx:        ctx,
		level:      zapcore.InfoLevel,
		fields:     make([]zap.Field, 0, 12),
		shouldLog:  true,
		autoFields: true,
	}
}

// AutoFields toggles extraction of tracking fields from the context.
func (clb *ContextLogBuilder) AutoFields(auto bool) *ContextLogBuilder {
	clb.autoFields = auto
	return clb
}

func (clb *ContextLogBuilder) extractContextFields() {
	if !clb.autoFields || clb.ctx == nil {
		return
	}

	if requestID := ctxutil.GetRequestID(clb.ctx); requestID != "" {
		clb.fields = append(clb.fields, zap.String("request_id", requestID))
	}

	if correlationID := ctxutil.GetCorrelationID(clb.ctx); correlationID != "" {
		clb.fields = append(clb.fields, zap.String("correlation_id", correlationID))
	}

	if clientIP := ctxutil.GetClientIP(clb.ctx); clientIP != "" {
		clb.fields = append(clb.fields, zap.String("client_ip", clientIP))
	}

	if userID, ok := ctxutil.GetUserIDUint(clb.ctx); ok {
		clb.fields = append(clb.fields, zap.Uint("user_id", userID))
	} else if userID := ctxutil.GetUserID(clb.ctx); userID != nil {
		switch v := userID.(type) {
		case int:
			clb.fields = append(clb.fields, zap.Int("user_id", v))
		case string:
			clb.fields = append(clb.fields, zap.String("user_id", v))
		default:
			clb.fields = append(clb.fields, zap.Any("user_id", userID))
		}
	}

	if queue := ctxutil.GetQueue(clb.ctx); queue != "" {
		clb.fields = append(clb.fields, zap.String("queue", queue))
	}

	if jobID := ctxutil.GetJobID(clb.ctx); jobID != "" {
		clb.fields = append(clb.fields, zap.String("job_id", jobID))
	}

	if module := ctxutil.GetModule(clb.ctx); module != "" {
		clb.fields = append(clb.fields, zap.String("module", module))
	}

	if function := ctxutil.GetFunction(clb.ctx); function != "" {
		clb.fields = append(clb.fields, zap.String("function", function))
	}
}

func (clb *ContextLogBuilder) at(level zapcore.Level, message string) *ContextLogBuilder {
	if !clb.logger.ShouldLog(level) {
		clb.shouldLog = false
		return clb
	}
	clb.level = level
	clb.message = message
	clb.extractContextFields()
	return clb
}

func (clb *ContextLogBuilder) Info(message string) *ContextLogBuilder {
	return clb.at(zapcore.InfoLevel, message)
}

func (clb *ContextLogBuilder) Warn(message string) *ContextLogBuilder {
	return clb.at(zapcore.WarnLevel, message)
}

func (clb *ContextLogBuilder) Error(message string) *ContextLogBuilder {
	return clb.at(zapcore.ErrorLevel, message)
}

func (clb *ContextLogBuilder) Debug(message string) *ContextLogBuilder {
	return clb.at(zapcore.DebugLevel, message)
}

func (clb *ContextLogBuilder) String(key, value string) *ContextLogBuilder {
	if clb.shouldLog {
		clb.fields = append(clb.fields, zap.String(key, value))
	}
	return clb
}

func (clb *ContextLogBuilder) Strings(key string, values []string) *ContextLogBuilder {
	if clb.shouldLog {
		clb.fields = append(clb.fields, zap.Strings(key, values))
	}
	return clb
}

func (clb *ContextLogBuilder) Int(key string, value int) *ContextLogBuilder {
	if clb.shouldLog {
		clb.fields = append(clb.fields, zap.Int(key, value))
	}
	return clb
}

func (clb *ContextLogBuilder) Uint(key string, value uint) *ContextLogBuilder {
	if clb.shouldLog {
		clb.fields = append(clb.fields, zap.Uint(key, value))
	}
	return clb
}

func (clb *ContextLogBuilder) Bool(key string, value bool) *ContextLogBuilder {
	if clb.shouldLog {
		clb.fields = append(clb.fields, zap.Bool(key, value))
	}
	return clb
}

func (clb *ContextLogBuilder) Time(key string, value time.Time) *ContextLogBuilder {
	if clb.shouldLog {
		clb.fields = append(clb.fields, zap.Time(key, value))
	}
	return clb
}

func (clb *ContextLogBuilder) Duration(value time.Duration) *ContextLogBuilder {
	if clb.shouldLog {
		clb.fields = append(clb.fields, zap.Duration("duration", value))
	}
	return clb
}

func (clb *ContextLogBuilder) Err(err error) *ContextLogBuilder {
	if clb.shouldLog && err != nil {
		clb.fields = append(clb.fields, zap.Error(err))
	}
	return clb
}

func (clb *ContextLogBuilder) Any(key string, value interface{}) *ContextLogBuilder {
	if clb.shouldLog {
		clb.fields = append(clb.fields, zap.Any(key, value))
	}
	return clb
}

// Log writes the entry. Debug and info entries are dropped once the
// context is cancelled; warnings and errors are always written.
func (clb *ContextLogBuilder) Log() {
	if !clb.shouldLog {
		return
	}

	if clb.ctx != nil && clb.level < zapcore.WarnLevel && clb.ctx.Err() != nil {
		return
	}

	if clb.ctx != nil && clb.autoFields {
		if duration := ctxutil.GetDuration(clb.ctx); duration > 0 {
			clb.fields = append(clb.fields, zap.Duration("elapsed", duration))
		}
	}

	switch clb.level {
	case zapcore.DebugLevel:
		clb.logger.logger.Debug(clb.message, clb.fields...)
	case zapcore.InfoLevel:
		clb.logger.logger.Info(clb.message, clb.fields...)
	case zapcore.WarnLevel:
		clb.logger.logger.Warn(clb.message, clb.fields...)
	case zapcore.ErrorLevel:
		clb.logger.logger.Error(clb.message, clb.fields...)
	}
}

// Global context logger helper functions
func WithContext(ctx context.Context) *ContextLogBuilder {
	return GetOptimizedLogger().WithContext(ctx)
}

func InfoWithContext(ctx context.Context, message string) *ContextLogBuilder {
	return GetOptimizedLogger().WithContext(ctx).Info(message)
}

func WarnWithContext(ctx context.Context, message string) *ContextLogBuilder {
	return GetOptimizedLogger().WithContext(ctx).Warn(message)
}

func ErrorWithContext(ctx context.Context, message string) *ContextLogBuilder {
	return GetOptimizedLogger().WithContext(ctx).Error(message)
}

func DebugWithContext(ctx context.Context, message string) *ContextLogBuilder {
	return GetOptimizedLogger().WithContext(ctx).Debug(message)
}
