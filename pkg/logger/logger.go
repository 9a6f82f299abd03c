package logger

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/Payphone-Digital/account-service/config"
	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	Logger *zap.Logger
	Sugar  *zap.SugaredLogger
)

func init() {
	Logger = zap.NewNop()
	Sugar = Logger.Sugar()
}

// InitLogger initializes the process logger and the context log builder
// from configuration.
func InitLogger(cfg *config.Config) error {
	if err := os.MkdirAll(cfg.Log.Path, 0755); err != nil {
		return err
	}

	var zapLevel zapcore.Level
	switch cfg.App.Environment {
	case "production":
		zapLevel = zapcore.InfoLevel
	default:
		zapLevel = zapcore.DebugLevel
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	infoWriter, err := rotatingWriter(cfg.Log, "info")
	if err != nil {
		return err
	}
	errorWriter, err := rotatingWriter(cfg.Log, "error")
	if err != nil {
		return err
	}
	debugWriter, err := rotatingWriter(cfg.Log, "debug")
	if err != nil {
		return err
	}

	encoder := zapcore.NewJSONEncoder(encoderConfig)

	infoCore := zapcore.NewCore(
		encoder,
		zapcore.NewMultiWriteSyncer(zapcore.AddSync(infoWriter), zapcore.AddSync(os.Stdout)),
		zapLevel,
	)

	errorCore := zapcore.NewCore(
		encoder,
		zapcore.NewMultiWriteSyncer(zapcore.AddSync(errorWriter), zapcore.AddSync(os.Stderr)),
		zapcore.ErrorLevel,
	)

	cores := []zapcore.Core{infoCore, errorCore}
	if cfg.App.Environment != "production" {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(debugWriter), zapcore.DebugLevel))
	}

	base := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)).
		With(zap.String("service", cfg.App.Name))

	perf := DevelopmentConfig()
	if cfg.App.Environment == "production" {
		perf = ProductionConfig()
	}

	UseLogger(base, perf)
	return nil
}

// UseLogger replaces the process logger. Tests use it to capture output.
func UseLogger(l *zap.Logger, perf PerformanceConfig) {
	Logger = l
	Sugar = l.Sugar()

	optimizedMu.Lock()
	optimizedLogger = newOptimizedLoggerFrom(l, perf)
	optimizedMu.Unlock()
}

func rotatingWriter(cfg config.LogConfig, name string) (io.Writer, error) {
	pattern := filepath.Join(cfg.Path, name+".%Y%m%d.log")
	return rotatelogs.New(
		pattern,
		rotatelogs.WithLinkName(filepath.Join(cfg.Path, name+".log")),
		rotatelogs.WithMaxAge(orDefault(cfg.MaxAge, 7*24*time.Hour)),
		rotatelogs.WithRotationTime(orDefault(cfg.RotationTime, 24*time.Hour)),
	)
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

// GetLogger returns the structured logger
func GetLogger() *zap.Logger {
	return Logger
}

// GetSugarLogger returns the sugared logger
func GetSugarLogger() *zap.SugaredLogger {
	return Sugar
}

// Sync flushes buffered logs. Call before the process exits.
func Sync() {
	if Logger != nil {
		_ = Logger.Sync()
	}
}

// WithFields adds structured fields to the logger
func WithFields(fields ...zap.Field) *zap.Logger {
	return Logger.With(fields...)
}

// LogRequest logs HTTP request information
func LogRequest(method, path string, statusCode int, duration time.Duration, clientIP string, requestID string) {
	fields := []zap.Field{
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status_code", statusCode),
		zap.Duration("latency", duration),
		zap.String("client_ip", clientIP),
	}
	if requestID != "" {
		fields = append(fields, zap.String("request_id", requestID))
	}

	switch {
	case statusCode >= 500:
		Logger.Error("HTTP Request", fields...)
	case statusCode >= 400:
		Logger.Warn("HTTP Request", fields...)
	default:
		Logger.Info("HTTP Request", fields...)
	}
}

// LogPanic logs a recovered panic with its stack
func LogPanic(recovered interface{}) {
	Logger.Error("Panic recovered",
		zap.Any("panic", recovered),
		zap.Stack("stack"),
	)
}
