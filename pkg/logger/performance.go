package logger

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// PerformanceConfig controls filtering applied before a log entry is built.
type PerformanceConfig struct {
	MinLogLevel     zapcore.Level `json:"min_log_level"`
	MaxLogPerSecond int           `json:"max_log_per_second"`
	EnableRateLimit bool          `json:"enable_rate_limit"`
}

// DefaultPerformanceConfig logs everything from info up.
func DefaultPerformanceConfig() PerformanceConfig {
	return PerformanceConfig{
		MinLogLevel:     zapcore.InfoLevel,
		MaxLogPerSecond: 1000,
		EnableRateLimit: false,
	}
}

// ProductionConfig drops debug and caps the entry rate.
func ProductionConfig() PerformanceConfig {
	return PerformanceConfig{
		MinLogLevel:     zapcore.InfoLevel,
		MaxLogPerSecond: 2000,
		EnableRateLimit: true,
	}
}

// DevelopmentConfig logs everything.
func DevelopmentConfig() PerformanceConfig {
	return PerformanceConfig{
		MinLogLevel:     zapcore.DebugLevel,
		MaxLogPerSecond: 10000,
		EnableRateLimit: false,
	}
}

// OptimizedLogger filters entries by level and rate before they are built.
type OptimizedLogger struct {
	config      PerformanceConfig
	logger      *zap.Logger
	rateLimiter *RateLimiter
}

// RateLimiter caps the number of entries per second.
type RateLimiter struct {
	maxLogs   int
	current   int
	lastReset time.Time
	mu        sync.Mutex
}

func NewRateLimiter(maxLogs int) *RateLimiter {
	return &RateLimiter{
		maxLogs:   maxLogs,
		lastReset: time.Now(),
	}
}

func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Sub(rl.lastReset) >= time.Second {
		rl.current = 0
		rl.lastReset = now
	}

	if rl.current >= rl.maxLogs {
		return false
	}

	rl.current++
	return true
}

func newOptimizedLoggerFrom(l *zap.Logger, config PerformanceConfig) *OptimizedLogger {
	return &OptimizedLogger{
		config:      config,
		logger:      l,
		rateLimiter: NewRateLimiter(config.MaxLogPerSecond),
	}
}

// ShouldLog reports whether an entry at level passes the filters.
// Errors always pass the rate limiter.
func (ol *OptimizedLogger) ShouldLog(level zapcore.Level) bool {
	if level < ol.config.MinLogLevel {
		return false
	}

	if level < zapcore.ErrorLevel && ol.config.EnableRateLimit && !ol.rateLimiter.Allow() {
		return false
	}

	return true
}

var (
	optimizedLogger *OptimizedLogger
	optimizedMu     sync.Mutex
)

// GetOptimizedLogger returns the filtering logger, falling back to a
// no-op logger until InitLogger or UseLogger runs.
func GetOptimizedLogger() *OptimizedLogger {
	optimizedMu.Lock()
	defer optimizedMu.Unlock()

	if optimizedLogger == nil {
		optimizedLogger = newOptimizedLoggerFrom(zap.NewNop(), DefaultPerformanceConfig())
	}
	return optimizedLogger
}
