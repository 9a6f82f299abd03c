package logger

import (
	"context"
	"errors"
	"testing"

	ctxutil "github.com/Payphone-Digital/account-service/pkg/context"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T, perf PerformanceConfig) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	UseLogger(zap.New(core), perf)
	t.Cleanup(func() { UseLogger(zap.NewNop(), DefaultPerformanceConfig()) })
	return logs
}

func TestContextLogBuilder_ExtractsContextFields(t *testing.T) {
	logs := observe(t, DevelopmentConfig())

	ctx := ctxutil.WithRequestInfo(context.Background(), ctxutil.RequestInfo{RequestID: "req-42"})
	ctx = ctxutil.WithFunction(ctx, "service", "Login")

	InfoWithContext(ctx, "User login attempt").String("email", "a@b.com").Log()

	if logs.Len() != 1 {
		t.Fatalf("Expected 1 entry, got %d", logs.Len())
	}
	fields := logs.All()[0].ContextMap()
	if fields["request_id"] != "req-42" {
		t.Errorf("Expected request_id req-42, got %v", fields["request_id"])
	}
	if fields["function"] != "Login" || fields["module"] != "service" {
		t.Errorf("Expected module/function fields, got %v", fields)
	}
	if fields["email"] != "a@b.com" {
		t.Errorf("Expected email field, got %v", fields["email"])
	}
}

func TestContextLogBuilder_UserID(t *testing.T) {
	logs := observe(t, DevelopmentConfig())

	InfoWithContext(ctxutil.WithUserID(context.Background(), uint(7)), "numeric").Log()
	InfoWithContext(ctxutil.WithUserID(context.Background(), "svc-7"), "named").Log()

	if logs.Len() != 2 {
		t.Fatalf("Expected 2 entries, got %d", logs.Len())
	}
	if got := logs.All()[0].ContextMap()["user_id"]; got != uint64(7) {
		t.Errorf("Expected user_id 7, got %v (%T)", got, got)
	}
	if got := logs.All()[1].ContextMap()["user_id"]; got != "svc-7" {
		t.Errorf("Expected user_id svc-7, got %v", got)
	}
}

func TestContextLogBuilder_LevelFilter(t *testing.T) {
	logs := observe(t, DefaultPerformanceConfig())

	DebugWithContext(context.Background(), "hidden").Log()
	WarnWithContext(context.Background(), "visible").Err(errors.New("boom")).Log()

	if logs.Len() != 1 {
		t.Fatalf("Expected only the warning, got %d entries", logs.Len())
	}
	if logs.All()[0].Message != "visible" {
		t.Errorf("Expected 'visible', got %q", logs.All()[0].Message)
	}
}

func TestContextLogBuilder_CancelledContext(t *testing.T) {
	logs := observe(t, DevelopmentConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	InfoWithContext(ctx, "dropped").Log()
	ErrorWithContext(ctx, "kept").Log()

	if logs.Len() != 1 || logs.All()[0].Message != "kept" {
		t.Errorf("Expected only the error entry, got %v", logs.All())
	}
}

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(2)
	if !rl.Allow() || !rl.Allow() {
		t.Fatal("Expected first two entries to pass")
	}
	if rl.Allow() {
		t.Error("Expected third entry in the same second to be dropped")
	}
}
