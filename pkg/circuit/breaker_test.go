package circuit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Payphone-Digital/account-service/config"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(cfg Config) (*Breaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := NewBreaker("test", cfg)
	b.now = clock.now
	return b, clock
}

var errProvider = errors.New("provider unavailable")

func fail(context.Context) error    { return errProvider }
func succeed(context.Context) error { return nil }

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(Config{Threshold: 3, Timeout: time.Second, SuccessThreshold: 1})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := b.Execute(ctx, fail); !errors.Is(err, errProvider) {
			t.Fatalf("Expected provider error, got %v", err)
		}
	}

	if b.State() != StateOpen {
		t.Fatalf("Expected OPEN, got %s", b.State())
	}

	called := false
	err := b.Execute(ctx, func(context.Context) error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Expected ErrCircuitOpen, got %v", err)
	}
	if called {
		t.Error("Expected fn not to run while open")
	}
}

func TestBreaker_HalfOpenProbeCloses(t *testing.T) {
	b, clock := newTestBreaker(Config{Threshold: 1, Timeout: time.Second, SuccessThreshold: 2, MaxHalfOpen: 1})
	ctx := context.Background()

	_ = b.Execute(ctx, fail)
	clock.advance(time.Second)

	if err := b.Execute(ctx, succeed); err != nil {
		t.Fatalf("Expected probe to run, got %v", err)
	}
	if b.State() != StateHalfOpen {
		t.Fatalf("Expected HALF_OPEN after one success, got %s", b.State())
	}

	if err := b.Execute(ctx, succeed); err != nil {
		t.Fatalf("Expected second probe to run, got %v", err)
	}
	if b.State() != StateClosed {
		t.Errorf("Expected CLOSED, got %s", b.State())
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b, clock := newTestBreaker(Config{Threshold: 1, Timeout: time.Second, SuccessThreshold: 1})
	ctx := context.Background()

	_ = b.Execute(ctx, fail)
	clock.advance(2 * time.Second)
	_ = b.Execute(ctx, fail)

	if b.State() != StateOpen {
		t.Fatalf("Expected OPEN after failed probe, got %s", b.State())
	}
	if err := b.Allow(ctx); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Expected open period to restart, got %v", err)
	}
}

func TestBreaker_LimitsConcurrentProbes(t *testing.T) {
	b, clock := newTestBreaker(Config{Threshold: 1, Timeout: time.Second, SuccessThreshold: 1, MaxHalfOpen: 1})
	ctx := context.Background()

	_ = b.Execute(ctx, fail)
	clock.advance(time.Second)

	if err := b.Allow(ctx); err != nil {
		t.Fatalf("Expected first probe admitted, got %v", err)
	}
	if err := b.Allow(ctx); !errors.Is(err, ErrTooManyRequests) {
		t.Errorf("Expected ErrTooManyRequests, got %v", err)
	}
}

func TestBreaker_IgnoresNonFailures(t *testing.T) {
	b, _ := newTestBreaker(Config{Threshold: 1, Timeout: time.Second})
	errBadRequest := errors.New("bad request")
	b.IsFailure = func(err error) bool { return !errors.Is(err, errBadRequest) }
	ctx := context.Background()

	_ = b.Execute(ctx, func(context.Context) error { return errBadRequest })
	_ = b.Execute(ctx, func(context.Context) error { return context.Canceled })

	if b.State() != StateClosed {
		t.Errorf("Expected CLOSED, got %s", b.State())
	}
}

func TestBreaker_CancelledContext(t *testing.T) {
	b, _ := newTestBreaker(DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := b.Execute(ctx, succeed); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestFromConfig(t *testing.T) {
	c := FromConfig(config.BreakerConfig{Threshold: 7})
	if c.Threshold != 7 {
		t.Errorf("Expected threshold 7, got %d", c.Threshold)
	}
	if c.Timeout != DefaultConfig().Timeout {
		t.Errorf("Expected default timeout, got %s", c.Timeout)
	}
}

func TestRegistry_Get(t *testing.T) {
	r := NewRegistry(DefaultConfig())

	mail := r.Get("sendgrid")
	if r.Get("sendgrid") != mail {
		t.Error("Expected same breaker for same name")
	}
	if r.Get("fcm") == mail {
		t.Error("Expected distinct breakers per provider")
	}
	if len(r.Stats()) != 2 {
		t.Errorf("Expected 2 breakers in stats, got %d", len(r.Stats()))
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StateClosed, "CLOSED"},
		{StateOpen, "OPEN"},
		{StateHalfOpen, "HALF_OPEN"},
		{State(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.expected {
			t.Errorf("State(%d).String() = %s, want %s", tt.state, got, tt.expected)
		}
	}
}
