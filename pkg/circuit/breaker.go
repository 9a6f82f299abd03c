package circuit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Payphone-Digital/account-service/config"
	"github.com/Payphone-Digital/account-service/pkg/logger"
)

// State represents circuit breaker state
type State int

const (
	StateClosed   State = iota // calls pass through
	StateOpen                  // calls fail fast
	StateHalfOpen              // probing whether the provider recovered
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

var (
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// Config defines circuit breaker configuration
type Config struct {
	Threshold        int           // consecutive failures before opening
	Timeout          time.Duration // open period before probing
	SuccessThreshold int           // probe successes needed to close
	MaxHalfOpen      int           // concurrent probes allowed
}

func DefaultConfig() Config {
	return Config{
		Threshold:        5,
		Timeout:          30 * time.Second,
		SuccessThreshold: 2,
		MaxHalfOpen:      1,
	}
}

// FromConfig fills a breaker Config from application settings, keeping
// defaults for anything unset.
func FromConfig(cfg config.BreakerConfig) Config {
	c := DefaultConfig()
	if cfg.Threshold > 0 {
		c.Threshold = cfg.Threshold
	}
	if cfg.Timeout > 0 {
		c.Timeout = cfg.Timeout
	}
	if cfg.SuccessThreshold > 0 {
		c.SuccessThreshold = cfg.SuccessThreshold
	}
	return c
}

// Breaker guards calls to one outbound provider.
type Breaker struct {
	mu               sync.Mutex
	state            State
	failures         int
	successes        int
	halfOpenRequests int
	openedAt         time.Time
	config           Config
	name             string
	now              func() time.Time

	// IsFailure decides whether an error counts against the provider.
	// Caller cancellation never does.
	IsFailure func(error) bool
}

func NewBreaker(name string, cfg Config) *Breaker {
	if cfg.MaxHalfOpen <= 0 {
		cfg.MaxHalfOpen = 1
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 1
	}
	return &Breaker{
		state:  StateClosed,
		config: cfg,
		name:   name,
		now:    time.Now,
	}
}

// Execute runs fn when the breaker admits the call and records its outcome.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.Allow(ctx); err != nil {
		return err
	}

	err := fn(ctx)
	b.Record(ctx, err)
	return err
}

// Allow checks if a request should be allowed
func (b *Breaker) Allow(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.config.Timeout {
			return ErrCircuitOpen
		}
		b.transitionTo(ctx, StateHalfOpen)
		b.halfOpenRequests = 1
		return nil

	case StateHalfOpen:
		if b.halfOpenRequests >= b.config.MaxHalfOpen {
			return ErrTooManyRequests
		}
		b.halfOpenRequests++
		return nil

	default:
		return nil
	}
}

// Record feeds the result of an admitted call back into the breaker.
func (b *Breaker) Record(ctx context.Context, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil && b.countsAsFailure(err) {
		b.recordFailure(ctx)
		return
	}

	if b.state == StateHalfOpen && b.halfOpenRequests > 0 {
		b.halfOpenRequests--
	}
	if err == nil {
		b.recordSuccess(ctx)
	}
}

func (b *Breaker) countsAsFailure(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if b.IsFailure != nil {
		return b.IsFailure(err)
	}
	return true
}

// must hold lock
func (b *Breaker) recordFailure(ctx context.Context) {
	b.failures++
	b.successes = 0

	switch b.state {
	case StateClosed:
		if b.failures >= b.config.Threshold {
			b.transitionTo(ctx, StateOpen)
		}
	case StateHalfOpen:
		b.transitionTo(ctx, StateOpen)
	}
}

// must hold lock
func (b *Breaker) recordSuccess(ctx context.Context) {
	b.failures = 0

	if b.state == StateHalfOpen {
		b.successes++
		if b.successes >= b.config.SuccessThreshold {
			b.transitionTo(ctx, StateClosed)
		}
	}
}

// must hold lock
func (b *Breaker) transitionTo(ctx context.Context, newState State) {
	oldState := b.state
	failures := b.failures

	b.state = newState
	b.halfOpenRequests = 0
	b.successes = 0
	if newState == StateOpen {
		b.openedAt = b.now()
	}
	if newState == StateClosed {
		b.failures = 0
	}

	entry := logger.WarnWithContext(ctx, "Circuit breaker state changed")
	if newState == StateClosed {
		entry = logger.InfoWithContext(ctx, "Circuit breaker state changed")
	}
	entry.
		String("breaker", b.name).
		String("from", oldState.String()).
		String("to", newState.String()).
		Int("failures", failures).
		Log()
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) Name() string {
	return b.name
}

// Stats returns circuit breaker statistics
func (b *Breaker) Stats() map[string]interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()

	return map[string]interface{}{
		"name":      b.name,
		"state":     b.state.String(),
		"failures":  b.failures,
		"threshold": b.config.Threshold,
		"timeout":   b.config.Timeout.String(),
	}
}

// Reset forces the breaker closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = StateClosed
	b.failures = 0
	b.successes = 0
	b.halfOpenRequests = 0
}

// Registry hands out one breaker per provider name.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*Breaker
	config   Config
}

func NewRegistry(cfg Config) *Registry {
	return &Registry{
		breakers: make(map[string]*Breaker),
		config:   cfg,
	}
}

func (r *Registry) Get(name string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.breakers[name]; ok {
		return b
	}
	b := NewBreaker(name, r.config)
	r.breakers[name] = b
	return b
}

// Stats returns stats for every breaker, keyed by name.
func (r *Registry) Stats() map[string]interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := make(map[string]interface{}, len(r.breakers))
	for name, b := range r.breakers {
		stats[name] = b.Stats()
	}
	return stats
}
