package queue

import (
	"errors"
	"time"

	"github.com/Payphone-Digital/account-service/config"
	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy bounds how often a failing job runs and how long it waits
// between attempts.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     string
	Delay       time.Duration
	MaxDelay    time.Duration
	// KeepCompleted caps the list of finished jobs kept for inspection.
	// Zero keeps none.
	KeepCompleted int
}

func PolicyFromConfig(cfg config.QueueConfig) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: cfg.MaxAttempts,
		Backoff:     cfg.BackoffType,
		Delay:       cfg.BackoffDelay,
		MaxDelay:    cfg.BackoffMaxDelay,

		KeepCompleted: cfg.KeepCompleted,
	}
}

func (p RetryPolicy) newBackOff() backoff.BackOff {
	if p.Backoff == config.BackoffFixed {
		return backoff.NewConstantBackOff(p.Delay)
	}

	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = backoff.DefaultMaxInterval
	}
	return &backoff.ExponentialBackOff{
		InitialInterval:     p.Delay,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         maxDelay,
	}
}

// DelayAfter returns the wait before the next run of a job that has
// already failed attempts times: Delay for fixed, Delay*2^(attempts-1)
// capped at MaxDelay for exponential.
func (p RetryPolicy) DelayAfter(attempts int) time.Duration {
	if attempts < 1 || p.Delay <= 0 {
		return 0
	}
	b := p.newBackOff()
	b.Reset()

	var delay time.Duration
	for i := 0; i < attempts; i++ {
		delay = b.NextBackOff()
	}
	return delay
}

// ForJob returns the policy with the attempt budget stamped on job when it
// was enqueued, so a config change does not alter jobs already queued.
func (p RetryPolicy) ForJob(job *Job) RetryPolicy {
	if job.MaxAttempts > 0 {
		p.MaxAttempts = job.MaxAttempts
	}
	return p
}

// ShouldRetry reports whether a job with attempts failures and the last
// error cause gets another run. Errors wrapped with backoff.Permanent
// never retry.
func (p RetryPolicy) ShouldRetry(attempts int, cause error) bool {
	var permanent *backoff.PermanentError
	if errors.As(cause, &permanent) {
		return false
	}
	return attempts < p.MaxAttempts
}
