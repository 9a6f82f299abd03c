package queue

import (
	"context"
	"fmt"
	"time"

	ctxutil "github.com/Payphone-Digital/account-service/pkg/context"
	"github.com/Payphone-Digital/account-service/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// Handler processes one job. A returned error fails the attempt.
type Handler func(ctx context.Context, job *Job) error

// Hooks observe job outcomes. Any of them may be nil.
type Hooks struct {
	OnCompleted func(ctx context.Context, job *Job, elapsed time.Duration)
	OnRetry     func(ctx context.Context, job *Job, err error, delay time.Duration)
	OnFailed    func(ctx context.Context, job *Job, err error)
	OnStalled   func(ctx context.Context, job *Job)
}

type ConsumerConfig struct {
	Queue           string
	Concurrency     int
	PollTimeout     time.Duration
	PromoteInterval time.Duration
	JobTimeout      time.Duration
}

// Consumer runs Concurrency workers against one queue plus a promoter for
// delayed retries.
type Consumer struct {
	queue   *Queue
	cfg     ConsumerConfig
	handler Handler
	hooks   Hooks
}

func NewConsumer(q *Queue, cfg ConsumerConfig, handler Handler, hooks Hooks) *Consumer {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 5 * time.Second
	}
	if cfg.PromoteInterval <= 0 {
		cfg.PromoteInterval = time.Second
	}
	return &Consumer{queue: q, cfg: cfg, handler: handler, hooks: hooks}
}

// Run requeues stalled jobs, then consumes until ctx is cancelled. Jobs
// already running when ctx ends are allowed to finish.
func (c *Consumer) Run(ctx context.Context) error {
	ctx = ctxutil.WithFunction(ctx, "queue", "Consume")
	ctx = ctxutil.WithValue(ctx, ctxutil.QueueKey, c.cfg.Queue)

	stalled, err := c.queue.RequeueActive(ctx, c.cfg.Queue)
	if err != nil {
		return fmt.Errorf("failed to requeue stalled jobs: %w", err)
	}
	for _, job := range stalled {
		if c.hooks.OnStalled != nil {
			c.hooks.OnStalled(ctxutil.WithJob(ctx, c.cfg.Queue, job.ID), job)
		}
	}

	logger.InfoWithContext(ctx, "Queue consumer started").
		Int("concurrency", c.cfg.Concurrency).
		Int("stalled_requeued", len(stalled)).
		Log()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.promoteLoop(gctx)
	})
	for i := 0; i < c.cfg.Concurrency; i++ {
		g.Go(func() error {
			return c.workLoop(gctx)
		})
	}

	err = g.Wait()
	logger.InfoWithContext(ctx, "Queue consumer stopped").Err(err).Log()
	return err
}

func (c *Consumer) promoteLoop(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.PromoteInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			moved, err := c.queue.Promote(ctx, c.cfg.Queue)
			if err != nil && ctx.Err() == nil {
				logger.WarnWithContext(ctx, "Failed to promote delayed jobs").Err(err).Log()
				continue
			}
			if moved > 0 {
				logger.DebugWithContext(ctx, "Delayed jobs promoted").Int("count", moved).Log()
			}
		}
	}
}

func (c *Consumer) workLoop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		job, err := c.queue.Reserve(ctx, c.cfg.Queue, c.cfg.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.WarnWithContext(ctx, "Failed to reserve job").Err(err).Log()
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.cfg.PollTimeout):
			}
			continue
		}
		if job == nil {
			continue
		}

		c.process(ctx, job)
	}
}

// process runs the handler on a context detached from shutdown so an
// in-flight attempt completes and is settled.
func (c *Consumer) process(ctx context.Context, job *Job) {
	jobCtx := ctxutil.WithJob(ctxutil.Detach(ctx), job.Queue, job.ID)
	if c.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(jobCtx, c.cfg.JobTimeout)
		defer cancel()
	}

	start := time.Now()
	err := c.safeHandle(jobCtx, job)
	elapsed := time.Since(start)

	settleCtx := ctxutil.WithJob(ctxutil.Detach(ctx), job.Queue, job.ID)

	if err == nil {
		if cerr := c.queue.Complete(settleCtx, job); cerr != nil {
			logger.ErrorWithContext(settleCtx, "Failed to mark job completed").Err(cerr).Log()
		}
		if c.hooks.OnCompleted != nil {
			c.hooks.OnCompleted(settleCtx, job, elapsed)
		}
		return
	}

	result, ferr := c.queue.Fail(settleCtx, job, err)
	if ferr != nil {
		logger.ErrorWithContext(settleCtx, "Failed to record job failure").Err(ferr).Log()
		return
	}
	if result.Retried {
		if c.hooks.OnRetry != nil {
			c.hooks.OnRetry(settleCtx, job, err, result.Delay)
		}
		return
	}
	if c.hooks.OnFailed != nil {
		c.hooks.OnFailed(settleCtx, job, err)
	}
}

func (c *Consumer) safeHandle(ctx context.Context, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job handler panicked: %v", r)
		}
	}()
	return c.handler(ctx, job)
}
