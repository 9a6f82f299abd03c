package worker

import (
	"context"
	"time"

	"github.com/Payphone-Digital/account-service/config"
	"github.com/Payphone-Digital/account-service/internal/constants"
	"github.com/Payphone-Digital/account-service/pkg/queue"
	"golang.org/x/sync/errgroup"
)

// Worker consumes the email and push queues.
type Worker struct {
	consumers []*queue.Consumer
}

func New(q *queue.Queue, cfg config.QueueConfig, jobTimeout time.Duration, email *EmailProcessor, push *PushProcessor, hooks queue.Hooks) *Worker {
	dispatcher := NewDispatcher()
	dispatcher.Register(constants.JobSendEmail, email.Process)
	dispatcher.Register(constants.JobSendPushNotification, push.Process)

	consumerConfig := func(name string) queue.ConsumerConfig {
		return queue.ConsumerConfig{
			Queue:           name,
			Concurrency:     cfg.Concurrency,
			PollTimeout:     cfg.PollTimeout,
			PromoteInterval: cfg.PromoteInterval,
			JobTimeout:      jobTimeout,
		}
	}

	return &Worker{consumers: []*queue.Consumer{
		queue.NewConsumer(q, consumerConfig(cfg.EmailQueue), dispatcher.Handle, hooks),
		queue.NewConsumer(q, consumerConfig(cfg.PushQueue), dispatcher.Handle, hooks),
	}}
}

// Run blocks until ctx is cancelled or a consumer fails to start.
func (w *Worker) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range w.consumers {
		g.Go(func() error {
			return c.Run(gctx)
		})
	}
	return g.Wait()
}
