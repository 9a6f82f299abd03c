package worker

import (
	"context"
	"fmt"

	"github.com/Payphone-Digital/account-service/pkg/queue"
	"github.com/cenkalti/backoff/v5"
)

// Dispatcher routes a job to the handler registered for its name.
type Dispatcher struct {
	handlers map[string]queue.Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]queue.Handler)}
}

func (d *Dispatcher) Register(jobName string, handler queue.Handler) {
	d.handlers[jobName] = handler
}

// Handle is a queue.Handler. Jobs nobody handles are dead-lettered without
// retries.
func (d *Dispatcher) Handle(ctx context.Context, job *queue.Job) error {
	handler, ok := d.handlers[job.Name]
	if !ok {
		return backoff.Permanent(fmt.Errorf("no handler registered for job %q", job.Name))
	}
	return handler(ctx, job)
}
