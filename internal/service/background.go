package service

import (
	"context"
	"fmt"
	"sync"

	ctxutil "github.com/Payphone-Digital/account-service/pkg/context"
	"github.com/Payphone-Digital/account-service/pkg/logger"
)

// Background runs best-effort side effects outside the request. Failures
// and panics are logged and never reach the caller.
type Background struct {
	wg sync.WaitGroup
}

func NewBackground() *Background {
	return &Background{}
}

// Go starts fn on a context that keeps the request's values but not its
// cancellation.
func (b *Background) Go(ctx context.Context, task string, fn func(ctx context.Context) error) {
	ctx = ctxutil.Detach(ctx)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logger.ErrorWithContext(ctx, "Background task panicked").
					String("task", task).
					String("panic", fmt.Sprint(r)).
					Log()
			}
		}()

		if err := fn(ctx); err != nil {
			logger.WarnWithContext(ctx, "Background task failed").
				String("task", task).
				Err(err).
				Log()
		}
	}()
}

// Wait blocks until every started task has returned.
func (b *Background) Wait() {
	b.wg.Wait()
}
