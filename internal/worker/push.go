package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Payphone-Digital/account-service/internal/dto"
	ctxutil "github.com/Payphone-Digital/account-service/pkg/context"
	"github.com/Payphone-Digital/account-service/pkg/circuit"
	"github.com/Payphone-Digital/account-service/pkg/logger"
	"github.com/Payphone-Digital/account-service/pkg/metrics"
	"github.com/Payphone-Digital/account-service/pkg/push"
	"github.com/Payphone-Digital/account-service/pkg/queue"
	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"
)

type PushProcessor struct {
	sender   push.Sender
	breaker  *circuit.Breaker
	parallel int
	metrics  *metrics.Metrics
}

func NewPushProcessor(sender push.Sender, breaker *circuit.Breaker, parallel int, m *metrics.Metrics) *PushProcessor {
	if parallel < 1 {
		parallel = 1
	}
	breaker.IsFailure = push.IsTemporary
	return &PushProcessor{sender: sender, breaker: breaker, parallel: parallel, metrics: m}
}

func (p *PushProcessor) Process(ctx context.Context, job *queue.Job) error {
	var payload dto.PushPayload
	if err := job.Decode(&payload); err != nil {
		return backoff.Permanent(fmt.Errorf("invalid push payload: %w", err))
	}
	_, err := p.Deliver(ctx, payload)
	return err
}

// Deliver sends the notification to every device token and returns one
// result per token in input order. Individual token failures are reported
// in the results only. An error means the whole job should be retried.
func (p *PushProcessor) Deliver(ctx context.Context, payload dto.PushPayload) ([]dto.PushResult, error) {
	ctx = ctxutil.WithFunction(ctx, "worker", "SendPushNotification")

	if len(payload.DeviceTokens) == 0 {
		return nil, backoff.Permanent(errors.New("push job has no device tokens"))
	}
	results := make([]dto.PushResult, len(payload.DeviceTokens))
	var (
		mu       sync.Mutex
		rejected int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.parallel)
	for i, token := range payload.DeviceTokens {
		g.Go(func() error {
			var messageID string
			err := p.breaker.Execute(gctx, func(ctx context.Context) error {
				var sendErr error
				messageID, sendErr = p.sender.Send(ctx, push.Message{
					Token: token,
					Title: payload.Title,
					Body:  payload.Body,
					Data:  payload.Data,
				})
				return sendErr
			})

			result := dto.PushResult{Token: token, Success: err == nil, MessageID: messageID}
			if err != nil {
				result.Error = err.Error()
			}

			mu.Lock()
			results[i] = result
			if errors.Is(err, circuit.ErrCircuitOpen) || errors.Is(err, circuit.ErrTooManyRequests) {
				rejected++
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if rejected == len(results) {
		return results, fmt.Errorf("push provider unavailable: %w", circuit.ErrCircuitOpen)
	}

	var failedTokens []string
	for _, r := range results {
		if !r.Success {
			failedTokens = append(failedTokens, r.Token)
		}
	}
	successCount := len(results) - len(failedTokens)
	p.metrics.PushTokens(successCount, len(failedTokens))

	logger.InfoWithContext(ctx, "Push notification job processed").
		Int("successCount", successCount).
		Int("failureCount", len(failedTokens)).
		Int("totalTokens", len(results)).
		Log()

	if len(failedTokens) > 0 {
		logger.WarnWithContext(ctx, "Some push notifications failed").
			Strings("failedTokens", failedTokens).
			Log()
	}

	return results, nil
}
