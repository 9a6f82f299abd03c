package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Payphone-Digital/account-service/internal/dto"
	ctxutil "github.com/Payphone-Digital/account-service/pkg/context"
	"github.com/Payphone-Digital/account-service/pkg/circuit"
	"github.com/Payphone-Digital/account-service/pkg/logger"
	"github.com/Payphone-Digital/account-service/pkg/mailer"
	"github.com/Payphone-Digital/account-service/pkg/queue"
	tmpl "github.com/Payphone-Digital/account-service/pkg/template"
	"github.com/cenkalti/backoff/v5"
)

// Renderer produces the HTML body for a template id.
type Renderer interface {
	Has(id string) bool
	Render(id string, data map[string]any) (string, error)
}

type EmailProcessor struct {
	renderer Renderer
	mailer   mailer.Sender
	breaker  *circuit.Breaker
}

func NewEmailProcessor(renderer Renderer, sender mailer.Sender, breaker *circuit.Breaker) *EmailProcessor {
	breaker.IsFailure = mailer.IsTemporary
	return &EmailProcessor{renderer: renderer, mailer: sender, breaker: breaker}
}

// Process renders and sends one email job. Errors that another attempt
// cannot fix are marked permanent so the job is dead-lettered at once.
func (p *EmailProcessor) Process(ctx context.Context, job *queue.Job) error {
	ctx = ctxutil.WithFunction(ctx, "worker", "SendEmail")

	var payload dto.EmailPayload
	if err := job.Decode(&payload); err != nil {
		return backoff.Permanent(fmt.Errorf("invalid email payload: %w", err))
	}
	if len(payload.To) == 0 {
		return backoff.Permanent(mailer.ErrNoRecipients)
	}

	if !p.renderer.Has(payload.TemplateID) {
		return backoff.Permanent(fmt.Errorf("%w: %s", tmpl.ErrUnknownTemplate, payload.TemplateID))
	}
	html, err := p.renderer.Render(payload.TemplateID, payload.TemplateData)
	if err != nil {
		return backoff.Permanent(err)
	}

	subject, err := tmpl.RenderString(payload.Subject, payload.TemplateData)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("invalid subject template: %w", err))
	}

	msg := mailer.Message{Subject: subject, HTML: html}
	if payload.From != nil {
		msg.From = mailer.Address{Email: payload.From.Email, Name: payload.From.Name}
	}
	for _, to := range payload.To {
		msg.To = append(msg.To, mailer.Address{Email: to.Email, Name: to.Name})
	}

	start := time.Now()
	err = p.breaker.Execute(ctx, func(ctx context.Context) error {
		return p.mailer.Send(ctx, msg)
	})
	if err != nil {
		logger.WarnWithContext(ctx, "Email delivery attempt failed").
			String("template", payload.TemplateID).
			Int("attempt", job.AttemptsMade+1).
			Duration(time.Since(start)).
			Err(err).
			Log()
		if !errors.Is(err, circuit.ErrCircuitOpen) && !errors.Is(err, circuit.ErrTooManyRequests) && !mailer.IsTemporary(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	logger.InfoWithContext(ctx, "Email sent").
		String("template", payload.TemplateID).
		Int("recipients", len(msg.To)).
		Duration(time.Since(start)).
		Log()
	return nil
}
