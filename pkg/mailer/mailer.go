package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Payphone-Digital/account-service/config"
	"github.com/Payphone-Digital/account-service/pkg/logger"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

const sendEndpoint = "/v3/mail/send"

var ErrNoRecipients = errors.New("mailer: message has no recipients")

type Address struct {
	Email string
	Name  string
}

// Message is a fully rendered email.
type Message struct {
	From    Address
	To      []Address
	Subject string
	HTML    string
}

// Sender delivers a rendered email.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// ProviderError is returned when the provider answers with a non-2xx status.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("sendgrid responded with status %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether a later attempt may succeed.
func (e *ProviderError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// IsTemporary reports whether err is worth retrying. Transport errors are.
func IsTemporary(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Temporary()
	}
	return !errors.Is(err, ErrNoRecipients)
}

type SendGridMailer struct {
	client  *sendgrid.Client
	sandbox bool
}

func NewSendGridMailer(cfg config.MailConfig) *SendGridMailer {
	host := cfg.SendGridHost
	if host == "" {
		host = "https://api.sendgrid.com"
	}

	request := sendgrid.GetRequest(cfg.SendGridAPIKey, sendEndpoint, host)
	request.Method = http.MethodPost

	return &SendGridMailer{
		client:  &sendgrid.Client{Request: request},
		sandbox: cfg.SandboxMode,
	}
}

func (m *SendGridMailer) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return ErrNoRecipients
	}

	email := mail.NewV3Mail()
	email.SetFrom(mail.NewEmail(msg.From.Name, msg.From.Email))
	email.Subject = msg.Subject

	personalization := mail.NewPersonalization()
	for _, to := range msg.To {
		personalization.AddTos(mail.NewEmail(to.Name, to.Email))
	}
	email.AddPersonalizations(personalization)
	email.AddContent(mail.NewContent("text/html", msg.HTML))

	if m.sandbox {
		settings := mail.NewMailSettings()
		settings.SetSandboxMode(mail.NewSetting(true))
		email.SetMailSettings(settings)
	}

	response, err := m.client.SendWithContext(ctx, email)
	if err != nil {
		return fmt.Errorf("sendgrid request failed: %w", err)
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return &ProviderError{StatusCode: response.StatusCode, Body: response.Body}
	}

	logger.DebugWithContext(ctx, "Email accepted by provider").
		String("subject", msg.Subject).
		Int("recipients", len(msg.To)).
		Int("status_code", response.StatusCode).
		Log()
	return nil
}

// LogMailer writes emails to the log instead of sending them. It is used
// when no SendGrid key is configured.
type LogMailer struct{}

func (LogMailer) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return ErrNoRecipients
	}

	to := make([]string, 0, len(msg.To))
	for _, a := range msg.To {
		to = append(to, a.Email)
	}
	logger.InfoWithContext(ctx, "Email delivery skipped, no provider configured").
		String("subject", msg.Subject).
		Strings("to", to).
		Int("html_bytes", len(msg.HTML)).
		Log()
	return nil
}

// New picks the SendGrid mailer when an API key is configured.
func New(cfg config.MailConfig) Sender {
	if cfg.SendGridAPIKey == "" {
		return LogMailer{}
	}
	return NewSendGridMailer(cfg)
}
