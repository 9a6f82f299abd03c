package push

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/Payphone-Digital/account-service/config"
	"github.com/Payphone-Digital/account-service/pkg/logger"
	"github.com/google/uuid"
	"google.golang.org/api/option"
)

var ErrEmptyToken = errors.New("push: empty device token")

// Message is one notification addressed to a single device.
type Message struct {
	Token string
	Title string
	Body  string
	Data  map[string]string
}

// Sender delivers a notification to one device and returns the provider
// message id.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// messagingClient is the subset of *messaging.Client used here.
type messagingClient interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

type FCMSender struct {
	client messagingClient
}

// NewFCMSender builds a Firebase Cloud Messaging sender. An empty
// credentials file falls back to application default credentials.
func NewFCMSender(ctx context.Context, cfg config.PushConfig) (*FCMSender, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase messaging: %w", err)
	}

	return &FCMSender{client: client}, nil
}

func (s *FCMSender) Send(ctx context.Context, msg Message) (string, error) {
	if msg.Token == "" {
		return "", ErrEmptyToken
	}

	return s.client.Send(ctx, &messaging.Message{
		Token: msg.Token,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: msg.Data,
	})
}

// IsTemporary reports whether a failed send may succeed on a later attempt.
// Unregistered or malformed tokens never will.
func IsTemporary(err error) bool {
	switch {
	case err == nil, errors.Is(err, ErrEmptyToken):
		return false
	case messaging.IsUnregistered(err), messaging.IsInvalidArgument(err), messaging.IsSenderIDMismatch(err):
		return false
	default:
		return true
	}
}

// LogSender logs notifications instead of delivering them. It is used when
// push delivery is disabled.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, msg Message) (string, error) {
	if msg.Token == "" {
		return "", ErrEmptyToken
	}

	logger.InfoWithContext(ctx, "Push delivery skipped, provider disabled").
		String("title", msg.Title).
		Int("data_keys", len(msg.Data)).
		Log()
	return "local-" + uuid.NewString(), nil
}

// New returns the FCM sender when push delivery is enabled.
func New(ctx context.Context, cfg config.PushConfig) (Sender, error) {
	if !cfg.Enabled {
		return LogSender{}, nil
	}
	return NewFCMSender(ctx, cfg)
}
