package service

import (
	"context"
	"fmt"

	"github.com/Payphone-Digital/account-service/config"
	"github.com/Payphone-Digital/account-service/internal/constants"
	"github.com/Payphone-Digital/account-service/internal/dto"
	"github.com/Payphone-Digital/account-service/internal/model"
	ctxutil "github.com/Payphone-Digital/account-service/pkg/context"
	"github.com/Payphone-Digital/account-service/pkg/logger"
)

// JobEnqueuer durably queues a named job and returns its id.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, queue, jobName string, payload interface{}) (string, error)
}

// Notifier is what the account flows need from the notification pipeline.
type Notifier interface {
	SendVerificationEmail(ctx context.Context, user *model.User) error
	SendPasswordResetEmail(ctx context.Context, user *model.User) error
}

// NotificationService is the producer side of the notification pipeline.
// It returns once a job is queued; delivery happens in the worker.
type NotificationService struct {
	queue  JobEnqueuer
	queues config.QueueConfig
	mail   config.MailConfig
}

func NewNotificationService(queue JobEnqueuer, queues config.QueueConfig, mail config.MailConfig) *NotificationService {
	return &NotificationService{queue: queue, queues: queues, mail: mail}
}

func (s *NotificationService) SendEmail(ctx context.Context, payload dto.EmailPayload) (string, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "SendEmail")

	if len(payload.To) == 0 {
		return "", fmt.Errorf("email job %q has no recipients", payload.TemplateID)
	}
	if payload.From == nil {
		payload.From = &dto.EmailAddress{Email: s.mail.FromEmail, Name: s.mail.FromName}
	}

	jobID, err := s.queue.Enqueue(ctx, s.queues.EmailQueue, constants.JobSendEmail, payload)
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to enqueue email job").
			String("template", payload.TemplateID).
			Err(err).
			Log()
		return "", err
	}

	logger.InfoWithContext(ctx, "Email job queued").
		String("job_id", jobID).
		String("template", payload.TemplateID).
		Int("recipients", len(payload.To)).
		Log()
	return jobID, nil
}

func (s *NotificationService) SendPushNotification(ctx context.Context, payload dto.PushPayload) (string, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "SendPushNotification")

	if len(payload.DeviceTokens) == 0 {
		return "", fmt.Errorf("push job %q has no device tokens", payload.Title)
	}

	jobID, err := s.queue.Enqueue(ctx, s.queues.PushQueue, constants.JobSendPushNotification, payload)
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to enqueue push job").
			Err(err).
			Log()
		return "", err
	}

	logger.InfoWithContext(ctx, "Push notification job queued").
		String("job_id", jobID).
		Int("device_tokens", len(payload.DeviceTokens)).
		Log()
	return jobID, nil
}

func (s *NotificationService) SendVerificationEmail(ctx context.Context, user *model.User) error {
	code := ""
	if user.EmailValidationToken != nil {
		code = *user.EmailValidationToken
	}
	_, err := s.SendEmail(ctx, dto.EmailPayload{
		Subject:    constants.SubjectVerifyEmail,
		To:         []dto.EmailAddress{{Email: user.Email, Name: user.FullName()}},
		TemplateID: constants.TemplateVerifyEmailAddress,
		TemplateData: map[string]any{
			"emailValidationToken": code,
			"name":                 user.FullName(),
		},
	})
	return err
}

func (s *NotificationService) SendPasswordResetEmail(ctx context.Context, user *model.User) error {
	code := ""
	if user.PasswordResetCode != nil {
		code = *user.PasswordResetCode
	}
	_, err := s.SendEmail(ctx, dto.EmailPayload{
		Subject:    constants.SubjectResetPassword,
		To:         []dto.EmailAddress{{Email: user.Email, Name: user.FullName()}},
		TemplateID: constants.TemplateResetPassword,
		TemplateData: map[string]any{
			"resetCode": code,
			"name":      user.FullName(),
		},
	})
	return err
}
