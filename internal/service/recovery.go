package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Payphone-Digital/account-service/config"
	"github.com/Payphone-Digital/account-service/internal/dto"
	apperrors "github.com/Payphone-Digital/account-service/internal/errors"
	"github.com/Payphone-Digital/account-service/internal/repository"
	ctxutil "github.com/Payphone-Digital/account-service/pkg/context"
	"github.com/Payphone-Digital/account-service/pkg/logger"
	"github.com/Payphone-Digital/account-service/pkg/metrics"
)

// RecoveryService runs the forgot and reset password flow with time boxed
// one-time codes.
type RecoveryService struct {
	users      repository.UserStore
	sessions   *SessionService
	notifier   Notifier
	background *Background
	metrics    *metrics.Metrics
	cfg        config.AuthConfig
	now        func() time.Time
}

func NewRecoveryService(
	users repository.UserStore,
	sessions *SessionService,
	notifier Notifier,
	background *Background,
	m *metrics.Metrics,
	cfg config.AuthConfig,
) *RecoveryService {
	return &RecoveryService{
		users:      users,
		sessions:   sessions,
		notifier:   notifier,
		background: background,
		metrics:    m,
		cfg:        cfg,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// ForgotPassword stores a fresh reset code and emails it. Unknown
// addresses succeed silently.
func (s *RecoveryService) ForgotPassword(ctx context.Context, email string) error {
	ctx = ctxutil.WithFunction(ctx, "service", "ForgotPassword")
	email = normalizeEmail(email)

	user, err := s.users.FindOne(ctx, repository.UserQuery{Email: &email})
	if errors.Is(err, repository.ErrNotFound) {
		logger.InfoWithContext(ctx, "Password reset requested for unknown email").Log()
		return nil
	}
	if err != nil {
		return apperrors.WrapError(apperrors.ErrInternal, err)
	}

	code, err := generateCode(s.cfg.ResetCodeLength)
	if err != nil {
		return apperrors.WrapError(apperrors.ErrInternal, err)
	}
	expiresAt := s.now().Add(s.cfg.ResetCodeTTL)

	// the email is built from the row as stored, not the earlier read
	updated, err := s.users.UpdateOne(ctx, repository.UserQuery{ID: &user.ID}, repository.UserPatch{
		PasswordResetCode:          &code,
		PasswordResetCodeExpiresAt: &expiresAt,
	})
	if err != nil {
		return apperrors.WrapError(apperrors.ErrInternal, err)
	}

	s.metrics.AuthEvent("forgot_password", metrics.OutcomeSuccess)
	logger.InfoWithContext(ctx, "Password reset code issued").
		Uint("user_id", updated.ID).
		Time("expires_at", expiresAt).
		Log()

	s.background.Go(ctx, "send-password-reset-email", func(ctx context.Context) error {
		return s.notifier.SendPasswordResetEmail(ctx, updated)
	})
	return nil
}

// ResetPassword consumes an unexpired reset code. Expired and unknown
// codes produce the same error.
func (s *RecoveryService) ResetPassword(ctx context.Context, resetCode, newPassword string) (*dto.SessionResponse, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "ResetPassword")
	resetCode = strings.TrimSpace(resetCode)

	user, err := s.users.FindByActiveResetCode(ctx, resetCode, s.now())
	if errors.Is(err, repository.ErrNotFound) {
		s.metrics.AuthEvent("reset_password", metrics.OutcomeFailure)
		return nil, apperrors.ErrInvalidResetToken
	}
	if err != nil {
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	hash, err := hashPassword(newPassword, s.cfg.BcryptCost)
	if err != nil {
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	updated, err := s.users.UpdateOne(ctx, repository.UserQuery{ID: &user.ID}, repository.UserPatch{
		Password:           &hash,
		ClearPasswordReset: true,
	})
	if err != nil {
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	s.metrics.AuthEvent("reset_password", metrics.OutcomeSuccess)
	logger.InfoWithContext(ctx, "Password reset").
		Uint("user_id", updated.ID).
		Log()
	return s.sessions.IssueSession(ctx, updated)
}
