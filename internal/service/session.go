package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Payphone-Digital/account-service/config"
	"github.com/Payphone-Digital/account-service/internal/dto"
	apperrors "github.com/Payphone-Digital/account-service/internal/errors"
	"github.com/Payphone-Digital/account-service/internal/model"
	"github.com/Payphone-Digital/account-service/internal/repository"
	ctxutil "github.com/Payphone-Digital/account-service/pkg/context"
	"github.com/Payphone-Digital/account-service/pkg/logger"
	"github.com/Payphone-Digital/account-service/pkg/metrics"
)

const revokedMarker = "revoked"

// SessionService owns login, signup, token issue and revocation, and the
// self-service account operations behind the auth guard.
type SessionService struct {
	users      repository.UserStore
	tokens     *TokenService
	revoked    RevocationCache
	notifier   Notifier
	background *Background
	metrics    *metrics.Metrics
	cfg        config.AuthConfig
	now        func() time.Time

	// compared against when the email is unknown so both login failures
	// cost one bcrypt comparison
	dummyHash string
}

func NewSessionService(
	users repository.UserStore,
	tokens *TokenService,
	revoked RevocationCache,
	notifier Notifier,
	background *Background,
	m *metrics.Metrics,
	cfg config.AuthConfig,
) *SessionService {
	dummy, _ := hashPassword("not-a-real-password", cfg.BcryptCost)
	return &SessionService{
		users:      users,
		tokens:     tokens,
		revoked:    revoked,
		notifier:   notifier,
		background: background,
		metrics:    m,
		cfg:        cfg,
		now:        func() time.Time { return time.Now().UTC() },
		dummyHash:  dummy,
	}
}

// Login returns the user owning email and password. Unknown email and
// wrong password fail with the same error.
func (s *SessionService) Login(ctx context.Context, email, password string) (*model.User, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "Login")
	email = normalizeEmail(email)

	user, err := s.users.FindOne(ctx, repository.UserQuery{Email: &email})
	if errors.Is(err, repository.ErrNotFound) {
		checkPassword(s.dummyHash, password)
		s.metrics.AuthEvent("login", metrics.OutcomeFailure)
		logger.InfoWithContext(ctx, "Login rejected").
			String("reason", "unknown email").
			Log()
		return nil, apperrors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	if !checkPassword(user.Password, password) {
		s.metrics.AuthEvent("login", metrics.OutcomeFailure)
		logger.InfoWithContext(ctx, "Login rejected").
			String("reason", "password mismatch").
			Uint("user_id", user.ID).
			Log()
		return nil, apperrors.ErrInvalidCredentials
	}

	s.metrics.AuthEvent("login", metrics.OutcomeSuccess)
	return user, nil
}

// IssueSession signs a token for user. The last active timestamp is
// updated in the background and its failure does not fail the session.
func (s *SessionService) IssueSession(ctx context.Context, user *model.User) (*dto.SessionResponse, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "IssueSession")

	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to issue token").
			Uint("user_id", user.ID).
			Err(err).
			Log()
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	userID := user.ID
	now := s.now()
	s.background.Go(ctx, "mark-last-active", func(ctx context.Context) error {
		_, err := s.users.UpdateOne(ctx, repository.UserQuery{ID: &userID}, repository.UserPatch{LastActive: &now})
		return err
	})

	return &dto.SessionResponse{
		User:           dto.ToUserResponse(user),
		Token:          token,
		TokenExpiresAt: expiresAt,
	}, nil
}

func (s *SessionService) Signup(ctx context.Context, req dto.SignupRequest) (*dto.SessionResponse, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "Signup")
	email := normalizeEmail(req.Email)

	_, err := s.users.FindOne(ctx, repository.UserQuery{Email: &email})
	switch {
	case err == nil:
		s.metrics.AuthEvent("signup", metrics.OutcomeFailure)
		return nil, apperrors.ErrEmailExists
	case !errors.Is(err, repository.ErrNotFound):
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	hash, err := hashPassword(req.Password, s.cfg.BcryptCost)
	if err != nil {
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}
	code, err := generateCode(s.cfg.VerificationCodeLength)
	if err != nil {
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	acceptedTerms := true
	if req.HasAcceptedTermsAndConditions != nil {
		acceptedTerms = *req.HasAcceptedTermsAndConditions
	}

	user := &model.User{
		FirstName:                     strings.TrimSpace(req.FirstName),
		LastName:                      strings.TrimSpace(req.LastName),
		Email:                         email,
		Password:                      hash,
		PhoneNumber:                   req.PhoneNumber,
		ProfileImage:                  req.ProfileImage,
		EmailValidationToken:          &code,
		EmailVerified:                 false,
		HasAcceptedTermsAndConditions: acceptedTerms,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			s.metrics.AuthEvent("signup", metrics.OutcomeFailure)
			return nil, apperrors.ErrEmailExists
		}
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	s.metrics.AuthEvent("signup", metrics.OutcomeSuccess)
	logger.InfoWithContext(ctx, "User signed up").
		Uint("user_id", user.ID).
		Log()

	created := *user
	s.background.Go(ctx, "send-verification-email", func(ctx context.Context) error {
		return s.notifier.SendVerificationEmail(ctx, &created)
	})

	return s.IssueSession(ctx, user)
}

func (s *SessionService) VerifyEmail(ctx context.Context, code, email string) (*model.User, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "VerifyEmail")
	email = normalizeEmail(email)

	user, err := s.users.FindOne(ctx, repository.UserQuery{Email: &email, EmailValidationToken: &code})
	if errors.Is(err, repository.ErrNotFound) {
		s.metrics.AuthEvent("verify_email", metrics.OutcomeFailure)
		return nil, apperrors.ErrInvalidEmailValidationToken
	}
	if err != nil {
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	verified := true
	now := s.now()
	updated, err := s.users.UpdateOne(ctx, repository.UserQuery{ID: &user.ID}, repository.UserPatch{
		EmailVerified:         &verified,
		EmailVerifiedAt:       &now,
		ClearVerificationCode: true,
	})
	if err != nil {
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	s.metrics.AuthEvent("verify_email", metrics.OutcomeSuccess)
	logger.InfoWithContext(ctx, "Email verified").
		Uint("user_id", updated.ID).
		Log()
	return updated, nil
}

// ResendVerification succeeds without doing anything for unknown or
// already verified addresses.
func (s *SessionService) ResendVerification(ctx context.Context, email string) error {
	ctx = ctxutil.WithFunction(ctx, "service", "ResendVerification")
	email = normalizeEmail(email)

	user, err := s.users.FindOne(ctx, repository.UserQuery{Email: &email})
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return apperrors.WrapError(apperrors.ErrInternal, err)
	}
	if user.EmailVerified {
		return nil
	}

	if user.EmailValidationToken == nil {
		code, err := generateCode(s.cfg.VerificationCodeLength)
		if err != nil {
			return apperrors.WrapError(apperrors.ErrInternal, err)
		}
		user, err = s.users.UpdateOne(ctx, repository.UserQuery{ID: &user.ID}, repository.UserPatch{EmailValidationToken: &code})
		if err != nil {
			return apperrors.WrapError(apperrors.ErrInternal, err)
		}
	}

	s.background.Go(ctx, "resend-verification-email", func(ctx context.Context) error {
		return s.notifier.SendVerificationEmail(ctx, user)
	})
	return nil
}

func (s *SessionService) Me(_ context.Context, user *model.User) *model.User {
	return user
}

func (s *SessionService) EditProfile(ctx context.Context, user *model.User, req dto.EditProfileRequest) (*model.User, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "EditProfile")

	patch := repository.UserPatch{
		PhoneNumber:  req.PhoneNumber,
		ProfileImage: req.ProfileImage,
	}
	if req.FirstName != nil {
		first := strings.TrimSpace(*req.FirstName)
		patch.FirstName = &first
	}
	if req.LastName != nil {
		last := strings.TrimSpace(*req.LastName)
		patch.LastName = &last
	}

	updated, err := s.users.UpdateOne(ctx, repository.UserQuery{ID: &user.ID}, patch)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.ErrUnauthorized
	}
	if err != nil {
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	logger.InfoWithContext(ctx, "Profile updated").
		Uint("user_id", updated.ID).
		Log()
	return updated, nil
}

// ChangePassword stores a new hash and returns a fresh session. Tokens
// issued before the change stop matching their fingerprint.
func (s *SessionService) ChangePassword(ctx context.Context, user *model.User, oldPassword, newPassword string) (*dto.SessionResponse, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "ChangePassword")

	if !checkPassword(user.Password, oldPassword) {
		s.metrics.AuthEvent("change_password", metrics.OutcomeFailure)
		return nil, apperrors.ErrIncorrectPassword
	}

	hash, err := hashPassword(newPassword, s.cfg.BcryptCost)
	if err != nil {
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	updated, err := s.users.UpdateOne(ctx, repository.UserQuery{ID: &user.ID}, repository.UserPatch{Password: &hash})
	if err != nil {
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	s.metrics.AuthEvent("change_password", metrics.OutcomeSuccess)
	logger.InfoWithContext(ctx, "Password changed").
		Uint("user_id", updated.ID).
		Log()
	return s.IssueSession(ctx, updated)
}

// Logout revokes token until its natural expiry. Expired and already
// revoked tokens are left alone.
func (s *SessionService) Logout(ctx context.Context, token string) error {
	ctx = ctxutil.WithFunction(ctx, "service", "Logout")

	expiresAt, err := s.tokens.ExpiresAt(token)
	if err != nil {
		return apperrors.WrapError(apperrors.ErrUnauthorized, err)
	}

	remaining := expiresAt.Sub(s.now())
	if remaining <= 0 {
		logger.DebugWithContext(ctx, "Logout of expired token skipped").Log()
		return nil
	}

	key := revokedTokenKey(token)
	if _, found, err := s.revoked.Get(ctx, key); err != nil {
		return apperrors.WrapError(apperrors.ErrInternal, err)
	} else if found {
		return nil
	}

	if err := s.revoked.Set(ctx, key, revokedMarker, remaining); err != nil {
		return apperrors.WrapError(apperrors.ErrInternal, err)
	}

	s.metrics.AuthEvent("logout", metrics.OutcomeSuccess)
	logger.InfoWithContext(ctx, "Token revoked").
		Duration(remaining).
		Log()
	return nil
}

// Authenticate is the auth guard: token signature and expiry, revocation,
// and a fingerprint check against the current stored credentials.
func (s *SessionService) Authenticate(ctx context.Context, token string) (*model.User, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "Authenticate")

	claims, err := s.tokens.Parse(token)
	if err != nil {
		logger.DebugWithContext(ctx, "Token rejected").
			Int("token_length", len(token)).
			Err(err).
			Log()
		return nil, apperrors.ErrUnauthorized
	}

	if _, found, err := s.revoked.Get(ctx, revokedTokenKey(token)); err != nil {
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	} else if found {
		logger.DebugWithContext(ctx, "Revoked token presented").
			Uint("user_id", claims.UserID).
			Log()
		return nil, apperrors.ErrUnauthorized
	}

	userID := claims.UserID
	user, err := s.users.FindOne(ctx, repository.UserQuery{ID: &userID})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.ErrUnauthorized
	}
	if err != nil {
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	if !s.tokens.MatchesUser(claims, user) {
		logger.DebugWithContext(ctx, "Stale token fingerprint").
			Uint("user_id", user.ID).
			Log()
		return nil, apperrors.ErrUnauthorized
	}

	return user, nil
}
