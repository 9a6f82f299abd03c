package handler

import (
	"context"
	"net/http"

	"github.com/Payphone-Digital/account-service/internal/constants"
	"github.com/Payphone-Digital/account-service/internal/dto"
	"github.com/Payphone-Digital/account-service/internal/middleware"
	"github.com/Payphone-Digital/account-service/internal/model"
	ctxutil "github.com/Payphone-Digital/account-service/pkg/context"
	"github.com/Payphone-Digital/account-service/pkg/logger"
	"github.com/gin-gonic/gin"
)

// SessionManager is the account API behind the auth routes.
type SessionManager interface {
	Login(ctx context.Context, email, password string) (*model.User, error)
	IssueSession(ctx context.Context, user *model.User) (*dto.SessionResponse, error)
	Signup(ctx context.Context, req dto.SignupRequest) (*dto.SessionResponse, error)
	VerifyEmail(ctx context.Context, code, email string) (*model.User, error)
	ResendVerification(ctx context.Context, email string) error
	ChangePassword(ctx context.Context, user *model.User, oldPassword, newPassword string) (*dto.SessionResponse, error)
	Logout(ctx context.Context, token string) error
}

// RecoveryManager handles forgotten passwords.
type RecoveryManager interface {
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, resetCode, newPassword string) (*dto.SessionResponse, error)
}

type AuthHandler struct {
	sessions SessionManager
	recovery RecoveryManager
}

func NewAuthHandler(sessions SessionManager, recovery RecoveryManager) *AuthHandler {
	return &AuthHandler{sessions: sessions, recovery: recovery}
}

func (h *AuthHandler) Login(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), "handler", "Login")

	var req dto.LoginRequest
	if !bindJSON(ctx, c, &req) {
		return
	}

	user, err := h.sessions.Login(ctx, req.Email, req.Password)
	if err != nil {
		respondError(ctx, c, err)
		return
	}

	session, err := h.sessions.IssueSession(ctx, user)
	if err != nil {
		respondError(ctx, c, err)
		return
	}

	logger.InfoWithContext(ctx, "User logged in").
		Uint("user_id", user.ID).
		Log()
	c.JSON(http.StatusOK, constants.BuildDataResponse(constants.MsgLoginSuccessful, session))
}

func (h *AuthHandler) Signup(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), "handler", "Signup")

	var req dto.SignupRequest
	if !bindJSON(ctx, c, &req) {
		return
	}

	session, err := h.sessions.Signup(ctx, req)
	if err != nil {
		respondError(ctx, c, err)
		return
	}

	c.JSON(http.StatusCreated, constants.BuildDataResponse(constants.MsgSignupSuccessful, session))
}

func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), "handler", "VerifyEmail")

	var req dto.VerifyEmailRequest
	if !bindJSON(ctx, c, &req) {
		return
	}

	user, err := h.sessions.VerifyEmail(ctx, req.EmailValidationToken, req.Email)
	if err != nil {
		respondError(ctx, c, err)
		return
	}

	c.JSON(http.StatusOK, constants.BuildDataResponse(constants.MsgVerificationSuccessful, dto.ToUserResponse(user)))
}

// ResendVerification answers the same way whether or not the email is
// registered.
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), "handler", "ResendVerification")

	var req dto.EmailRequest
	if !bindJSON(ctx, c, &req) {
		return
	}

	if err := h.sessions.ResendVerification(ctx, req.Email); err != nil {
		respondError(ctx, c, err)
		return
	}

	c.JSON(http.StatusOK, constants.BuildSuccessResponse(constants.MsgVerificationLinkResent))
}

// ForgotPassword answers the same way whether or not the email is
// registered.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), "handler", "ForgotPassword")

	var req dto.EmailRequest
	if !bindJSON(ctx, c, &req) {
		return
	}

	if err := h.recovery.ForgotPassword(ctx, req.Email); err != nil {
		respondError(ctx, c, err)
		return
	}

	c.JSON(http.StatusOK, constants.BuildSuccessResponse(constants.MsgSuccess))
}

func (h *AuthHandler) ResetPassword(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), "handler", "ResetPassword")

	var req dto.ResetPasswordRequest
	if !bindJSON(ctx, c, &req) {
		return
	}

	session, err := h.recovery.ResetPassword(ctx, req.ResetToken, req.Password)
	if err != nil {
		respondError(ctx, c, err)
		return
	}

	c.JSON(http.StatusOK, constants.BuildDataResponse(constants.MsgPasswordResetSuccessful, session))
}

func (h *AuthHandler) ChangePassword(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), "handler", "ChangePassword")

	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, constants.BuildErrorResponse(constants.MsgUnauthorized, nil))
		return
	}

	var req dto.ChangePasswordRequest
	if !bindJSON(ctx, c, &req) {
		return
	}

	session, err := h.sessions.ChangePassword(ctx, user, req.OldPassword, req.Password)
	if err != nil {
		respondError(ctx, c, err)
		return
	}

	c.JSON(http.StatusOK, constants.BuildDataResponse(constants.MsgPasswordChanged, session))
}

func (h *AuthHandler) Logout(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), "handler", "Logout")

	if err := h.sessions.Logout(ctx, middleware.CurrentToken(c)); err != nil {
		respondError(ctx, c, err)
		return
	}

	c.JSON(http.StatusOK, constants.BuildSuccessResponse(constants.MsgLoggedOut))
}
