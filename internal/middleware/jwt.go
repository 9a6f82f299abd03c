package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/Payphone-Digital/account-service/internal/constants"
	apperrors "github.com/Payphone-Digital/account-service/internal/errors"
	"github.com/Payphone-Digital/account-service/internal/model"
	ctxutil "github.com/Payphone-Digital/account-service/pkg/context"
	"github.com/Payphone-Digital/account-service/pkg/logger"
	"github.com/gin-gonic/gin"
)

// Authenticator validates a bearer token and returns its current user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.User, error)
}

type JWTMiddleware struct {
	auth Authenticator
}

func NewJWTMiddleware(auth Authenticator) *JWTMiddleware {
	return &JWTMiddleware{auth: auth}
}

// RequireAuth rejects requests without a valid, unrevoked bearer token and
// stores the user and raw token on the gin context.
func (m *JWTMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := ctxutil.WithFunction(c.Request.Context(), "middleware", "RequireAuth")

		token, ok := bearerToken(c.GetHeader(constants.HeaderAuthorization))
		if !ok {
			logger.DebugWithContext(ctx, "Missing or malformed Authorization header").
				String("path", c.Request.URL.Path).
				Log()
			c.AbortWithStatusJSON(http.StatusUnauthorized, constants.BuildErrorResponse(constants.MsgUnauthorized, nil))
			return
		}

		user, err := m.auth.Authenticate(ctx, token)
		if err != nil {
			status := apperrors.ToHTTPStatus(err)
			if status >= http.StatusInternalServerError {
				logger.ErrorWithContext(ctx, "Token validation failed").Err(err).Log()
				c.AbortWithStatusJSON(status, constants.BuildErrorResponse(constants.MsgInternalError, nil))
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, constants.BuildErrorResponse(constants.MsgUnauthorized, nil))
			return
		}

		c.Set(constants.GinKeyUser, user)
		c.Set(constants.GinKeyToken, token)
		c.Request = c.Request.WithContext(ctxutil.WithUserID(c.Request.Context(), user.ID))
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, constants.BearerScheme) {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// CurrentUser returns the user stored by RequireAuth.
func CurrentUser(c *gin.Context) (*model.User, bool) {
	v, ok := c.Get(constants.GinKeyUser)
	if !ok {
		return nil, false
	}
	user, ok := v.(*model.User)
	return user, ok
}

// CurrentToken returns the raw bearer token stored by RequireAuth.
func CurrentToken(c *gin.Context) string {
	return c.GetString(constants.GinKeyToken)
}
