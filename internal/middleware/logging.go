package middleware

import (
	"net/http"
	"time"

	"github.com/Payphone-Digital/account-service/internal/constants"
	ctxutil "github.com/Payphone-Digital/account-service/pkg/context"
	"github.com/Payphone-Digital/account-service/pkg/logger"
	"github.com/gin-gonic/gin"
)

const slowRequestThreshold = 2 * time.Second

// RequestLogger writes one structured entry per request.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)

		ctx := c.Request.Context()
		logger.LogRequest(
			c.Request.Method,
			c.Request.URL.Path,
			c.Writer.Status(),
			latency,
			c.ClientIP(),
			ctxutil.GetRequestID(ctx),
		)

		if len(c.Errors) > 0 {
			logger.ErrorWithContext(ctx, "Request error").
				String("error", c.Errors.String()).
				String("path", c.Request.URL.Path).
				Log()
		}

		if latency > slowRequestThreshold {
			logger.WarnWithContext(ctx, "Slow request detected").
				String("method", c.Request.Method).
				String("path", c.Request.URL.Path).
				Duration(latency).
				Log()
		}
	}
}

// Recovery turns a panic into the generic 500 response.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.LogPanic(r)
				logger.ErrorWithContext(c.Request.Context(), "Panic while handling request").
					String("method", c.Request.Method).
					String("path", c.Request.URL.Path).
					Any("panic", r).
					Log()
				c.AbortWithStatusJSON(http.StatusInternalServerError,
					constants.BuildErrorResponse(constants.MsgInternalError, nil))
			}
		}()
		c.Next()
	}
}
