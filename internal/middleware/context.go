package middleware

import (
	"context"
	"time"

	"github.com/Payphone-Digital/account-service/internal/constants"
	ctxutil "github.com/Payphone-Digital/account-service/pkg/context"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestContext stamps every request with a request id, client details
// and a deadline. The id is echoed back in X-Request-ID.
func RequestContext(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(constants.HeaderXRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		correlationID := c.GetHeader(constants.HeaderXCorrelationID)
		if correlationID == "" {
			correlationID = requestID
		}

		ctx := ctxutil.WithRequestInfo(c.Request.Context(), ctxutil.RequestInfo{
			RequestID:     requestID,
			CorrelationID: correlationID,
			ClientIP:      c.ClientIP(),
			UserAgent:     c.Request.UserAgent(),
		})

		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		c.Request = c.Request.WithContext(ctx)
		c.Header(constants.HeaderXRequestID, requestID)
		c.Header(constants.HeaderXCorrelationID, correlationID)

		c.Next()
	}
}
