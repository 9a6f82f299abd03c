package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// CORS allows the configured client origin. An empty or "*" origin allows
// any origin without credentials.
func CORS(allowedOrigin string) gin.HandlerFunc {
	allowHeaders := strings.Join([]string{
		"Content-Type", "Content-Length", "Accept-Encoding", "Authorization",
		"Accept", "Origin", "Cache-Control", "X-Requested-With", "X-Request-ID",
	}, ", ")

	return func(c *gin.Context) {
		h := c.Writer.Header()
		if allowedOrigin == "" || allowedOrigin == "*" {
			h.Set("Access-Control-Allow-Origin", "*")
		} else {
			h.Set("Access-Control-Allow-Origin", allowedOrigin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")
		}
		h.Set("Access-Control-Allow-Headers", allowHeaders)
		h.Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		h.Set("Access-Control-Expose-Headers", "X-Request-ID, X-RateLimit-Limit, X-RateLimit-Remaining")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
