package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/Payphone-Digital/account-service/internal/constants"
	"github.com/Payphone-Digital/account-service/pkg/health"
	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	monitor *health.Monitor
	timeout time.Duration
}

func NewHealthHandler(monitor *health.Monitor) *HealthHandler {
	return &HealthHandler{monitor: monitor, timeout: 5 * time.Second}
}

// BasicHealth is the liveness probe. It never touches dependencies.
func (h *HealthHandler) BasicHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"version":   constants.AppVersion,
		"timestamp": time.Now().UTC(),
	})
}

// Ready probes every dependency and answers 503 when one is down.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	report := h.monitor.CheckAll(ctx)

	status := http.StatusOK
	if !report.Healthy() {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"status":    report.Status,
		"version":   constants.AppVersion,
		"timestamp": time.Now().UTC(),
		"checks":    report.Checks,
	})
}
