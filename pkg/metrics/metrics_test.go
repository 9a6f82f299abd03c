package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_CountersAndHandler(t *testing.T) {
	m := New()

	m.AuthEvent("login", OutcomeFailure)
	m.AuthEvent("login", OutcomeFailure)
	m.ObserveHTTP(http.MethodPost, "/api/v1/auth/login", http.StatusUnauthorized, 5*time.Millisecond)
	m.PushTokens(2, 1)

	if got := testutil.ToFloat64(m.authEvents.WithLabelValues("login", OutcomeFailure)); got != 2 {
		t.Errorf("Expected 2 failed logins, got %v", got)
	}
	if got := testutil.ToFloat64(m.pushTokens.WithLabelValues(OutcomeFailure)); got != 1 {
		t.Errorf("Expected 1 failed push token, got %v", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "account_service_http_requests_total") {
		t.Error("Expected http request counter in exposition output")
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.AuthEvent("login", OutcomeSuccess)
	m.ObserveHTTP("GET", "/", 200, time.Millisecond)
	m.JobOutcome("email", "send-email", OutcomeCompleted, time.Millisecond)
	m.PushTokens(1, 0)
}
