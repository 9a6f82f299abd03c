package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Payphone-Digital/account-service/config"
	"github.com/Payphone-Digital/account-service/internal/constants"
	"github.com/Payphone-Digital/account-service/internal/dto"
	"github.com/Payphone-Digital/account-service/internal/model"
	"github.com/Payphone-Digital/account-service/pkg/circuit"
	"github.com/Payphone-Digital/account-service/pkg/logger"
	"github.com/Payphone-Digital/account-service/pkg/mailer"
	"github.com/Payphone-Digital/account-service/pkg/metrics"
	"github.com/Payphone-Digital/account-service/pkg/push"
	"github.com/Payphone-Digital/account-service/pkg/queue"
	pkgredis "github.com/Payphone-Digital/account-service/pkg/redis"
	tmpl "github.com/Payphone-Digital/account-service/pkg/template"
	"github.com/alicebob/miniredis/v2"
	"github.com/cenkalti/backoff/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (m *fakeMailer) Send(_ context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type fakePush struct {
	failing map[string]error
}

func (p *fakePush) Send(_ context.Context, msg push.Message) (string, error) {
	if err, ok := p.failing[msg.Token]; ok {
		return "", err
	}
	return "msg-" + msg.Token, nil
}

type recordedFailures struct {
	mu      sync.Mutex
	records []*model.NotificationFailure
}

func (r *recordedFailures) Record(_ context.Context, f *model.NotificationFailure) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, f)
	return nil
}

// counterValue sums the counter samples of name whose labels include want.
func counterValue(t *testing.T, m *metrics.Metrics, name string, want map[string]string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)

	var total float64
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
	metricLoop:
		for _, metric := range family.GetMetric() {
			labels := make(map[string]string)
			for _, lp := range metric.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			for k, v := range want {
				if labels[k] != v {
					continue metricLoop
				}
			}
			total += metric.GetCounter().GetValue()
		}
	}
	return total
}

func newRenderer(t *testing.T) *tmpl.Renderer {
	t.Helper()
	r, err := tmpl.NewRenderer(map[string]any{"appName": "Account Service"})
	require.NoError(t, err)
	return r
}

func newBreaker() *circuit.Breaker {
	return circuit.NewBreaker("test", circuit.Config{Threshold: 100, Timeout: time.Minute, SuccessThreshold: 1})
}

func jobFor(t *testing.T, name string, payload interface{}) *queue.Job {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return &queue.Job{ID: "job-1", Queue: "email", Name: name, Payload: raw, MaxAttempts: 3}
}

func verifyPayload() dto.EmailPayload {
	return dto.EmailPayload{
		Subject:    constants.SubjectVerifyEmail,
		From:       &dto.EmailAddress{Email: "no-reply@example.com", Name: "Account Service"},
		To:         []dto.EmailAddress{{Email: "ada@example.com", Name: "Ada Lovelace"}},
		TemplateID: constants.TemplateVerifyEmailAddress,
		TemplateData: map[string]any{
			"emailValidationToken": "ABC123",
			"name":                 "Ada Lovelace",
		},
	}
}

func TestEmailProcessor_RendersAndSends(t *testing.T) {
	m := &fakeMailer{}
	p := NewEmailProcessor(newRenderer(t), m, newBreaker())

	require.NoError(t, p.Process(context.Background(), jobFor(t, constants.JobSendEmail, verifyPayload())))

	require.Len(t, m.sent, 1)
	msg := m.sent[0]
	assert.Equal(t, constants.SubjectVerifyEmail, msg.Subject)
	assert.Equal(t, "no-reply@example.com", msg.From.Email)
	assert.Equal(t, "ada@example.com", msg.To[0].Email)
	assert.Contains(t, msg.HTML, "ABC123")
}

func TestEmailProcessor_SubjectIsNotHTMLEscaped(t *testing.T) {
	m := &fakeMailer{}
	p := NewEmailProcessor(newRenderer(t), m, newBreaker())
	payload := verifyPayload()
	payload.Subject = "Welcome {{.name}} & friends"
	payload.TemplateData["name"] = "O'Brien <Ops>"

	require.NoError(t, p.Process(context.Background(), jobFor(t, constants.JobSendEmail, payload)))

	require.Len(t, m.sent, 1)
	assert.Equal(t, "Welcome O'Brien <Ops> & friends", m.sent[0].Subject)
	assert.NotContains(t, m.sent[0].HTML, "O'Brien <Ops>", "body stays HTML escaped")
}

func TestEmailProcessor_PermanentFailures(t *testing.T) {
	unknown := verifyPayload()
	unknown.TemplateID = "welcome"

	noRecipients := verifyPayload()
	noRecipients.To = nil

	tests := []struct {
		name   string
		job    *queue.Job
		mailer *fakeMailer
	}{
		{"unknown template", jobFor(t, constants.JobSendEmail, unknown), &fakeMailer{}},
		{"no recipients", jobFor(t, constants.JobSendEmail, noRecipients), &fakeMailer{}},
		{"garbage payload", &queue.Job{Name: constants.JobSendEmail, Payload: json.RawMessage(`[1,2]`)}, &fakeMailer{}},
		{"rejected by provider", jobFor(t, constants.JobSendEmail, verifyPayload()), &fakeMailer{err: &mailer.ProviderError{StatusCode: 400}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewEmailProcessor(newRenderer(t), tt.mailer, newBreaker())
			err := p.Process(context.Background(), tt.job)

			var perm *backoff.PermanentError
			assert.True(t, errors.As(err, &perm), "expected permanent error, got %v", err)
		})
	}
}

func TestEmailProcessor_TemporaryFailureIsRetryable(t *testing.T) {
	p := NewEmailProcessor(newRenderer(t), &fakeMailer{err: &mailer.ProviderError{StatusCode: 503}}, newBreaker())

	err := p.Process(context.Background(), jobFor(t, constants.JobSendEmail, verifyPayload()))
	require.Error(t, err)

	var perm *backoff.PermanentError
	assert.False(t, errors.As(err, &perm))
}

func TestEmailProcessor_OpenBreakerIsRetryable(t *testing.T) {
	breaker := circuit.NewBreaker("sendgrid", circuit.Config{Threshold: 1, Timeout: time.Hour, SuccessThreshold: 1})
	p := NewEmailProcessor(newRenderer(t), &fakeMailer{err: errors.New("connection refused")}, breaker)
	job := jobFor(t, constants.JobSendEmail, verifyPayload())

	require.Error(t, p.Process(context.Background(), job))
	err := p.Process(context.Background(), job)

	assert.ErrorIs(t, err, circuit.ErrCircuitOpen)
	var perm *backoff.PermanentError
	assert.False(t, errors.As(err, &perm))
}

func observeLogs(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	logger.UseLogger(zap.New(core), logger.DefaultPerformanceConfig())
	t.Cleanup(func() { logger.UseLogger(zap.NewNop(), logger.DefaultPerformanceConfig()) })
	return logs
}

func TestPushProcessor_PartialFailureCompletes(t *testing.T) {
	logs := observeLogs(t)
	m := metrics.New()
	sender := &fakePush{failing: map[string]error{
		"bad-1": errors.New("registration-token-not-registered"),
		"bad-2": errors.New("invalid-argument"),
	}}
	p := NewPushProcessor(sender, newBreaker(), 2, m)

	results, err := p.Deliver(context.Background(), dto.PushPayload{
		Title:        "Hello",
		Body:         "World",
		DeviceTokens: []string{"ok-1", "bad-1", "ok-2", "bad-2", "ok-3"},
	})
	require.NoError(t, err)
	require.Len(t, results, 5)

	failed := 0
	for i, token := range []string{"ok-1", "bad-1", "ok-2", "bad-2", "ok-3"} {
		assert.Equal(t, token, results[i].Token)
		if !results[i].Success {
			failed++
			assert.NotEmpty(t, results[i].Error)
		} else {
			assert.Equal(t, "msg-"+token, results[i].MessageID)
		}
	}
	assert.Equal(t, 2, failed)
	assert.Equal(t, float64(3), counterValue(t, m, "account_service_push_tokens_total", map[string]string{"outcome": metrics.OutcomeSuccess}))
	assert.Equal(t, float64(2), counterValue(t, m, "account_service_push_tokens_total", map[string]string{"outcome": metrics.OutcomeFailure}))

	warned := logs.FilterMessage("Some push notifications failed").All()
	require.Len(t, warned, 1)
	assert.Equal(t, zapcore.WarnLevel, warned[0].Level)
	assert.Equal(t, []interface{}{"bad-1", "bad-2"}, warned[0].ContextMap()["failedTokens"])

	processed := logs.FilterMessage("Push notification job processed").All()
	require.Len(t, processed, 1)
	assert.Equal(t, int64(3), processed[0].ContextMap()["successCount"])
}

func TestPushProcessor_NoTokensIsPermanent(t *testing.T) {
	p := NewPushProcessor(&fakePush{}, newBreaker(), 1, nil)

	err := p.Process(context.Background(), jobFor(t, constants.JobSendPushNotification, dto.PushPayload{Title: "x"}))

	var perm *backoff.PermanentError
	assert.True(t, errors.As(err, &perm))
}

func TestPushProcessor_OpenBreakerFailsJob(t *testing.T) {
	breaker := circuit.NewBreaker("fcm", circuit.Config{Threshold: 1, Timeout: time.Hour, SuccessThreshold: 1})
	breaker.Record(context.Background(), errors.New("unavailable"))
	p := NewPushProcessor(&fakePush{}, breaker, 2, nil)

	_, err := p.Deliver(context.Background(), dto.PushPayload{Title: "x", DeviceTokens: []string{"a", "b"}})
	assert.ErrorIs(t, err, circuit.ErrCircuitOpen)
}

func TestDispatcher_UnknownJobIsPermanent(t *testing.T) {
	d := NewDispatcher()
	called := false
	d.Register("known", func(context.Context, *queue.Job) error { called = true; return nil })

	require.NoError(t, d.Handle(context.Background(), &queue.Job{Name: "known"}))
	assert.True(t, called)

	err := d.Handle(context.Background(), &queue.Job{Name: "mystery"})
	var perm *backoff.PermanentError
	assert.True(t, errors.As(err, &perm))
}

func TestHooks_FailedJobIsAudited(t *testing.T) {
	failures := &recordedFailures{}
	m := metrics.New()
	hooks := NewHooks(failures, m)

	job := &queue.Job{ID: "j-9", Queue: "email", Name: constants.JobSendEmail, AttemptsMade: 3, Payload: json.RawMessage(`{"subject":"x"}`)}
	hooks.OnFailed(context.Background(), job, errors.New("provider down"))
	hooks.OnCompleted(context.Background(), job, time.Millisecond)

	require.Len(t, failures.records, 1)
	rec := failures.records[0]
	assert.Equal(t, "j-9", rec.JobID)
	assert.Equal(t, 3, rec.AttemptsMade)
	assert.Equal(t, "provider down", rec.LastError)
	assert.JSONEq(t, `{"subject":"x"}`, string(rec.Payload))

	assert.Equal(t, float64(1), counterValue(t, m, "account_service_queue_jobs_total", map[string]string{"outcome": metrics.OutcomeFailed}))
	assert.Equal(t, float64(1), counterValue(t, m, "account_service_queue_jobs_total", map[string]string{"outcome": metrics.OutcomeCompleted}))
}

func TestWorker_DeliversQueuedEmail(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	cfg := config.QueueConfig{
		EmailQueue:      "email",
		PushQueue:       "push-notification",
		MaxAttempts:     3,
		BackoffType:     config.BackoffFixed,
		BackoffDelay:    10 * time.Millisecond,
		Concurrency:     2,
		PollTimeout:     50 * time.Millisecond,
		PromoteInterval: 10 * time.Millisecond,
	}
	q := queue.New(pkgredis.NewFromClient(rdb, "account:"), queue.PolicyFromConfig(cfg))

	m := &fakeMailer{}
	w := New(q, cfg, time.Second,
		NewEmailProcessor(newRenderer(t), m, newBreaker()),
		NewPushProcessor(&fakePush{}, newBreaker(), 2, nil),
		NewHooks(nil, nil),
	)

	_, err := q.Enqueue(context.Background(), cfg.EmailQueue, constants.JobSendEmail, verifyPayload())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool {
		stats, err := q.Stats(context.Background(), cfg.EmailQueue)
		return err == nil && m.count() == 1 && stats == queue.Stats{}
	}, 3*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.True(t, strings.Contains(m.sent[0].HTML, "ABC123"))
}
