package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Payphone-Digital/account-service/config"
	"github.com/Payphone-Digital/account-service/pkg/logger"
	pkgredis "github.com/Payphone-Digital/account-service/pkg/redis"
	"github.com/alicebob/miniredis/v2"
	"github.com/cenkalti/backoff/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type emailJob struct {
	Subject string `json:"subject"`
}

func newTestQueue(t *testing.T, policy RetryPolicy) (*Queue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return New(pkgredis.NewFromClient(rdb, "account:"), policy), mr
}

func defaultPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Backoff: config.BackoffExponential, Delay: time.Second, MaxDelay: time.Minute}
}

func TestQueue_EnqueueReserveComplete(t *testing.T) {
	q, mr := newTestQueue(t, defaultPolicy())
	ctx := context.Background()

	id, err := q.Enqueue(ctx, "email", "send-email", emailJob{Subject: "hi"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.True(t, mr.Exists("account:queue:email:wait"))

	job, err := q.Reserve(ctx, "email", time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, id, job.ID)
	assert.Equal(t, "send-email", job.Name)
	assert.Equal(t, 3, job.MaxAttempts)

	var payload emailJob
	require.NoError(t, job.Decode(&payload))
	assert.Equal(t, "hi", payload.Subject)

	stats, err := q.Stats(ctx, "email")
	require.NoError(t, err)
	assert.Equal(t, Stats{Active: 1}, stats)

	require.NoError(t, q.Complete(ctx, job))
	stats, err = q.Stats(ctx, "email")
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)
}

func TestQueue_KeepCompleted(t *testing.T) {
	policy := defaultPolicy()
	policy.KeepCompleted = 2
	q, _ := newTestQueue(t, policy)
	ctx := context.Background()

	var ids []string
	for _, subject := range []string{"1", "2", "3"} {
		id, err := q.Enqueue(ctx, "email", "send-email", emailJob{Subject: subject})
		require.NoError(t, err)
		ids = append(ids, id)

		job, err := q.Reserve(ctx, "email", time.Second)
		require.NoError(t, err)
		require.NoError(t, q.Complete(ctx, job))
	}

	done, err := q.Completed(ctx, "email", 10)
	require.NoError(t, err)
	require.Len(t, done, 2)
	assert.Equal(t, ids[2], done[0].ID)
	assert.Equal(t, ids[1], done[1].ID)

	stats, err := q.Stats(ctx, "email")
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)
}

func TestQueue_FIFO(t *testing.T) {
	q, _ := newTestQueue(t, defaultPolicy())
	ctx := context.Background()

	first, err := q.Enqueue(ctx, "email", "send-email", emailJob{Subject: "1"})
	require.NoError(t, err)
	second, err := q.Enqueue(ctx, "email", "send-email", emailJob{Subject: "2"})
	require.NoError(t, err)

	job, err := q.Reserve(ctx, "email", time.Second)
	require.NoError(t, err)
	assert.Equal(t, first, job.ID)
	job, err = q.Reserve(ctx, "email", time.Second)
	require.NoError(t, err)
	assert.Equal(t, second, job.ID)
}

func TestQueue_FailRetriesThenDeadLetters(t *testing.T) {
	q, _ := newTestQueue(t, defaultPolicy())
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	q.now = func() time.Time { return now }

	_, err := q.Enqueue(ctx, "email", "send-email", emailJob{Subject: "hi"})
	require.NoError(t, err)

	expectedDelays := []time.Duration{time.Second, 2 * time.Second}
	for attempt, want := range expectedDelays {
		job, err := q.Reserve(ctx, "email", time.Second)
		require.NoError(t, err)
		require.NotNil(t, job, "attempt %d", attempt+1)

		result, err := q.Fail(ctx, job, errors.New("provider down"))
		require.NoError(t, err)
		assert.True(t, result.Retried)
		assert.Equal(t, want, result.Delay)

		moved, err := q.Promote(ctx, "email")
		require.NoError(t, err)
		assert.Equal(t, 0, moved, "job must not run before its delay")

		now = now.Add(want)
		moved, err = q.Promote(ctx, "email")
		require.NoError(t, err)
		assert.Equal(t, 1, moved)
	}

	job, err := q.Reserve(ctx, "email", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 2, job.AttemptsMade)

	result, err := q.Fail(ctx, job, errors.New("provider down"))
	require.NoError(t, err)
	assert.False(t, result.Retried)

	stats, err := q.Stats(ctx, "email")
	require.NoError(t, err)
	assert.Equal(t, Stats{Dead: 1}, stats)

	dead, err := q.Dead(ctx, "email", 10)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, 3, dead[0].AttemptsMade)
	assert.Equal(t, "provider down", dead[0].LastError)
}

func TestQueue_FailUsesAttemptsStampedAtEnqueue(t *testing.T) {
	q, _ := newTestQueue(t, defaultPolicy())
	ctx := context.Background()

	_, err := q.Enqueue(ctx, "email", "send-email", emailJob{})
	require.NoError(t, err)

	// a later deploy raises the budget; the queued job keeps its own
	q.policy.MaxAttempts = 10
	job, err := q.Reserve(ctx, "email", time.Second)
	require.NoError(t, err)
	require.Equal(t, 3, job.MaxAttempts)
	job.AttemptsMade = 2

	result, err := q.Fail(ctx, job, errors.New("provider down"))
	require.NoError(t, err)
	assert.False(t, result.Retried)

	stats, err := q.Stats(ctx, "email")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Dead)
}

func TestQueue_PermanentErrorSkipsRetries(t *testing.T) {
	q, _ := newTestQueue(t, defaultPolicy())
	ctx := context.Background()

	_, err := q.Enqueue(ctx, "email", "send-email", emailJob{})
	require.NoError(t, err)
	job, err := q.Reserve(ctx, "email", time.Second)
	require.NoError(t, err)

	result, err := q.Fail(ctx, job, backoff.Permanent(errors.New("unknown template")))
	require.NoError(t, err)
	assert.False(t, result.Retried)

	stats, err := q.Stats(ctx, "email")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Dead)
}

type refusePipelines struct{}

func (refusePipelines) DialHook(next redis.DialHook) redis.DialHook          { return next }
func (refusePipelines) ProcessHook(next redis.ProcessHook) redis.ProcessHook { return next }
func (refusePipelines) ProcessPipelineHook(redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(context.Context, []redis.Cmder) error { return errors.New("pipeline refused") }
}

func TestQueue_UndecodableJobIsDeadLettered(t *testing.T) {
	q, mr := newTestQueue(t, defaultPolicy())
	ctx := context.Background()

	_, err := mr.Lpush("account:queue:email:wait", "not-json")
	require.NoError(t, err)

	job, err := q.Reserve(ctx, "email", time.Second)
	assert.Error(t, err)
	assert.Nil(t, job)

	stats, err := q.Stats(ctx, "email")
	require.NoError(t, err)
	assert.Equal(t, Stats{Dead: 1}, stats)
}

func TestQueue_UndecodableJobLogsFailedDeadLetter(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger.UseLogger(zap.New(core), logger.DefaultPerformanceConfig())
	t.Cleanup(func() { logger.UseLogger(zap.NewNop(), logger.DefaultPerformanceConfig()) })

	q, mr := newTestQueue(t, defaultPolicy())
	ctx := context.Background()

	_, err := mr.Lpush("account:queue:email:wait", "not-json")
	require.NoError(t, err)
	q.rdb().AddHook(refusePipelines{})

	_, err = q.Reserve(ctx, "email", time.Second)
	assert.Error(t, err)

	failed := logs.FilterMessage("Failed to dead-letter undecodable job").All()
	require.Len(t, failed, 1)
	assert.Equal(t, "email", failed[0].ContextMap()["queue"])
	assert.Contains(t, failed[0].ContextMap()["error"], "pipeline refused")

	active, err := mr.List("account:queue:email:active")
	require.NoError(t, err)
	assert.Equal(t, []string{"not-json"}, active)
}

func TestQueue_RequeueActive(t *testing.T) {
	q, _ := newTestQueue(t, defaultPolicy())
	ctx := context.Background()

	id, err := q.Enqueue(ctx, "push-notification", "send-push-notification", emailJob{})
	require.NoError(t, err)
	_, err = q.Reserve(ctx, "push-notification", time.Second)
	require.NoError(t, err)

	stalled, err := q.RequeueActive(ctx, "push-notification")
	require.NoError(t, err)
	require.Len(t, stalled, 1)
	assert.Equal(t, id, stalled[0].ID)

	job, err := q.Reserve(ctx, "push-notification", time.Second)
	require.NoError(t, err)
	assert.Equal(t, id, job.ID)
}

func TestConsumer_ProcessesAndRetries(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 2, Backoff: config.BackoffFixed, Delay: 10 * time.Millisecond}
	q, _ := newTestQueue(t, policy)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := q.Enqueue(ctx, "email", "send-email", emailJob{Subject: "ok"})
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, "email", "send-email", emailJob{Subject: "flaky"})
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, "email", "send-email", emailJob{Subject: "broken"})
	require.NoError(t, err)

	var (
		mu        sync.Mutex
		completed []string
		retried   int
		failed    []string
		flakyRuns int
		done      = make(chan struct{})
	)

	finish := func() {
		if len(completed)+len(failed) == 3 {
			close(done)
		}
	}

	handler := func(ctx context.Context, job *Job) error {
		var p emailJob
		if err := job.Decode(&p); err != nil {
			return err
		}
		switch p.Subject {
		case "flaky":
			mu.Lock()
			flakyRuns++
			runs := flakyRuns
			mu.Unlock()
			if runs == 1 {
				return errors.New("temporary")
			}
		case "broken":
			panic("boom")
		}
		return nil
	}

	hooks := Hooks{
		OnCompleted: func(_ context.Context, job *Job, _ time.Duration) {
			mu.Lock()
			defer mu.Unlock()
			completed = append(completed, job.ID)
			finish()
		},
		OnRetry: func(context.Context, *Job, error, time.Duration) {
			mu.Lock()
			retried++
			mu.Unlock()
		},
		OnFailed: func(_ context.Context, job *Job, err error) {
			mu.Lock()
			defer mu.Unlock()
			failed = append(failed, job.LastError)
			finish()
		},
	}

	consumer := NewConsumer(q, ConsumerConfig{
		Queue:           "email",
		Concurrency:     2,
		PollTimeout:     100 * time.Millisecond,
		PromoteInterval: 10 * time.Millisecond,
	}, handler, hooks)

	errCh := make(chan error, 1)
	go func() { errCh <- consumer.Run(ctx) }()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Timed out waiting for jobs to settle")
	}
	cancel()
	require.NoError(t, <-errCh)

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, completed, 2)
	assert.Equal(t, 2, retried)
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0], "panicked")
}
