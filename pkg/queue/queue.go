package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Payphone-Digital/account-service/internal/constants"
	"github.com/Payphone-Digital/account-service/pkg/logger"
	pkgredis "github.com/Payphone-Digital/account-service/pkg/redis"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/ksuid"
)

// Job is one unit of queued work. It is stored as JSON and moved between
// the wait, active, delayed and dead structures of its queue.
type Job struct {
	ID           string          `json:"id"`
	Queue        string          `json:"queue"`
	Name         string          `json:"name"`
	Payload      json.RawMessage `json:"payload"`
	AttemptsMade int             `json:"attemptsMade"`
	MaxAttempts  int             `json:"maxAttempts"`
	CreatedAt    time.Time       `json:"createdAt"`
	LastError    string          `json:"lastError,omitempty"`

	// raw is the exact stored form, needed to remove the job from a list
	raw string
}

// Decode unmarshals the job payload into v.
func (j *Job) Decode(v interface{}) error {
	return json.Unmarshal(j.Payload, v)
}

// Stats are the current sizes of a queue's structures.
type Stats struct {
	Waiting int64 `json:"waiting"`
	Active  int64 `json:"active"`
	Delayed int64 `json:"delayed"`
	Dead    int64 `json:"dead"`
}

// FailResult tells the caller what happened to a failed job.
type FailResult struct {
	Retried bool
	Delay   time.Duration
}

// promoteScript moves due jobs from the delayed set to the wait list.
var promoteScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
for _, job in ipairs(due) do
	redis.call('ZREM', KEYS[1], job)
	redis.call('LPUSH', KEYS[2], job)
end
return #due
`)

const promoteBatch = 100

// Queue is a durable at-least-once job queue on Redis lists. A reserved
// job sits in the active list until it is completed or failed, so a crash
// mid-job leaves it there to be requeued.
type Queue struct {
	client *pkgredis.Client
	policy RetryPolicy
	now    func() time.Time
}

func New(client *pkgredis.Client, policy RetryPolicy) *Queue {
	return &Queue{
		client: client,
		policy: policy,
		now:    time.Now,
	}
}

func (q *Queue) Policy() RetryPolicy {
	return q.policy
}

func (q *Queue) key(queue, part string) string {
	return q.client.Key(constants.CacheKeyQueue + queue + ":" + part)
}

func (q *Queue) rdb() *redis.Client {
	return q.client.Raw()
}

// Enqueue stores a new job and returns its id once Redis has accepted it.
func (q *Queue) Enqueue(ctx context.Context, queue, jobName string, payload interface{}) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s payload: %w", jobName, err)
	}

	job := &Job{
		ID:          ksuid.New().String(),
		Queue:       queue,
		Name:        jobName,
		Payload:     body,
		MaxAttempts: q.policy.MaxAttempts,
		CreatedAt:   q.now().UTC(),
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return "", err
	}

	if err := q.rdb().LPush(ctx, q.key(queue, "wait"), raw).Err(); err != nil {
		return "", fmt.Errorf("failed to enqueue %s: %w", jobName, err)
	}
	return job.ID, nil
}

// Reserve blocks up to timeout for the oldest waiting job and moves it to
// the active list. It returns nil, nil when nothing arrived in time.
func (q *Queue) Reserve(ctx context.Context, queue string, timeout time.Duration) (*Job, error) {
	raw, err := q.rdb().BLMove(ctx, q.key(queue, "wait"), q.key(queue, "active"), "RIGHT", "LEFT", timeout).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	job, err := decodeJob(raw)
	if err != nil {
		// an undecodable entry can never succeed, park it with the dead jobs
		_, perr := q.rdb().TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.LRem(ctx, q.key(queue, "active"), 1, raw)
			pipe.LPush(ctx, q.key(queue, "dead"), raw)
			return nil
		})
		if perr != nil {
			logger.ErrorWithContext(ctx, "Failed to dead-letter undecodable job").
				String("queue", queue).
				Int("size", len(raw)).
				Err(perr).
				Log()
		}
		return nil, err
	}
	return job, nil
}

// Complete drops a finished job from the active list and keeps the newest
// KeepCompleted of them in the completed list.
func (q *Queue) Complete(ctx context.Context, job *Job) error {
	keep := int64(q.policy.KeepCompleted)
	if keep <= 0 {
		return q.rdb().LRem(ctx, q.key(job.Queue, "active"), 1, job.raw).Err()
	}

	_, err := q.rdb().TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, q.key(job.Queue, "active"), 1, job.raw)
		pipe.LPush(ctx, q.key(job.Queue, "completed"), job.raw)
		pipe.LTrim(ctx, q.key(job.Queue, "completed"), 0, keep-1)
		return nil
	})
	return err
}

// Fail records a failed attempt. The job is scheduled again after the
// policy delay, or moved to the dead list once attempts are exhausted.
func (q *Queue) Fail(ctx context.Context, job *Job, cause error) (FailResult, error) {
	job.AttemptsMade++
	if cause != nil {
		job.LastError = cause.Error()
	}

	policy := q.policy.ForJob(job)
	result := FailResult{Retried: policy.ShouldRetry(job.AttemptsMade, cause)}
	if result.Retried {
		result.Delay = policy.DelayAfter(job.AttemptsMade)
	}

	previous := job.raw
	raw, err := json.Marshal(job)
	if err != nil {
		return result, err
	}

	_, err = q.rdb().TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, q.key(job.Queue, "active"), 1, previous)
		if result.Retried {
			due := q.now().Add(result.Delay).UnixMilli()
			pipe.ZAdd(ctx, q.key(job.Queue, "delayed"), redis.Z{Score: float64(due), Member: string(raw)})
		} else {
			pipe.LPush(ctx, q.key(job.Queue, "dead"), raw)
		}
		return nil
	})
	if err != nil {
		return result, err
	}

	job.raw = string(raw)
	return result, nil
}

// Promote moves delayed jobs whose time has come back to the wait list.
func (q *Queue) Promote(ctx context.Context, queue string) (int, error) {
	now := strconv.FormatInt(q.now().UnixMilli(), 10)
	moved, err := promoteScript.Run(ctx, q.rdb(),
		[]string{q.key(queue, "delayed"), q.key(queue, "wait")},
		now, promoteBatch,
	).Int()
	if err != nil {
		return 0, err
	}
	return moved, nil
}

// RequeueActive moves every job left in the active list back to the head
// of the wait list. It is meant for worker start, before any job of this
// queue is reserved.
func (q *Queue) RequeueActive(ctx context.Context, queue string) ([]*Job, error) {
	var stalled []*Job
	for {
		raw, err := q.rdb().LMove(ctx, q.key(queue, "active"), q.key(queue, "wait"), "RIGHT", "RIGHT").Result()
		if errors.Is(err, redis.Nil) {
			return stalled, nil
		}
		if err != nil {
			return stalled, err
		}
		job, err := decodeJob(raw)
		if err != nil {
			continue
		}
		stalled = append(stalled, job)
	}
}

func (q *Queue) Stats(ctx context.Context, queue string) (Stats, error) {
	var (
		waiting, active, dead *redis.IntCmd
		delayed               *redis.IntCmd
	)
	_, err := q.rdb().Pipelined(ctx, func(pipe redis.Pipeliner) error {
		waiting = pipe.LLen(ctx, q.key(queue, "wait"))
		active = pipe.LLen(ctx, q.key(queue, "active"))
		delayed = pipe.ZCard(ctx, q.key(queue, "delayed"))
		dead = pipe.LLen(ctx, q.key(queue, "dead"))
		return nil
	})
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Waiting: waiting.Val(),
		Active:  active.Val(),
		Delayed: delayed.Val(),
		Dead:    dead.Val(),
	}, nil
}

// Dead returns up to limit permanently failed jobs, newest first.
func (q *Queue) Dead(ctx context.Context, queue string, limit int64) ([]*Job, error) {
	return q.list(ctx, q.key(queue, "dead"), limit)
}

// Completed returns up to limit retained finished jobs, newest first.
func (q *Queue) Completed(ctx context.Context, queue string, limit int64) ([]*Job, error) {
	return q.list(ctx, q.key(queue, "completed"), limit)
}

func (q *Queue) list(ctx context.Context, key string, limit int64) ([]*Job, error) {
	raws, err := q.rdb().LRange(ctx, key, 0, limit-1).Result()
	if err != nil {
		return nil, err
	}
	jobs := make([]*Job, 0, len(raws))
	for _, raw := range raws {
		job, err := decodeJob(raw)
		if err != nil {
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Ping checks the backing Redis connection.
func (q *Queue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx)
}

func decodeJob(raw string) (*Job, error) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, fmt.Errorf("failed to decode job: %w", err)
	}
	job.raw = raw
	return &job, nil
}
