package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Payphone-Digital/account-service/internal/constants"
	"github.com/Payphone-Digital/account-service/pkg/logger"
	pkgredis "github.com/Payphone-Digital/account-service/pkg/redis"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Limiter counts requests per key within a window.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, remaining int, reset time.Time, err error)
}

// MemoryLimiter is a sliding window kept in process memory.
type MemoryLimiter struct {
	mu         sync.Mutex
	hits       map[string][]time.Time
	maxRequest int
	window     time.Duration
	now        func() time.Time
}

func NewMemoryLimiter(maxRequest int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		hits:       make(map[string][]time.Time),
		maxRequest: maxRequest,
		window:     window,
		now:        time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, int, time.Time, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.cleanup(now)

	hits := l.hits[key]
	reset := now.Add(l.window)
	if len(hits) > 0 {
		reset = hits[0].Add(l.window)
	}
	if len(hits) >= l.maxRequest {
		return false, 0, reset, nil
	}

	l.hits[key] = append(hits, now)
	return true, l.maxRequest - len(hits) - 1, reset, nil
}

// must hold lock
func (l *MemoryLimiter) cleanup(now time.Time) {
	for key, hits := range l.hits {
		valid := hits[:0]
		for _, t := range hits {
			if now.Sub(t) < l.window {
				valid = append(valid, t)
			}
		}
		if len(valid) > 0 {
			l.hits[key] = valid
		} else {
			delete(l.hits, key)
		}
	}
}

// windowScript increments the counter and starts its window on first hit.
var windowScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return {n, redis.call('PTTL', KEYS[1])}
`)

// RedisLimiter is a fixed window shared by every instance of the service.
type RedisLimiter struct {
	client     *pkgredis.Client
	maxRequest int
	window     time.Duration
}

func NewRedisLimiter(client *pkgredis.Client, maxRequest int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, maxRequest: maxRequest, window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, int, time.Time, error) {
	res, err := windowScript.Run(ctx, l.client.Raw(),
		[]string{l.client.Key("ratelimit:" + key)},
		l.window.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return false, 0, time.Time{}, err
	}

	n, ttl := int(res[0]), time.Duration(res[1])*time.Millisecond
	reset := time.Now().Add(ttl)
	if n > l.maxRequest {
		return false, 0, reset, nil
	}
	return true, l.maxRequest - n, reset, nil
}

// RateLimit rejects clients that exceed the limiter's budget. Limiter
// errors let the request through.
func RateLimit(limiter Limiter, maxRequest int) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		ip := c.ClientIP()

		allowed, remaining, reset, err := limiter.Allow(ctx, ip)
		if err != nil {
			logger.WarnWithContext(ctx, "Rate limiter unavailable").Err(err).Log()
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequest))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

		if !allowed {
			retryAfter := int(time.Until(reset).Seconds()) + 1
			logger.WarnWithContext(ctx, "Rate limit exceeded").
				String("method", c.Request.Method).
				String("path", c.Request.URL.Path).
				Int("max_requests", maxRequest).
				Log()
			c.Header(constants.HeaderRetryAfter, strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				constants.BuildErrorResponse(constants.MsgTooManyRequests, nil))
			return
		}

		c.Next()
	}
}
