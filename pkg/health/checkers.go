package health

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Payphone-Digital/account-service/pkg/queue"
	"gorm.io/gorm"
)

// FuncChecker adapts a ping function into a Checker.
type FuncChecker struct {
	name string
	ping func(ctx context.Context) error
}

func NewFuncChecker(name string, ping func(ctx context.Context) error) *FuncChecker {
	return &FuncChecker{name: name, ping: ping}
}

func (c *FuncChecker) Name() string { return c.name }

func (c *FuncChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	err := c.ping(ctx)
	return finish(c.name, start, err)
}

// DatabaseChecker pings the connection pool behind db.
type DatabaseChecker struct {
	db *gorm.DB
}

func NewDatabaseChecker(db *gorm.DB) *DatabaseChecker {
	return &DatabaseChecker{db: db}
}

func (c *DatabaseChecker) Name() string { return "database" }

func (c *DatabaseChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	sqlDB, err := c.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}

	result := finish(c.Name(), start, err)
	if sqlDB != nil {
		stats := sqlDB.Stats()
		result.Details = map[string]string{
			"open_connections": strconv.Itoa(stats.OpenConnections),
			"in_use":           strconv.Itoa(stats.InUse),
			"idle":             strconv.Itoa(stats.Idle),
		}
	}
	return result
}

// PoolReporter is a pingable client that can describe its connection pool.
type PoolReporter interface {
	Ping(ctx context.Context) error
	PoolStats() map[string]string
}

// RedisChecker pings Redis and reports its pool counters.
type RedisChecker struct {
	client PoolReporter
}

func NewRedisChecker(client PoolReporter) *RedisChecker {
	return &RedisChecker{client: client}
}

func (c *RedisChecker) Name() string { return "redis" }

func (c *RedisChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	result := finish(c.Name(), start, c.client.Ping(ctx))
	result.Details = c.client.PoolStats()
	return result
}

// QueueInspector is what QueueChecker needs from the job queue.
type QueueInspector interface {
	Ping(ctx context.Context) error
	Stats(ctx context.Context, name string) (queue.Stats, error)
	Dead(ctx context.Context, name string, limit int64) ([]*queue.Job, error)
	Completed(ctx context.Context, name string, limit int64) ([]*queue.Job, error)
}

// QueueChecker reports the queue as degraded while dead-lettered jobs wait
// for attention.
type QueueChecker struct {
	queue  QueueInspector
	queues []string
}

func NewQueueChecker(q QueueInspector, queues ...string) *QueueChecker {
	return &QueueChecker{queue: q, queues: queues}
}

func (c *QueueChecker) Name() string { return "queue" }

func (c *QueueChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	if err := c.queue.Ping(ctx); err != nil {
		return finish(c.Name(), start, err)
	}

	result := finish(c.Name(), start, nil)
	result.Details = make(map[string]string, len(c.queues)*4)
	for _, name := range c.queues {
		if err := c.describe(ctx, name, result.Details); err != nil {
			return finish(c.Name(), start, fmt.Errorf("queue %s: %w", name, err))
		}
		if result.Details[name+"_dead"] != "0" {
			result.Status = StatusDegraded
		}
	}
	return result
}

func (c *QueueChecker) describe(ctx context.Context, name string, details map[string]string) error {
	stats, err := c.queue.Stats(ctx, name)
	if err != nil {
		return err
	}
	details[name+"_waiting"] = strconv.FormatInt(stats.Waiting, 10)
	details[name+"_active"] = strconv.FormatInt(stats.Active, 10)
	details[name+"_delayed"] = strconv.FormatInt(stats.Delayed, 10)
	details[name+"_dead"] = strconv.FormatInt(stats.Dead, 10)

	if stats.Dead > 0 {
		dead, err := c.queue.Dead(ctx, name, 1)
		if err != nil {
			return err
		}
		if len(dead) > 0 {
			details[name+"_last_dead_job"] = dead[0].ID
			details[name+"_last_dead_error"] = dead[0].LastError
		}
	}

	done, err := c.queue.Completed(ctx, name, 1)
	if err != nil {
		return err
	}
	if len(done) > 0 {
		details[name+"_last_completed_job"] = done[0].ID
	}
	return nil
}

func finish(name string, start time.Time, err error) CheckResult {
	result := CheckResult{
		Name:      name,
		Status:    StatusHealthy,
		Latency:   time.Since(start),
		LastCheck: start,
	}
	if err != nil {
		result.Status = StatusUnhealthy
		result.Error = err.Error()
	}
	return result
}
