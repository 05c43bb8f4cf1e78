package health

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
)

// Component names used across the service.
const (
	ComponentTemporalWorker = "temporal_worker"
	ComponentDatabase       = "database"
	ComponentRedis          = "redis"
)

const slowDependency = 100 * time.Millisecond

// TemporalWorkerChecker verifies that at least one worker is polling the
// investigation task queue. No pollers means agent-path requests would sit
// in the queue until timeout, so the router treats this as unavailable.
type TemporalWorkerChecker struct {
	client    client.Client
	taskQueue string
	timeout   time.Duration
}

func NewTemporalWorkerChecker(c client.Client, taskQueue string, timeout time.Duration) *TemporalWorkerChecker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &TemporalWorkerChecker{client: c, taskQueue: taskQueue, timeout: timeout}
}

func (t *TemporalWorkerChecker) Name() string           { return ComponentTemporalWorker }
func (t *TemporalWorkerChecker) IsCritical() bool       { return false }
func (t *TemporalWorkerChecker) Timeout() time.Duration { return t.timeout }

func (t *TemporalWorkerChecker) Check(ctx context.Context) CheckResult {
	result := CheckResult{Component: ComponentTemporalWorker}

	resp, err := t.client.DescribeTaskQueue(ctx, t.taskQueue, enumspb.TASK_QUEUE_TYPE_WORKFLOW)
	if err != nil {
		result.Status = StatusUnhealthy
		result.Error = err.Error()
		result.Message = "failed to describe task queue"
		return result
	}

	pollers := len(resp.GetPollers())
	result.Details = map[string]interface{}{
		"task_queue": t.taskQueue,
		"pollers":    pollers,
	}
	if pollers == 0 {
		result.Status = StatusUnhealthy
		result.Message = "no workers polling task queue"
		return result
	}
	result.Status = StatusHealthy
	result.Message = "workers available"
	return result
}

// DatabaseChecker pings PostgreSQL and inspects the connection pool.
type DatabaseChecker struct {
	db      *sqlx.DB
	timeout time.Duration
}

func NewDatabaseChecker(db *sqlx.DB) *DatabaseChecker {
	return &DatabaseChecker{db: db, timeout: 5 * time.Second}
}

func (d *DatabaseChecker) Name() string           { return ComponentDatabase }
func (d *DatabaseChecker) IsCritical() bool       { return true }
func (d *DatabaseChecker) Timeout() time.Duration { return d.timeout }

func (d *DatabaseChecker) Check(ctx context.Context) CheckResult {
	result := CheckResult{Component: ComponentDatabase}

	start := time.Now()
	if err := d.db.PingContext(ctx); err != nil {
		result.Status = StatusUnhealthy
		result.Error = err.Error()
		result.Message = "database ping failed"
		return result
	}
	latency := time.Since(start)

	stats := d.db.Stats()
	result.Details = map[string]interface{}{
		"latency_ms":       latency.Milliseconds(),
		"open_connections": stats.OpenConnections,
		"in_use":           stats.InUse,
		"idle":             stats.Idle,
	}

	switch {
	case stats.MaxOpenConnections > 0 && stats.OpenConnections >= stats.MaxOpenConnections:
		result.Status = StatusDegraded
		result.Message = "connection pool exhausted"
	case latency > slowDependency:
		result.Status = StatusDegraded
		result.Message = "database responding slowly"
	default:
		result.Status = StatusHealthy
		result.Message = "database healthy"
	}
	return result
}

// RedisChecker pings the event-mirror Redis. Redis is optional so its
// failure degrades rather than fails readiness.
type RedisChecker struct {
	client  *redis.Client
	timeout time.Duration
}

func NewRedisChecker(client *redis.Client) *RedisChecker {
	return &RedisChecker{client: client, timeout: 5 * time.Second}
}

func (r *RedisChecker) Name() string           { return ComponentRedis }
func (r *RedisChecker) IsCritical() bool       { return false }
func (r *RedisChecker) Timeout() time.Duration { return r.timeout }

func (r *RedisChecker) Check(ctx context.Context) CheckResult {
	result := CheckResult{Component: ComponentRedis}

	start := time.Now()
	if err := r.client.Ping(ctx).Err(); err != nil {
		result.Status = StatusUnhealthy
		result.Error = err.Error()
		result.Message = "redis ping failed"
		return result
	}
	latency := time.Since(start)

	result.Details = map[string]interface{}{"latency_ms": latency.Milliseconds()}
	if latency > slowDependency {
		result.Status = StatusDegraded
		result.Message = "redis responding slowly"
	} else {
		result.Status = StatusHealthy
		result.Message = "redis healthy"
	}
	return result
}

// FuncChecker wraps a bare function as a Checker.
type FuncChecker struct {
	name     string
	critical bool
	timeout  time.Duration
	fn       func(ctx context.Context) CheckResult
}

func NewFuncChecker(name string, critical bool, timeout time.Duration, fn func(ctx context.Context) CheckResult) *FuncChecker {
	return &FuncChecker{name: name, critical: critical, timeout: timeout, fn: fn}
}

func (f *FuncChecker) Name() string                          { return f.name }
func (f *FuncChecker) IsCritical() bool                      { return f.critical }
func (f *FuncChecker) Timeout() time.Duration                { return f.timeout }
func (f *FuncChecker) Check(ctx context.Context) CheckResult { return f.fn(ctx) }
