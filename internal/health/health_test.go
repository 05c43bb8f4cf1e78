package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func staticChecker(name string, critical bool, status CheckStatus) Checker {
	return NewFuncChecker(name, critical, time.Second, func(ctx context.Context) CheckResult {
		return CheckResult{Status: status, Message: "static"}
	})
}

func TestManagerRegisterRejectsDuplicates(t *testing.T) {
	m := NewManager(time.Minute, zaptest.NewLogger(t))
	require.NoError(t, m.RegisterChecker(staticChecker("a", true, StatusHealthy)))
	assert.Error(t, m.RegisterChecker(staticChecker("a", true, StatusHealthy)))
	assert.Error(t, m.RegisterChecker(staticChecker("", true, StatusHealthy)))
}

func TestManagerOverallHealthy(t *testing.T) {
	m := NewManager(time.Minute, zaptest.NewLogger(t))
	require.NoError(t, m.RegisterChecker(staticChecker("db", true, StatusHealthy)))
	require.NoError(t, m.RegisterChecker(staticChecker("redis", false, StatusHealthy)))

	d := m.Check(context.Background())
	assert.Equal(t, StatusHealthy, d.Overall.Status)
	assert.True(t, d.Overall.Ready)
	assert.Len(t, d.Components, 2)
	assert.True(t, d.Components["db"].Critical)
}

func TestManagerCriticalFailureBlocksReadiness(t *testing.T) {
	m := NewManager(time.Minute, zaptest.NewLogger(t))
	require.NoError(t, m.RegisterChecker(staticChecker("db", true, StatusUnhealthy)))

	d := m.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, d.Overall.Status)
	assert.False(t, d.Overall.Ready)
	assert.True(t, d.Overall.Live)
	assert.False(t, m.IsReady(context.Background()))
}

func TestManagerNonCriticalFailureDegrades(t *testing.T) {
	m := NewManager(time.Minute, zaptest.NewLogger(t))
	require.NoError(t, m.RegisterChecker(staticChecker("db", true, StatusHealthy)))
	require.NoError(t, m.RegisterChecker(staticChecker("redis", false, StatusUnhealthy)))

	d := m.Check(context.Background())
	assert.Equal(t, StatusDegraded, d.Overall.Status)
	assert.True(t, d.Overall.Ready)
}

func TestManagerNoCheckersNotReady(t *testing.T) {
	m := NewManager(time.Minute, zaptest.NewLogger(t))
	d := m.Check(context.Background())
	assert.Equal(t, StatusUnknown, d.Overall.Status)
	assert.False(t, d.Overall.Ready)
}

func TestComponentHealthy(t *testing.T) {
	m := NewManager(time.Minute, zaptest.NewLogger(t))
	require.NoError(t, m.RegisterChecker(staticChecker("worker", false, StatusHealthy)))
	require.NoError(t, m.RegisterChecker(staticChecker("broken", false, StatusUnhealthy)))

	assert.True(t, m.ComponentHealthy(context.Background(), "worker"))
	assert.False(t, m.ComponentHealthy(context.Background(), "broken"))
	assert.False(t, m.ComponentHealthy(context.Background(), "unregistered"))
}

func TestRedisChecker(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	checker := NewRedisChecker(client)
	result := checker.Check(context.Background())
	assert.Equal(t, StatusHealthy, result.Status)
	assert.False(t, checker.IsCritical())

	mr.Close()
	result = checker.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, result.Status)
	assert.NotEmpty(t, result.Error)
}

func TestHTTPProbes(t *testing.T) {
	m := NewManager(time.Minute, zaptest.NewLogger(t))
	require.NoError(t, m.RegisterChecker(staticChecker("db", true, StatusHealthy)))

	mux := http.NewServeMux()
	NewHTTPHandler(m, zaptest.NewLogger(t)).RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ready":true`)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/detailed", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"db"`)
}

func TestHTTPReadyzFailsClosed(t *testing.T) {
	m := NewManager(time.Minute, zaptest.NewLogger(t))
	require.NoError(t, m.RegisterChecker(staticChecker("db", true, StatusUnhealthy)))

	mux := http.NewServeMux()
	NewHTTPHandler(m, zaptest.NewLogger(t)).RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
