// Package health tracks dependency liveness. The router consults it before
// committing an investigation to the agent path; HTTP probes expose it to
// orchestration platforms.
package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CheckStatus is the outcome of a single check.
type CheckStatus int

const (
	StatusHealthy CheckStatus = iota
	StatusDegraded
	StatusUnhealthy
	StatusUnknown
)

func (s CheckStatus) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// CheckResult is the detailed outcome of one component check.
type CheckResult struct {
	Component string                 `json:"component"`
	Status    CheckStatus            `json:"status"`
	Message   string                 `json:"message,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Duration  time.Duration          `json:"duration"`
	Timestamp time.Time              `json:"timestamp"`
	Critical  bool                   `json:"critical"`
}

// Checker is one dependency probe.
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
	// IsCritical marks checks whose failure makes the service not ready.
	IsCritical() bool
	Timeout() time.Duration
}

// Overall summarizes service health across all checks.
type Overall struct {
	Status    CheckStatus `json:"status"`
	Message   string      `json:"message,omitempty"`
	Ready     bool        `json:"ready"`
	Live      bool        `json:"live"`
	Timestamp time.Time   `json:"timestamp"`
}

// Detailed is Overall plus per-component results.
type Detailed struct {
	Overall    Overall                `json:"overall"`
	Components map[string]CheckResult `json:"components"`
}

// Manager runs registered checks on demand and on a background interval,
// caching the latest results.
type Manager struct {
	mu       sync.RWMutex
	checkers map[string]Checker
	last     map[string]CheckResult
	interval time.Duration
	stopCh   chan struct{}
	started  bool
	logger   *zap.Logger
}

// NewManager creates a manager that re-checks every interval once started.
func NewManager(interval time.Duration, logger *zap.Logger) *Manager {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Manager{
		checkers: make(map[string]Checker),
		last:     make(map[string]CheckResult),
		interval: interval,
		stopCh:   make(chan struct{}),
		logger:   logger,
	}
}

// RegisterChecker adds a check. Names must be unique.
func (m *Manager) RegisterChecker(c Checker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	name := c.Name()
	if name == "" {
		return fmt.Errorf("checker name cannot be empty")
	}
	if _, exists := m.checkers[name]; exists {
		return fmt.Errorf("checker %s already registered", name)
	}
	m.checkers[name] = c
	m.logger.Info("health checker registered",
		zap.String("checker", name),
		zap.Bool("critical", c.IsCritical()),
	)
	return nil
}

// Check runs every registered checker and returns the detailed picture.
func (m *Manager) Check(ctx context.Context) Detailed {
	m.mu.RLock()
	checkers := make([]Checker, 0, len(m.checkers))
	for _, c := range m.checkers {
		checkers = append(checkers, c)
	}
	m.mu.RUnlock()

	components := make(map[string]CheckResult, len(checkers))
	for _, c := range checkers {
		components[c.Name()] = m.runOne(ctx, c)
	}

	m.mu.Lock()
	for name, result := range components {
		m.last[name] = result
	}
	m.mu.Unlock()

	return Detailed{
		Overall:    summarize(components),
		Components: components,
	}
}

// ComponentHealthy reports whether a single named component passed its most
// recent check, running it now if it has never run.
func (m *Manager) ComponentHealthy(ctx context.Context, name string) bool {
	m.mu.RLock()
	c, registered := m.checkers[name]
	result, cached := m.last[name]
	m.mu.RUnlock()

	if !registered {
		return false
	}
	if !cached || time.Since(result.Timestamp) > m.interval {
		result = m.runOne(ctx, c)
		m.mu.Lock()
		m.last[name] = result
		m.mu.Unlock()
	}
	return result.Status == StatusHealthy || result.Status == StatusDegraded
}

// IsReady reports whether every critical component is passing.
func (m *Manager) IsReady(ctx context.Context) bool {
	return m.Check(ctx).Overall.Ready
}

// IsLive reports process liveness. The process answering at all is the
// signal; dependency failures do not make it not-live.
func (m *Manager) IsLive(ctx context.Context) bool {
	return true
}

// LastResults returns cached results without running any checks.
func (m *Manager) LastResults() map[string]CheckResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]CheckResult, len(m.last))
	for name, r := range m.last {
		out[name] = r
	}
	return out
}

// Start begins the background check loop.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-m.stopCh:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Check(ctx)
			}
		}
	}()
	m.logger.Info("health manager started", zap.Duration("interval", m.interval))
}

// Stop halts the background loop.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return
	}
	close(m.stopCh)
	m.started = false
}

func (m *Manager) runOne(ctx context.Context, c Checker) CheckResult {
	checkCtx, cancel := context.WithTimeout(ctx, c.Timeout())
	defer cancel()

	start := time.Now()
	result := c.Check(checkCtx)
	result.Component = c.Name()
	result.Critical = c.IsCritical()
	result.Duration = time.Since(start)
	result.Timestamp = start
	return result
}

func summarize(components map[string]CheckResult) Overall {
	now := time.Now()
	if len(components) == 0 {
		return Overall{Status: StatusUnknown, Message: "no health checks registered", Ready: false, Live: true, Timestamp: now}
	}

	criticalFailures := 0
	degraded := 0
	for _, r := range components {
		switch r.Status {
		case StatusUnhealthy:
			if r.Critical {
				criticalFailures++
			} else {
				degraded++
			}
		case StatusDegraded:
			degraded++
		}
	}

	switch {
	case criticalFailures > 0:
		return Overall{
			Status:    StatusUnhealthy,
			Message:   fmt.Sprintf("%d critical component(s) failing", criticalFailures),
			Ready:     false,
			Live:      true,
			Timestamp: now,
		}
	case degraded > 0:
		return Overall{
			Status:    StatusDegraded,
			Message:   fmt.Sprintf("%d component(s) degraded", degraded),
			Ready:     true,
			Live:      true,
			Timestamp: now,
		}
	default:
		return Overall{
			Status:    StatusHealthy,
			Message:   fmt.Sprintf("all %d components healthy", len(components)),
			Ready:     true,
			Live:      true,
			Timestamp: now,
		}
	}
}
