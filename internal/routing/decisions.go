package routing

import (
	"context"
	"sync"
	"time"
)

// Decision is one routing outcome kept for inspection and persistence.
type Decision struct {
	TaskID         string    `json:"task_id"`
	Route          string    `json:"route"`
	FallbackReason string    `json:"fallback_reason,omitempty"`
	EntityCount    int       `json:"entity_count"`
	LatencyMs      int64     `json:"latency_ms"`
	DecidedAt      time.Time `json:"decided_at"`
}

// DecisionSink persists flushed decisions.
type DecisionSink interface {
	SaveDecisions(ctx context.Context, decisions []Decision) error
}

// decisionLog is a bounded in-memory record of recent decisions. Capacity
// and age limits both apply, so a long-running process neither grows
// without bound nor serves stale entries.
type decisionLog struct {
	mu        sync.Mutex
	entries   []Decision
	unflushed []Decision
	capacity  int
	retention time.Duration
}

func newDecisionLog(capacity int, retention time.Duration) *decisionLog {
	if capacity <= 0 {
		capacity = 4096
	}
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &decisionLog{capacity: capacity, retention: retention}
}

func (l *decisionLog) add(d Decision) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, d)
	l.evictLocked()

	l.unflushed = append(l.unflushed, d)
	if len(l.unflushed) > l.capacity {
		l.unflushed = l.unflushed[len(l.unflushed)-l.capacity:]
	}
}

func (l *decisionLog) recent(n int) []Decision {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evictLocked()

	if n <= 0 || n > len(l.entries) {
		n = len(l.entries)
	}
	out := make([]Decision, n)
	copy(out, l.entries[len(l.entries)-n:])
	return out
}

func (l *decisionLog) takeUnflushed() []Decision {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.unflushed
	l.unflushed = nil
	return out
}

func (l *decisionLog) requeue(decisions []Decision) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.unflushed = append(decisions, l.unflushed...)
	if len(l.unflushed) > l.capacity {
		l.unflushed = l.unflushed[len(l.unflushed)-l.capacity:]
	}
}

func (l *decisionLog) evictLocked() {
	if len(l.entries) > l.capacity {
		l.entries = l.entries[len(l.entries)-l.capacity:]
	}
	cutoff := time.Now().Add(-l.retention)
	firstFresh := 0
	for firstFresh < len(l.entries) && l.entries[firstFresh].DecidedAt.Before(cutoff) {
		firstFresh++
	}
	if firstFresh > 0 {
		l.entries = l.entries[firstFresh:]
	}
}
