package db

import (
	"time"

	"github.com/lib/pq"
)

// Investigation status values.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Investigation is the persisted outcome of one investigation task.
type Investigation struct {
	TaskID      string         `db:"task_id"`
	Text        string         `db:"text"`
	Status      string         `db:"status"`
	RiskLevel   string         `db:"risk_level"`
	Confidence  float64        `db:"confidence"`
	Explanation string         `db:"explanation"`
	ToolsUsed   pq.StringArray `db:"tools_used"`
	Method      string         `db:"method"`
	EntityCount int            `db:"entity_count"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

// EvidenceRecord is one tool outcome attached to an investigation.
type EvidenceRecord struct {
	ID          int64     `db:"id"`
	TaskID      string    `db:"task_id"`
	ToolName    string    `db:"tool_name"`
	EntityType  string    `db:"entity_type"`
	EntityValue string    `db:"entity_value"`
	Payload     []byte    `db:"payload"` // JSON
	Success     bool      `db:"success"`
	Error       string    `db:"error"`
	LatencyMs   int64     `db:"latency_ms"`
	CreatedAt   time.Time `db:"created_at"`
}

// RoutingRecord is a persisted routing decision.
type RoutingRecord struct {
	ID             int64     `db:"id"`
	TaskID         string    `db:"task_id"`
	Route          string    `db:"route"`
	FallbackReason string    `db:"fallback_reason"`
	EntityCount    int       `db:"entity_count"`
	LatencyMs      int64     `db:"latency_ms"`
	DecidedAt      time.Time `db:"decided_at"`
}

// ScamReport is a row in the local scam corpus consulted by lookups.
type ScamReport struct {
	ID          int64          `db:"id"`
	EntityValue string         `db:"entity_value"`
	Verified    bool           `db:"verified"`
	RiskScore   float64        `db:"risk_score"`
	Categories  pq.StringArray `db:"categories"`
	ReportedAt  time.Time      `db:"reported_at"`
}
