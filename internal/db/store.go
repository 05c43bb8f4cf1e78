package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/scamlens/orchestrator/internal/evidence"
	"github.com/scamlens/orchestrator/internal/tools"
)

// ErrNotFound is returned when no investigation exists for a task ID.
var ErrNotFound = errors.New("not found")

// SaveInvestigation upserts the investigation keyed by task ID. Retried
// persistence activities hit the same row, so the write is idempotent.
func (c *Client) SaveInvestigation(ctx context.Context, inv *Investigation) error {
	now := time.Now().UTC()
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO investigations (
			task_id, text, status, risk_level, confidence, explanation,
			tools_used, method, entity_count, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		ON CONFLICT (task_id) DO UPDATE SET
			status = EXCLUDED.status,
			risk_level = EXCLUDED.risk_level,
			confidence = EXCLUDED.confidence,
			explanation = EXCLUDED.explanation,
			tools_used = EXCLUDED.tools_used,
			method = EXCLUDED.method,
			entity_count = EXCLUDED.entity_count,
			updated_at = EXCLUDED.updated_at
	`, inv.TaskID, inv.Text, inv.Status, inv.RiskLevel, inv.Confidence,
		inv.Explanation, inv.ToolsUsed, inv.Method, inv.EntityCount, now)
	if err != nil {
		return fmt.Errorf("save investigation %s: %w", inv.TaskID, err)
	}
	return nil
}

// GetInvestigation loads one investigation by task ID.
func (c *Client) GetInvestigation(ctx context.Context, taskID string) (*Investigation, error) {
	var inv Investigation
	err := c.db.GetContext(ctx, &inv, `
		SELECT task_id, text, status, risk_level, confidence, explanation,
		       tools_used, method, entity_count, created_at, updated_at
		FROM investigations WHERE task_id = $1
	`, taskID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get investigation %s: %w", taskID, err)
	}
	return &inv, nil
}

// SaveEvidence inserts the evidence set for a task in one transaction,
// replacing whatever a previous attempt wrote.
func (c *Client) SaveEvidence(ctx context.Context, taskID string, records []evidence.Evidence) error {
	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin evidence tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM evidence WHERE task_id = $1`, taskID); err != nil {
		return fmt.Errorf("clear evidence for %s: %w", taskID, err)
	}

	now := time.Now().UTC()
	for _, rec := range records {
		payload, merr := json.Marshal(rec.Payload)
		if merr != nil {
			c.logger.Warn("dropping unmarshalable evidence payload",
				zap.String("task_id", taskID),
				zap.String("tool", rec.ToolName),
				zap.Error(merr),
			)
			payload = []byte("{}")
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO evidence (
				task_id, tool_name, entity_type, entity_value,
				payload, success, error, latency_ms, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, taskID, rec.ToolName, rec.EntityType, rec.EntityValue,
			payload, rec.Success, rec.Error, int64(rec.LatencyMs), now)
		if err != nil {
			return fmt.Errorf("insert evidence for %s: %w", taskID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit evidence for %s: %w", taskID, err)
	}
	return nil
}

// GetEvidence returns all evidence rows for a task in insertion order.
func (c *Client) GetEvidence(ctx context.Context, taskID string) ([]EvidenceRecord, error) {
	var out []EvidenceRecord
	err := c.db.SelectContext(ctx, &out, `
		SELECT id, task_id, tool_name, entity_type, entity_value,
		       payload, success, error, latency_ms, created_at
		FROM evidence WHERE task_id = $1 ORDER BY id
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("get evidence for %s: %w", taskID, err)
	}
	return out, nil
}

// SaveRoutingRecords flushes a batch of routing decisions. Failures are
// non-fatal to routing itself; callers log and move on.
func (c *Client) SaveRoutingRecords(ctx context.Context, records []RoutingRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin routing tx: %w", err)
	}
	defer tx.Rollback()

	for _, rec := range records {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO routing_decisions (
				task_id, route, fallback_reason, entity_count, latency_ms, decided_at
			) VALUES ($1, $2, $3, $4, $5, $6)
		`, rec.TaskID, rec.Route, rec.FallbackReason, rec.EntityCount, rec.LatencyMs, rec.DecidedAt)
		if err != nil {
			return fmt.Errorf("insert routing decision for %s: %w", rec.TaskID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit routing decisions: %w", err)
	}
	return nil
}

// LookupReports aggregates the local scam corpus for one entity value. A
// value with no rows returns Found=false rather than an error.
func (c *Client) LookupReports(ctx context.Context, value string) (*tools.ReportSummary, error) {
	var reports []ScamReport
	err := c.db.SelectContext(ctx, &reports, `
		SELECT id, entity_value, verified, risk_score, categories, reported_at
		FROM scam_reports WHERE entity_value = $1 ORDER BY reported_at DESC
	`, value)
	if err != nil {
		return nil, fmt.Errorf("lookup reports for %s: %w", value, err)
	}
	if len(reports) == 0 {
		return &tools.ReportSummary{Found: false}, nil
	}

	summary := &tools.ReportSummary{
		Found:       true,
		ReportCount: len(reports),
		LastSeen:    reports[0].ReportedAt.UTC().Format(time.RFC3339),
	}
	seen := make(map[string]struct{})
	for _, r := range reports {
		if r.Verified {
			summary.Verified = true
		}
		if r.RiskScore > summary.RiskScore {
			summary.RiskScore = r.RiskScore
		}
		for _, cat := range r.Categories {
			if _, dup := seen[cat]; dup {
				continue
			}
			seen[cat] = struct{}{}
			summary.Categories = append(summary.Categories, cat)
		}
	}
	return summary, nil
}

var _ tools.ReportStore = (*Client)(nil)
