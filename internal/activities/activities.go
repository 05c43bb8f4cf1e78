// Package activities holds the Temporal activities behind an investigation
// workflow. All side effects (tool calls, LLM, persistence, progress
// events) live here; the workflow itself stays deterministic.
package activities

import (
	"context"
	"time"

	"go.temporal.io/sdk/activity"
	"go.uber.org/zap"

	"github.com/scamlens/orchestrator/internal/db"
	"github.com/scamlens/orchestrator/internal/evidence"
	"github.com/scamlens/orchestrator/internal/extraction"
	"github.com/scamlens/orchestrator/internal/metrics"
	"github.com/scamlens/orchestrator/internal/reasoner"
	"github.com/scamlens/orchestrator/internal/streaming"
	"github.com/scamlens/orchestrator/internal/tools"
)

// Activity names used for registration and workflow-side invocation.
const (
	ExtractEntitiesActivity = "ExtractEntities"
	CallToolActivity        = "CallTool"
	ReasonActivity          = "Reason"
	EmitProgressActivity    = "EmitProgress"
	PersistVerdictActivity  = "PersistVerdict"
	MarkFailedActivity      = "MarkFailed"
)

// Activities carries the dependencies shared by all activity methods.
type Activities struct {
	extractor *extraction.Extractor
	registry  *tools.Registry
	reasoner  *reasoner.Reasoner
	events    *streaming.Manager
	store     *db.Client
	logger    *zap.Logger
}

func NewActivities(
	extractor *extraction.Extractor,
	registry *tools.Registry,
	rsn *reasoner.Reasoner,
	events *streaming.Manager,
	store *db.Client,
	logger *zap.Logger,
) *Activities {
	return &Activities{
		extractor: extractor,
		registry:  registry,
		reasoner:  rsn,
		events:    events,
		store:     store,
		logger:    logger,
	}
}

// ExtractEntitiesInput is the raw text of one investigation.
type ExtractEntitiesInput struct {
	TaskID string `json:"task_id"`
	Text   string `json:"text"`
}

// ExtractEntitiesResult carries the structured entities back to the
// workflow.
type ExtractEntitiesResult struct {
	Entities extraction.EntitySet `json:"entities"`
}

func (a *Activities) ExtractEntities(ctx context.Context, input ExtractEntitiesInput) (ExtractEntitiesResult, error) {
	entities := a.extractor.Extract(input.Text)
	a.logger.Info("extracted entities",
		zap.String("task_id", input.TaskID),
		zap.Int("count", entities.Count()),
	)
	return ExtractEntitiesResult{Entities: entities}, nil
}

// CallToolInput names one tool invocation against one entity.
type CallToolInput struct {
	TaskID      string `json:"task_id"`
	ToolName    string `json:"tool_name"`
	EntityType  string `json:"entity_type"`
	EntityValue string `json:"entity_value"`
}

// CallTool runs one verification tool. Tool errors propagate so the
// harness retry policy applies; the workflow converts a final failure into
// an error evidence record.
func (a *Activities) CallTool(ctx context.Context, input CallToolInput) (evidence.Evidence, error) {
	tool, err := a.registry.Get(input.ToolName)
	if err != nil {
		return evidence.Evidence{}, err
	}

	start := time.Now()
	payload, err := tool.Call(ctx, input.EntityValue)
	elapsed := time.Since(start)
	metrics.ToolCallDuration.WithLabelValues(input.ToolName).Observe(float64(elapsed.Milliseconds()))

	if err != nil {
		metrics.ToolCalls.WithLabelValues(input.ToolName, "error").Inc()
		a.logger.Warn("tool call failed",
			zap.String("task_id", input.TaskID),
			zap.String("tool", input.ToolName),
			zap.String("entity", input.EntityValue),
			zap.Int32("attempt", activity.GetInfo(ctx).Attempt),
			zap.Error(err),
		)
		return evidence.Evidence{}, err
	}

	metrics.ToolCalls.WithLabelValues(input.ToolName, "success").Inc()
	latencyMs := float64(elapsed.Milliseconds())
	return evidence.FromResult(input.ToolName, extraction.EntityType(input.EntityType), input.EntityValue, payload, latencyMs), nil
}

// ReasonInput bundles everything the verdict needs.
type ReasonInput struct {
	TaskID   string               `json:"task_id"`
	Text     string               `json:"text"`
	Entities extraction.EntitySet `json:"entities"`
	Evidence []evidence.Evidence  `json:"evidence"`
}

// Reason produces the final verdict. It never fails; on any LLM trouble
// the deterministic heuristic answers.
func (a *Activities) Reason(ctx context.Context, input ReasonInput) (reasoner.Verdict, error) {
	v := a.reasoner.Reason(ctx, input.Text, input.Entities, input.Evidence)
	a.logger.Info("verdict produced",
		zap.String("task_id", input.TaskID),
		zap.String("risk_level", string(v.RiskLevel)),
		zap.Float64("confidence", v.Confidence),
		zap.String("method", string(v.Method)),
	)
	return v, nil
}

// ProgressInput is one progress event for subscribers.
type ProgressInput struct {
	TaskID  string `json:"task_id"`
	Step    string `json:"step"`
	Tool    string `json:"tool,omitempty"`
	Message string `json:"message,omitempty"`
	Percent int    `json:"percent"`
	IsError bool   `json:"is_error,omitempty"`
}

func (a *Activities) EmitProgress(ctx context.Context, input ProgressInput) error {
	a.events.Publish(input.TaskID, streaming.Event{
		Step:    input.Step,
		Tool:    input.Tool,
		Message: input.Message,
		Percent: input.Percent,
		IsError: input.IsError,
	})
	return nil
}

// PersistVerdictInput is the complete investigation outcome.
type PersistVerdictInput struct {
	TaskID      string              `json:"task_id"`
	Text        string              `json:"text"`
	EntityCount int                 `json:"entity_count"`
	Verdict     reasoner.Verdict    `json:"verdict"`
	Evidence    []evidence.Evidence `json:"evidence"`
	ElapsedMs   int64               `json:"elapsed_ms"`
}

// PersistVerdict writes the investigation row and its evidence set.
func (a *Activities) PersistVerdict(ctx context.Context, input PersistVerdictInput) error {
	inv := &db.Investigation{
		TaskID:      input.TaskID,
		Text:        input.Text,
		Status:      db.StatusCompleted,
		RiskLevel:   string(input.Verdict.RiskLevel),
		Confidence:  input.Verdict.Confidence,
		Explanation: input.Verdict.Explanation,
		ToolsUsed:   input.Verdict.ToolsUsed,
		Method:      string(input.Verdict.Method),
		EntityCount: input.EntityCount,
	}
	if err := a.store.SaveInvestigation(ctx, inv); err != nil {
		metrics.PersistFailures.Inc()
		return err
	}
	if err := a.store.SaveEvidence(ctx, input.TaskID, input.Evidence); err != nil {
		metrics.PersistFailures.Inc()
		return err
	}
	metrics.InvestigationsCompleted.WithLabelValues(db.StatusCompleted).Inc()
	metrics.InvestigationDuration.Observe(float64(input.ElapsedMs) / 1000)
	return nil
}

// MarkFailedInput records a terminal workflow failure.
type MarkFailedInput struct {
	TaskID    string `json:"task_id"`
	Text      string `json:"text"`
	Reason    string `json:"reason"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

func (a *Activities) MarkFailed(ctx context.Context, input MarkFailedInput) error {
	err := a.store.SaveInvestigation(ctx, &db.Investigation{
		TaskID:      input.TaskID,
		Text:        input.Text,
		Status:      db.StatusFailed,
		Explanation: input.Reason,
		ToolsUsed:   []string{},
	})
	if err != nil {
		return err
	}
	metrics.InvestigationsCompleted.WithLabelValues(db.StatusFailed).Inc()
	metrics.InvestigationDuration.Observe(float64(input.ElapsedMs) / 1000)
	return nil
}
