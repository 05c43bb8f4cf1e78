// Package routing decides, per request, between the full agent-path
// investigation and a synchronous fast-path answer. It degrades rather
// than queues: when no worker is available the caller still gets a
// verdict.
package routing

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/scamlens/orchestrator/internal/config"
	"github.com/scamlens/orchestrator/internal/extraction"
	"github.com/scamlens/orchestrator/internal/health"
	"github.com/scamlens/orchestrator/internal/metrics"
	"github.com/scamlens/orchestrator/internal/reasoner"
	"github.com/scamlens/orchestrator/internal/workflows"
)

// Route names.
const (
	RouteAgent = "agent"
	RouteFast  = "fast"
)

// Fallback reasons recorded when the agent path was considered but not
// taken. A request with no entities always takes the fast path and
// carries no reason.
const (
	ReasonAgentDisabled     = "agent_disabled"
	ReasonWorkerUnavailable = "worker_unavailable"
)

// Classifier produces a quick verdict from text alone.
type Classifier interface {
	Classify(ctx context.Context, text string) reasoner.Verdict
}

// WorkflowStarter is the slice of the Temporal client the router needs.
type WorkflowStarter interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
}

// Outcome is what the router hands back to the HTTP layer.
type Outcome struct {
	TaskID         string
	Route          string
	FallbackReason string
	EntityCount    int
	// Verdict is set only on the fast path; the agent path delivers its
	// verdict through the workflow.
	Verdict *reasoner.Verdict
}

// Router implements the dispatch decision.
type Router struct {
	extractor  *extraction.Extractor
	health     *health.Manager
	starter    WorkflowStarter
	classifier Classifier
	log        *decisionLog
	cfg        config.RouterConfig
	temporal   config.TemporalConfig
	logger     *zap.Logger
}

func NewRouter(
	extractor *extraction.Extractor,
	healthMgr *health.Manager,
	starter WorkflowStarter,
	classifier Classifier,
	cfg config.RouterConfig,
	temporalCfg config.TemporalConfig,
	logger *zap.Logger,
) *Router {
	return &Router{
		extractor:  extractor,
		health:     healthMgr,
		starter:    starter,
		classifier: classifier,
		log:        newDecisionLog(cfg.DecisionCapacity, cfg.DecisionRetention),
		cfg:        cfg,
		temporal:   temporalCfg,
		logger:     logger,
	}
}

// Decide routes one request. Fast-path outcomes carry a verdict; agent-path
// outcomes carry a running workflow keyed by the task ID.
func (r *Router) Decide(ctx context.Context, taskID, text string) (Outcome, error) {
	start := time.Now()
	entities := r.extractor.Extract(text)

	outcome, err := r.dispatch(ctx, taskID, text, entities.Count())
	elapsed := time.Since(start)
	metrics.RoutingLatency.Observe(elapsed.Seconds())
	if err != nil {
		return Outcome{}, err
	}

	metrics.RoutingDecisions.WithLabelValues(outcome.Route, outcome.FallbackReason).Inc()
	r.log.add(Decision{
		TaskID:         taskID,
		Route:          outcome.Route,
		FallbackReason: outcome.FallbackReason,
		EntityCount:    outcome.EntityCount,
		LatencyMs:      elapsed.Milliseconds(),
		DecidedAt:      time.Now().UTC(),
	})
	r.logger.Info("routing decision",
		zap.String("task_id", taskID),
		zap.String("route", outcome.Route),
		zap.String("fallback_reason", outcome.FallbackReason),
		zap.Int("entity_count", outcome.EntityCount),
		zap.Duration("latency", elapsed),
	)
	return outcome, nil
}

func (r *Router) dispatch(ctx context.Context, taskID, text string, entityCount int) (Outcome, error) {
	if r.cfg.AgentDisabled {
		return r.fastPath(ctx, taskID, text, entityCount, ReasonAgentDisabled), nil
	}
	if entityCount == 0 {
		return r.fastPath(ctx, taskID, text, entityCount, ""), nil
	}
	if !r.workerAvailable(ctx) {
		return r.fastPath(ctx, taskID, text, entityCount, ReasonWorkerUnavailable), nil
	}

	_, err := r.starter.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:                 taskID,
		TaskQueue:          r.temporal.TaskQueue,
		WorkflowRunTimeout: r.temporal.RunTimeout,
	}, workflows.InvestigationWorkflow, workflows.InvestigationInput{
		TaskID:        taskID,
		Text:          text,
		SoftTimeLimit: r.temporal.SoftTimeLimit,
	})
	if err != nil {
		// The probe said healthy but the submission failed; degrade the
		// same way an unavailable worker would.
		r.logger.Warn("workflow submission failed, degrading to fast path",
			zap.String("task_id", taskID),
			zap.Error(err),
		)
		return r.fastPath(ctx, taskID, text, entityCount, ReasonWorkerUnavailable), nil
	}

	metrics.InvestigationsStarted.Inc()
	return Outcome{
		TaskID:      taskID,
		Route:       RouteAgent,
		EntityCount: entityCount,
	}, nil
}

func (r *Router) fastPath(ctx context.Context, taskID, text string, entityCount int, reason string) Outcome {
	verdict := r.classifier.Classify(ctx, text)
	return Outcome{
		TaskID:         taskID,
		Route:          RouteFast,
		FallbackReason: reason,
		EntityCount:    entityCount,
		Verdict:        &verdict,
	}
}

func (r *Router) workerAvailable(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, r.probeTimeout())
	defer cancel()
	return r.health.ComponentHealthy(probeCtx, health.ComponentTemporalWorker)
}

func (r *Router) probeTimeout() time.Duration {
	if r.cfg.ProbeTimeout > 0 {
		return r.cfg.ProbeTimeout
	}
	return 2 * time.Second
}

// StartFlusher periodically persists accumulated decisions until ctx ends.
func (r *Router) StartFlusher(ctx context.Context, sink DecisionSink, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := r.FlushDecisions(ctx, sink); err != nil {
					r.logger.Warn("routing decision flush failed", zap.Error(err))
				}
			}
		}
	}()
}

// RecentDecisions exposes the in-memory decision log, newest last.
func (r *Router) RecentDecisions(n int) []Decision {
	return r.log.recent(n)
}

// FlushDecisions hands unflushed decisions to sink. Used by the background
// flusher; a sink error leaves the entries queued for the next pass.
func (r *Router) FlushDecisions(ctx context.Context, sink DecisionSink) error {
	pending := r.log.takeUnflushed()
	if len(pending) == 0 {
		return nil
	}
	if err := sink.SaveDecisions(ctx, pending); err != nil {
		r.log.requeue(pending)
		return fmt.Errorf("flush %d routing decisions: %w", len(pending), err)
	}
	return nil
}
