// Package workflows contains the Temporal workflow driving one scam-text
// investigation: extract entities, fan out verification tools, reason over
// the evidence, persist the verdict.
package workflows

import (
	"errors"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/scamlens/orchestrator/internal/activities"
	"github.com/scamlens/orchestrator/internal/evidence"
	"github.com/scamlens/orchestrator/internal/extraction"
	"github.com/scamlens/orchestrator/internal/reasoner"
	"github.com/scamlens/orchestrator/internal/streaming"
	"github.com/scamlens/orchestrator/internal/tools"
)

// Progress checkpoints. Tool completions advance percent linearly between
// evidenceStart and evidenceDone; percent never moves backwards.
const (
	percentExtracted    = 10
	percentEvidenceDone = 80
	percentReasoned     = 95
	percentPersisted    = 100
	evidenceSpan        = percentEvidenceDone - percentExtracted
	toolCallTimeout     = 30 * time.Second
	extractTimeout      = 10 * time.Second
	reasonTimeout       = 30 * time.Second
	persistTimeout      = 30 * time.Second
	progressEmitTimeout = 5 * time.Second

	// defaultSoftTimeLimit applies when the input carries no budget. It
	// must leave room below the run timeout for reasoning and persistence.
	defaultSoftTimeLimit = 55 * time.Second
)

// InvestigationInput starts one investigation. SoftTimeLimit bounds evidence
// collection: when it expires, outstanding tool calls are abandoned and the
// reasoner works with whatever evidence arrived in time.
type InvestigationInput struct {
	TaskID        string        `json:"task_id"`
	Text          string        `json:"text"`
	SoftTimeLimit time.Duration `json:"soft_time_limit,omitempty"`
}

// InvestigationResult is the workflow's return value; the same data is
// persisted under the task ID.
type InvestigationResult struct {
	TaskID        string   `json:"task_id"`
	RiskLevel     string   `json:"risk_level"`
	Confidence    float64  `json:"confidence"`
	Explanation   string   `json:"explanation"`
	ToolsUsed     []string `json:"tools_used"`
	Method        string   `json:"method"`
	EntityCount   int      `json:"entity_count"`
	EvidenceCount int      `json:"evidence_count"`
}

// toolJob is one tool invocation scheduled against one entity.
type toolJob struct {
	ToolName string
	Entity   extraction.Entity
}

// InvestigationWorkflow runs the full investigation pipeline. Tool failures
// never fail the workflow; they become error evidence. The reasoner never
// fails either, so the only terminal errors are extraction and harness
// level problems.
func InvestigationWorkflow(ctx workflow.Context, input InvestigationInput) (InvestigationResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting investigation",
		"task_id", input.TaskID,
		"text_len", len(input.Text),
	)

	startedAt := workflow.Now(ctx)
	softLimit := input.SoftTimeLimit
	if softLimit <= 0 {
		softLimit = defaultSoftTimeLimit
	}
	softDeadline := startedAt.Add(softLimit)

	// Extraction
	extractCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: extractTimeout,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 3, BackoffCoefficient: 2},
	})
	var extracted activities.ExtractEntitiesResult
	err := workflow.ExecuteActivity(extractCtx, activities.ExtractEntitiesActivity, activities.ExtractEntitiesInput{
		TaskID: input.TaskID,
		Text:   input.Text,
	}).Get(ctx, &extracted)
	if err != nil {
		logger.Error("Entity extraction failed", "task_id", input.TaskID, "error", err)
		markFailed(ctx, input, "entity extraction failed: "+err.Error(), startedAt)
		return InvestigationResult{TaskID: input.TaskID}, err
	}

	entities := extracted.Entities
	emitProgress(ctx, activities.ProgressInput{
		TaskID:  input.TaskID,
		Step:    streaming.StepExtraction,
		Message: "entities extracted",
		Percent: percentExtracted,
	})

	// Evidence collection
	jobs := buildJobs(entities)
	records := collectEvidence(ctx, input.TaskID, jobs, softDeadline)

	emitProgress(ctx, activities.ProgressInput{
		TaskID:  input.TaskID,
		Step:    streaming.StepReasoning,
		Message: "evidence collected, reasoning",
		Percent: percentEvidenceDone,
	})

	// Reasoning. The activity never errors on LLM trouble, only on harness
	// failure, and with one attempt a timeout falls through to this
	// workflow instead of retrying a 5s-deadline call.
	reasonCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: reasonTimeout,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})
	var verdict reasoner.Verdict
	err = workflow.ExecuteActivity(reasonCtx, activities.ReasonActivity, activities.ReasonInput{
		TaskID:   input.TaskID,
		Text:     input.Text,
		Entities: entities,
		Evidence: records,
	}).Get(ctx, &verdict)
	if err != nil {
		logger.Error("Reasoning failed", "task_id", input.TaskID, "error", err)
		markFailed(ctx, input, "reasoning failed: "+err.Error(), startedAt)
		return InvestigationResult{TaskID: input.TaskID}, err
	}

	emitProgress(ctx, activities.ProgressInput{
		TaskID:  input.TaskID,
		Step:    streaming.StepReasoning,
		Message: "verdict: " + string(verdict.RiskLevel),
		Percent: percentReasoned,
	})

	// Persistence. A verdict that cannot be stored is still a verdict;
	// failures are surfaced on the progress channel, not as workflow
	// errors.
	persistCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: persistTimeout,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 3, BackoffCoefficient: 2},
	})
	err = workflow.ExecuteActivity(persistCtx, activities.PersistVerdictActivity, activities.PersistVerdictInput{
		TaskID:      input.TaskID,
		Text:        input.Text,
		EntityCount: entities.Count(),
		Verdict:     verdict,
		Evidence:    records,
		ElapsedMs:   workflow.Now(ctx).Sub(startedAt).Milliseconds(),
	}).Get(ctx, nil)
	if err != nil {
		logger.Error("Failed to persist verdict", "task_id", input.TaskID, "error", err)
		emitProgress(ctx, activities.ProgressInput{
			TaskID:  input.TaskID,
			Step:    streaming.StepPersisted,
			Message: "persistence failed",
			Percent: percentPersisted,
			IsError: true,
		})
	} else {
		emitProgress(ctx, activities.ProgressInput{
			TaskID:  input.TaskID,
			Step:    streaming.StepPersisted,
			Message: "investigation complete",
			Percent: percentPersisted,
		})
	}

	logger.Info("Investigation completed",
		"task_id", input.TaskID,
		"risk_level", verdict.RiskLevel,
		"method", verdict.Method,
		"evidence_count", len(records),
	)

	return InvestigationResult{
		TaskID:        input.TaskID,
		RiskLevel:     string(verdict.RiskLevel),
		Confidence:    verdict.Confidence,
		Explanation:   verdict.Explanation,
		ToolsUsed:     verdict.ToolsUsed,
		Method:        string(verdict.Method),
		EntityCount:   entities.Count(),
		EvidenceCount: len(records),
	}, nil
}

// buildJobs expands the entity set into tool invocations, preserving
// entity order and roster order so replays schedule identically.
func buildJobs(entities extraction.EntitySet) []toolJob {
	var jobs []toolJob
	for _, entity := range entities.Flatten() {
		for _, name := range tools.RosterFor(entity.Type) {
			jobs = append(jobs, toolJob{ToolName: name, Entity: entity})
		}
	}
	return jobs
}

var errSoftLimit = errors.New("soft time limit reached before tool completed")

// collectEvidence fans the jobs out as parallel activities and gathers one
// evidence record per job. A job whose activity exhausts its retries yields
// an error record instead of failing the investigation. Collection races a
// timer on the soft deadline: when it fires, outstanding jobs are abandoned
// and their slots are filled with error records so the reasoner sees the
// full roster either way.
func collectEvidence(ctx workflow.Context, taskID string, jobs []toolJob, softDeadline time.Time) []evidence.Evidence {
	if len(jobs) == 0 {
		return nil
	}
	logger := workflow.GetLogger(ctx)

	type jobResult struct {
		Index  int
		Record evidence.Evidence
	}
	// Buffered so abandoned goroutines can still complete their send.
	resultsCh := workflow.NewBufferedChannel(ctx, len(jobs))

	for i, job := range jobs {
		i := i
		job := job
		workflow.Go(ctx, func(gctx workflow.Context) {
			actx := workflow.WithActivityOptions(gctx, workflow.ActivityOptions{
				StartToCloseTimeout: toolCallTimeout,
				RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 3, BackoffCoefficient: 2},
			})
			var record evidence.Evidence
			err := workflow.ExecuteActivity(actx, activities.CallToolActivity, activities.CallToolInput{
				TaskID:      taskID,
				ToolName:    job.ToolName,
				EntityType:  string(job.Entity.Type),
				EntityValue: job.Entity.Value,
			}).Get(gctx, &record)
			if err != nil {
				record = evidence.FromError(job.ToolName, job.Entity.Type, job.Entity.Value, err, 0)
			}
			resultsCh.Send(gctx, jobResult{Index: i, Record: record})
		})
	}

	timerCtx, cancelTimer := workflow.WithCancel(ctx)
	defer cancelTimer()
	timer := workflow.NewTimer(timerCtx, softDeadline.Sub(workflow.Now(ctx)))

	records := make([]evidence.Evidence, len(jobs))
	filled := make([]bool, len(jobs))
	done := 0
	expired := false

	selector := workflow.NewSelector(ctx)
	selector.AddReceive(resultsCh, func(c workflow.ReceiveChannel, more bool) {
		var res jobResult
		c.Receive(ctx, &res)
		records[res.Index] = res.Record
		filled[res.Index] = true
		done++

		percent := percentExtracted + evidenceSpan*done/len(jobs)
		emitProgress(ctx, activities.ProgressInput{
			TaskID:  taskID,
			Step:    streaming.StepEvidence,
			Tool:    res.Record.ToolName,
			Message: res.Record.ToolName + " on " + res.Record.EntityValue,
			Percent: percent,
			IsError: !res.Record.Success,
		})
		if !res.Record.Success {
			logger.Warn("Tool produced error evidence",
				"task_id", taskID,
				"tool", res.Record.ToolName,
				"entity", res.Record.EntityValue,
			)
		}
	})
	selector.AddFuture(timer, func(f workflow.Future) {
		if err := f.Get(ctx, nil); err == nil {
			expired = true
		}
	})

	for done < len(jobs) && !expired {
		selector.Select(ctx)
	}

	if expired {
		abandoned := 0
		for i := range records {
			if !filled[i] {
				records[i] = evidence.FromError(jobs[i].ToolName, jobs[i].Entity.Type, jobs[i].Entity.Value, errSoftLimit, 0)
				abandoned++
			}
		}
		logger.Warn("Soft time limit reached, reasoning over partial evidence",
			"task_id", taskID,
			"completed", done,
			"abandoned", abandoned,
		)
		emitProgress(ctx, activities.ProgressInput{
			TaskID:  taskID,
			Step:    streaming.StepEvidence,
			Message: "time budget exceeded, continuing with partial evidence",
			Percent: percentEvidenceDone,
			IsError: true,
		})
	}
	return records
}

// emitProgress publishes a progress event, ignoring delivery failures.
func emitProgress(ctx workflow.Context, input activities.ProgressInput) {
	emitCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: progressEmitTimeout,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})
	_ = workflow.ExecuteActivity(emitCtx, activities.EmitProgressActivity, input).Get(emitCtx, nil)
}

// markFailed records a terminal failure without blocking the error return.
func markFailed(ctx workflow.Context, input InvestigationInput, reason string, startedAt time.Time) {
	dctx, _ := workflow.NewDisconnectedContext(ctx)
	dctx = workflow.WithActivityOptions(dctx, workflow.ActivityOptions{
		StartToCloseTimeout: persistTimeout,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 3},
	})
	_ = workflow.ExecuteActivity(dctx, activities.MarkFailedActivity, activities.MarkFailedInput{
		TaskID:    input.TaskID,
		Text:      input.Text,
		Reason:    reason,
		ElapsedMs: workflow.Now(ctx).Sub(startedAt).Milliseconds(),
	}).Get(dctx, nil)
}
