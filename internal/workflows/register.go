package workflows

import (
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/worker"

	"github.com/scamlens/orchestrator/internal/activities"
)

// Register wires the workflow and its activities onto a worker. Activities
// register under stable names so workflow code can invoke them without
// holding the receiver.
func Register(w worker.Worker, acts *activities.Activities) {
	w.RegisterWorkflow(InvestigationWorkflow)

	w.RegisterActivityWithOptions(acts.ExtractEntities, activity.RegisterOptions{Name: activities.ExtractEntitiesActivity})
	w.RegisterActivityWithOptions(acts.CallTool, activity.RegisterOptions{Name: activities.CallToolActivity})
	w.RegisterActivityWithOptions(acts.Reason, activity.RegisterOptions{Name: activities.ReasonActivity})
	w.RegisterActivityWithOptions(acts.EmitProgress, activity.RegisterOptions{Name: activities.EmitProgressActivity})
	w.RegisterActivityWithOptions(acts.PersistVerdict, activity.RegisterOptions{Name: activities.PersistVerdictActivity})
	w.RegisterActivityWithOptions(acts.MarkFailed, activity.RegisterOptions{Name: activities.MarkFailedActivity})
}
