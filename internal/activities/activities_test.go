package activities

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"
	"go.uber.org/zap/zaptest"

	"github.com/scamlens/orchestrator/internal/config"
	"github.com/scamlens/orchestrator/internal/db"
	"github.com/scamlens/orchestrator/internal/evidence"
	"github.com/scamlens/orchestrator/internal/metrics"
	"github.com/scamlens/orchestrator/internal/extraction"
	"github.com/scamlens/orchestrator/internal/reasoner"
	"github.com/scamlens/orchestrator/internal/streaming"
	"github.com/scamlens/orchestrator/internal/tools"
)

type fakeReportStore struct {
	summary *tools.ReportSummary
	err     error
}

func (f *fakeReportStore) LookupReports(ctx context.Context, value string) (*tools.ReportSummary, error) {
	return f.summary, f.err
}

type fixture struct {
	acts   *Activities
	env    *testsuite.TestActivityEnvironment
	events *streaming.Manager
	mock   sqlmock.Sqlmock
}

func newFixture(t *testing.T, reports *fakeReportStore) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	store := db.NewClientFromDB(sqlx.NewDb(mockDB, "sqlmock"), logger)

	registry := tools.NewRegistry(
		tools.NewScamDB(reports),
		tools.NewPhoneValidator(),
	)
	rsn := reasoner.New(nil, config.LLMConfig{Deadline: time.Second},
		reasoner.NewHeuristic(config.DefaultHeuristic()), logger)
	events := streaming.NewManager(16)

	acts := NewActivities(extraction.NewExtractor(), registry, rsn, events, store, logger)

	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestActivityEnvironment()
	env.RegisterActivityWithOptions(acts.ExtractEntities, activity.RegisterOptions{Name: ExtractEntitiesActivity})
	env.RegisterActivityWithOptions(acts.CallTool, activity.RegisterOptions{Name: CallToolActivity})
	env.RegisterActivityWithOptions(acts.Reason, activity.RegisterOptions{Name: ReasonActivity})
	env.RegisterActivityWithOptions(acts.EmitProgress, activity.RegisterOptions{Name: EmitProgressActivity})
	env.RegisterActivityWithOptions(acts.PersistVerdict, activity.RegisterOptions{Name: PersistVerdictActivity})
	env.RegisterActivityWithOptions(acts.MarkFailed, activity.RegisterOptions{Name: MarkFailedActivity})

	return &fixture{acts: acts, env: env, events: events, mock: mock}
}

func TestExtractEntitiesActivity(t *testing.T) {
	f := newFixture(t, &fakeReportStore{})

	val, err := f.env.ExecuteActivity(ExtractEntitiesActivity, ExtractEntitiesInput{
		TaskID: "task-1",
		Text:   "Call +1 800 555 1234 or visit http://refund-claim.example.com now",
	})
	require.NoError(t, err)

	var res ExtractEntitiesResult
	require.NoError(t, val.Get(&res))
	assert.Equal(t, 2, res.Entities.Count())
	require.Len(t, res.Entities.Phones, 1)
	require.Len(t, res.Entities.URLs, 1)
}

func TestCallToolScamDB(t *testing.T) {
	f := newFixture(t, &fakeReportStore{summary: &tools.ReportSummary{
		Found:       true,
		Verified:    true,
		RiskScore:   88,
		ReportCount: 12,
	}})

	val, err := f.env.ExecuteActivity(CallToolActivity, CallToolInput{
		TaskID:      "task-1",
		ToolName:    tools.NameScamDB,
		EntityType:  "phone",
		EntityValue: "+18005551234",
	})
	require.NoError(t, err)

	var rec evidence.Evidence
	require.NoError(t, val.Get(&rec))
	assert.Equal(t, tools.NameScamDB, rec.ToolName)
	assert.True(t, rec.Success)
	assert.Equal(t, true, rec.Payload["found"])
	assert.Equal(t, "+18005551234", rec.EntityValue)
}

func TestCallToolErrorPropagates(t *testing.T) {
	f := newFixture(t, &fakeReportStore{err: errors.New("connection refused")})

	_, err := f.env.ExecuteActivity(CallToolActivity, CallToolInput{
		TaskID:      "task-1",
		ToolName:    tools.NameScamDB,
		EntityType:  "phone",
		EntityValue: "+18005551234",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestCallToolUnknownTool(t *testing.T) {
	f := newFixture(t, &fakeReportStore{})

	_, err := f.env.ExecuteActivity(CallToolActivity, CallToolInput{
		TaskID:      "task-1",
		ToolName:    "nonexistent",
		EntityType:  "phone",
		EntityValue: "+18005551234",
	})
	require.Error(t, err)
}

func TestReasonActivityHeuristicWithoutLLM(t *testing.T) {
	f := newFixture(t, &fakeReportStore{})

	val, err := f.env.ExecuteActivity(ReasonActivity, ReasonInput{
		TaskID: "task-1",
		Text:   "hello",
	})
	require.NoError(t, err)

	var v reasoner.Verdict
	require.NoError(t, val.Get(&v))
	assert.Equal(t, reasoner.MethodHeuristic, v.Method)
	assert.Equal(t, reasoner.RiskLow, v.RiskLevel)
	assert.NotEmpty(t, v.Explanation)
}

func TestEmitProgressPublishes(t *testing.T) {
	f := newFixture(t, &fakeReportStore{})

	ch := f.events.Subscribe("task-1", 4)
	defer f.events.Unsubscribe("task-1", ch)

	_, err := f.env.ExecuteActivity(EmitProgressActivity, ProgressInput{
		TaskID:  "task-1",
		Step:    streaming.StepEvidence,
		Tool:    tools.NameScamDB,
		Percent: 35,
	})
	require.NoError(t, err)

	select {
	case evt := <-ch:
		assert.Equal(t, "task-1", evt.TaskID)
		assert.Equal(t, streaming.StepEvidence, evt.Step)
		assert.Equal(t, 35, evt.Percent)
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}

func TestPersistVerdictWritesRowAndEvidence(t *testing.T) {
	f := newFixture(t, &fakeReportStore{})
	completedBefore := testutil.ToFloat64(metrics.InvestigationsCompleted.WithLabelValues(db.StatusCompleted))

	f.mock.ExpectExec("INSERT INTO investigations").
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectBegin()
	f.mock.ExpectExec("DELETE FROM evidence").
		WillReturnResult(sqlmock.NewResult(0, 0))
	f.mock.ExpectExec("INSERT INTO evidence").
		WillReturnResult(sqlmock.NewResult(1, 1))
	f.mock.ExpectCommit()

	_, err := f.env.ExecuteActivity(PersistVerdictActivity, PersistVerdictInput{
		TaskID:      "task-1",
		Text:        "some text",
		EntityCount: 1,
		Verdict: reasoner.Verdict{
			RiskLevel:   reasoner.RiskHigh,
			Confidence:  92,
			Explanation: "verified scam",
			ToolsUsed:   []string{tools.NameScamDB},
			Method:      reasoner.MethodLLM,
		},
		Evidence: []evidence.Evidence{{
			ToolName:    tools.NameScamDB,
			EntityType:  "phone",
			EntityValue: "+18005551234",
			Payload:     map[string]interface{}{"found": true},
			Success:     true,
		}},
		ElapsedMs: 1200,
	})
	require.NoError(t, err)
	require.NoError(t, f.mock.ExpectationsWereMet())
	assert.Equal(t, completedBefore+1,
		testutil.ToFloat64(metrics.InvestigationsCompleted.WithLabelValues(db.StatusCompleted)))
}

func TestMarkFailedWritesFailedStatus(t *testing.T) {
	f := newFixture(t, &fakeReportStore{})
	failedBefore := testutil.ToFloat64(metrics.InvestigationsCompleted.WithLabelValues(db.StatusFailed))

	f.mock.ExpectExec("INSERT INTO investigations").
		WithArgs("task-1", "some text", db.StatusFailed, "", 0.0,
			"entity extraction failed", sqlmock.AnyArg(), "", 0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := f.env.ExecuteActivity(MarkFailedActivity, MarkFailedInput{
		TaskID:    "task-1",
		Text:      "some text",
		Reason:    "entity extraction failed",
		ElapsedMs: 800,
	})
	require.NoError(t, err)
	require.NoError(t, f.mock.ExpectationsWereMet())
	assert.Equal(t, failedBefore+1,
		testutil.ToFloat64(metrics.InvestigationsCompleted.WithLabelValues(db.StatusFailed)))
}
