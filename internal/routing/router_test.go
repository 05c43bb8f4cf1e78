package routing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap/zaptest"

	"github.com/scamlens/orchestrator/internal/config"
	"github.com/scamlens/orchestrator/internal/extraction"
	"github.com/scamlens/orchestrator/internal/health"
	"github.com/scamlens/orchestrator/internal/reasoner"
	"github.com/scamlens/orchestrator/internal/workflows"
)

type fakeStarter struct {
	calls  []client.StartWorkflowOptions
	inputs []interface{}
	err    error
}

func (f *fakeStarter) ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, wf interface{}, args ...interface{}) (client.WorkflowRun, error) {
	f.calls = append(f.calls, options)
	if len(args) > 0 {
		f.inputs = append(f.inputs, args[0])
	}
	if f.err != nil {
		return nil, f.err
	}
	return nil, nil
}

type fakeClassifier struct {
	calls int
}

func (f *fakeClassifier) Classify(ctx context.Context, text string) reasoner.Verdict {
	f.calls++
	return reasoner.Verdict{
		RiskLevel:   reasoner.RiskLow,
		Confidence:  50,
		Explanation: "quick text-only assessment found no signals",
		ToolsUsed:   []string{},
		Method:      reasoner.MethodHeuristic,
	}
}

func workerHealth(t *testing.T, healthy bool) *health.Manager {
	t.Helper()
	m := health.NewManager(time.Minute, zaptest.NewLogger(t))
	status := health.StatusHealthy
	if !healthy {
		status = health.StatusUnhealthy
	}
	require.NoError(t, m.RegisterChecker(health.NewFuncChecker(
		health.ComponentTemporalWorker, false, time.Second,
		func(ctx context.Context) health.CheckResult {
			return health.CheckResult{Status: status}
		},
	)))
	return m
}

func newTestRouter(t *testing.T, healthy bool, starter WorkflowStarter, classifier Classifier, cfg config.RouterConfig) *Router {
	t.Helper()
	return NewRouter(
		extraction.NewExtractor(),
		workerHealth(t, healthy),
		starter,
		classifier,
		cfg,
		config.TemporalConfig{TaskQueue: "investigations", RunTimeout: time.Minute, SoftTimeLimit: 55 * time.Second},
		zaptest.NewLogger(t),
	)
}

const scamText = "URGENT: call +1 800 555 1234 now to claim your refund"

func TestDecideAgentPath(t *testing.T) {
	starter := &fakeStarter{}
	classifier := &fakeClassifier{}
	r := newTestRouter(t, true, starter, classifier, config.RouterConfig{})

	outcome, err := r.Decide(context.Background(), "task-1", scamText)
	require.NoError(t, err)

	assert.Equal(t, RouteAgent, outcome.Route)
	assert.Empty(t, outcome.FallbackReason)
	assert.Nil(t, outcome.Verdict)
	assert.Equal(t, 1, outcome.EntityCount)
	assert.Zero(t, classifier.calls)

	require.Len(t, starter.calls, 1)
	assert.Equal(t, "task-1", starter.calls[0].ID)
	assert.Equal(t, "investigations", starter.calls[0].TaskQueue)
	assert.Equal(t, time.Minute, starter.calls[0].WorkflowRunTimeout)

	require.Len(t, starter.inputs, 1)
	input, ok := starter.inputs[0].(workflows.InvestigationInput)
	require.True(t, ok)
	assert.Equal(t, 55*time.Second, input.SoftTimeLimit)
}

func TestDecideFastPathNoEntities(t *testing.T) {
	starter := &fakeStarter{}
	classifier := &fakeClassifier{}
	r := newTestRouter(t, true, starter, classifier, config.RouterConfig{})

	outcome, err := r.Decide(context.Background(), "task-2", "hello how are you")
	require.NoError(t, err)

	assert.Equal(t, RouteFast, outcome.Route)
	assert.Empty(t, outcome.FallbackReason, "entity-free requests are not a fallback")
	require.NotNil(t, outcome.Verdict)
	assert.Equal(t, reasoner.RiskLow, outcome.Verdict.RiskLevel)
	assert.Empty(t, starter.calls)
}

func TestDecideFastPathWorkerUnavailable(t *testing.T) {
	starter := &fakeStarter{}
	classifier := &fakeClassifier{}
	r := newTestRouter(t, false, starter, classifier, config.RouterConfig{})

	outcome, err := r.Decide(context.Background(), "task-3", scamText)
	require.NoError(t, err)

	assert.Equal(t, RouteFast, outcome.Route)
	assert.Equal(t, ReasonWorkerUnavailable, outcome.FallbackReason)
	require.NotNil(t, outcome.Verdict)
	assert.Empty(t, starter.calls)
}

func TestDecideFastPathAgentDisabled(t *testing.T) {
	starter := &fakeStarter{}
	classifier := &fakeClassifier{}
	r := newTestRouter(t, true, starter, classifier, config.RouterConfig{AgentDisabled: true})

	outcome, err := r.Decide(context.Background(), "task-4", scamText)
	require.NoError(t, err)

	assert.Equal(t, RouteFast, outcome.Route)
	assert.Equal(t, ReasonAgentDisabled, outcome.FallbackReason)
	assert.Empty(t, starter.calls)
}

func TestDecideSubmissionFailureDegrades(t *testing.T) {
	starter := &fakeStarter{err: errors.New("connection refused")}
	classifier := &fakeClassifier{}
	r := newTestRouter(t, true, starter, classifier, config.RouterConfig{})

	outcome, err := r.Decide(context.Background(), "task-5", scamText)
	require.NoError(t, err, "submission failure degrades instead of erroring")

	assert.Equal(t, RouteFast, outcome.Route)
	assert.Equal(t, ReasonWorkerUnavailable, outcome.FallbackReason)
	require.NotNil(t, outcome.Verdict)
}

func TestDecisionLogRecords(t *testing.T) {
	starter := &fakeStarter{}
	r := newTestRouter(t, true, starter, &fakeClassifier{}, config.RouterConfig{})

	_, err := r.Decide(context.Background(), "task-a", scamText)
	require.NoError(t, err)
	_, err = r.Decide(context.Background(), "task-b", "no entities here")
	require.NoError(t, err)

	decisions := r.RecentDecisions(0)
	require.Len(t, decisions, 2)
	assert.Equal(t, "task-a", decisions[0].TaskID)
	assert.Equal(t, RouteAgent, decisions[0].Route)
	assert.Equal(t, "task-b", decisions[1].TaskID)
	assert.Equal(t, RouteFast, decisions[1].Route)

	one := r.RecentDecisions(1)
	require.Len(t, one, 1)
	assert.Equal(t, "task-b", one[0].TaskID)
}

func TestDecisionLogCapacityBound(t *testing.T) {
	l := newDecisionLog(3, time.Hour)
	for i := 0; i < 10; i++ {
		l.add(Decision{TaskID: string(rune('a' + i)), DecidedAt: time.Now()})
	}
	got := l.recent(0)
	require.Len(t, got, 3)
	assert.Equal(t, "h", got[0].TaskID)
	assert.Equal(t, "j", got[2].TaskID)
}

func TestDecisionLogAgeEviction(t *testing.T) {
	l := newDecisionLog(100, time.Hour)
	l.add(Decision{TaskID: "old", DecidedAt: time.Now().Add(-2 * time.Hour)})
	l.add(Decision{TaskID: "fresh", DecidedAt: time.Now()})

	got := l.recent(0)
	require.Len(t, got, 1)
	assert.Equal(t, "fresh", got[0].TaskID)
}

type fakeSink struct {
	saved [][]Decision
	err   error
}

func (f *fakeSink) SaveDecisions(ctx context.Context, decisions []Decision) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, decisions)
	return nil
}

func TestFlushDecisions(t *testing.T) {
	starter := &fakeStarter{}
	r := newTestRouter(t, true, starter, &fakeClassifier{}, config.RouterConfig{})
	_, err := r.Decide(context.Background(), "task-a", scamText)
	require.NoError(t, err)

	sink := &fakeSink{}
	require.NoError(t, r.FlushDecisions(context.Background(), sink))
	require.Len(t, sink.saved, 1)
	assert.Equal(t, "task-a", sink.saved[0][0].TaskID)

	// Nothing left to flush.
	require.NoError(t, r.FlushDecisions(context.Background(), sink))
	assert.Len(t, sink.saved, 1)
}

func TestFlushDecisionsRequeuesOnError(t *testing.T) {
	starter := &fakeStarter{}
	r := newTestRouter(t, true, starter, &fakeClassifier{}, config.RouterConfig{})
	_, err := r.Decide(context.Background(), "task-a", scamText)
	require.NoError(t, err)

	failing := &fakeSink{err: errors.New("db down")}
	assert.Error(t, r.FlushDecisions(context.Background(), failing))

	working := &fakeSink{}
	require.NoError(t, r.FlushDecisions(context.Background(), working))
	require.Len(t, working.saved, 1)
	assert.Equal(t, "task-a", working.saved[0][0].TaskID)
}
