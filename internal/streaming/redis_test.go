package streaming

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestMirror(t *testing.T) (*RedisMirror, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisMirror(client, 100, zaptest.NewLogger(t)), mr
}

func TestRedisMirrorAppendAndTail(t *testing.T) {
	mirror, _ := newTestMirror(t)

	mirror.Append("task-1", Event{TaskID: "task-1", Step: StepExtraction, Percent: 10, Seq: 0})
	mirror.Append("task-1", Event{TaskID: "task-1", Step: StepEvidence, Tool: "scamdb", Percent: 40, Seq: 1})

	events, lastID, err := mirror.Tail(context.Background(), "task-1", "", 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, StepExtraction, events[0].Step)
	assert.Equal(t, StepEvidence, events[1].Step)
	assert.Equal(t, "scamdb", events[1].Tool)
	assert.NotEmpty(t, lastID)
}

func TestRedisMirrorTailResumes(t *testing.T) {
	mirror, _ := newTestMirror(t)

	mirror.Append("task-1", Event{TaskID: "task-1", Step: StepExtraction, Seq: 0})
	first, lastID, err := mirror.Tail(context.Background(), "task-1", "", 10)
	require.NoError(t, err)
	require.Len(t, first, 1)

	mirror.Append("task-1", Event{TaskID: "task-1", Step: StepReasoning, Seq: 1})
	rest, _, err := mirror.Tail(context.Background(), "task-1", lastID, 10)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, StepReasoning, rest[0].Step)
}

func TestRedisMirrorEmptyStream(t *testing.T) {
	mirror, _ := newTestMirror(t)

	events, _, err := mirror.Tail(context.Background(), "no-such-task", "", 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestManagerMirrorsToRedis(t *testing.T) {
	mirror, _ := newTestMirror(t)
	m := NewManager(16)
	m.SetMirror(mirror)

	m.Publish("task-1", Event{Step: StepPersisted, Percent: 100})

	events, _, err := mirror.Tail(context.Background(), "task-1", "", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, StepPersisted, events[0].Step)
	assert.Equal(t, 100, events[0].Percent)
}
