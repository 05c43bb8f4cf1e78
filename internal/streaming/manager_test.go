package streaming

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishAndSubscribe(t *testing.T) {
	m := NewManager(16)
	ch := m.Subscribe("task-1", 4)
	defer m.Unsubscribe("task-1", ch)

	m.Publish("task-1", Event{Step: StepExtraction, Percent: 10})
	m.Publish("task-1", Event{Step: StepEvidence, Tool: "scamdb", Percent: 40})

	first := <-ch
	assert.Equal(t, "task-1", first.TaskID)
	assert.Equal(t, StepExtraction, first.Step)
	assert.Equal(t, uint64(1), first.Seq)
	assert.False(t, first.Timestamp.IsZero())

	second := <-ch
	assert.Equal(t, StepEvidence, second.Step)
	assert.Equal(t, "scamdb", second.Tool)
	assert.Equal(t, uint64(2), second.Seq)
}

func TestPublishIsolatedByTask(t *testing.T) {
	m := NewManager(16)
	ch := m.Subscribe("task-a", 4)
	defer m.Unsubscribe("task-a", ch)

	m.Publish("task-b", Event{Step: StepExtraction})

	select {
	case evt := <-ch:
		t.Fatalf("received event for wrong task: %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	m := NewManager(16)
	ch := m.Subscribe("task-1", 1)
	defer m.Unsubscribe("task-1", ch)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			m.Publish("task-1", Event{Step: StepEvidence, Percent: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber channel")
	}

	// The one buffered event is still deliverable.
	evt := <-ch
	assert.Equal(t, StepEvidence, evt.Step)
}

func TestReplaySince(t *testing.T) {
	m := NewManager(16)
	for i := 0; i < 5; i++ {
		m.Publish("task-1", Event{Step: StepEvidence, Percent: i * 10})
	}

	replayed := m.ReplaySince("task-1", 2)
	require.Len(t, replayed, 3)
	assert.Equal(t, uint64(3), replayed[0].Seq)
	assert.Equal(t, uint64(5), replayed[2].Seq)

	all := m.ReplaySince("task-1", 0)
	require.Len(t, all, 5)
	assert.Equal(t, uint64(1), all[0].Seq)

	assert.Nil(t, m.ReplaySince("unknown-task", 0))
}

func TestReplayBoundedByCapacity(t *testing.T) {
	m := NewManager(4)
	for i := 0; i < 10; i++ {
		m.Publish("task-1", Event{Percent: i})
	}

	replayed := m.ReplaySince("task-1", 0)
	require.Len(t, replayed, 4)
	assert.Equal(t, uint64(7), replayed[0].Seq)
	assert.Equal(t, uint64(10), replayed[3].Seq)
}

func TestForgetDropsHistory(t *testing.T) {
	m := NewManager(16)
	m.Publish("task-1", Event{Step: StepPersisted, Percent: 100})
	require.NotEmpty(t, m.ReplaySince("task-1", 0))

	m.Forget("task-1")
	assert.Nil(t, m.ReplaySince("task-1", 0))
}

func TestConcurrentPublishAndUnsubscribe(t *testing.T) {
	m := NewManager(16)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			m.Publish("task-1", Event{Step: StepEvidence, Percent: i % 100})
		}
	}()

	// Subscribers come and go while the publisher runs. Closing a channel
	// concurrently with delivery must never panic or race.
	for i := 0; i < 200; i++ {
		ch := m.Subscribe("task-1", 1)
		m.Unsubscribe("task-1", ch)
	}

	close(stop)
	wg.Wait()
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	m := NewManager(16)
	ch := m.Subscribe("task-1", 1)
	m.Unsubscribe("task-1", ch)

	_, open := <-ch
	assert.False(t, open)

	// A second unsubscribe for the same channel is a no-op.
	m.Unsubscribe("task-1", ch)
}
