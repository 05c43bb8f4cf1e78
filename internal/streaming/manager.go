// Package streaming provides in-memory pub/sub for investigation progress
// events, with an optional Redis Streams mirror for external consumers.
package streaming

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/scamlens/orchestrator/internal/metrics"
)

// Step names published over the lifetime of an investigation.
const (
	StepExtraction = "extraction"
	StepEvidence   = "evidence"
	StepReasoning  = "reasoning"
	StepPersisted  = "persisted"
	StepFailed     = "failed"
)

// Event is a progress update for one investigation task. Seq is assigned at
// publish time and is monotone per task.
type Event struct {
	TaskID    string    `json:"task_id"`
	Step      string    `json:"step"`
	Tool      string    `json:"tool,omitempty"`
	Message   string    `json:"message,omitempty"`
	Percent   int       `json:"percent"`
	IsError   bool      `json:"is_error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Seq       uint64    `json:"seq"`
}

// Marshal returns the event as JSON for SSE frames and stream entries.
func (e Event) Marshal() []byte {
	b, _ := json.Marshal(e)
	return b
}

// Manager fans events out to subscribers keyed by task ID and keeps a
// per-task ring buffer for replay. Publish never blocks: a subscriber that
// cannot keep up loses events, it does not stall the investigation.
type Manager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan Event]struct{}
	history     map[string]*ring
	capacity    int
	mirror      Mirror
}

// Mirror receives a copy of every published event. Implementations must not
// block the caller.
type Mirror interface {
	Append(taskID string, evt Event)
}

// NewManager creates a manager with the given per-task replay capacity.
func NewManager(capacity int) *Manager {
	if capacity <= 0 {
		capacity = 256
	}
	return &Manager{
		subscribers: make(map[string]map[chan Event]struct{}),
		history:     make(map[string]*ring),
		capacity:    capacity,
	}
}

// SetMirror attaches a mirror sink. Call before publishing begins.
func (m *Manager) SetMirror(mirror Mirror) {
	m.mu.Lock()
	m.mirror = mirror
	m.mu.Unlock()
}

// Subscribe adds a subscriber channel for a task; the caller must drain it
// and call Unsubscribe when done.
func (m *Manager) Subscribe(taskID string, buffer int) chan Event {
	ch := make(chan Event, buffer)
	m.mu.Lock()
	defer m.mu.Unlock()
	subs := m.subscribers[taskID]
	if subs == nil {
		subs = make(map[chan Event]struct{})
		m.subscribers[taskID] = subs
	}
	subs[ch] = struct{}{}
	return ch
}

// Unsubscribe removes and closes the subscriber channel.
func (m *Manager) Unsubscribe(taskID string, ch chan Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if subs, ok := m.subscribers[taskID]; ok {
		if _, member := subs[ch]; !member {
			return
		}
		delete(subs, ch)
		close(ch)
		if len(subs) == 0 {
			delete(m.subscribers, taskID)
		}
	}
}

// Publish stamps the event with a sequence number, records it in the replay
// ring, and delivers it to subscribers without blocking.
func (m *Manager) Publish(taskID string, evt Event) {
	evt.TaskID = taskID
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	m.mu.Lock()
	rg := m.history[taskID]
	if rg == nil {
		rg = newRing(m.capacity)
		m.history[taskID] = rg
	}
	evt.Seq = rg.nextSeq
	rg.nextSeq++
	rg.push(evt)
	// Deliver under the lock so a concurrent Unsubscribe cannot close a
	// channel mid-send. Sends never block, so the critical section stays
	// short even with slow subscribers.
	for ch := range m.subscribers[taskID] {
		select {
		case ch <- evt:
		default:
			metrics.EventsDropped.Inc()
		}
	}
	mirror := m.mirror
	m.mu.Unlock()

	metrics.EventsPublished.WithLabelValues("memory").Inc()
	if mirror != nil {
		mirror.Append(taskID, evt)
	}
}

// ReplaySince returns buffered events with Seq > since, best effort within
// the ring capacity.
func (m *Manager) ReplaySince(taskID string, since uint64) []Event {
	m.mu.RLock()
	rg := m.history[taskID]
	m.mu.RUnlock()
	if rg == nil {
		return nil
	}
	return rg.since(since)
}

// Forget drops the replay history for a finished task.
func (m *Manager) Forget(taskID string) {
	m.mu.Lock()
	delete(m.history, taskID)
	m.mu.Unlock()
}

// ring is a fixed-capacity ring buffer of events.
type ring struct {
	buf     []Event
	start   int
	count   int
	nextSeq uint64
}

// Sequence numbers start at 1 so that ReplaySince(0) means "everything".
func newRing(capacity int) *ring { return &ring{buf: make([]Event, capacity), nextSeq: 1} }

func (r *ring) push(e Event) {
	if len(r.buf) == 0 {
		return
	}
	if r.count < len(r.buf) {
		r.buf[(r.start+r.count)%len(r.buf)] = e
		r.count++
		return
	}
	r.buf[r.start] = e
	r.start = (r.start + 1) % len(r.buf)
}

func (r *ring) since(seq uint64) []Event {
	if r.count == 0 {
		return nil
	}
	out := make([]Event, 0, r.count)
	for i := 0; i < r.count; i++ {
		ev := r.buf[(r.start+i)%len(r.buf)]
		if ev.Seq > seq {
			out = append(out, ev)
		}
	}
	return out
}
