package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/scamlens/orchestrator/internal/streaming"
)

const subscriberBuffer = 256

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin is enforced by the fronting proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleSSE streams progress events for one task.
// GET /api/v1/tasks/{id}/events
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("id")
	lastSeq := parseLastSeq(r)

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	ch := s.events.Subscribe(taskID, subscriberBuffer)
	defer s.events.Unsubscribe(taskID, ch)

	fmt.Fprintf(w, ": connected to task %s\n\n", taskID)
	flusher.Flush()

	// Replay buffered events before going live.
	for _, evt := range s.events.ReplaySince(taskID, lastSeq) {
		writeSSE(w, evt)
	}
	flusher.Flush()

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt, open := <-ch:
			if !open {
				return
			}
			writeSSE(w, evt)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, evt streaming.Event) {
	fmt.Fprintf(w, "id: %d\n", evt.Seq)
	fmt.Fprintf(w, "event: %s\n", evt.Step)
	fmt.Fprintf(w, "data: %s\n\n", evt.Marshal())
}

// handleWS streams the same progress events over a WebSocket.
// GET /ws?task_id=<id>
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	taskID := r.URL.Query().Get("task_id")
	if taskID == "" {
		http.Error(w, "task_id required", http.StatusBadRequest)
		return
	}
	lastSeq := parseLastSeq(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ch := s.events.Subscribe(taskID, subscriberBuffer)
	defer s.events.Unsubscribe(taskID, ch)

	for _, evt := range s.events.ReplaySince(taskID, lastSeq) {
		if err := conn.WriteJSON(evt); err != nil {
			return
		}
	}

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	// Reader pump discards client messages and notices disconnects.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(20 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt, open := <-ch:
			if !open {
				return
			}
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(10*time.Second)); err != nil {
				return
			}
		}
	}
}

// parseLastSeq reads the resume position from the Last-Event-ID header or
// last_event_id query parameter. Returns the sequence AFTER which to
// replay; with no resume position everything buffered replays.
func parseLastSeq(r *http.Request) uint64 {
	if lei := r.Header.Get("Last-Event-ID"); lei != "" {
		if n, err := strconv.ParseUint(lei, 10, 64); err == nil {
			return n
		}
	}
	if q := r.URL.Query().Get("last_event_id"); q != "" {
		if n, err := strconv.ParseUint(q, 10, 64); err == nil {
			return n
		}
	}
	return 0
}
