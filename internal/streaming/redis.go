package streaming

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/scamlens/orchestrator/internal/metrics"
)

const appendTimeout = 2 * time.Second

// RedisMirror copies published events into a per-task Redis Stream so other
// processes can tail investigation progress. Streams are capped with an
// approximate MAXLEN so abandoned tasks do not grow without bound.
type RedisMirror struct {
	client *redis.Client
	maxLen int64
	logger *zap.Logger
}

// NewRedisMirror creates a mirror writing to streams named
// scamlens:events:<taskID>.
func NewRedisMirror(client *redis.Client, maxLen int64, logger *zap.Logger) *RedisMirror {
	if maxLen <= 0 {
		maxLen = 1000
	}
	return &RedisMirror{client: client, maxLen: maxLen, logger: logger}
}

func streamKey(taskID string) string {
	return fmt.Sprintf("scamlens:events:%s", taskID)
}

// Append writes the event to the task's stream. Failures are logged and
// dropped; the in-memory path is authoritative.
func (r *RedisMirror) Append(taskID string, evt Event) {
	ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
	defer cancel()

	err := r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: streamKey(taskID),
		MaxLen: r.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"event": string(evt.Marshal()),
			"seq":   evt.Seq,
		},
	}).Err()
	if err != nil {
		r.logger.Warn("failed to mirror event to redis stream",
			zap.String("task_id", taskID),
			zap.Uint64("seq", evt.Seq),
			zap.Error(err),
		)
		metrics.EventsDropped.Inc()
		return
	}
	metrics.EventsPublished.WithLabelValues("redis").Inc()
}

// Tail reads events from the task's stream starting after lastID ("0" for
// the beginning). It is used by external consumers and by tests.
func (r *RedisMirror) Tail(ctx context.Context, taskID, lastID string, count int64) ([]Event, string, error) {
	start := "-"
	if lastID != "" && lastID != "0" {
		start = "(" + lastID
	}
	msgs, err := r.client.XRangeN(ctx, streamKey(taskID), start, "+", count).Result()
	if err != nil {
		return nil, lastID, fmt.Errorf("read stream %s: %w", streamKey(taskID), err)
	}
	out := make([]Event, 0, len(msgs))
	for _, msg := range msgs {
		raw, ok := msg.Values["event"].(string)
		if !ok {
			continue
		}
		var evt Event
		if err := unmarshalEvent(raw, &evt); err != nil {
			r.logger.Warn("skipping malformed stream entry",
				zap.String("task_id", taskID),
				zap.String("id", msg.ID),
				zap.Error(err),
			)
			continue
		}
		out = append(out, evt)
		lastID = msg.ID
	}
	return out, lastID, nil
}

func unmarshalEvent(raw string, evt *Event) error {
	return json.Unmarshal([]byte(raw), evt)
}
