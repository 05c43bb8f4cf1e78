// Package evidence normalizes heterogeneous verification-tool outputs into
// uniform, transport-safe records.
package evidence

import (
	"encoding/json"
	"fmt"

	"github.com/scamlens/orchestrator/internal/extraction"
)

// Evidence is the outcome of one tool call against one entity. Immutable
// once created; Payload is always JSON-serializable.
type Evidence struct {
	ToolName    string                 `json:"tool_name"`
	EntityType  extraction.EntityType  `json:"entity_type"`
	EntityValue string                 `json:"entity_value"`
	Payload     map[string]interface{} `json:"payload"`
	Success     bool                   `json:"success"`
	Error       string                 `json:"error,omitempty"`
	LatencyMs   float64                `json:"latency_ms"`
}

// FromResult builds a successful Evidence record from a raw tool result,
// coercing any non-serializable payload values to strings.
func FromResult(tool string, entityType extraction.EntityType, entityValue string, result map[string]interface{}, latencyMs float64) Evidence {
	return Evidence{
		ToolName:    tool,
		EntityType:  entityType,
		EntityValue: entityValue,
		Payload:     sanitize(result),
		Success:     true,
		LatencyMs:   latencyMs,
	}
}

// FromError builds a failed Evidence record. The payload carries an error
// descriptor, never partial tool state.
func FromError(tool string, entityType extraction.EntityType, entityValue string, err error, latencyMs float64) Evidence {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return Evidence{
		ToolName:    tool,
		EntityType:  entityType,
		EntityValue: entityValue,
		Payload:     map[string]interface{}{"error": msg},
		Success:     false,
		Error:       msg,
		LatencyMs:   latencyMs,
	}
}

// sanitize returns a copy of m with every value guaranteed to survive JSON
// marshaling. Values that cannot be marshaled (channels, funcs, live
// handles) are stringified instead of dropped so the record stays complete.
func sanitize(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		if _, err := json.Marshal(v); err != nil {
			out[k] = fmt.Sprintf("%v", v)
			continue
		}
		out[k] = v
	}
	return out
}

// ToolsUsed returns the deduplicated set of tool names across all records,
// independent of call success, in first-seen order. The result is never nil
// so an empty roster serializes as [] rather than null.
func ToolsUsed(records []Evidence) []string {
	seen := make(map[string]bool, len(records))
	out := []string{}
	for _, ev := range records {
		if seen[ev.ToolName] {
			continue
		}
		seen[ev.ToolName] = true
		out = append(out, ev.ToolName)
	}
	return out
}

// SuccessCount returns how many records represent successful tool calls.
func SuccessCount(records []Evidence) int {
	n := 0
	for _, ev := range records {
		if ev.Success {
			n++
		}
	}
	return n
}
