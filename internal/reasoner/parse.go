package reasoner

import (
	"encoding/json"
	"fmt"
	"strings"
)

// minExplanationLen rejects placeholder explanations from the model.
const minExplanationLen = 10

// llmVerdict is the JSON shape the model is instructed to return.
type llmVerdict struct {
	RiskLevel    string   `json:"risk_level"`
	Confidence   float64  `json:"confidence"`
	Explanation  string   `json:"explanation"`
	EvidenceUsed []string `json:"evidence_used"`
}

// parseVerdict validates a raw model response. Markdown code fences are
// stripped before parsing; out-of-range confidence is clamped rather than
// rejected.
func parseVerdict(raw string) (*llmVerdict, error) {
	cleaned := stripCodeFences(raw)

	var v llmVerdict
	dec := json.NewDecoder(strings.NewReader(cleaned))
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("malformed JSON: %w", err)
	}

	if !ValidRiskLevel(v.RiskLevel) {
		return nil, fmt.Errorf("invalid risk_level %q", v.RiskLevel)
	}
	if len(strings.TrimSpace(v.Explanation)) < minExplanationLen {
		return nil, fmt.Errorf("explanation too short (%d chars)", len(strings.TrimSpace(v.Explanation)))
	}

	if v.Confidence < 0 {
		v.Confidence = 0
	}
	if v.Confidence > 100 {
		v.Confidence = 100
	}
	return &v, nil
}

// stripCodeFences removes a surrounding markdown fence, with or without a
// language tag, leaving bare JSON.
func stripCodeFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		// Drop a language tag like "json" on the fence line.
		first := strings.TrimSpace(trimmed[:idx])
		if first == "" || !strings.ContainsAny(first, "{[") {
			trimmed = trimmed[idx+1:]
		}
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
