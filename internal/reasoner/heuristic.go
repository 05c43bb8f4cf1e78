package reasoner

import (
	"fmt"
	"sort"
	"strings"

	"github.com/scamlens/orchestrator/internal/config"
	"github.com/scamlens/orchestrator/internal/evidence"
	"github.com/scamlens/orchestrator/internal/tools"
)

// Heuristic is the deterministic fallback scorer. Same evidence always
// produces the same verdict; no I/O, no randomness.
type Heuristic struct {
	cfg config.HeuristicConfig
}

// NewHeuristic creates a scorer with the given tuning table.
func NewHeuristic(cfg config.HeuristicConfig) *Heuristic {
	return &Heuristic{cfg: cfg}
}

// Score accumulates risk points from the evidence set and returns the total
// alongside the human-readable signals that contributed.
func (h *Heuristic) Score(records []evidence.Evidence) (float64, []string) {
	score := 0.0
	var signals []string

	for _, ev := range records {
		if !ev.Success {
			continue
		}
		switch ev.ToolName {
		case tools.NameScamDB:
			if !payloadBool(ev.Payload, "found") {
				continue
			}
			if payloadBool(ev.Payload, "verified") {
				pts := min64(payloadFloat(ev.Payload, "risk_score")*h.cfg.VerifiedScamWeight, h.cfg.VerifiedScamCap)
				score += pts
				signals = append(signals, fmt.Sprintf("verified scam report for %s (+%.0f)", ev.EntityValue, pts))
			} else {
				pts := min64(payloadFloat(ev.Payload, "report_count")*h.cfg.ReportWeight, h.cfg.ReportCap)
				score += pts
				signals = append(signals, fmt.Sprintf("%d unverified reports for %s (+%.0f)",
					int(payloadFloat(ev.Payload, "report_count")), ev.EntityValue, pts))
			}

		case tools.NameWebSearch:
			count := payloadFloat(ev.Payload, "result_count")
			if count <= 0 {
				continue
			}
			pts := min64(count*h.cfg.SearchHitWeight, h.cfg.SearchHitCap)
			score += pts
			signals = append(signals, fmt.Sprintf("%d scam-related search results for %s (+%.0f)", int(count), ev.EntityValue, pts))

		case tools.NameDomainReputation:
			switch payloadString(ev.Payload, "risk") {
			case "high":
				score += h.cfg.DomainHighPoints
				signals = append(signals, fmt.Sprintf("high-risk domain %s (+%.0f)", ev.EntityValue, h.cfg.DomainHighPoints))
			case "medium":
				score += h.cfg.DomainMediumPoints
				signals = append(signals, fmt.Sprintf("medium-risk domain %s (+%.0f)", ev.EntityValue, h.cfg.DomainMediumPoints))
			}
			if age, ok := payloadFloatOK(ev.Payload, "domain_age_days"); ok && age < float64(h.cfg.YoungDomainDays) {
				score += h.cfg.YoungDomainPoints
				signals = append(signals, fmt.Sprintf("domain %s registered %d days ago (+%.0f)",
					ev.EntityValue, int(age), h.cfg.YoungDomainPoints))
			}

		case tools.NamePhoneValidator:
			if payloadString(ev.Payload, "status") == "suspicious" {
				score += h.cfg.SuspiciousPhonePoints
				signals = append(signals, fmt.Sprintf("suspicious phone %s (+%.0f)", ev.EntityValue, h.cfg.SuspiciousPhonePoints))
			}
		}
	}
	return score, signals
}

// Verdict maps the accumulated score onto a complete verdict. With no risk
// signals at all, confidence sits exactly at the floor: the scorer has seen
// nothing and cannot claim near-certainty either way.
func (h *Heuristic) Verdict(records []evidence.Evidence) Verdict {
	score, signals := h.Score(records)

	var level RiskLevel
	var confidence float64
	switch {
	case score >= h.cfg.HighThreshold:
		level = RiskHigh
		confidence = min64(score, 100)
	case score >= h.cfg.MediumThreshold:
		level = RiskMedium
		confidence = min64(score, 100)
	case len(signals) == 0:
		level = RiskLow
		confidence = h.cfg.LowConfidenceFloor
	default:
		level = RiskLow
		confidence = max64(100-score, h.cfg.LowConfidenceFloor)
	}

	return Verdict{
		RiskLevel:   level,
		Confidence:  confidence,
		Explanation: explain(level, score, signals),
		ToolsUsed:   evidence.ToolsUsed(records),
		Method:      MethodHeuristic,
	}
}

func explain(level RiskLevel, score float64, signals []string) string {
	if len(signals) == 0 {
		return "No risk signals found in the collected evidence; defaulting to low risk."
	}
	sort.Strings(signals)
	return fmt.Sprintf("Rule-based assessment (%s risk, score %.0f): %s.",
		level, score, strings.Join(signals, "; "))
}

func payloadBool(m map[string]interface{}, key string) bool {
	v, ok := m[key]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// payloadFloat tolerates the numeric types a payload picks up from JSON
// round-trips and native construction.
func payloadFloat(m map[string]interface{}, key string) float64 {
	f, _ := payloadFloatOK(m, key)
	return f
}

func payloadFloatOK(m map[string]interface{}, key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func payloadString(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

func min64(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func max64(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
