package reasoner

// RiskLevel is the final risk classification of a request.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// ValidRiskLevel reports whether s is one of the three levels.
func ValidRiskLevel(s string) bool {
	switch RiskLevel(s) {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

// Method records which path produced a verdict.
type Method string

const (
	MethodLLM       Method = "llm"
	MethodHeuristic Method = "heuristic"
)

// Verdict is the final output of an investigation. Every field is always
// populated; the documented floor is low risk at 50 confidence with no
// evidence.
type Verdict struct {
	RiskLevel   RiskLevel `json:"risk_level"`
	Confidence  float64   `json:"confidence"` // [0,100]
	Explanation string    `json:"explanation"`
	ToolsUsed   []string  `json:"tools_used"`
	Method      Method    `json:"method"`
}
