package reasoner

import (
	"fmt"
	"sort"
	"strings"

	"github.com/scamlens/orchestrator/internal/evidence"
	"github.com/scamlens/orchestrator/internal/extraction"
	"github.com/scamlens/orchestrator/internal/tools"
)

// entityPreviewCap bounds how many entities of each type reach the prompt.
const entityPreviewCap = 5

const systemPrompt = `You are a fraud analyst. You receive text captured from a user's screen together with evidence collected by verification tools. Assess the scam risk.

Respond with a single JSON object and nothing else:
{"risk_level": "low"|"medium"|"high", "confidence": 0-100, "explanation": "...", "evidence_used": ["tool names"]}

The explanation must cite the specific evidence behind the assessment.`

// BuildPrompt renders the evidence set and extracted entities into the user
// message for the reasoning call.
func BuildPrompt(text string, entities extraction.EntitySet, records []evidence.Evidence) string {
	var b strings.Builder

	b.WriteString("## Suspect text\n")
	b.WriteString(truncate(text, 2000))
	b.WriteString("\n\n## Extracted entities\n")
	writeEntityPreview(&b, entities)
	b.WriteString("\n## Tool evidence\n")
	writeEvidence(&b, records)
	return b.String()
}

// BuildClassifierPrompt asks for a quick text-only read, used on the fast
// path where no evidence has been collected.
func BuildClassifierPrompt(text string) string {
	var b strings.Builder
	b.WriteString("Captured text:\n")
	b.WriteString(truncate(text, 2000))
	b.WriteString("\n\nNo verification evidence is available. Assess scam risk from the text alone.\n")
	return b.String()
}

func writeEntityPreview(b *strings.Builder, set extraction.EntitySet) {
	writePreviewLine(b, "Phones", len(set.Phones), func(i int) string { return set.Phones[i].Value })
	writePreviewLine(b, "URLs", len(set.URLs), func(i int) string { return set.URLs[i].Value })
	writePreviewLine(b, "Emails", len(set.Emails), func(i int) string { return set.Emails[i].Value })
	writePreviewLine(b, "Payment identifiers", len(set.Payments), func(i int) string {
		return fmt.Sprintf("%s (%s)", set.Payments[i].Value, set.Payments[i].Kind)
	})
	writePreviewLine(b, "Amounts", len(set.Amounts), func(i int) string { return set.Amounts[i].Original })
	writePreviewLine(b, "Companies", len(set.Companies), func(i int) string { return set.Companies[i].Name })
}

func writePreviewLine(b *strings.Builder, label string, n int, value func(int) string) {
	if n == 0 {
		return
	}
	shown := n
	if shown > entityPreviewCap {
		shown = entityPreviewCap
	}
	vals := make([]string, shown)
	for i := 0; i < shown; i++ {
		vals[i] = value(i)
	}
	fmt.Fprintf(b, "- %s (%d): %s", label, n, strings.Join(vals, ", "))
	if n > shown {
		fmt.Fprintf(b, " (+%d more)", n-shown)
	}
	b.WriteString("\n")
}

func writeEvidence(b *strings.Builder, records []evidence.Evidence) {
	if len(records) == 0 {
		b.WriteString("No tool evidence was collected.\n")
		return
	}
	for _, ev := range records {
		if !ev.Success {
			fmt.Fprintf(b, "- %s on %s: FAILED (%s)\n", ev.ToolName, ev.EntityValue, ev.Error)
			continue
		}
		fmt.Fprintf(b, "- %s on %s: %s\n", ev.ToolName, ev.EntityValue, formatPayload(ev))
	}
}

// formatPayload renders known tools' payloads in a compact domain-specific
// form and falls back to sorted key=value pairs for anything else.
func formatPayload(ev evidence.Evidence) string {
	p := ev.Payload
	switch ev.ToolName {
	case tools.NameScamDB:
		if !payloadBool(p, "found") {
			return "no reports on file"
		}
		status := "unverified"
		if payloadBool(p, "verified") {
			status = "VERIFIED"
		}
		return fmt.Sprintf("%s scam, %d reports, risk score %.0f",
			status, int(payloadFloat(p, "report_count")), payloadFloat(p, "risk_score"))
	case tools.NameWebSearch:
		return fmt.Sprintf("%d scam-related results", int(payloadFloat(p, "result_count")))
	case tools.NameDomainReputation:
		return fmt.Sprintf("reputation %s, domain age %d days",
			payloadString(p, "risk"), int(payloadFloat(p, "domain_age_days")))
	case tools.NamePhoneValidator:
		s := fmt.Sprintf("status %s", payloadString(p, "status"))
		if reason := payloadString(p, "reason"); reason != "" {
			s += " (" + reason + ")"
		}
		return s
	case tools.NameCompanyRegistry:
		if payloadBool(p, "registered") {
			return fmt.Sprintf("registered company, status %s", payloadString(p, "status"))
		}
		return "no registry record found"
	default:
		return genericPayload(p)
	}
}

func genericPayload(p map[string]interface{}) string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, p[k])
	}
	return strings.Join(parts, " ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
