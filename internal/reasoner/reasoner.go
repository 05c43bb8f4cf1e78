// Package reasoner turns collected evidence into a risk verdict. The
// primary path asks an LLM under a hard deadline; the fallback is a
// deterministic weighted heuristic. Reason never fails: every call returns
// a complete verdict.
package reasoner

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/scamlens/orchestrator/internal/config"
	"github.com/scamlens/orchestrator/internal/evidence"
	"github.com/scamlens/orchestrator/internal/extraction"
	"github.com/scamlens/orchestrator/internal/metrics"
	"github.com/scamlens/orchestrator/pkg/anthropic"
)

// outcome makes the try-retry-fallback sequence explicit instead of burying
// it in control flow.
type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeRetriedSuccess
	outcomeFallback
)

// Fallback causes reported to metrics.
const (
	causeDisabled  = "disabled"
	causeCallError = "call_error"
	causeTimeout   = "timeout"
	causeParse     = "parse_error"
)

// Reasoner produces verdicts. Construct once and reuse across requests; it
// holds no per-request state.
type Reasoner struct {
	llm       anthropic.Client
	heuristic *Heuristic
	cfg       config.LLMConfig
	logger    *zap.Logger
}

// New creates a Reasoner. A nil llm client disables the primary path and
// every verdict comes from the heuristic.
func New(llm anthropic.Client, cfg config.LLMConfig, heuristic *Heuristic, logger *zap.Logger) *Reasoner {
	return &Reasoner{llm: llm, heuristic: heuristic, cfg: cfg, logger: logger}
}

// Reason assesses the evidence and returns a verdict. It never returns an
// error and never panics past its boundary: any trouble on the LLM path
// degrades to the heuristic.
func (r *Reasoner) Reason(ctx context.Context, text string, entities extraction.EntitySet, records []evidence.Evidence) Verdict {
	parsed, out, cause := r.tryLLM(ctx, text, entities, records)
	if out == outcomeFallback {
		metrics.ReasonerFallbacks.WithLabelValues(cause).Inc()
		v := r.heuristic.Verdict(records)
		metrics.VerdictsProduced.WithLabelValues(string(v.Method), string(v.RiskLevel)).Inc()
		return v
	}

	if out == outcomeRetriedSuccess {
		metrics.ReasonerRetries.Inc()
	}
	v := Verdict{
		RiskLevel:   RiskLevel(parsed.RiskLevel),
		Confidence:  parsed.Confidence,
		Explanation: parsed.Explanation,
		ToolsUsed:   evidence.ToolsUsed(records),
		Method:      MethodLLM,
	}
	metrics.VerdictsProduced.WithLabelValues(string(v.Method), string(v.RiskLevel)).Inc()
	return v
}

// tryLLM runs the primary path: one call, and on a parse failure exactly
// one retry with the same prompt. Call errors and deadline overruns do not
// retry; the model is either reachable or it is not.
func (r *Reasoner) tryLLM(ctx context.Context, text string, entities extraction.EntitySet, records []evidence.Evidence) (*llmVerdict, outcome, string) {
	if r.llm == nil {
		return nil, outcomeFallback, causeDisabled
	}

	prompt := BuildPrompt(text, entities, records)

	for attempt := 0; attempt < 2; attempt++ {
		raw, err := r.call(ctx, r.cfg.Model, prompt)
		if err != nil {
			cause := causeCallError
			if errors.Is(err, context.DeadlineExceeded) {
				cause = causeTimeout
			}
			r.logger.Warn("LLM call failed, using heuristic",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return nil, outcomeFallback, cause
		}

		parsed, perr := parseVerdict(raw)
		if perr == nil {
			if attempt == 1 {
				return parsed, outcomeRetriedSuccess, ""
			}
			return parsed, outcomeSuccess, ""
		}
		r.logger.Warn("LLM response failed validation",
			zap.Int("attempt", attempt),
			zap.Error(perr),
		)
	}
	return nil, outcomeFallback, causeParse
}

// Classify gives the fast path a quick text-only assessment using the
// cheaper classifier model. Like Reason it never fails: any trouble yields
// the zero-evidence heuristic floor.
func (r *Reasoner) Classify(ctx context.Context, text string) Verdict {
	fallback := func(cause string) Verdict {
		metrics.ReasonerFallbacks.WithLabelValues(cause).Inc()
		v := r.heuristic.Verdict(nil)
		metrics.VerdictsProduced.WithLabelValues(string(v.Method), string(v.RiskLevel)).Inc()
		return v
	}

	if r.llm == nil {
		return fallback(causeDisabled)
	}

	model := r.cfg.ClassifierModel
	if model == "" {
		model = r.cfg.Model
	}
	raw, err := r.call(ctx, model, BuildClassifierPrompt(text))
	if err != nil {
		cause := causeCallError
		if errors.Is(err, context.DeadlineExceeded) {
			cause = causeTimeout
		}
		r.logger.Warn("classifier call failed, using heuristic", zap.Error(err))
		return fallback(cause)
	}

	parsed, perr := parseVerdict(raw)
	if perr != nil {
		r.logger.Warn("classifier response failed validation", zap.Error(perr))
		return fallback(causeParse)
	}

	v := Verdict{
		RiskLevel:   RiskLevel(parsed.RiskLevel),
		Confidence:  parsed.Confidence,
		Explanation: parsed.Explanation,
		ToolsUsed:   []string{},
		Method:      MethodLLM,
	}
	metrics.VerdictsProduced.WithLabelValues(string(v.Method), string(v.RiskLevel)).Inc()
	return v
}

func (r *Reasoner) call(ctx context.Context, model, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.deadline())
	defer cancel()

	resp, err := r.llm.CreateMessage(callCtx, anthropic.MessageRequest{
		Model:     model,
		MaxTokens: r.maxTokens(),
		System:    systemPrompt,
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		// Surface the deadline as such even when the transport wraps it.
		if callCtx.Err() != nil {
			return "", callCtx.Err()
		}
		return "", err
	}
	resp.Usage.LogUsage(r.logger, model, "reasoning")
	return resp.Text, nil
}

func (r *Reasoner) deadline() time.Duration {
	if r.cfg.Deadline > 0 {
		return r.cfg.Deadline
	}
	return 5 * time.Second
}

func (r *Reasoner) maxTokens() int64 {
	if r.cfg.MaxTokens > 0 {
		return r.cfg.MaxTokens
	}
	return 1024
}
