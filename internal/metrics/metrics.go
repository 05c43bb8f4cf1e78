// Package metrics defines the Prometheus collectors shared across the
// orchestrator. Import for side effects; collectors register on init.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Routing metrics
	RoutingDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scamlens_routing_decisions_total",
			Help: "Total routing decisions by route and fallback reason",
		},
		[]string{"route", "fallback_reason"},
	)

	RoutingLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scamlens_routing_latency_seconds",
			Help:    "Latency of the routing decision including extraction",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.15, 0.5, 1},
		},
	)

	// Investigation metrics
	InvestigationsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scamlens_investigations_started_total",
			Help: "Total investigation workflows started",
		},
	)

	InvestigationsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scamlens_investigations_completed_total",
			Help: "Total investigation workflows completed by status",
		},
		[]string{"status"},
	)

	InvestigationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scamlens_investigation_duration_seconds",
			Help:    "End-to-end investigation duration",
			Buckets: []float64{1, 5, 10, 20, 30, 45, 60},
		},
	)

	// Tool metrics
	ToolCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scamlens_tool_calls_total",
			Help: "Total verification tool calls by tool and outcome",
		},
		[]string{"tool", "outcome"},
	)

	ToolCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scamlens_tool_call_duration_ms",
			Help:    "Verification tool call duration in milliseconds",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"tool"},
	)

	// Reasoner metrics
	VerdictsProduced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scamlens_verdicts_total",
			Help: "Total verdicts produced by reasoning method and risk level",
		},
		[]string{"method", "risk_level"},
	)

	ReasonerRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scamlens_reasoner_retries_total",
			Help: "Total single-retry attempts after an unparseable LLM response",
		},
	)

	ReasonerFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scamlens_reasoner_fallbacks_total",
			Help: "Total falls to the heuristic path by cause",
		},
		[]string{"cause"},
	)

	// Persistence metrics
	PersistFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scamlens_persist_failures_total",
			Help: "Total verdict persistence failures (verdict still returned)",
		},
	)

	// Streaming metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scamlens_progress_events_total",
			Help: "Total progress events published by sink",
		},
		[]string{"sink"},
	)

	EventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scamlens_progress_events_dropped_total",
			Help: "Progress events dropped due to slow subscribers",
		},
	)
)
