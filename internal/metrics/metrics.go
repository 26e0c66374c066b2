package metrics

import (
	"strconv"
	"time"

	"basegraph.app/triage/internal/gateway"
	"basegraph.app/triage/internal/guardrail"
	"basegraph.app/triage/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the pipeline counters. All names are prefixed with "triage_".
//
//   - triage_turns_total{category,triage,source}
//   - triage_turn_duration_seconds{category}
//   - triage_model_calls_total{kind,result}
//   - triage_gateway_outcomes_total{source,reason}
//   - triage_guardrail_decisions_total{decision}
//   - triage_ood_total
//   - triage_cache_requests_total{result}
type Metrics struct {
	TurnsTotal         *prometheus.CounterVec
	TurnDuration       *prometheus.HistogramVec
	ModelCallsTotal    *prometheus.CounterVec
	GatewayOutcomes    *prometheus.CounterVec
	GuardrailDecisions *prometheus.CounterVec
	OODTotal           prometheus.Counter
	CacheRequests      *prometheus.CounterVec
}

// New registers the collectors on reg. Tests pass a fresh
// prometheus.NewRegistry(); the server passes prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		TurnsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "triage_turns_total",
				Help: "Turns handled, by category, triage flag and payload source",
			},
			[]string{"category", "triage", "source"},
		),
		TurnDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "triage_turn_duration_seconds",
				Help:    "End-to-end turn latency in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
			},
			[]string{"category"},
		),
		ModelCallsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "triage_model_calls_total",
				Help: "Language model calls, by kind (draft, repair, text) and result",
			},
			[]string{"kind", "result"},
		),
		GatewayOutcomes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "triage_gateway_outcomes_total",
				Help: "Gateway terminal states, by payload source and fallback reason",
			},
			[]string{"source", "reason"},
		),
		GuardrailDecisions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "triage_guardrail_decisions_total",
				Help: "Guardrail rule outcomes",
			},
			[]string{"decision"},
		),
		OODTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "triage_ood_total",
				Help: "Questions classified out of domain before clamping",
			},
		),
		CacheRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "triage_cache_requests_total",
				Help: "Completion cache lookups, by result (hit, miss, error)",
			},
			[]string{"result"},
		),
	}
}

// ModelCall implements gateway.Recorder.
func (m *Metrics) ModelCall(kind string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ModelCallsTotal.WithLabelValues(kind, result).Inc()
}

// GatewayOutcome implements gateway.Recorder.
func (m *Metrics) GatewayOutcome(source gateway.Source, reason string) {
	m.GatewayOutcomes.WithLabelValues(string(source), reason).Inc()
}

func (m *Metrics) GuardrailDecision(d guardrail.Decision) {
	m.GuardrailDecisions.WithLabelValues(string(d)).Inc()
}

func (m *Metrics) OutOfDomain() {
	m.OODTotal.Inc()
}

func (m *Metrics) Turn(category model.Category, triage bool, source string, elapsed time.Duration) {
	m.TurnsTotal.WithLabelValues(string(category), strconv.FormatBool(triage), source).Inc()
	m.TurnDuration.WithLabelValues(string(category)).Observe(elapsed.Seconds())
}

// CacheLookup satisfies cache.Recorder.
func (m *Metrics) CacheLookup(result string) {
	m.CacheRequests.WithLabelValues(result).Inc()
}

var _ gateway.Recorder = (*Metrics)(nil)
