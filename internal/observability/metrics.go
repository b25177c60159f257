package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the process collectors. A nil *Metrics is valid and records
// nothing, so components can take it as an optional dependency.
type Metrics struct {
	gatherer prometheus.Gatherer

	llmRequests   *prometheus.CounterVec
	llmLatency    *prometheus.HistogramVec
	graphLatency  *prometheus.HistogramVec
	graphErrors   *prometheus.CounterVec
	agentTurns    *prometheus.HistogramVec
	agentOutcomes *prometheus.CounterVec
	toolCalls     *prometheus.CounterVec
	ingestions    *prometheus.CounterVec
	apiRequests   *prometheus.HistogramVec
	apiInflight   prometheus.Gauge
}

// NewMetrics registers all collectors on reg. Pass prometheus.NewRegistry()
// in tests to keep them isolated.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		gatherer: reg,
		llmRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "codemate",
			Name:      "llm_requests_total",
			Help:      "LLM API requests by model, endpoint and status.",
		}, []string{"model", "endpoint", "status"}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "codemate",
			Name:      "llm_request_duration_seconds",
			Help:      "LLM API request latency.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"model", "endpoint"}),
		graphLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "codemate",
			Name:      "graph_query_duration_seconds",
			Help:      "Graph store operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		graphErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "codemate",
			Name:      "graph_query_errors_total",
			Help:      "Graph store operation failures.",
		}, []string{"op"}),
		agentTurns: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "codemate",
			Name:      "agent_turns",
			Help:      "Agent turns used per loop run.",
			Buckets:   []float64{1, 2, 3, 4, 5, 6, 8, 10, 15, 20},
		}, []string{"loop"}),
		agentOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "codemate",
			Name:      "agent_runs_total",
			Help:      "Agent loop terminations by outcome.",
		}, []string{"loop", "outcome"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "codemate",
			Name:      "agent_tool_calls_total",
			Help:      "Tool invocations requested by the model.",
		}, []string{"loop", "tool", "status"}),
		ingestions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "codemate",
			Name:      "kg_ingestions_total",
			Help:      "Knowledge graph resource ingestions by status.",
		}, []string{"status"}),
		apiRequests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "codemate",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method, route and status.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"method", "route", "status"}),
		apiInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "codemate",
			Name:      "http_inflight_requests",
			Help:      "HTTP requests currently being served.",
		}),
	}
	reg.MustRegister(
		m.llmRequests, m.llmLatency,
		m.graphLatency, m.graphErrors,
		m.agentTurns, m.agentOutcomes, m.toolCalls,
		m.ingestions,
		m.apiRequests, m.apiInflight,
	)
	return m
}

func (m *Metrics) ObserveLLMRequest(model, endpoint, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.llmRequests.WithLabelValues(model, endpoint, status).Inc()
	m.llmLatency.WithLabelValues(model, endpoint).Observe(d.Seconds())
}

func (m *Metrics) ObserveGraphQuery(op string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.graphLatency.WithLabelValues(op).Observe(d.Seconds())
	if err != nil {
		m.graphErrors.WithLabelValues(op).Inc()
	}
}

func (m *Metrics) ObserveAgentRun(loop, outcome string, turns int) {
	if m == nil {
		return
	}
	m.agentTurns.WithLabelValues(loop).Observe(float64(turns))
	m.agentOutcomes.WithLabelValues(loop, outcome).Inc()
}

func (m *Metrics) IncToolCall(loop, tool, status string) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(loop, tool, status).Inc()
}

func (m *Metrics) IncIngestion(status string) {
	if m == nil {
		return
	}
	m.ingestions.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveAPI(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.apiRequests.WithLabelValues(method, route, status).Observe(d.Seconds())
}

func (m *Metrics) APIInflightInc() {
	if m != nil {
		m.apiInflight.Inc()
	}
}

func (m *Metrics) APIInflightDec() {
	if m != nil {
		m.apiInflight.Dec()
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
