package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecordAgentAndGraph(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveAgentRun("recommendation", "final_response", 2)
	m.IncToolCall("recommendation", "get_learner_profile_and_resources", "ok")
	m.IncToolCall("recommendation", "get_learner_profile_and_resources", "ok")
	m.ObserveGraphQuery("find_matching_concepts", 5*time.Millisecond, errors.New("boom"))

	if got := testutil.ToFloat64(m.agentOutcomes.WithLabelValues("recommendation", "final_response")); got != 1 {
		t.Fatalf("agent outcomes = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.toolCalls.WithLabelValues("recommendation", "get_learner_profile_and_resources", "ok")); got != 2 {
		t.Fatalf("tool calls = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.graphErrors.WithLabelValues("find_matching_concepts")); got != 1 {
		t.Fatalf("graph errors = %v, want 1", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveAgentRun("x", "y", 1)
	m.IncToolCall("x", "y", "z")
	m.ObserveLLMRequest("m", "/v1/responses", "200", time.Second)
	m.IncIngestion("ok")
	m.ObserveGraphQuery("op", time.Second, nil)
	m.ObserveAPI("GET", "/healthcheck", "200", time.Millisecond)
	m.APIInflightInc()
	m.APIInflightDec()
}

func TestMetricsRecordAPIInflight(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.APIInflightInc()
	m.APIInflightInc()
	m.APIInflightDec()
	m.ObserveAPI("POST", "/api/recommendations", "200", 20*time.Millisecond)

	if got := testutil.ToFloat64(m.apiInflight); got != 1 {
		t.Fatalf("inflight = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.apiRequests); got != 1 {
		t.Fatalf("api request series = %d, want 1", got)
	}
}
