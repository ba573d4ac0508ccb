package observability

import (
	"strings"
	"testing"
	"time"
)

func TestCounterVecExposition(t *testing.T) {
	c := NewCounterVec("test_requests_total", "Test requests.", []string{"method", "status"})
	c.Inc("GET", "200")
	c.Inc("GET", "200")
	c.Inc("POST", "500")

	var b strings.Builder
	if err := c.WritePrometheus(&b); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	out := b.String()
	if !strings.Contains(out, "# TYPE test_requests_total counter") {
		t.Fatalf("missing TYPE line:\n%s", out)
	}
	if !strings.Contains(out, `test_requests_total{method="GET",status="200"} 2.0`) {
		t.Fatalf("missing GET line:\n%s", out)
	}
	if !strings.Contains(out, `test_requests_total{method="POST",status="500"} 1.0`) {
		t.Fatalf("missing POST line:\n%s", out)
	}
}

func TestCounterVecMissingLabelDefaults(t *testing.T) {
	c := NewCounterVec("test_total", "Test.", []string{"a", "b"})
	c.Inc("only-a")

	var b strings.Builder
	_ = c.WritePrometheus(&b)
	if !strings.Contains(b.String(), `{a="only-a",b="unknown"}`) {
		t.Fatalf("missing label not defaulted:\n%s", b.String())
	}
}

func TestHistogramVecBuckets(t *testing.T) {
	h := NewHistogramVec("test_latency_seconds", "Test latency.", []string{"op"}, []float64{0.1, 1})
	h.Observe(0.05, "query")
	h.Observe(0.5, "query")
	h.Observe(5, "query")

	var b strings.Builder
	if err := h.WritePrometheus(&b); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	out := b.String()
	checks := map[string]string{
		`test_latency_seconds_bucket{op="query",le="0.1"} 1`:  "le=0.1",
		`test_latency_seconds_bucket{op="query",le="1"} 2`:    "le=1",
		`test_latency_seconds_bucket{op="query",le="+Inf"} 3`: "le=+Inf",
		`test_latency_seconds_count{op="query"} 3`:            "count",
	}
	for line, name := range checks {
		if !strings.Contains(out, line) {
			t.Fatalf("missing %s line:\n%s", name, out)
		}
	}
}

func TestLabelEscaping(t *testing.T) {
	c := NewCounterVec("test_total", "Test.", []string{"route"})
	c.Inc(`path"with\quotes`)

	var b strings.Builder
	_ = c.WritePrometheus(&b)
	if !strings.Contains(b.String(), `route="path\"with\\quotes"`) {
		t.Fatalf("label not escaped:\n%s", b.String())
	}
}

func TestGaugeIncDec(t *testing.T) {
	g := NewGauge("test_inflight", "Test.")
	g.Inc()
	g.Inc()
	g.Dec()

	var b strings.Builder
	_ = g.WritePrometheus(&b)
	if !strings.Contains(b.String(), "test_inflight 1.0") {
		t.Fatalf("gauge value:\n%s", b.String())
	}
}

func TestMetricsNilReceiverSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/api/documents", "200", time.Second)
	m.ObserveIngestStage("run", "ok", time.Second)
	m.ObserveVectorOp("pinecone", "upsert", "ok", time.Millisecond)
	m.IncChatAnswer(true)
	m.ApiInflightInc()
	if err := m.WritePrometheus(&strings.Builder{}); err != nil {
		t.Fatalf("nil WritePrometheus: %v", err)
	}
}

func TestIngestRunFailureCounts(t *testing.T) {
	m := newMetrics()
	m.ObserveIngestStage("run", "ok", time.Second)
	m.ObserveIngestStage("run", "failed", time.Second)
	m.ObserveIngestStage("extract", "failed", time.Second)

	if got := m.ingestTotal.Value(); got != 2 {
		t.Fatalf("ingestTotal = %v, want 2", got)
	}
	if got := m.ingestError.Value(); got != 1 {
		t.Fatalf("ingestError = %v, want 1", got)
	}
}

func TestFullRegistryWrites(t *testing.T) {
	m := newMetrics()
	m.ObserveAPI("POST", "/api/documents", "202", 50*time.Millisecond)
	m.ObserveLLM("embed", "ok", 200*time.Millisecond)
	m.IncChatAnswer(false)

	var b strings.Builder
	if err := m.WritePrometheus(&b); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	out := b.String()
	for _, name := range []string{"dc_api_requests_total", "dc_llm_requests_total", "dc_chat_answers_total", "dc_documents"} {
		if !strings.Contains(out, "# HELP "+name) {
			t.Fatalf("registry missing %s:\n%s", name, out)
		}
	}
}
