package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func newTestCollector() *Collector {
	return NewCollector("test", prometheus.NewRegistry(), nil)
}

func TestNewCollector(t *testing.T) {
	t.Parallel()
	collector := newTestCollector()

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.turnsTotal)
	assert.NotNil(t, collector.toolCallsTotal)
	assert.NotNil(t, collector.transitionsTotal)
	assert.NotNil(t, collector.memoryStageTotal)
	assert.NotNil(t, collector.llmRequestsTotal)
	assert.NotNil(t, collector.llmTokensUsed)
}

func TestCollector_RecordTurn(t *testing.T) {
	t.Parallel()
	collector := newTestCollector()

	collector.RecordTurn(120*time.Millisecond, "ok", false)
	collector.RecordTurn(80*time.Millisecond, "ok", true)
	collector.RecordTurn(30*time.Millisecond, "NODE_MISMATCH", false)

	assert.Equal(t, float64(1), testutil.ToFloat64(collector.turnsTotal.WithLabelValues("ok", "false")))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.turnsTotal.WithLabelValues("ok", "true")))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.turnsTotal.WithLabelValues("NODE_MISMATCH", "false")))
}

func TestCollector_RecordToolCall(t *testing.T) {
	t.Parallel()
	collector := newTestCollector()

	collector.RecordToolCall("flow_transition", false)
	collector.RecordToolCall("flow_transition", false)
	collector.RecordToolCall("kb_search", true)

	assert.Equal(t, float64(2), testutil.ToFloat64(collector.toolCallsTotal.WithLabelValues("flow_transition", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.toolCallsTotal.WithLabelValues("kb_search", "error")))
}

func TestCollector_RecordMemoryStage(t *testing.T) {
	t.Parallel()
	collector := newTestCollector()

	collector.RecordMemoryStage("facts", true, false)
	collector.RecordMemoryStage("summarize", false, false)
	collector.RecordMemoryStage("resummarize", false, true)

	assert.Equal(t, float64(1), testutil.ToFloat64(collector.memoryStageTotal.WithLabelValues("facts", "changed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.memoryStageTotal.WithLabelValues("summarize", "unchanged")))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.memoryStageTotal.WithLabelValues("resummarize", "error")))
}

func TestCollector_RecordLLMRequest(t *testing.T) {
	t.Parallel()
	collector := newTestCollector()

	collector.RecordLLMRequest("gpt-4o", false, 120, 40)
	collector.RecordLLMRequest("gpt-4o", false, 80, 20)

	assert.Equal(t, float64(2), testutil.ToFloat64(collector.llmRequestsTotal.WithLabelValues("gpt-4o", "ok")))
	assert.Equal(t, float64(200), testutil.ToFloat64(collector.llmTokensUsed.WithLabelValues("gpt-4o", "prompt")))
	assert.Equal(t, float64(60), testutil.ToFloat64(collector.llmTokensUsed.WithLabelValues("gpt-4o", "completion")))
}

func TestCollector_NilReceiverSafe(t *testing.T) {
	t.Parallel()
	var collector *Collector

	collector.RecordTurn(time.Millisecond, "ok", false)
	collector.RecordToolCall("flow_transition", false)
	collector.RecordLoop(3, "ok")
	collector.RecordTransition("start", false)
	collector.RecordMemoryStage("facts", true, false)
	collector.RecordLLMRequest("gpt-4o", false, 1, 1)
}
