package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector holds the engine's Prometheus instruments.
type Collector struct {
	turnsTotal   *prometheus.CounterVec
	turnDuration *prometheus.HistogramVec

	toolCallsTotal *prometheus.CounterVec
	loopIterations *prometheus.HistogramVec

	transitionsTotal *prometheus.CounterVec

	memoryStageTotal *prometheus.CounterVec

	llmRequestsTotal *prometheus.CounterVec
	llmTokensUsed    *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector registers the engine instruments on the given registerer. A
// nil registerer falls back to the default registry.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.turnsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total number of executed turns",
		},
		[]string{"status", "dry_run"},
	)

	c.turnDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Turn execution duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	c.toolCallsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Total number of tool invocations by the loop",
		},
		[]string{"tool", "status"},
	)

	c.loopIterations = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "loop_iterations",
			Help:      "Model calls consumed per turn before a plain response",
			Buckets:   []float64{1, 2, 3, 4, 5, 6, 8, 10, 15, 20},
		},
		[]string{"status"},
	)

	c.transitionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_transitions_total",
			Help:      "Total number of applied node transitions",
		},
		[]string{"from_type", "completed"},
	)

	c.memoryStageTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_stage_total",
			Help:      "Memory curation stage outcomes",
		},
		[]string{"stage", "outcome"},
	)

	c.llmRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of reasoning-model requests",
		},
		[]string{"model", "status"},
	)

	c.llmTokensUsed = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_used_total",
			Help:      "Total number of tokens consumed",
		},
		[]string{"model", "type"},
	)

	return c
}

// RecordTurn records one completed or failed turn.
func (c *Collector) RecordTurn(duration time.Duration, status string, dryRun bool) {
	if c == nil {
		return
	}
	dry := "false"
	if dryRun {
		dry = "true"
	}
	c.turnsTotal.WithLabelValues(status, dry).Inc()
	c.turnDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordToolCall records one tool handler invocation.
func (c *Collector) RecordToolCall(tool string, failed bool) {
	if c == nil {
		return
	}
	status := "ok"
	if failed {
		status = "error"
	}
	c.toolCallsTotal.WithLabelValues(tool, status).Inc()
}

// RecordLoop records how many model calls one turn consumed.
func (c *Collector) RecordLoop(iterations int, status string) {
	if c == nil {
		return
	}
	c.loopIterations.WithLabelValues(status).Observe(float64(iterations))
}

// RecordTransition records an applied node transition.
func (c *Collector) RecordTransition(fromType string, completed bool) {
	if c == nil {
		return
	}
	done := "false"
	if completed {
		done = "true"
	}
	c.transitionsTotal.WithLabelValues(fromType, done).Inc()
}

// RecordMemoryStage records one curation stage outcome.
func (c *Collector) RecordMemoryStage(stage string, changed bool, failed bool) {
	if c == nil {
		return
	}
	outcome := "unchanged"
	switch {
	case failed:
		outcome = "error"
	case changed:
		outcome = "changed"
	}
	c.memoryStageTotal.WithLabelValues(stage, outcome).Inc()
}

// RecordLLMRequest records one reasoning-model round trip.
func (c *Collector) RecordLLMRequest(model string, failed bool, promptTokens, completionTokens int) {
	if c == nil {
		return
	}
	status := "ok"
	if failed {
		status = "error"
	}
	c.llmRequestsTotal.WithLabelValues(model, status).Inc()
	if promptTokens > 0 {
		c.llmTokensUsed.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		c.llmTokensUsed.WithLabelValues(model, "completion").Add(float64(completionTokens))
	}
}
