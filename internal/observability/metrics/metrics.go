package metrics

import "github.com/prometheus/client_golang/prometheus"

// AssistantMetrics exposes counters/histograms for the chat-action pipeline.
type AssistantMetrics struct {
	chatActionTotal *prometheus.CounterVec
	llmLatency      *prometheus.HistogramVec
}

func NewAssistantMetrics(reg prometheus.Registerer) *AssistantMetrics {
	m := &AssistantMetrics{
		chatActionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "assistant",
			Name:      "chat_action_total",
			Help:      "Total chat-action responses by resolved action",
		}, []string{"action"}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "assistant",
			Name:      "llm_latency_seconds",
			Help:      "Latency of LLM completions",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.chatActionTotal, m.llmLatency)
	return m
}

func (m *AssistantMetrics) ObserveChatAction(action string) {
	if m == nil {
		return
	}
	m.chatActionTotal.WithLabelValues(action).Inc()
}

func (m *AssistantMetrics) ObserveLLMLatency(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.llmLatency.WithLabelValues(operation).Observe(seconds)
}

// ExecutorMetrics exposes counters for appointment mutations and the
// realtime fan-out that follows them.
type ExecutorMetrics struct {
	executionsTotal *prometheus.CounterVec
	fanoutTotal     *prometheus.CounterVec
}

func NewExecutorMetrics(reg prometheus.Registerer) *ExecutorMetrics {
	m := &ExecutorMetrics{
		executionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "appointments",
			Name:      "executions_total",
			Help:      "Total appointment action executions by action and outcome",
		}, []string{"action", "outcome"}),
		fanoutTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "realtime",
			Name:      "fanout_total",
			Help:      "Total realtime events published by event name and status",
		}, []string{"event", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.executionsTotal, m.fanoutTotal)
	return m
}

func (m *ExecutorMetrics) ObserveExecution(action, outcome string) {
	if m == nil {
		return
	}
	m.executionsTotal.WithLabelValues(action, outcome).Inc()
}

func (m *ExecutorMetrics) ObserveFanout(event, status string) {
	if m == nil {
		return
	}
	m.fanoutTotal.WithLabelValues(event, status).Inc()
}
