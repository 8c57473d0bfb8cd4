package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestAssistantMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewAssistantMetrics(reg)
	m.ObserveChatAction("cancel-appointment")
	m.ObserveLLMLatency("chat_action", 0.5)
}

func TestAssistantMetricsNilSafe(t *testing.T) {
	var m *AssistantMetrics
	m.ObserveChatAction("general-response")
	m.ObserveLLMLatency("chat_action", 0.1)
}

func TestExecutorMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewExecutorMetrics(reg)
	m.ObserveExecution("cancel-appointment", "success")
	m.ObserveFanout("appointment:cancelled", "ok")
}

func TestExecutorMetricsNilSafe(t *testing.T) {
	var m *ExecutorMetrics
	m.ObserveExecution("reschedule-appointment", "error")
	m.ObserveFanout("message:update", "error")
}
