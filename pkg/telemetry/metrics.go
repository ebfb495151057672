// Package telemetry exposes prometheus metrics for the dashboard.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MetricRunningServices tracks how many fleet services are currently running.
	MetricRunningServices = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "adsdash",
		Name:      "services_running_total",
		Help:      "Number of fleet services in the running state.",
	})

	// MetricWSClients tracks connected WebSocket subscribers.
	MetricWSClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "adsdash",
		Name:      "websocket_clients_total",
		Help:      "Connected WebSocket status subscribers.",
	})

	// MetricChatTurns counts chat turns by outcome.
	MetricChatTurns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "adsdash",
		Name:      "chat_turns_total",
		Help:      "Chat turns handled, labeled by outcome.",
	}, []string{"outcome"})

	// MetricToolDispatches counts tool invocations by tool name.
	MetricToolDispatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "adsdash",
		Name:      "tool_dispatches_total",
		Help:      "Chat tool invocations, labeled by tool.",
	}, []string{"tool"})

	// MetricServiceCommands counts compose control commands by action.
	MetricServiceCommands = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "adsdash",
		Name:      "service_commands_total",
		Help:      "Service control commands issued, labeled by action.",
	}, []string{"action"})
)
