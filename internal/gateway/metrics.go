package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	chatTurnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "switchboard",
		Name:      "chat_turns_total",
		Help:      "Chat turns processed, labeled by provider and outcome.",
	}, []string{"provider", "outcome"})

	toolExecutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "switchboard",
		Name:      "tool_executions_total",
		Help:      "Tool executions triggered by chat turns, labeled by tool and outcome.",
	}, []string{"tool", "outcome"})

	chatChunksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "switchboard",
		Name:      "chat_chunks_total",
		Help:      "Content chunks streamed to chat clients.",
	})

	chatConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "switchboard",
		Name:      "chat_connections",
		Help:      "Currently open chat websocket connections.",
	})
)
