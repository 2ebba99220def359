package chat

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/lucerna-ai/lucerna/modules/chat/services"
	"github.com/lucerna-ai/lucerna/pkg/eventbus"
)

var (
	turnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_turns_total",
		Help: "Turns by provider, model and terminal state.",
	}, []string{"provider", "model", "state"})

	turnFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_turn_failures_total",
		Help: "Failed or cancelled turns by provider and error code.",
	}, []string{"provider", "code"})

	tokensTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_tokens_total",
		Help: "Settled tokens by provider and direction.",
	}, []string{"provider", "kind"})

	turnDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chat_turn_duration_seconds",
		Help:    "Wall time of completed turns.",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
	}, []string{"provider"})
)

func registerMetrics(bus eventbus.EventBus) {
	bus.Subscribe(func(ev services.TurnCompletedEvent) {
		turnsTotal.WithLabelValues(ev.Provider, ev.ModelID, string(ev.State)).Inc()
		tokensTotal.WithLabelValues(ev.Provider, "prompt").Add(float64(ev.PromptTokens))
		tokensTotal.WithLabelValues(ev.Provider, "completion").Add(float64(ev.CompletionTokens))
		turnDuration.WithLabelValues(ev.Provider).Observe(ev.Duration.Seconds())
	})
	bus.Subscribe(func(ev services.TurnFailedEvent) {
		turnsTotal.WithLabelValues(ev.Provider, ev.ModelID, string(ev.State)).Inc()
		turnFailures.WithLabelValues(ev.Provider, ev.Code).Inc()
	})
}
