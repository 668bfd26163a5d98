package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		intentsTotal,
		intentTransitionsTotal,
		unlockFiredTotal,
	)
}

var (
	intentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_intents_total",
			Help: "Intents entering each status (pending/processing/completed/failed/timed_out).",
		},
		[]string{"status"},
	)

	intentTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_intent_transitions_total",
			Help: "Applied state-machine transitions by edge.",
		},
		[]string{"from", "to"},
	)

	unlockFiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "payment_unlock_fired_total",
			Help: "One-shot unlock signals fired (at most one per completed intent).",
		},
	)
)

func IncIntent(status string) {
	intentsTotal.WithLabelValues(norm(status)).Inc()
}

func IncIntentTransition(from, to string) {
	intentTransitionsTotal.WithLabelValues(norm(from), norm(to)).Inc()
}

func IncUnlockFired() {
	unlockFiredTotal.Inc()
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
