package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		reconcilePollsTotal,
		reconcileOutcomesTotal,
		reconcileRetained,
	)
}

var (
	// result: reported|no_information|transport_error
	reconcilePollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_polls_total",
			Help: "Status polls issued by the reconciler, by result.",
		},
		[]string{"result"},
	)

	// outcome: completed|failed|timed_out|cancelled
	reconcileOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_outcomes_total",
			Help: "How each watched intent left the polling loop.",
		},
		[]string{"outcome"},
	)

	reconcileRetained = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reconcile_intents_swept_total",
			Help: "Terminal intents removed by the retention sweeper.",
		},
	)
)

func IncReconcilePoll(result string) {
	reconcilePollsTotal.WithLabelValues(norm(result)).Inc()
}

func IncReconcileOutcome(outcome string) {
	reconcileOutcomesTotal.WithLabelValues(norm(outcome)).Inc()
}

func AddIntentsSwept(n int) {
	reconcileRetained.Add(float64(n))
}
