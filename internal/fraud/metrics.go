package fraud

import "github.com/prometheus/client_golang/prometheus"

var (
	evaluationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fraudshield",
		Subsystem: "fraud",
		Name:      "evaluations_total",
		Help:      "Fraud evaluations by outcome status.",
	}, []string{"status"})

	riskScoreObserved = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fraudshield",
		Subsystem: "fraud",
		Name:      "risk_score",
		Help:      "Provider risk scores returned for evaluated orders.",
		Buckets:   []float64{1, 5, 10, 25, 50, 75, 90, 99},
	})
)

func init() {
	prometheus.MustRegister(evaluationsTotal, riskScoreObserved)
}
