package statemachine

import "github.com/prometheus/client_golang/prometheus"

var transitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "fraudshield",
	Subsystem: "statemachine",
	Name:      "transitions_total",
	Help:      "Executed state transitions by action and outcome.",
}, []string{"action", "outcome"})

func init() {
	prometheus.MustRegister(transitionsTotal)
}

func recordTransition(action string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	transitionsTotal.WithLabelValues(action, outcome).Inc()
}
