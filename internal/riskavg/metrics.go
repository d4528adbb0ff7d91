package riskavg

import "github.com/prometheus/client_golang/prometheus"

var recomputationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "fraudshield",
	Subsystem: "riskavg",
	Name:      "recomputations_total",
	Help:      "Total overall risk score recomputations after cache expiry.",
})

func init() {
	prometheus.MustRegister(recomputationsTotal)
}
