package minfraud

import "github.com/prometheus/client_golang/prometheus"

var requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "fraudshield",
	Subsystem: "minfraud",
	Name:      "request_duration_seconds",
	Help:      "minFraud API request latency by outcome.",
	Buckets:   prometheus.DefBuckets,
}, []string{"outcome"})

func init() {
	prometheus.MustRegister(requestDuration)
}
