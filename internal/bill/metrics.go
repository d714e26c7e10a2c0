package bill

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	uploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "splittab_receipt_uploads_total",
			Help: "Receipt uploads by analysis result.",
		},
		[]string{"result"},
	)

	billsSavedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "splittab_bills_saved_total",
			Help: "Bills finalized into history.",
		},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "splittab_http_request_duration_seconds",
			Help:    "HTTP request latency by method and status.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "status"},
	)
)

func init() {
	prometheus.MustRegister(uploadsTotal, billsSavedTotal, requestDuration)
}
