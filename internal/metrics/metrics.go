package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pharma_orders"

var (
	ordersSubmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "submissions_total",
		Help: "Order submissions by outcome.",
	}, []string{"result"})

	submitDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Name: "submission_duration_seconds",
		Help:    "Time spent validating, deducting and persisting an order.",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})

	ledgerPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "ledger", Name: "publish_total",
		Help: "Ledger publish attempts by outcome (ok, error, dropped, duplicate).",
	}, []string{"result"})

	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "http", Name: "requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

func init() {
	prometheus.MustRegister(ordersSubmitted, submitDuration, ledgerPublished, httpRequests, httpDuration)
}

func ObserveSubmission(result string, d time.Duration) {
	ordersSubmitted.WithLabelValues(result).Inc()
	submitDuration.WithLabelValues(result).Observe(d.Seconds())
}

func LedgerPublish(result string) { ledgerPublished.WithLabelValues(result).Inc() }

func ObserveHTTP(method, route, status string, d time.Duration) {
	httpRequests.WithLabelValues(method, route, status).Inc()
	httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func Handler() http.Handler { return promhttp.Handler() }
