package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ledgerRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	ledgerRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	ledgerAppendsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_appends_total",
		Help: "Total ledger append attempts by result.",
	}, []string{"result"})

	ledgerVerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_verifications_total",
		Help: "Total chain verifications by result.",
	}, []string{"result"})

	ledgerVerifyDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ledger_verify_duration_seconds",
		Help:    "Full chain scan duration in seconds.",
		Buckets: prometheus.DefBuckets,
	})

	ledgerStoreProbesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_store_probes_total",
		Help: "Total store connectivity probes by result.",
	}, []string{"result"})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		ledgerRequestsTotal.WithLabelValues(method, path, status).Inc()
		ledgerRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordAppend records a ledger append attempt.
func RecordAppend(success bool) {
	if success {
		ledgerAppendsTotal.WithLabelValues("success").Inc()
	} else {
		ledgerAppendsTotal.WithLabelValues("failure").Inc()
	}
}

// RecordVerify records a chain verification outcome and scan duration.
func RecordVerify(valid bool, elapsed time.Duration) {
	if valid {
		ledgerVerificationsTotal.WithLabelValues("valid").Inc()
	} else {
		ledgerVerificationsTotal.WithLabelValues("invalid").Inc()
	}
	ledgerVerifyDuration.Observe(elapsed.Seconds())
}

// RecordStoreProbe records a store connectivity probe result.
func RecordStoreProbe(success bool) {
	if success {
		ledgerStoreProbesTotal.WithLabelValues("success").Inc()
	} else {
		ledgerStoreProbesTotal.WithLabelValues("failure").Inc()
	}
}
