package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "outreach",
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "handler", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "outreach",
			Subsystem: "api",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "handler"},
	)

	pipelineOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "outreach",
			Subsystem: "pipeline",
			Name:      "outcomes_total",
			Help:      "Per-lead pipeline outcomes by channel and status",
		},
		[]string{"channel", "status"},
	)

	campaignCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "outreach",
			Subsystem: "campaign",
			Name:      "cycles_total",
			Help:      "Completed campaign cycles",
		},
		[]string{"channel"},
	)

	campaignCycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "outreach",
			Subsystem: "campaign",
			Name:      "cycle_duration_seconds",
			Help:      "Campaign cycle duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 16), // 100ms to ~1.8h
		},
		[]string{"channel"},
	)

	optOutsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "outreach",
			Subsystem: "compliance",
			Name:      "opt_outs_total",
			Help:      "Opt-out registrations by contact type and method",
		},
		[]string{"contact_type", "method"},
	)
)

// MetricsHandler returns the Prometheus scrape handler.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RecordPipelineOutcome counts one per-lead pipeline result.
func RecordPipelineOutcome(channel, status string) {
	pipelineOutcomes.WithLabelValues(channel, status).Inc()
}

// RecordCampaignCycle counts a finished cycle and observes its duration.
func RecordCampaignCycle(channel string, duration time.Duration) {
	campaignCycles.WithLabelValues(channel).Inc()
	campaignCycleDuration.WithLabelValues(channel).Observe(duration.Seconds())
}

// RecordOptOut counts an opt-out registration.
func RecordOptOut(contactType, method string) {
	optOutsRecorded.WithLabelValues(contactType, method).Inc()
}

// InstrumentHandler wraps an HTTP handler with request metrics.
func InstrumentHandler(handlerName string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		handler(wrapped, r)

		httpRequestsTotal.WithLabelValues(r.Method, handlerName, statusCodeClass(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, handlerName).Observe(time.Since(start).Seconds())
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap exposes the underlying writer so http.NewResponseController can
// reach the connection through this wrapper.
func (rw *statusRecorder) Unwrap() http.ResponseWriter { return rw.ResponseWriter }

func statusCodeClass(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
