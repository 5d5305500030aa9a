package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Simulation metrics
	simTicksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sim_ticks_total",
			Help: "Total number of simulation ticks processed",
		},
	)

	simTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sim_transitions_total",
			Help: "Total number of committed patient transitions",
		},
		[]string{"event"},
	)

	simArrivalsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sim_arrivals_total",
			Help: "Total number of patients injected into the simulation",
		},
	)

	simPatientsByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sim_patients",
			Help: "Number of patients currently in each status",
		},
		[]string{"status"},
	)

	simBedsOccupied = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sim_beds_occupied",
			Help: "Number of ER beds currently occupied",
		},
	)

	logEntriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventlog_entries_total",
			Help: "Total number of event log entries appended",
		},
	)

	adjudicationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adjudications_total",
			Help: "Total number of rejection adjudications",
		},
		[]string{"outcome"},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware creates HTTP metrics middleware
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// normalizePath normalizes URL paths for metrics to avoid cardinality explosion
func normalizePath(path string) string {
	if len(path) > 100 {
		return "/api/..."
	}
	return path
}

// --- Simulation metric helpers ---

// RecordTick records a processed simulation tick
func RecordTick() {
	simTicksTotal.Inc()
}

// RecordTransition records a committed patient transition
func RecordTransition(event string) {
	simTransitionsTotal.WithLabelValues(event).Inc()
}

// RecordArrival records a patient injection
func RecordArrival() {
	simArrivalsTotal.Inc()
}

// RecordPatientCounts records the current per-status patient counts
func RecordPatientCounts(counts map[string]int, bedsOccupied int) {
	for status, n := range counts {
		simPatientsByStatus.WithLabelValues(status).Set(float64(n))
	}
	simBedsOccupied.Set(float64(bedsOccupied))
}

// RecordLogEntry records an event log append
func RecordLogEntry() {
	logEntriesTotal.Inc()
}

// RecordAdjudication records a rejection adjudication outcome
func RecordAdjudication(outcome string) {
	adjudicationsTotal.WithLabelValues(outcome).Inc()
}
