// Package metrics exposes Prometheus collectors for the HTTP surface and
// the donation pipeline on a dedicated registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	reg *prometheus.Registry

	httpInFlight        prometheus.Gauge
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	donationsSubmitted  prometheus.Counter
	photosStored        prometheus.Counter
	submissionsRejected *prometheus.CounterVec
	orphansRemoved      prometheus.Counter
	logins              *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		donationsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "texbridge_donations_submitted_total",
			Help: "Donations committed.",
		}),
		photosStored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "texbridge_photos_stored_total",
			Help: "Photos stored with committed donations.",
		}),
		submissionsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "texbridge_submissions_rejected_total",
			Help: "Donation submissions rejected, by reason.",
		}, []string{"reason"}),
		orphansRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "texbridge_orphaned_attachments_removed_total",
			Help: "Stored attachments removed by the orphan sweeper.",
		}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "texbridge_logins_total",
			Help: "Login attempts by method and outcome.",
		}, []string{"method", "outcome"}),
	}

	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpInFlight, m.httpRequestsTotal, m.httpRequestDuration,
		m.donationsSubmitted, m.photosStored, m.submissionsRejected, m.orphansRemoved, m.logins,
	)
	return m
}

// Registry returns the registry all collectors are registered with.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Instrument records in-flight count, totals and latency. The route label
// is the chi route pattern so ids do not explode cardinality.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := strconv.Itoa(sw.code)
		m.httpRequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
		m.httpRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
	})
}

func (m *Metrics) DonationSubmitted(photos int) {
	m.donationsSubmitted.Inc()
	m.photosStored.Add(float64(photos))
}

func (m *Metrics) SubmissionRejected(reason string) {
	m.submissionsRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) OrphansRemoved(n int) {
	m.orphansRemoved.Add(float64(n))
}

// LoginAttempt counts a login by method ("password" or "provider") and
// outcome such as "success", "rejected" or "error".
func (m *Metrics) LoginAttempt(method, outcome string) {
	m.logins.WithLabelValues(method, outcome).Inc()
}

type statusWriter struct {
	http.ResponseWriter
	code        int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.code = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
