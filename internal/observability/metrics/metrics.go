package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/dental-concierge/internal/rules"
)

const namespace = "dental"

// ConversationMetrics exposes counters/histograms for concierge sessions.
// It satisfies the booking outcome, conversation and session observers.
type ConversationMetrics struct {
	bookingsTotal      *prometheus.CounterVec
	extractionsTotal   *prometheus.CounterVec
	extractionLatency  *prometheus.HistogramVec
	repliesTotal       *prometheus.CounterVec
	activeSessions     prometheus.Gauge
	httpRequestLatency *prometheus.HistogramVec
}

func NewConversationMetrics(reg prometheus.Registerer) *ConversationMetrics {
	m := &ConversationMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bookings",
			Name:      "operations_total",
			Help:      "Booking create/update/cancel outcomes by reason",
		}, []string{"operation", "reason"}),
		extractionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "extractions_total",
			Help:      "Intent and entity extraction attempts by outcome",
		}, []string{"outcome"}),
		extractionLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "extraction_latency_seconds",
			Help:      "Latency of intent and entity extraction",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 15},
		}, []string{"outcome"}),
		repliesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "replies_total",
			Help:      "Assistant replies by intent, slug and content source",
		}, []string{"intent", "slug", "source"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "active_sessions",
			Help:      "Open chat sessions",
		}),
		httpRequestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency of HTTP requests by route and status",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.bookingsTotal,
		m.extractionsTotal,
		m.extractionLatency,
		m.repliesTotal,
		m.activeSessions,
		m.httpRequestLatency,
	)
	return m
}

// ObserveBooking records one booking service outcome. Success is labelled "OK".
func (m *ConversationMetrics) ObserveBooking(operation string, reason rules.Reason) {
	if m == nil {
		return
	}
	label := string(reason)
	if reason.OK() {
		label = "OK"
	}
	m.bookingsTotal.WithLabelValues(operation, label).Inc()
}

func (m *ConversationMetrics) ObserveExtraction(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.extractionsTotal.WithLabelValues(outcome).Inc()
	m.extractionLatency.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func (m *ConversationMetrics) ObserveReply(intent, slug, source string) {
	if m == nil {
		return
	}
	m.repliesTotal.WithLabelValues(intent, slug, source).Inc()
}

func (m *ConversationMetrics) ObserveSessions(active int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(active))
}

func (m *ConversationMetrics) ObserveHTTPRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestLatency.WithLabelValues(method, route, statusClass(status)).Observe(elapsed.Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
