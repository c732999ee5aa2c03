package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the booking lifecycle.
type BookingMetrics struct {
	bookingsTotal     *prometheus.CounterVec
	webhookTotal      *prometheus.CounterVec
	webhookLatency    *prometheus.HistogramVec
	availabilityTotal *prometheus.CounterVec
	calendarSyncTotal *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clearslot",
			Subsystem: "bookings",
			Name:      "created_total",
			Help:      "Total booking creation attempts",
		}, []string{"status"}),
		webhookTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clearslot",
			Subsystem: "payments",
			Name:      "webhook_events_total",
			Help:      "Total payment webhook deliveries",
		}, []string{"event_type", "status"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clearslot",
			Subsystem: "payments",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of payment webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type"}),
		availabilityTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clearslot",
			Subsystem: "scheduling",
			Name:      "availability_requests_total",
			Help:      "Availability lookups by slot source",
		}, []string{"source"}),
		calendarSyncTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clearslot",
			Subsystem: "scheduling",
			Name:      "calendar_sync_total",
			Help:      "Calendar event creation outcomes",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.webhookTotal, m.webhookLatency, m.availabilityTotal, m.calendarSyncTotal)
	return m
}

func (m *BookingMetrics) ObserveBookingCreated(status string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(status).Inc()
}

func (m *BookingMetrics) ObserveWebhook(eventType, status string) {
	if m == nil {
		return
	}
	m.webhookTotal.WithLabelValues(eventType, status).Inc()
}

func (m *BookingMetrics) ObserveWebhookLatency(eventType string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(eventType).Observe(seconds)
}

func (m *BookingMetrics) ObserveAvailability(source string) {
	if m == nil {
		return
	}
	m.availabilityTotal.WithLabelValues(source).Inc()
}

func (m *BookingMetrics) ObserveCalendarSync(status string) {
	if m == nil {
		return
	}
	m.calendarSyncTotal.WithLabelValues(status).Inc()
}
