package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewBookingMetricsRegisters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)

	m.ObserveBookingCreated("pending")
	m.ObserveWebhook("checkout.session.completed", "confirmed")
	m.ObserveWebhookLatency("checkout.session.completed", 0.05)
	m.ObserveAvailability("fallback")
	m.ObserveCalendarSync("created")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) != 5 {
		t.Fatalf("expected 5 metric families, got %d", len(families))
	}
}

func TestNilReceiverIsSafe(t *testing.T) {
	var m *BookingMetrics
	m.ObserveBookingCreated("pending")
	m.ObserveWebhook("x", "y")
	m.ObserveWebhookLatency("x", 1)
	m.ObserveAvailability("provider")
	m.ObserveCalendarSync("failed")
}
