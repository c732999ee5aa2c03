package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.Currency != "gbp" {
		t.Errorf("expected default currency gbp, got %s", cfg.Currency)
	}
	if cfg.CheckoutExpiry != 30*time.Minute {
		t.Errorf("expected 30m checkout expiry, got %s", cfg.CheckoutExpiry)
	}
	if cfg.AvailabilityWindowDays != 14 {
		t.Errorf("expected 14 day window, got %d", cfg.AvailabilityWindowDays)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("CURRENCY", "USD")
	t.Setenv("CHECKOUT_EXPIRY", "15m")
	t.Setenv("PAYMENT_DRY_RUN", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")

	cfg := Load()

	if cfg.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Port)
	}
	if cfg.Currency != "usd" {
		t.Errorf("expected currency lowered to usd, got %s", cfg.Currency)
	}
	if cfg.CheckoutExpiry != 15*time.Minute {
		t.Errorf("expected 15m expiry, got %s", cfg.CheckoutExpiry)
	}
	if !cfg.PaymentDryRun {
		t.Error("expected dry run enabled")
	}
	if len(cfg.CORSAllowedOrigins) != 2 {
		t.Fatalf("expected 2 origins, got %v", cfg.CORSAllowedOrigins)
	}
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("AVAILABILITY_WINDOW_DAYS", "fortnight")
	t.Setenv("CHECKOUT_EXPIRY", "soon")

	cfg := Load()

	if cfg.AvailabilityWindowDays != 14 {
		t.Errorf("expected fallback window, got %d", cfg.AvailabilityWindowDays)
	}
	if cfg.CheckoutExpiry != 30*time.Minute {
		t.Errorf("expected fallback expiry, got %s", cfg.CheckoutExpiry)
	}
}
