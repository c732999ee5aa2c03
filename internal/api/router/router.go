package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/clearslot/clearslot/internal/bookings"
	httpmiddleware "github.com/clearslot/clearslot/internal/http/middleware"
	"github.com/clearslot/clearslot/internal/payments"
	"github.com/clearslot/clearslot/internal/practitioners"
	"github.com/clearslot/clearslot/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger               *logging.Logger
	PractitionersHandler *practitioners.Handler
	BookingsHandler      *bookings.Handler
	WebhookHandler       *payments.WebhookHandler
	MetricsHandler       http.Handler
	AdminAuthSecret      string
	CORSAllowedOrigins   []string
	RateLimitPerSecond   float64
	RateLimitBurst       int
}

// New creates the chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// Webhooks are authenticated by signature, never rate limited: the
	// provider retries on 429 and a burst of retries is normal.
	if cfg.WebhookHandler != nil {
		r.Post("/webhooks/payments", cfg.WebhookHandler.Handle)
	}

	r.Group(func(public chi.Router) {
		if cfg.RateLimitPerSecond > 0 {
			public.Use(httpmiddleware.RateLimit(cfg.RateLimitPerSecond, cfg.RateLimitBurst))
		}

		if cfg.PractitionersHandler != nil {
			public.Route("/practitioners", func(r chi.Router) {
				r.Get("/", cfg.PractitionersHandler.List)
				r.Get("/{id}", cfg.PractitionersHandler.Get)
				if cfg.BookingsHandler != nil {
					r.Get("/{id}/availability", cfg.BookingsHandler.Availability)
				}
			})
		}

		if cfg.BookingsHandler != nil {
			public.Route("/bookings", func(r chi.Router) {
				r.Post("/", cfg.BookingsHandler.Create)
				r.Get("/by-checkout-session/{sessionID}", cfg.BookingsHandler.GetByCheckoutSession)
				r.Get("/{id}", cfg.BookingsHandler.Get)
				r.Post("/{id}/cancel", cfg.BookingsHandler.Cancel)
			})
		}
	})

	if cfg.AdminAuthSecret != "" {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			if cfg.BookingsHandler != nil {
				admin.Post("/payments/{bookingID}/refund", cfg.BookingsHandler.Refund)
			}
			if cfg.PractitionersHandler != nil {
				admin.Put("/practitioners/{id}/rate", cfg.PractitionersHandler.UpdateRate)
			}
		})
	}

	return r
}
