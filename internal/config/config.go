package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration. It is loaded once in main and passed
// into constructors; nothing below this layer reads the environment directly.
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	PublicBaseURL string

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	Currency string

	// Payment provider (hosted checkout + webhooks).
	PaymentSecretKey     string
	PaymentWebhookSecret string
	PaymentBaseURL       string
	PaymentDryRun        bool
	CheckoutSuccessURL   string
	CheckoutCancelURL    string
	CheckoutExpiry       time.Duration

	// Scheduling provider (busy intervals + calendar events).
	SchedulingBaseURL      string
	SchedulingAPIKey       string
	SchedulingAccountID    string
	SchedulingEventTypeMap string // JSON: practitioner id -> provider event type id
	SchedulingTimezone     string
	AvailabilityWindowDays int
	AvailabilityCacheTTL   time.Duration

	AdminJWTSecret     string
	CORSAllowedOrigins []string

	RateLimitPerSecond float64
	RateLimitBurst     int

	CalendarSyncInterval  time.Duration
	CalendarSyncBatchSize int
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		Currency: strings.ToLower(getEnv("CURRENCY", "gbp")),

		PaymentSecretKey:     getEnv("PAYMENT_SECRET_KEY", ""),
		PaymentWebhookSecret: getEnv("PAYMENT_WEBHOOK_SECRET", ""),
		PaymentBaseURL:       getEnv("PAYMENT_BASE_URL", ""),
		PaymentDryRun:        getEnvAsBool("PAYMENT_DRY_RUN", false),
		CheckoutSuccessURL:   getEnv("CHECKOUT_SUCCESS_URL", ""),
		CheckoutCancelURL:    getEnv("CHECKOUT_CANCEL_URL", ""),
		CheckoutExpiry:       getEnvAsDuration("CHECKOUT_EXPIRY", 30*time.Minute),

		SchedulingBaseURL:      getEnv("SCHEDULING_BASE_URL", ""),
		SchedulingAPIKey:       getEnv("SCHEDULING_API_KEY", ""),
		SchedulingAccountID:    getEnv("SCHEDULING_ACCOUNT_ID", ""),
		SchedulingEventTypeMap: getEnv("SCHEDULING_EVENT_TYPE_MAP_JSON", ""),
		SchedulingTimezone:     getEnv("SCHEDULING_TZ", "UTC"),
		AvailabilityWindowDays: getEnvAsInt("AVAILABILITY_WINDOW_DAYS", 14),
		AvailabilityCacheTTL:   getEnvAsDuration("AVAILABILITY_CACHE_TTL", time.Minute),

		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		CORSAllowedOrigins: splitCommaList(getEnv("CORS_ALLOWED_ORIGINS", "")),

		RateLimitPerSecond: getEnvAsFloat("RATE_LIMIT_PER_SECOND", 5),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 10),

		CalendarSyncInterval:  getEnvAsDuration("CALENDAR_SYNC_INTERVAL", 15*time.Second),
		CalendarSyncBatchSize: getEnvAsInt("CALENDAR_SYNC_BATCH_SIZE", 25),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func splitCommaList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
