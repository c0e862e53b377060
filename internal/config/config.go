// Package config loads runtime configuration from environment variables.
package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime settings.  Each field maps to one environment
// variable; required ones are enforced by must() at startup so a
// misconfigured deployment fails immediately instead of at first use.
type Config struct {
	Env  string // "dev", "test" or "prod"
	Port string // HTTP port to listen on

	DBUser string
	DBPass string // empty allowed
	DBHost string
	DBPort string
	DBName string

	JWTSecret    string // signs admin access tokens
	AccessTTLMin int    // admin token time-to-live in minutes

	AdminEmail        string // the single back-office account
	AdminPasswordHash string // bcrypt hash, never the plain password

	GatewayBaseURL       string
	GatewayAPIKey        string
	GatewayHMACKey       string // signs outbound gateway requests
	GatewayWebhookSecret string // verifies inbound webhook signatures

	CheckoutSuccessURL string
	CheckoutCancelURL  string

	AvailabilityCacheTTL time.Duration
}

// Load reads the configuration from the environment.  Missing required
// variables abort the process with a fatal log message.
func Load() Config {
	return Config{
		Env:  must("APP_ENV"),
		Port: must("APP_PORT"),

		DBUser: must("DB_USER"),
		DBPass: os.Getenv("DB_PASS"),
		DBHost: must("DB_HOST"),
		DBPort: must("DB_PORT"),
		DBName: must("DB_NAME"),

		JWTSecret:    must("JWT_SECRET"),
		AccessTTLMin: mustInt("ACCESS_TOKEN_TTL_MIN"),

		AdminEmail:        must("ADMIN_EMAIL"),
		AdminPasswordHash: must("ADMIN_PASSWORD_HASH"),

		GatewayBaseURL:       must("GATEWAY_BASE_URL"),
		GatewayAPIKey:        must("GATEWAY_API_KEY"),
		GatewayHMACKey:       must("GATEWAY_HMAC_KEY"),
		GatewayWebhookSecret: must("GATEWAY_WEBHOOK_SECRET"),

		CheckoutSuccessURL: must("CHECKOUT_SUCCESS_URL"),
		CheckoutCancelURL:  must("CHECKOUT_CANCEL_URL"),

		AvailabilityCacheTTL: envDur("AVAILABILITY_CACHE_TTL", 5*time.Second),
	}
}

// must retrieves a required environment variable or exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is must() plus integer conversion.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
