package config // package config loads application configuration from environment variables

import (
	"log" // log is used to report configuration errors and halt execution
	"os"  // os provides access to environment variables
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable. The gateway keeps no database of its own: it
// talks to the backend API, the payment provider's approve/return flow, the
// session store and the message broker.
type Config struct {
	Env           string // application environment (e.g. "dev", "prod")
	Port          string // HTTP port to listen on
	APIBase       string // base URL of the backend church-management API
	JWTSecret     string // secret used to verify access tokens
	AuthBypass    bool   // E2E/test bypass short-circuiting identity checks
	BypassUserID  string // identity injected when the bypass is active
	MediaBase     string // base URL for the media library (receipt banners)
	DefaultLocale string // locale treated as identity by localize()
}

// Load reads configuration values from environment variables and returns a
// Config. Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:           must("APP_ENV"),
		Port:          must("APP_PORT"),
		APIBase:       must("API_BASE_URL"),
		JWTSecret:     must("JWT_SECRET"),
		AuthBypass:    os.Getenv("AUTH_BYPASS") == "true" || os.Getenv("AUTH_BYPASS") == "1",
		BypassUserID:  getenv("AUTH_BYPASS_USER", "e2e-user"),
		MediaBase:     getenv("MEDIA_BASE_URL", ""),
		DefaultLocale: getenv("DEFAULT_LOCALE", "en"),
	}
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
