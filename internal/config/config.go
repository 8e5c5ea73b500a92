package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// Geocoding provider
	GeocodeAPIURL  string
	GeocodeAPIKey  string
	GeocodeTimeout time.Duration

	// Marker pipeline
	BatchSize      int
	GeocodingDelay time.Duration
	MaxConcurrency int
	MarkerCacheTTL time.Duration

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration

	// Reporting
	ReportCurrentYear int // 0 = derive from the wall clock

	// Observability
	OTLPEndpoint string

	// Supabase
	SupabaseURL        string
	SupabaseAnonKey    string
	SupabaseServiceKey string
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		GeocodeAPIURL:  getEnv("GEOCODE_API_URL", "https://maps.googleapis.com/maps/api/geocode/json"),
		GeocodeAPIKey:  getEnv("GEOCODE_API_KEY", ""),
		GeocodeTimeout: getEnvDuration("GEOCODE_TIMEOUT", 5*time.Second),

		BatchSize:      getEnvInt("PIPELINE_BATCH_SIZE", 50),
		GeocodingDelay: getEnvDuration("GEOCODING_DELAY", 500*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 4),
		MarkerCacheTTL: getEnvDuration("MARKER_CACHE_TTL", 24*time.Hour),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),

		ReportCurrentYear: getEnvInt("REPORT_CURRENT_YEAR", 0),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		SupabaseURL:        getEnv("SUPABASE_URL", ""),
		SupabaseAnonKey:    getEnv("SUPABASE_ANON_KEY", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),
	}
}

// CurrentYear resolves the report's current year, falling back to the
// wall clock when no override is set.
func (c *Config) CurrentYear(now time.Time) int {
	if c.ReportCurrentYear > 0 {
		return c.ReportCurrentYear
	}
	return now.Year()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
