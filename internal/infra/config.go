package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string

	// SessionSecret signs client session tokens.
	SessionSecret string

	// Object storage: signed download URLs are issued against StorageBaseURL
	// with StorageSignSecret and expire after SignedURLTTL.
	StorageBaseURL    string
	StorageSignSecret string
	SignedURLTTL      time.Duration

	GeoIPDBPath string

	CORSAllowedOrigins []string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int

	// Export pipeline tuning. Operational values, not structural invariants.
	ExportConcurrency  int
	ExportFetchTimeout time.Duration
	ExportFetchRetries int
	ExportMaxAssets    int
	ExportZipLevel     int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		Port:               getEnv("PORT", "8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		SessionSecret:      os.Getenv("SESSION_SECRET"),
		StorageBaseURL:     getEnv("STORAGE_BASE_URL", "http://localhost:9000/media"),
		StorageSignSecret:  os.Getenv("STORAGE_SIGN_SECRET"),
		SignedURLTTL:       time.Second * time.Duration(getEnvInt("SIGNED_URL_TTL_SECONDS", 300)),
		GeoIPDBPath:        os.Getenv("GEOIP_DB_PATH"),
		CORSAllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 600)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		ExportConcurrency:  getEnvInt("EXPORT_CONCURRENCY", 5),
		ExportFetchTimeout: time.Second * time.Duration(getEnvInt("EXPORT_FETCH_TIMEOUT_SECONDS", 30)),
		ExportFetchRetries: getEnvInt("EXPORT_FETCH_RETRIES", 2),
		ExportMaxAssets:    getEnvInt("EXPORT_MAX_ASSETS", 100),
		ExportZipLevel:     getEnvInt("EXPORT_ZIP_COMPRESSION", 6),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.SessionSecret == "" {
		return nil, fmt.Errorf("SESSION_SECRET is required")
	}

	if cfg.StorageSignSecret == "" {
		return nil, fmt.Errorf("STORAGE_SIGN_SECRET is required")
	}

	if cfg.ExportConcurrency <= 0 {
		cfg.ExportConcurrency = 5
	}

	if cfg.ExportZipLevel < -1 || cfg.ExportZipLevel > 9 {
		return nil, fmt.Errorf("EXPORT_ZIP_COMPRESSION must be a deflate level (-1..9)")
	}

	return cfg, nil
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
