package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jw6ventures/habitplanner/internal/habits"
)

type Config struct {
	Env        string
	ListenAddr string
	LogFile    string

	DB struct {
		DSN      string
		MaxConns int
	}

	Auth struct {
		JWTSecret     string
		OIDCIssuerURL string
		OIDCClientID  string
	}

	Tracker struct {
		Location   *time.Location
		Policy     habits.Policy
		MaxRetries int
	}

	RateLimit struct {
		PerSecond float64
		Burst     int
	}

	PrometheusEnabled  bool
	TrustedProxies     []string
	CORSAllowedOrigins []string
	ShutdownTimeout    time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Env = getenvDefault("APP_ENV", "development")
	cfg.ListenAddr = getenvDefault("APP_LISTEN_ADDR", ":8080")
	cfg.LogFile = os.Getenv("APP_LOG_FILE")
	cfg.DB.DSN = os.Getenv("APP_DB_DSN")

	if cfg.DB.DSN == "" {
		host := os.Getenv("APP_DB_HOST")
		name := os.Getenv("APP_DB_NAME")
		user := os.Getenv("APP_DB_USER")
		password := os.Getenv("APP_DB_PASSWORD")
		port := getenvDefault("APP_DB_PORT", "5432")
		sslmode := getenvDefault("APP_DB_SSLMODE", "disable")

		if host != "" && name != "" && user != "" && password != "" {
			cfg.DB.DSN = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, password, host, port, name, sslmode)
		}
	}

	var err error
	if cfg.DB.MaxConns, err = getenvInt("APP_DB_MAX_CONNS", 10); err != nil {
		return nil, err
	}

	cfg.Auth.JWTSecret = os.Getenv("APP_JWT_SECRET")
	cfg.Auth.OIDCIssuerURL = os.Getenv("APP_OIDC_ISSUER_URL")
	cfg.Auth.OIDCClientID = os.Getenv("APP_OIDC_CLIENT_ID")

	tz := getenvDefault("APP_TIMEZONE", "UTC")
	if cfg.Tracker.Location, err = time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("APP_TIMEZONE %q: %w", tz, err)
	}
	if cfg.Tracker.Policy, err = habits.ParsePolicy(os.Getenv("APP_STREAK_POLICY")); err != nil {
		return nil, fmt.Errorf("APP_STREAK_POLICY: %w", err)
	}
	if cfg.Tracker.MaxRetries, err = getenvInt("APP_CONFLICT_RETRIES", 3); err != nil {
		return nil, err
	}

	rps, err := strconv.ParseFloat(getenvDefault("APP_RATE_LIMIT_RPS", "10"), 64)
	if err != nil || rps <= 0 {
		return nil, errors.New("APP_RATE_LIMIT_RPS must be a positive number")
	}
	cfg.RateLimit.PerSecond = rps
	if cfg.RateLimit.Burst, err = getenvInt("APP_RATE_LIMIT_BURST", 20); err != nil {
		return nil, err
	}

	cfg.PrometheusEnabled = getenvBool("APP_PROMETHEUS_ENDPOINT_ENABLED", false)
	cfg.TrustedProxies = getenvList("APP_TRUSTED_PROXIES")
	cfg.CORSAllowedOrigins = getenvList("APP_CORS_ALLOWED_ORIGINS")

	if cfg.ShutdownTimeout, err = time.ParseDuration(getenvDefault("APP_SHUTDOWN_TIMEOUT", "15s")); err != nil {
		return nil, fmt.Errorf("APP_SHUTDOWN_TIMEOUT: %w", err)
	}

	if cfg.DB.DSN == "" {
		return nil, errors.New("APP_DB_DSN is required (or set APP_DB_HOST, APP_DB_NAME, APP_DB_USER, and APP_DB_PASSWORD)")
	}
	if cfg.Auth.JWTSecret == "" && cfg.Auth.OIDCIssuerURL == "" {
		return nil, errors.New("APP_JWT_SECRET or APP_OIDC_ISSUER_URL is required")
	}
	if cfg.Auth.JWTSecret != "" && len(cfg.Auth.JWTSecret) < 32 {
		return nil, fmt.Errorf("APP_JWT_SECRET must be at least 32 characters long (got %d)", len(cfg.Auth.JWTSecret))
	}
	if cfg.Auth.OIDCIssuerURL != "" && cfg.Auth.OIDCClientID == "" {
		return nil, errors.New("APP_OIDC_CLIENT_ID is required when APP_OIDC_ISSUER_URL is set")
	}

	return cfg, nil
}

// Production reports whether the process runs with production defaults.
func (c *Config) Production() bool {
	return c.Env == "production"
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return n, nil
}

func getenvList(key string) []string {
	if v := os.Getenv(key); v != "" {
		var result []string
		for _, item := range strings.Split(v, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return nil
}
