// Package config loads Burrow's runtime configuration from the process
// environment, following the teacher's getEnv/parseDuration convention
// (extended-suffix durations like "168h"/"6d", explicit fallback defaults).
// LoadFiles (file.go) additionally overlays TOML config files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	AppEnv string

	HTTP struct {
		Addr              string
		ReadHeaderTimeout time.Duration
		ReadTimeout       time.Duration
		WriteTimeout      time.Duration
		IdleTimeout       time.Duration
		MaxHeaderBytes    int
	}

	Log struct {
		Level string
	}

	Engine struct {
		// Backend selects the storage engine: "memory" or a "sqlite://path"
		// DSN understood by internal/queue/sqlstore (an empty path after the
		// scheme means in-memory sqlite).
		Backend string
	}

	Attributes struct {
		DefaultTTL  int64
		DefaultHide int64
	}

	Reaper struct {
		Interval time.Duration
	}

	Sentry struct {
		DSN         string
		Environment string
		Release     string
	}

	Prometheus struct {
		Namespace string
	}

	RateLimit struct {
		RequestsPerSecond float64
		Burst             int
	}
}

func Load() (Config, error) {
	var cfg Config

	cfg.AppEnv = getEnv("APP_ENV", "development")

	httpReadHeaderTimeout, err := parseDuration(getEnv("HTTP_READ_HEADER_TIMEOUT", "5s"))
	if err != nil {
		return cfg, fmt.Errorf("invalid HTTP_READ_HEADER_TIMEOUT: %w", err)
	}
	httpReadTimeout, err := parseDuration(getEnv("HTTP_READ_TIMEOUT", "15s"))
	if err != nil {
		return cfg, fmt.Errorf("invalid HTTP_READ_TIMEOUT: %w", err)
	}
	httpWriteTimeout, err := parseDuration(getEnv("HTTP_WRITE_TIMEOUT", "30s"))
	if err != nil {
		return cfg, fmt.Errorf("invalid HTTP_WRITE_TIMEOUT: %w", err)
	}
	httpIdleTimeout, err := parseDuration(getEnv("HTTP_IDLE_TIMEOUT", "120s"))
	if err != nil {
		return cfg, fmt.Errorf("invalid HTTP_IDLE_TIMEOUT: %w", err)
	}
	maxHeaderBytes, err := parseInt(getEnv("HTTP_MAX_HEADER_BYTES", "1048576"))
	if err != nil {
		return cfg, fmt.Errorf("invalid HTTP_MAX_HEADER_BYTES: %w", err)
	}
	cfg.HTTP = struct {
		Addr              string
		ReadHeaderTimeout time.Duration
		ReadTimeout       time.Duration
		WriteTimeout      time.Duration
		IdleTimeout       time.Duration
		MaxHeaderBytes    int
	}{
		Addr:              getEnv("HTTP_ADDR", "0.0.0.0:8080"),
		ReadHeaderTimeout: httpReadHeaderTimeout,
		ReadTimeout:       httpReadTimeout,
		WriteTimeout:      httpWriteTimeout,
		IdleTimeout:       httpIdleTimeout,
		MaxHeaderBytes:    maxHeaderBytes,
	}

	cfg.Log.Level = getEnv("LOG_LEVEL", "INFO")

	cfg.Engine.Backend = getEnv("BURROW_BACKEND", "memory")

	defaultTTL, err := parseInt64(getEnv("BURROW_DEFAULT_TTL", "60"))
	if err != nil {
		return cfg, fmt.Errorf("invalid BURROW_DEFAULT_TTL: %w", err)
	}
	defaultHide, err := parseInt64(getEnv("BURROW_DEFAULT_HIDE", "0"))
	if err != nil {
		return cfg, fmt.Errorf("invalid BURROW_DEFAULT_HIDE: %w", err)
	}
	cfg.Attributes.DefaultTTL = defaultTTL
	cfg.Attributes.DefaultHide = defaultHide

	reaperInterval, err := parseDuration(getEnv("BURROW_REAPER_INTERVAL", "1s"))
	if err != nil {
		return cfg, fmt.Errorf("invalid BURROW_REAPER_INTERVAL: %w", err)
	}
	cfg.Reaper.Interval = reaperInterval

	cfg.Sentry = struct {
		DSN         string
		Environment string
		Release     string
	}{
		DSN:         getEnvOptional("SENTRY_DSN"),
		Environment: getEnv("SENTRY_ENVIRONMENT", cfg.AppEnv),
		Release:     getEnv("SENTRY_RELEASE", "dev"),
	}

	cfg.Prometheus.Namespace = getEnv("PROMETHEUS_NAMESPACE", "burrow")

	rps, err := parseFloat(getEnv("BURROW_RATE_LIMIT_RPS", "50"))
	if err != nil {
		return cfg, fmt.Errorf("invalid BURROW_RATE_LIMIT_RPS: %w", err)
	}
	burst, err := parseInt(getEnv("BURROW_RATE_LIMIT_BURST", "100"))
	if err != nil {
		return cfg, fmt.Errorf("invalid BURROW_RATE_LIMIT_BURST: %w", err)
	}
	cfg.RateLimit.RequestsPerSecond = rps
	cfg.RateLimit.Burst = burst

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && strings.TrimSpace(val) != "" {
		return val
	}
	return fallback
}

func getEnvOptional(key string) string {
	val, _ := os.LookupEnv(key)
	return val
}

func parseDuration(val string) (time.Duration, error) {
	trimmed := strings.TrimSpace(val)
	if trimmed == "" {
		return 0, nil
	}
	if strings.HasSuffix(trimmed, "d") {
		daysStr := strings.TrimSuffix(trimmed, "d")
		days, err := strconv.ParseFloat(daysStr, 64)
		if err != nil {
			return 0, err
		}
		return time.Duration(days * 24 * float64(time.Hour)), nil
	}
	if strings.HasSuffix(trimmed, "w") {
		weeksStr := strings.TrimSuffix(trimmed, "w")
		weeks, err := strconv.ParseFloat(weeksStr, 64)
		if err != nil {
			return 0, err
		}
		return time.Duration(weeks * 7 * 24 * float64(time.Hour)), nil
	}
	return time.ParseDuration(trimmed)
}

func parseInt(val string) (int, error) {
	i, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return 0, err
	}
	return i, nil
}

func parseInt64(val string) (int64, error) {
	i, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
	if err != nil {
		return 0, err
	}
	return i, nil
}

func parseFloat(val string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
	if err != nil {
		return 0, err
	}
	return f, nil
}
