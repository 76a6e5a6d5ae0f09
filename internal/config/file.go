package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// fileOverrides is the subset of Config a TOML config file can set. Only
// non-zero fields overlay the running Config; env vars are always applied
// after file overrides and win over both, matching the documented
// "merged in order, then overridden by environment" precedence.
type fileOverrides struct {
	AppEnv              string `toml:"app_env"`
	Backend             string `toml:"backend"`
	HTTPAddr            string `toml:"http_addr"`
	LogLevel            string `toml:"log_level"`
	DefaultTTL          *int64 `toml:"default_ttl"`
	DefaultHide         *int64 `toml:"default_hide"`
	ReaperInterval      string `toml:"reaper_interval"`
	PrometheusNamespace string `toml:"prometheus_namespace"`
}

// LoadFiles reads cfg's starting point from environment variables (via
// Load), then overlays each TOML file in paths in order, so a later file's
// settings win over an earlier one's; only the handful of fields intended
// for file-based/hot-reloadable configuration (see fileOverrides) can be
// set this way.
func LoadFiles(paths []string) (Config, error) {
	cfg, err := Load()
	if err != nil {
		return cfg, err
	}
	for _, path := range paths {
		if err := applyFile(&cfg, path); err != nil {
			return cfg, fmt.Errorf("config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	var f fileOverrides
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return err
	}
	if f.AppEnv != "" {
		cfg.AppEnv = f.AppEnv
	}
	if f.Backend != "" {
		cfg.Engine.Backend = f.Backend
	}
	if f.HTTPAddr != "" {
		cfg.HTTP.Addr = f.HTTPAddr
	}
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.DefaultTTL != nil {
		cfg.Attributes.DefaultTTL = *f.DefaultTTL
	}
	if f.DefaultHide != nil {
		cfg.Attributes.DefaultHide = *f.DefaultHide
	}
	if f.ReaperInterval != "" {
		d, err := parseDuration(f.ReaperInterval)
		if err != nil {
			return fmt.Errorf("invalid reaper_interval: %w", err)
		}
		cfg.Reaper.Interval = d
	}
	if f.PrometheusNamespace != "" {
		cfg.Prometheus.Namespace = f.PrometheusNamespace
	}
	return nil
}

// applyEnvOverrides re-applies the environment on top of file-sourced
// settings, but only for variables that are actually present: an unset
// variable must never clobber a value a config file just set.
func applyEnvOverrides(cfg *Config) {
	if v, ok := os.LookupEnv("APP_ENV"); ok {
		cfg.AppEnv = v
	}
	if v, ok := os.LookupEnv("BURROW_REAPER_INTERVAL"); ok {
		if d, err := parseDuration(v); err == nil {
			cfg.Reaper.Interval = d
		}
	}
	if v, ok := os.LookupEnv("PROMETHEUS_NAMESPACE"); ok {
		cfg.Prometheus.Namespace = v
	}
	if v, ok := os.LookupEnv("BURROW_DEFAULT_TTL"); ok {
		if n, err := parseInt64(v); err == nil {
			cfg.Attributes.DefaultTTL = n
		}
	}
	if v, ok := os.LookupEnv("BURROW_DEFAULT_HIDE"); ok {
		if n, err := parseInt64(v); err == nil {
			cfg.Attributes.DefaultHide = n
		}
	}
	if v, ok := os.LookupEnv("BURROW_BACKEND"); ok {
		cfg.Engine.Backend = v
	}
	if v, ok := os.LookupEnv("HTTP_ADDR"); ok {
		cfg.HTTP.Addr = v
	}
	if v, ok := os.LookupEnv("LOG_LEVEL"); ok {
		cfg.Log.Level = v
	}
}
