/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// TimeSourceMode selects how the migration clock reads "now".
type TimeSourceMode string

const (
	// TimeSourceWall reads the wall clock at decision time.
	TimeSourceWall TimeSourceMode = "wall"
	// TimeSourceRequest reads the request's receive timestamp, so
	// replayed traffic routes the same way it did originally.
	TimeSourceRequest TimeSourceMode = "request"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	HTTPBind    string
	HTTPPort    int

	// RoutesPath points at the route tree config file.
	RoutesPath  string
	WatchRoutes bool
	TimeSource  TimeSourceMode

	// Backend connection defaults applied to every server.
	BackendDialTimeout  time.Duration
	BackendReadTimeout  time.Duration
	BackendWriteTimeout time.Duration
	BackendPoolSize     int

	ShutdownTimeout time.Duration

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("RATATOSK_ENV", "development"),
		HTTPBind:    getEnv("RATATOSK_HTTP_BIND", "0.0.0.0"),
		HTTPPort:    getEnvInt("RATATOSK_HTTP_PORT", 8080),

		RoutesPath:  getEnv("RATATOSK_ROUTES_PATH", ""),
		WatchRoutes: getEnvBool("RATATOSK_WATCH_ROUTES", true),
		TimeSource:  TimeSourceMode(getEnv("RATATOSK_TIME_SOURCE", string(TimeSourceWall))),

		BackendDialTimeout:  time.Duration(getEnvInt("RATATOSK_BACKEND_DIAL_TIMEOUT_MS", 5000)) * time.Millisecond,
		BackendReadTimeout:  time.Duration(getEnvInt("RATATOSK_BACKEND_READ_TIMEOUT_MS", 2000)) * time.Millisecond,
		BackendWriteTimeout: time.Duration(getEnvInt("RATATOSK_BACKEND_WRITE_TIMEOUT_MS", 2000)) * time.Millisecond,
		BackendPoolSize:     getEnvInt("RATATOSK_BACKEND_POOL_SIZE", 10),

		ShutdownTimeout: time.Duration(getEnvInt("RATATOSK_SHUTDOWN_TIMEOUT_SECONDS", 10)) * time.Second,

		TracingEnabled:    getEnvBool("RATATOSK_TRACING_ENABLED", false),
		OTLPEndpoint:      getEnv("RATATOSK_OTLP_ENDPOINT", "localhost:4317"),
		TracingSampleRate: getEnvFloat("RATATOSK_TRACING_SAMPLE_RATE", 1.0),
	}

	if cfg.RoutesPath == "" {
		return nil, fmt.Errorf("RATATOSK_ROUTES_PATH must be provided")
	}

	if cfg.TimeSource != TimeSourceWall && cfg.TimeSource != TimeSourceRequest {
		return nil, fmt.Errorf("unsupported time source %q (want %q or %q)",
			cfg.TimeSource, TimeSourceWall, TimeSourceRequest)
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "true" || v == "1" || v == "yes" {
			return true
		}
		if v == "false" || v == "0" || v == "no" {
			return false
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return def
}
