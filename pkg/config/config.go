// Package config loads daemon configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds everything the daemon needs to run.
type Config struct {
	// ListenAddr is the bind address of the remediation API.
	ListenAddr string

	// APIToken is the shared secret callers present as a bearer token.
	APIToken string

	// Kubeconfig is an optional kubeconfig path; empty means in-cluster
	// credentials.
	Kubeconfig string

	// MaxAttempts bounds the read-decide-patch rounds per remediation.
	MaxAttempts int

	// RequestTimeout bounds every Kubernetes API call.
	RequestTimeout time.Duration

	// LogLevel is the log level name (debug, info, warn, error).
	LogLevel string
}

// Load reads configuration from SELFHEAL_* environment variables.
func Load() (Config, error) {
	cfg := Config{
		ListenAddr: getEnvOrDefault("SELFHEAL_LISTEN_ADDR", ":8080"),
		APIToken:   os.Getenv("SELFHEAL_API_TOKEN"),
		Kubeconfig: os.Getenv("SELFHEAL_KUBECONFIG"),
		LogLevel:   getEnvOrDefault("SELFHEAL_LOG_LEVEL", "info"),
	}

	attempts, err := strconv.Atoi(getEnvOrDefault("SELFHEAL_MAX_ATTEMPTS", "3"))
	if err != nil {
		return Config{}, fmt.Errorf("parsing SELFHEAL_MAX_ATTEMPTS: %w", err)
	}
	cfg.MaxAttempts = attempts

	timeout, err := time.ParseDuration(getEnvOrDefault("SELFHEAL_REQUEST_TIMEOUT", "30s"))
	if err != nil {
		return Config{}, fmt.Errorf("parsing SELFHEAL_REQUEST_TIMEOUT: %w", err)
	}
	cfg.RequestTimeout = timeout

	return cfg, nil
}

// Validate checks that the configuration is runnable.
func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen address is required")
	}
	if c.APIToken == "" {
		return fmt.Errorf("SELFHEAL_API_TOKEN environment variable is required")
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1, got %d", c.MaxAttempts)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
