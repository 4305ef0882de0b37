// Package config loads and validates the orchestrator configuration
// from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// StoreBackend selects the session store implementation.
type StoreBackend string

const (
	StoreMemory StoreBackend = "memory"
	StoreRedis  StoreBackend = "redis"
)

// Config is the umbrella configuration object for the whole process.
type Config struct {
	HTTPPort string

	// External service endpoints
	LLMGatewayURL        string
	WebSearchURL         string
	ExternalDataURL      string
	InternalKnowledgeURL string

	// LLM defaults
	LLMModelID     string
	LLMTemperature float64
	LLMTimeout     time.Duration

	// Session store
	StoreBackend StoreBackend
	RedisURL     string
	SessionTTL   time.Duration

	// Concurrency limits
	MaxConcurrentSessions int
	PerSessionFanoutLimit int
}

// Load builds a Config from the environment, applying defaults for
// anything unset. Call Validate before using the result.
func Load() *Config {
	return &Config{
		HTTPPort:             getEnv("HTTP_PORT", "8080"),
		LLMGatewayURL:        getEnv("LLM_GATEWAY_URL", "http://localhost:9101"),
		WebSearchURL:         getEnv("WEB_SEARCH_URL", "http://localhost:9102"),
		ExternalDataURL:      getEnv("EXTERNAL_DATA_URL", "http://localhost:9103"),
		InternalKnowledgeURL: getEnv("INTERNAL_KNOWLEDGE_URL", "http://localhost:9104"),

		LLMModelID:     getEnv("LLM_MODEL_ID", "gemini-2.0-flash"),
		LLMTemperature: getEnvFloat("LLM_TEMPERATURE", 0.3),
		LLMTimeout:     time.Duration(getEnvInt("LLM_TIMEOUT_SECONDS", 60)) * time.Second,

		StoreBackend: StoreBackend(getEnv("SESSION_STORE_BACKEND", string(StoreMemory))),
		RedisURL:     os.Getenv("REDIS_URL"),
		SessionTTL:   time.Duration(getEnvInt("SESSION_TTL_SECONDS", 3600)) * time.Second,

		MaxConcurrentSessions: getEnvInt("MAX_CONCURRENT_SESSIONS", 32),
		PerSessionFanoutLimit: getEnvInt("PER_SESSION_FANOUT_LIMIT", 16),
	}
}

// Validate checks cross-field constraints. It returns the first problem
// found so startup fails loudly on broken configuration.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreMemory:
	case StoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("SESSION_STORE_BACKEND=redis requires REDIS_URL")
		}
	default:
		return fmt.Errorf("unknown SESSION_STORE_BACKEND %q (must be memory or redis)", c.StoreBackend)
	}

	if c.MaxConcurrentSessions <= 0 {
		return fmt.Errorf("MAX_CONCURRENT_SESSIONS must be positive, got %d", c.MaxConcurrentSessions)
	}
	if c.PerSessionFanoutLimit <= 0 {
		return fmt.Errorf("PER_SESSION_FANOUT_LIMIT must be positive, got %d", c.PerSessionFanoutLimit)
	}
	if c.LLMTimeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT_SECONDS must be positive")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL_SECONDS must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
