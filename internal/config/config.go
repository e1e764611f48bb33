// Package config loads the process configuration from the environment per
// SPEC_FULL.md §6.3. `.env.local` is loaded first, then `.env`; real
// environment variables always win over either file, matching the
// teacher's .env.local-before-.env precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config is the fully resolved process configuration.
type Config struct {
	DatabaseURL     string
	Host            string
	Port            string
	AllowedOrigins  []string
	LogLevel        string
	EnableMetrics   bool
	MetricsPort     string
	ProviderAPIKeys map[string]string // provider tag (lowercase) -> API key
	DefaultProvider string            // provider tag builtins fall back to when a mapping names none
	DefaultModel    string            // model id builtins fall back to when a mapping names none
}

// Load reads .env.local then .env (without overriding already-set process
// environment variables) and resolves Config from the result.
func Load() (*Config, error) {
	loadDotEnvFiles()

	cfg := &Config{
		DatabaseURL:     getEnv("DATABASE_URL", "./url_configurations.db"),
		Host:            getEnv("HOST", "0.0.0.0"),
		Port:            getEnv("PORT", "4000"),
		AllowedOrigins:  splitCSV(getEnv("ALLOWED_ORIGINS", "*")),
		LogLevel:        getEnv("LOG_LEVEL", "INFO"),
		MetricsPort:     getEnv("METRICS_PORT", "8001"),
		ProviderAPIKeys: make(map[string]string),
		DefaultProvider: getEnv("DEFAULT_LLM_PROVIDER", "openai"),
		DefaultModel:    getEnv("DEFAULT_LLM_MODEL", "gpt-4o-mini"),
	}

	enableMetrics, err := strconv.ParseBool(getEnv("ENABLE_METRICS", "true"))
	if err != nil {
		return nil, fmt.Errorf("config: invalid ENABLE_METRICS: %w", err)
	}
	cfg.EnableMetrics = enableMetrics

	for _, provider := range []string{"openai", "openrouter"} {
		key := strings.ToUpper(provider) + "_API_KEY"
		if v := os.Getenv(key); v != "" {
			cfg.ProviderAPIKeys[provider] = v
		}
	}

	return cfg, nil
}

// loadDotEnvFiles mirrors the teacher's .env.local-then-.env precedence:
// godotenv.Load never overrides a variable already present in the process
// environment, so loading .env.local first lets it win over .env.
func loadDotEnvFiles() {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Addr returns the HTTP bind address in host:port form.
func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}
