// Package config loads the engine's configuration from the environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Backend selection: memory or sqlite
	DataBackend string

	// Database
	SQLiteDBPath string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// AI categorization
	AIProvider          string
	GeminiModel         string
	AITimeout           time.Duration
	CategorizeBatchSize int

	// Snapshot worker
	SnapshotHour        int
	SnapshotConcurrency int

	// Summary cache
	CacheSize int
	CacheTTL  time.Duration
}

func Load() *Config {
	return &Config{
		DataBackend:  getEnv("DATA_BACKEND", "memory"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/cashstate.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "cashstate"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "jobs"),

		AIProvider:          getEnv("AI_PROVIDER", "none"),
		GeminiModel:         getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		AITimeout:           getEnvDuration("AI_TIMEOUT", 60*time.Second),
		CategorizeBatchSize: getEnvInt("CATEGORIZE_BATCH_SIZE", 200),

		SnapshotHour:        getEnvInt("SNAPSHOT_HOUR", 6),
		SnapshotConcurrency: getEnvInt("SNAPSHOT_CONCURRENCY", 4),

		CacheSize: getEnvInt("CACHE_SIZE", 128),
		CacheTTL:  getEnvDuration("CACHE_TTL", 5*time.Minute),
	}
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errors []string

	switch c.DataBackend {
	case "memory", "sqlite":
	default:
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be memory or sqlite", c.DataBackend))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	switch c.AIProvider {
	case "none", "gemini":
	default:
		errors = append(errors, fmt.Sprintf("invalid AI provider '%s': must be none or gemini", c.AIProvider))
	}
	if c.AIProvider == "gemini" && c.GeminiModel == "" {
		errors = append(errors, "Gemini model name cannot be empty when AI provider is gemini")
	}
	if c.AITimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid AI timeout %v: must be at least 1 second", c.AITimeout))
	}

	if c.CategorizeBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid categorize batch size %d: must be at least 1", c.CategorizeBatchSize))
	} else if c.CategorizeBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid categorize batch size %d: must be at most 1000", c.CategorizeBatchSize))
	}

	if c.SnapshotHour < 0 || c.SnapshotHour > 23 {
		errors = append(errors, fmt.Sprintf("invalid snapshot hour %d: must be between 0 and 23", c.SnapshotHour))
	}
	if c.SnapshotConcurrency < 1 {
		errors = append(errors, fmt.Sprintf("invalid snapshot concurrency %d: must be at least 1", c.SnapshotConcurrency))
	}

	if c.CacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must be at least 1", c.CacheSize))
	}
	if c.CacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be at least 1 second", c.CacheTTL))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
