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
	// HTTP Server
	Port string

	// Database
	SQLiteDBPath string

	// Identity binding for this device/installation
	UserID    string
	UserEmail string

	// AMQP (optional; empty URL disables queued pushes)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Remote store
	RemoteBackend      string // "firestore" or "memory"
	FirestoreProjectID string

	// Sync cadence
	SyncInterval       time.Duration
	WeeklySyncInterval time.Duration

	// Cache
	SummaryCacheSize int
}

func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "8082"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/gharelu.db"),

		UserID:    getEnv("GHARELU_USER_ID", ""),
		UserEmail: getEnv("GHARELU_USER_EMAIL", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "gharelu"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "sync_entries"),

		RemoteBackend:      getEnv("REMOTE_BACKEND", "memory"),
		FirestoreProjectID: getEnv("FIRESTORE_PROJECT_ID", ""),

		SyncInterval:       getEnvDuration("SYNC_INTERVAL", 12*time.Hour),
		WeeklySyncInterval: getEnvDuration("WEEKLY_SYNC_INTERVAL", 7*24*time.Hour),

		SummaryCacheSize: getEnvInt("SUMMARY_CACHE_SIZE", 64),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate SQLite path: the parent directory must exist or be creatable
	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	// Validate remote backend selection
	validBackends := []string{"memory", "firestore"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.RemoteBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid remote backend '%s': must be one of %v", c.RemoteBackend, validBackends))
	}

	if c.RemoteBackend == "firestore" && c.FirestoreProjectID == "" {
		errors = append(errors, "FIRESTORE_PROJECT_ID is required when using the firestore backend")
	}

	// Validate AMQP URL if provided
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

	// Validate sync cadence
	if c.SyncInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 minute", c.SyncInterval))
	} else if c.SyncInterval > 7*24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 7 days", c.SyncInterval))
	}

	if c.WeeklySyncInterval < c.SyncInterval {
		errors = append(errors, fmt.Sprintf("invalid weekly sync interval %v: must be at least the sync interval (%v)", c.WeeklySyncInterval, c.SyncInterval))
	}

	if c.SummaryCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid summary cache size %d: must be at least 1", c.SummaryCacheSize))
	}

	// Return combined errors
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
