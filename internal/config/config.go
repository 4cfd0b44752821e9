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
	// HTTP server
	Port string

	// Local durable queue
	QueueDBPath string

	// AMQP drain-trigger bus
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Remote backend selection
	RemoteBackend string

	// Google Sheets remote store
	GoogleSpreadsheetID string
	GoogleSheetName     string

	// AI parser
	AIBaseURL string
	AIAPIKey  string
	AIModel   string

	// Sync engine
	SyncCallTimeout time.Duration
	SyncMaxAttempts int

	// Connectivity monitor
	ProbeInterval time.Duration
	StartupDelay  time.Duration

	// Owner the single-user deployment is scoped to
	OwnerID string
}

func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8081"),
		QueueDBPath: getEnv("QUEUE_DB_PATH", "./data/kharcha.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "kharcha"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "sync_triggers"),

		RemoteBackend: getEnv("REMOTE_BACKEND", "memory"),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:     getEnv("GOOGLE_SHEET_NAME", "Expenses"),

		AIBaseURL: getEnv("AI_BASE_URL", "https://api.groq.com/openai/v1"),
		AIAPIKey:  getEnv("AI_API_KEY", ""),
		AIModel:   getEnv("AI_MODEL", "llama-3.3-70b-versatile"),

		SyncCallTimeout: getEnvDuration("SYNC_CALL_TIMEOUT", 10*time.Second),
		SyncMaxAttempts: getEnvInt("SYNC_MAX_ATTEMPTS", 5),

		ProbeInterval: getEnvDuration("PROBE_INTERVAL", 15*time.Second),
		StartupDelay:  getEnvDuration("STARTUP_SYNC_DELAY", 500*time.Millisecond),

		OwnerID: getEnv("OWNER_ID", "local"),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validBackends := []string{"memory", "sheets"}
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

	if c.QueueDBPath == "" {
		errors = append(errors, "queue database path cannot be empty")
	} else {
		dir := filepath.Dir(c.QueueDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create queue database directory '%s': %v", dir, err))
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

	if c.RemoteBackend == "sheets" {
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
		}
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when using sheets backend")
		}
	}

	if c.SyncMaxAttempts < 1 {
		errors = append(errors, fmt.Sprintf("invalid sync max attempts %d: must be at least 1", c.SyncMaxAttempts))
	} else if c.SyncMaxAttempts > 100 {
		errors = append(errors, fmt.Sprintf("invalid sync max attempts %d: must be at most 100", c.SyncMaxAttempts))
	}

	if c.SyncCallTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sync call timeout %v: must be at least 1 second", c.SyncCallTimeout))
	}

	if c.ProbeInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid probe interval %v: must be at least 1 second", c.ProbeInterval))
	} else if c.ProbeInterval > time.Hour {
		errors = append(errors, fmt.Sprintf("invalid probe interval %v: must be at most 1 hour", c.ProbeInterval))
	}

	if c.OwnerID == "" {
		errors = append(errors, "owner id cannot be empty")
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
