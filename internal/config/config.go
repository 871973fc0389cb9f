package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

// MinJWTSecretLength is the shortest HS256 secret the API accepts.
const MinJWTSecretLength = 32

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int
	TrustedProxies     []string
	ShutdownTimeout    time.Duration

	// Auth
	JWTSecret string
	JWTIssuer string

	// Database
	DBDriver          string
	SQLiteDBPath      string
	SQLiteBusyTimeout time.Duration
	DatabaseURL       string

	// Exchange rates
	RatesURL     string
	RatesTTL     time.Duration
	RatesTimeout time.Duration

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets export
	GoogleSpreadsheetID string
	GoogleClosuresSheet string

	// Scheduler
	SchedulerInterval time.Duration

	// Logging
	LogLevel  string
	LogFormat string
}

// RatesDisabled reports whether the exchange rate provider is switched off,
// in which case every balance uses the fallback rate.
func (c *Config) RatesDisabled() bool {
	return strings.EqualFold(c.RatesURL, "off")
}

func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		TrustedProxies:     getEnvList("TRUSTED_PROXIES"),
		ShutdownTimeout:    getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),

		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTIssuer: getEnv("JWT_ISSUER", ""),

		DBDriver:          getEnv("DB_DRIVER", "sqlite"),
		SQLiteDBPath:      getEnv("SQLITE_DB_PATH", "./data/saldo.db"),
		SQLiteBusyTimeout: getEnvDuration("SQLITE_BUSY_TIMEOUT", 5*time.Second),
		DatabaseURL:       getEnv("DATABASE_URL", ""),

		RatesURL:     getEnv("RATES_URL", "https://dolarapi.com"),
		RatesTTL:     getEnvDuration("RATES_TTL", 5*time.Minute),
		RatesTimeout: getEnvDuration("RATES_TIMEOUT", 3*time.Second),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "saldo"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "closure_exports"),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleClosuresSheet: getEnv("GOOGLE_CLOSURES_SHEET_NAME", "Cierres"),

		SchedulerInterval: getEnvDuration("SCHEDULER_INTERVAL", time.Hour),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

// Validate checks the settings shared by every binary and returns all
// problems at once.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validDrivers := []string{"sqlite", "postgres"}
	if !slices.Contains(validDrivers, c.DBDriver) {
		errors = append(errors, fmt.Sprintf("invalid database driver '%s': must be one of %v", c.DBDriver, validDrivers))
	}

	switch c.DBDriver {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite driver")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	case "postgres":
		if c.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required when using postgres driver")
		} else if u, err := url.Parse(c.DatabaseURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid DATABASE_URL: %v", err))
		} else if u.Scheme != "postgres" && u.Scheme != "postgresql" {
			errors = append(errors, fmt.Sprintf("invalid DATABASE_URL scheme '%s': must be 'postgres' or 'postgresql'", u.Scheme))
		}
	}

	if !c.RatesDisabled() {
		if u, err := url.Parse(c.RatesURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errors = append(errors, fmt.Sprintf("invalid RATES_URL '%s': must be an http(s) URL or 'off'", c.RatesURL))
		}
	}
	if c.RatesTTL < time.Second || c.RatesTTL > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid rates TTL %v: must be between 1 second and 24 hours", c.RatesTTL))
	}
	if c.RatesTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid rates timeout %v: must be positive", c.RatesTimeout))
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

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	if c.SchedulerInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid scheduler interval %v: must be at least 1 second", c.SchedulerInterval))
	} else if c.SchedulerInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid scheduler interval %v: must be at most 24 hours", c.SchedulerInterval))
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// ValidateAPI adds the checks only the HTTP API needs.
func (c *Config) ValidateAPI() error {
	err := c.Validate()
	if len(c.JWTSecret) >= MinJWTSecretLength {
		return err
	}
	msg := fmt.Sprintf("JWT_SECRET must be at least %d bytes", MinJWTSecretLength)
	if err == nil {
		return fmt.Errorf("configuration validation failed:\n- %s", msg)
	}
	return fmt.Errorf("%w\n- %s", err, msg)
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

func getEnvList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
