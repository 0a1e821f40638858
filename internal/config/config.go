package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
)

type Config struct {
	// HTTP server
	Port string

	// Database
	DBPath string

	// Logging
	LogLevel  string
	LogFormat string

	// Debug echoes verification codes back to their owner.
	Debug bool

	SessionLifetime time.Duration

	// Cache
	CacheEnabled bool
	CacheTTL     time.Duration

	StrictVerifyType bool

	// Rate limiting for auth endpoints
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// AMQP, disabled when the URL is empty
	AMQPURL      string
	AMQPExchange string

	// Export
	ExportLocale   string
	CurrencySymbol string
	Timezone       string

	// S3-compatible backups, disabled when the bucket is empty
	BackupBucket     string
	BackupPrefix     string
	BackupRegion     string
	BackupEndpoint   string
	BackupAccessKey  string
	BackupSecretKey  string
	BackupPassphrase string
	BackupInterval   time.Duration
	BackupRetention  time.Duration
}

func Load() *Config {
	return &Config{
		Port:   getEnv("TALLY_PORT", "8080"),
		DBPath: getEnv("TALLY_DB_PATH", "tally.db"),

		LogLevel:  getEnv("TALLY_LOG_LEVEL", "info"),
		LogFormat: getEnv("TALLY_LOG_FORMAT", "text"),

		Debug:           getEnvBool("TALLY_DEBUG", false),
		SessionLifetime: getEnvDuration("TALLY_SESSION_LIFETIME", 2*time.Hour),

		CacheEnabled: getEnvBool("TALLY_CACHE_ENABLED", true),
		CacheTTL:     getEnvDuration("TALLY_CACHE_TTL", 5*time.Minute),

		StrictVerifyType: getEnvBool("TALLY_STRICT_VERIFY_TYPE", false),

		RateLimitRequests: getEnvInt("TALLY_RATE_LIMIT_REQUESTS", 30),
		RateLimitWindow:   getEnvDuration("TALLY_RATE_LIMIT_WINDOW", time.Minute),

		AMQPURL:      getEnv("TALLY_AMQP_URL", ""),
		AMQPExchange: getEnv("TALLY_AMQP_EXCHANGE", "tally.activity"),

		ExportLocale:   getEnv("TALLY_EXPORT_LOCALE", "pt-BR"),
		CurrencySymbol: getEnv("TALLY_CURRENCY_SYMBOL", "R$"),
		Timezone:       getEnv("TALLY_TIMEZONE", "UTC"),

		BackupBucket:     getEnv("TALLY_BACKUP_BUCKET", ""),
		BackupPrefix:     getEnv("TALLY_BACKUP_PREFIX", "backups"),
		BackupRegion:     getEnv("TALLY_BACKUP_REGION", "us-east-1"),
		BackupEndpoint:   getEnv("TALLY_BACKUP_ENDPOINT", ""),
		BackupAccessKey:  getEnv("TALLY_BACKUP_ACCESS_KEY", ""),
		BackupSecretKey:  getEnv("TALLY_BACKUP_SECRET_KEY", ""),
		BackupPassphrase: getEnv("TALLY_BACKUP_PASSPHRASE", ""),
		BackupInterval:   getEnvDuration("TALLY_BACKUP_INTERVAL", 24*time.Hour),
		BackupRetention:  getEnvDuration("TALLY_BACKUP_RETENTION", 30*24*time.Hour),
	}
}

// Validate returns every problem with the configuration in a single error.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.DBPath == "" {
		errors = append(errors, "database path cannot be empty")
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}

	if c.SessionLifetime < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session lifetime %v: must be at least 1 minute", c.SessionLifetime))
	}

	if c.CacheEnabled && c.CacheTTL <= 0 {
		errors = append(errors, fmt.Sprintf("invalid cache ttl %v: must be positive", c.CacheTTL))
	}

	if c.RateLimitRequests < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1", c.RateLimitRequests))
	}
	if c.RateLimitWindow < time.Second {
		errors = append(errors, fmt.Sprintf("invalid rate limit window %v: must be at least 1 second", c.RateLimitWindow))
	}

	if c.AMQPURL != "" {
		if parsed, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsed.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	if _, err := language.Parse(c.ExportLocale); err != nil {
		errors = append(errors, fmt.Sprintf("invalid export locale '%s': %v", c.ExportLocale, err))
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}

	if c.BackupBucket != "" {
		if c.BackupAccessKey == "" || c.BackupSecretKey == "" {
			errors = append(errors, "backup access key and secret key are required when a backup bucket is set")
		}
		if len(c.BackupPassphrase) < 12 {
			errors = append(errors, "backup passphrase must be at least 12 characters")
		}
		if c.BackupInterval < time.Minute {
			errors = append(errors, fmt.Sprintf("invalid backup interval %v: must be at least 1 minute", c.BackupInterval))
		}
		if c.BackupRetention < c.BackupInterval {
			errors = append(errors, fmt.Sprintf("invalid backup retention %v: must be at least the backup interval", c.BackupRetention))
		}
		if c.BackupEndpoint != "" {
			if parsed, err := url.Parse(c.BackupEndpoint); err != nil || parsed.Host == "" {
				errors = append(errors, fmt.Sprintf("invalid backup endpoint '%s'", c.BackupEndpoint))
			}
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// Location returns the configured time zone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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
