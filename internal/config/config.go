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

type Config struct {
	// HTTP Server
	Port         string
	RateLimitRPM int

	// Storage
	DataBackend  string
	SQLiteDBPath string
	StoreTimeout time.Duration

	LogLevel string

	// AMQP. An empty URL runs everything in-process.
	AMQPURL                string
	AMQPExchange           string
	AMQPEventsQueue        string
	AMQPNotificationsQueue string

	// Scheduling
	BudgetCheckInterval    time.Duration
	BudgetCheckConcurrency int
	RecurringInterval      time.Duration
	ReminderRescanInterval time.Duration
	ReminderLookahead      time.Duration

	MaxChartCategories int

	// Discord notifications
	DiscordBotToken  string
	DiscordChannelID string

	// Google Sheets export
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	// how often parked export rows get a fresh retry budget
	ExportRetryInterval time.Duration

	// Receipt category rules override
	CategoryRulesFile string
}

var validBackends = []string{"memory", "sqlite"}

func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "8081"),
		RateLimitRPM: getEnvInt("RATE_LIMIT_RPM", 120),

		DataBackend:  getEnv("DATA_BACKEND", "sqlite"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/walletlens.db"),
		StoreTimeout: getEnvDuration("STORE_TIMEOUT", 5*time.Second),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		AMQPURL:                getEnv("AMQP_URL", ""),
		AMQPExchange:           getEnv("AMQP_EXCHANGE", "walletlens"),
		AMQPEventsQueue:        getEnv("AMQP_EVENTS_QUEUE", "transaction_events"),
		AMQPNotificationsQueue: getEnv("AMQP_NOTIFICATIONS_QUEUE", "notifications"),

		BudgetCheckInterval:    getEnvDuration("BUDGET_CHECK_INTERVAL", 24*time.Hour),
		BudgetCheckConcurrency: getEnvInt("BUDGET_CHECK_CONCURRENCY", 4),
		RecurringInterval:      getEnvDuration("RECURRING_INTERVAL", time.Hour),
		ReminderRescanInterval: getEnvDuration("REMINDER_RESCAN_INTERVAL", 15*time.Minute),
		ReminderLookahead:      getEnvDuration("REMINDER_LOOKAHEAD", 90*24*time.Hour),

		MaxChartCategories: getEnvInt("MAX_CHART_CATEGORIES", 6),

		DiscordBotToken:  getEnv("DISCORD_BOT_TOKEN", ""),
		DiscordChannelID: getEnv("DISCORD_CHANNEL_ID", ""),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Transactions"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		ExportRetryInterval:      getEnvDuration("EXPORT_RETRY_INTERVAL", 6*time.Hour),

		CategoryRulesFile: getEnv("CATEGORY_RULES_FILE", ""),
	}
}

// AMQPEnabled reports whether events go through the broker
func (c *Config) AMQPEnabled() bool { return c.AMQPURL != "" }

func (c *Config) DiscordEnabled() bool {
	return c.DiscordBotToken != "" && c.DiscordChannelID != ""
}

func (c *Config) SheetsEnabled() bool { return c.GoogleSpreadsheetID != "" }

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
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
		if c.AMQPEventsQueue == "" || c.AMQPNotificationsQueue == "" {
			errors = append(errors, "AMQP queue names cannot be empty when AMQP URL is provided")
		}
	}

	if (c.DiscordBotToken == "") != (c.DiscordChannelID == "") {
		errors = append(errors, "DISCORD_BOT_TOKEN and DISCORD_CHANNEL_ID must be set together")
	}

	if c.SheetsEnabled() {
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when GOOGLE_SPREADSHEET_ID is set")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided for sheets export")
		}
		errors = append(errors, checkInterval("export retry interval", c.ExportRetryInterval, time.Minute, 7*24*time.Hour)...)
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if c.CategoryRulesFile != "" {
		if _, err := os.Stat(c.CategoryRulesFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("category rules file does not exist: %s", c.CategoryRulesFile))
		}
	}

	errors = append(errors, checkInterval("budget check interval", c.BudgetCheckInterval, time.Minute, 7*24*time.Hour)...)
	errors = append(errors, checkInterval("recurring interval", c.RecurringInterval, time.Second, 24*time.Hour)...)
	errors = append(errors, checkInterval("reminder rescan interval", c.ReminderRescanInterval, time.Second, 24*time.Hour)...)
	errors = append(errors, checkInterval("store timeout", c.StoreTimeout, 100*time.Millisecond, time.Minute)...)

	if c.ReminderLookahead < 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid reminder lookahead %v: must be at least 24 hours", c.ReminderLookahead))
	}
	if c.BudgetCheckConcurrency < 1 || c.BudgetCheckConcurrency > 64 {
		errors = append(errors, fmt.Sprintf("invalid budget check concurrency %d: must be between 1 and 64", c.BudgetCheckConcurrency))
	}
	if c.MaxChartCategories < 2 {
		errors = append(errors, fmt.Sprintf("invalid max chart categories %d: must be at least 2", c.MaxChartCategories))
	}
	if c.RateLimitRPM < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitRPM))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func checkInterval(name string, d, lo, hi time.Duration) []string {
	if d < lo {
		return []string{fmt.Sprintf("invalid %s %v: must be at least %v", name, d, lo)}
	}
	if d > hi {
		return []string{fmt.Sprintf("invalid %s %v: must be at most %v", name, d, hi)}
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
