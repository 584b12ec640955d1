package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"tally/internal/core"
)

type Config struct {
	// HTTP Server
	Port string

	// Storage
	DataBackend  string // csv | sqlite | memory
	CSVPath      string
	SQLiteDBPath string

	// AMQP (optional, enables the mirror pipeline)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets mirror
	GoogleSpreadsheetID string
	GoogleSheetName     string

	// Mirror worker
	MirrorInterval time.Duration

	// Optional default monthly budget, decimal text ("250.00").
	// Empty means no budget until one is set through the form.
	MonthlyBudget string
}

func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8081"),

		DataBackend:  getEnv("DATA_BACKEND", "csv"),
		CSVPath:      getEnv("CSV_PATH", "./data/expenses.csv"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/tally.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "tally"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "record_created"),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:     getEnv("GOOGLE_SHEET_NAME", ""),

		MirrorInterval: getEnvDuration("MIRROR_INTERVAL", 5*time.Minute),

		MonthlyBudget: getEnv("MONTHLY_BUDGET", ""),
	}
}

// Validate checks the configuration and returns an error listing every
// problem found.
func (c *Config) Validate() error {
	var problems []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		problems = append(problems, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.DataBackend {
	case "csv":
		if c.CSVPath == "" {
			problems = append(problems, "CSV path cannot be empty when using csv backend")
		} else if err := ensureDir(c.CSVPath); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create CSV data directory: %v", err))
		}
	case "sqlite":
		if c.SQLiteDBPath == "" {
			problems = append(problems, "SQLite database path cannot be empty when using sqlite backend")
		} else if err := ensureDir(c.SQLiteDBPath); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create SQLite database directory: %v", err))
		}
	case "memory":
		// Nothing to check.
	default:
		problems = append(problems, fmt.Sprintf("invalid data backend '%s': must be one of [csv sqlite memory]", c.DataBackend))
	}

	if c.AMQPURL != "" {
		if u, err := url.Parse(c.AMQPURL); err != nil || (u.Scheme != "amqp" && u.Scheme != "amqps") {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL '%s'", c.AMQPURL))
		}
		if c.AMQPExchange == "" {
			problems = append(problems, "AMQP exchange cannot be empty when AMQP is enabled")
		}
		if c.AMQPQueue == "" {
			problems = append(problems, "AMQP queue cannot be empty when AMQP is enabled")
		}
	}

	if c.MirrorInterval <= 0 {
		problems = append(problems, fmt.Sprintf("invalid mirror interval %v: must be positive", c.MirrorInterval))
	}

	if c.MonthlyBudget != "" {
		cents, err := core.ParseDecimalToCents(c.MonthlyBudget)
		if err != nil {
			problems = append(problems, fmt.Sprintf("invalid monthly budget '%s': must be a decimal amount", c.MonthlyBudget))
		} else if cents == 0 {
			problems = append(problems, "monthly budget must be greater than zero when set")
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(problems, "; "))
	}
	return nil
}

// MonthlyBudgetCents returns the configured default budget, or 0 when unset.
// Call after Validate.
func (c *Config) MonthlyBudgetCents() int64 {
	if c.MonthlyBudget == "" {
		return 0
	}
	cents, err := core.ParseDecimalToCents(c.MonthlyBudget)
	if err != nil {
		return 0
	}
	return cents
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
