package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

const defaultSQLiteDSN = "file:pharmapos.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"

// Config holds application configuration values.
type Config struct {
	Secret         string
	HTTPPort       string
	DatabaseDriver string
	DatabaseDSN    string

	TaxRate     decimal.Decimal
	Location    *time.Location
	ReceiptNode int64
	TokenTTL    time.Duration

	CatalogCSV    string
	AdminEmail    string
	AdminPassword string

	LogMode string
	LogFile string

	ExpiryAlertDays int
	AlertSchedule   string

	// Warnings collects values that were rejected and replaced by defaults; they
	// are logged once the logger exists.
	Warnings []string
}

// Load reads configuration from environment variables with reasonable defaults.
// Invalid values are replaced by their default and noted in Warnings.
func Load() Config {
	cfg := Config{
		Secret:         getenv("SECRET", "dev_secret"),
		HTTPPort:       getenv("HTTP_PORT", "8080"),
		DatabaseDriver: strings.ToLower(getenv("DATABASE_DRIVER", "sqlite")),
		DatabaseDSN:    os.Getenv("DATABASE_DSN"),
		CatalogCSV:     getenv("CATALOG_CSV", "assets/catalog.csv"),
		AdminEmail:     strings.ToLower(os.Getenv("ADMIN_EMAIL")),
		AdminPassword:  os.Getenv("ADMIN_PASSWORD"),
		LogMode:        getenv("LOG_MODE", "development"),
		LogFile:        os.Getenv("LOG_FILE"),
		AlertSchedule:  getenv("ALERT_SCHEDULE", "@every 1h"),
	}

	// Validate that port is numeric.
	if _, err := strconv.Atoi(cfg.HTTPPort); err != nil {
		cfg.warn("invalid HTTP_PORT value, defaulting to 8080", cfg.HTTPPort)
		cfg.HTTPPort = "8080"
	}

	switch cfg.DatabaseDriver {
	case "sqlite":
		if cfg.DatabaseDSN == "" {
			cfg.DatabaseDSN = defaultSQLiteDSN
		}
	case "pgx", "postgres":
		cfg.DatabaseDriver = "pgx"
		if cfg.DatabaseDSN == "" {
			cfg.DatabaseDSN = postgresDSN()
		}
	default:
		cfg.warn("unknown DATABASE_DRIVER, defaulting to sqlite", cfg.DatabaseDriver)
		cfg.DatabaseDriver = "sqlite"
		cfg.DatabaseDSN = defaultSQLiteDSN
	}

	cfg.TaxRate = decimal.RequireFromString("0.16")
	if raw := os.Getenv("TAX_RATE"); raw != "" {
		rate, err := decimal.NewFromString(raw)
		if err != nil || rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
			cfg.warn("invalid TAX_RATE, defaulting to 0.16", raw)
		} else {
			cfg.TaxRate = rate
		}
	}

	cfg.Location = time.Local
	if name := os.Getenv("TIMEZONE"); name != "" {
		loc, err := time.LoadLocation(name)
		if err != nil {
			cfg.warn("invalid TIMEZONE, using system local time", name)
		} else {
			cfg.Location = loc
		}
	}

	cfg.ReceiptNode = cast.ToInt64(getenv("RECEIPT_NODE", "1"))
	if cfg.ReceiptNode < 0 || cfg.ReceiptNode > 1023 {
		cfg.warn("RECEIPT_NODE must be within 0..1023, defaulting to 1", cfg.ReceiptNode)
		cfg.ReceiptNode = 1
	}

	hours := cast.ToInt(getenv("TOKEN_TTL_HOURS", "24"))
	if hours <= 0 {
		cfg.warn("invalid TOKEN_TTL_HOURS, defaulting to 24", hours)
		hours = 24
	}
	cfg.TokenTTL = time.Duration(hours) * time.Hour

	cfg.ExpiryAlertDays = cast.ToInt(getenv("EXPIRY_ALERT_DAYS", "30"))
	if cfg.ExpiryAlertDays <= 0 {
		cfg.ExpiryAlertDays = 30
	}

	return cfg
}

func postgresDSN() string {
	host := getenv("DB_HOST", "localhost")
	user := getenv("DB_USER", "postgres")
	port := getenv("DB_PORT", "5432")
	name := getenv("DB_NAME", "pharmapos")
	password := os.Getenv("DB_PASSWORD")
	return "postgres://" + user + ":" + password + "@" + host + ":" + port + "/" + name + "?sslmode=disable"
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func (c *Config) warn(msg string, value any) {
	c.Warnings = append(c.Warnings, fmt.Sprintf("%s (got %v)", msg, value))
}
