package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// StoreDriver selects the sheet store: csv, postgres, mysql or sqlite.
	StoreDriver string
	StoreDSN    string
	StoreDir    string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	HistorySheet    string
	PartitionPrefix string
	RunDate         string

	PriceMin           int
	PriceMax           int
	ReactivationPolicy string

	VendorGroup    int
	TestMode       bool
	MaxConcurrency int
	RateLimitMs    int
	MaxRetries     int
	ChromeBin      string

	LogLevel   string
	ReportPath string
	RawCSVPath string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", "csv")),
		StoreDSN:    getEnv("STORE_DSN", ""),
		StoreDir:    getEnv("STORE_DIR", "./data"),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "carhist"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "carhist"),
		PostgresDB:       getEnv("POSTGRES_DB", "carhist"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		HistorySheet:    getEnv("HISTORY_SHEET", "Data_Historico"),
		PartitionPrefix: getEnv("PARTITION_PREFIX", "SCR"),
		RunDate:         getEnv("RUN_DATE", ""),

		PriceMin:           getEnvInt("PRICE_MIN", 500),
		PriceMax:           getEnvInt("PRICE_MAX", 500000),
		ReactivationPolicy: getEnv("REACTIVATION_POLICY", "clear"),

		VendorGroup:    getEnvInt("VENDOR_GROUP", 0),
		TestMode:       getEnvBool("TEST_MODE", false),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 2),
		RateLimitMs:    getEnvInt("RATE_LIMIT_MS", 2000),
		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		ChromeBin:      getEnv("CHROME_BIN", ""),

		LogLevel:   getEnv("LOG_LEVEL", "info"),
		ReportPath: getEnv("REPORT_PATH", ""),
		RawCSVPath: getEnv("RAW_CSV_PATH", "./output/raw_listings.csv"),
	}
}

// DSN returns the connection string for the configured SQL store. An
// explicit STORE_DSN wins; postgres falls back to the POSTGRES_* settings
// and sqlite to a file inside StoreDir.
func (c *Config) DSN() string {
	if c.StoreDSN != "" {
		return c.StoreDSN
	}
	switch c.StoreDriver {
	case "postgres":
		return "host=" + c.PostgresHost +
			" port=" + c.PostgresPort +
			" user=" + c.PostgresUser +
			" password=" + c.PostgresPassword +
			" dbname=" + c.PostgresDB +
			" sslmode=" + c.PostgresSSLMode
	case "sqlite":
		return strings.TrimSuffix(c.StoreDir, "/") + "/carhist.db"
	}
	return ""
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}
