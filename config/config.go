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
	EarningsCSV       string
	EarningsEncoding  string
	UnemploymentXLSX  string
	UnemploymentSheet string
	AttendeesCSV      string
	NAValues          []string

	OutputDir string
	RulesFile string
	HeadRows  int

	PostgresEnabled  bool
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	HTMLTableURLs  []string
	ChromeBin      string
	MaxConcurrency int
	RateLimitMs    int
	MaxRetries     int
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		EarningsCSV:       getEnv("EARNINGS_CSV", "./data/employee-earnings-report-2016.csv"),
		EarningsEncoding:  getEnv("EARNINGS_ENCODING", "latin-1"),
		UnemploymentXLSX:  getEnv("UNEMPLOYMENT_XLSX", "./data/unemployment.xlsx"),
		UnemploymentSheet: getEnv("UNEMPLOYMENT_SHEET", ""),
		AttendeesCSV:      getEnv("ATTENDEES_CSV", "./data/attendees.csv"),
		NAValues:          getEnvList("NA_VALUES", []string{"n/a"}),

		OutputDir: getEnv("OUTPUT_DIR", "./output"),
		RulesFile: getEnv("RULES_FILE", ""),
		HeadRows:  getEnvInt("HEAD_ROWS", 5),

		PostgresEnabled:  getEnvBool("POSTGRES_ENABLED", false),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "tablenorm"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "tablenorm"),
		PostgresDB:       getEnv("POSTGRES_DB", "tablenorm"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		HTMLTableURLs:  getEnvList("HTML_TABLE_URLS", nil),
		ChromeBin:      getEnv("CHROME_BIN", ""),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 3),
		RateLimitMs:    getEnvInt("RATE_LIMIT_MS", 0),
		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
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

// getEnvList splits a comma-separated variable, dropping blank entries.
func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
