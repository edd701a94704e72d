package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Default content markers that flag a listing page as removed upstream.
// Craigslist wording, configurable because it changes without notice.
var defaultRemovalMarkers = []string{
	"This posting has been flagged for removal.",
	"This posting has been deleted by its author.",
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	StoreDriver string // "sqlite" or "postgres"
	SQLitePath  string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	RetentionDays     int
	VerifyConcurrency int
	FetchTimeoutSec   int
	RemovalMarkers    []string

	MaxConcurrency  int
	RateLimitMs     int
	MaxRetries      int
	PollIntervalSec int

	UsersPath      string
	CSVArchivePath string
	ChromeBin      string

	SMTPHost  string
	SMTPPort  int
	EmailUser string
	EmailPass string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		StoreDriver: getEnv("STORE_DRIVER", "sqlite"),
		SQLitePath:  getEnv("SQLITE_PATH", "./data/posts.db"),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "notifier"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "notifier123"),
		PostgresDB:       getEnv("POSTGRES_DB", "housing_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RetentionDays:     getEnvInt("RETENTION_DAYS", 7),
		VerifyConcurrency: getEnvInt("VERIFY_CONCURRENCY", 8),
		FetchTimeoutSec:   getEnvInt("FETCH_TIMEOUT_SEC", 10),
		RemovalMarkers:    getEnvList("REMOVAL_MARKERS", defaultRemovalMarkers),

		MaxConcurrency:  getEnvInt("MAX_CONCURRENCY", 3),
		RateLimitMs:     getEnvInt("RATE_LIMIT_MS", 2000),
		MaxRetries:      getEnvInt("MAX_RETRIES", 3),
		PollIntervalSec: getEnvInt("POLL_INTERVAL_SEC", 86400),

		UsersPath:      getEnv("USERS_PATH", "./users.json"),
		CSVArchivePath: getEnv("CSV_ARCHIVE_PATH", "./output/raw_batches.csv"),
		ChromeBin:      getEnv("CHROME_BIN", ""),

		SMTPHost:  getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:  getEnvInt("SMTP_PORT", 465),
		EmailUser: getEnv("EMAIL_USER", ""),
		EmailPass: getEnv("EMAIL_PASS", ""),
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

// RetentionWindow returns the recency window as a duration.
func (c *Config) RetentionWindow() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// FetchTimeout returns the per-fetch timeout for liveness probes.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSec) * time.Second
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
	if len(out) == 0 {
		return fallback
	}
	return out
}
