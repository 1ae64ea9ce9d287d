package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// App
	AppEnv string
	Port   string

	// Database
	DBHost string
	DBPort string
	DBUser string
	DBPass string
	DBName string

	JWTSecret string

	// CRM export feed
	CRMBaseURL string
	CRMToken   string

	// Admin login
	AdminUsername string
	AdminPassword string

	// Sync engine
	SyncPageSize      int
	SyncMaxRetries    int
	SyncRetryInterval time.Duration
	SyncMaxRetryWait  time.Duration

	// Fuzzy match thresholds per contact kind.
	FuzzyThresholdVolunteer float64
	FuzzyThresholdTeacher   float64
	FuzzyThresholdStudent   float64

	// Scheduler. Zero disables the periodic delta sync.
	SchedulerInterval time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		// App
		AppEnv: getEnv("APP_ENV", "development"),
		Port:   getEnv("PORT", "8001"),

		// DB
		DBHost: getEnv("DB_HOST", "127.0.0.1"),
		DBPort: getEnv("DB_PORT", "5432"),
		DBUser: getEnv("DB_USER", "postgres"),
		DBPass: getEnv("DB_PASS", "postgres"),
		DBName: getEnv("DB_NAME", "crmsync_db"),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", "secret123"),

		// CRM
		CRMBaseURL: getEnv("CRM_BASE_URL", "https://crm.example.org"),
		CRMToken:   getEnv("CRM_TOKEN", ""),

		// Admin login
		AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword: getEnv("ADMIN_PASSWORD", "crmsync-2026"),

		// Sync engine
		SyncPageSize:      getEnvInt("SYNC_PAGE_SIZE", 200),
		SyncMaxRetries:    getEnvInt("SYNC_MAX_RETRIES", 4),
		SyncRetryInterval: getEnvDuration("SYNC_RETRY_INTERVAL", 500*time.Millisecond),
		SyncMaxRetryWait:  getEnvDuration("SYNC_MAX_RETRY_WAIT", 30*time.Second),

		// Fuzzy thresholds
		FuzzyThresholdVolunteer: getEnvFloat("FUZZY_THRESHOLD_VOLUNTEER", 0.90),
		FuzzyThresholdTeacher:   getEnvFloat("FUZZY_THRESHOLD_TEACHER", 0.90),
		FuzzyThresholdStudent:   getEnvFloat("FUZZY_THRESHOLD_STUDENT", 0.90),

		// Scheduler
		SchedulerInterval: getEnvDuration("SCHEDULER_INTERVAL", 0),
	}

	return cfg, nil
}

// getEnv returns environment variable or default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns int from env or default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvFloat returns float from env or default.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration from env ("30s", "5m") or default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
