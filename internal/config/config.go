package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Engine       EngineConfig
	Scheduler    SchedulerConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// EngineConfig carries the distribution policy constants. ActiveTicketLimit
// is the effective admission rule (one in-flight ticket per agent);
// MaxTicketsPerAgent is the documented ceiling kept for future tuning.
type EngineConfig struct {
	ReassignmentTimeoutMinutes int
	MaxTicketsPerAgent         int
	ActiveTicketLimit          int
	CompletedMaxAgeHours       int
	ExpiryInactivityMinutes    int
	CycleTimeoutSeconds        int
}

// SchedulerConfig holds cron specs for background jobs.
type SchedulerConfig struct {
	Enabled          bool
	HousekeepingSpec string
	DailyResetSpec   string
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	WebhookURL string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "incident-dispatch"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 7*24*60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Engine: EngineConfig{
			ReassignmentTimeoutMinutes: getEnvAsInt("ENGINE_REASSIGNMENT_TIMEOUT_MINUTES", 20),
			MaxTicketsPerAgent:         getEnvAsInt("ENGINE_MAX_TICKETS_PER_AGENT", 5),
			ActiveTicketLimit:          getEnvAsInt("ENGINE_ACTIVE_TICKET_LIMIT", 1),
			CompletedMaxAgeHours:       getEnvAsInt("ENGINE_COMPLETED_MAX_AGE_HOURS", 24),
			ExpiryInactivityMinutes:    getEnvAsInt("ENGINE_EXPIRY_INACTIVITY_MINUTES", 60),
			CycleTimeoutSeconds:        getEnvAsInt("ENGINE_CYCLE_TIMEOUT_SECONDS", 8),
		},
		Scheduler: SchedulerConfig{
			Enabled:          getEnvAsBool("SCHEDULER_ENABLED", true),
			HousekeepingSpec: getEnv("SCHEDULER_HOUSEKEEPING_SPEC", "*/10 * * * *"),
			DailyResetSpec:   getEnv("SCHEDULER_DAILY_RESET_SPEC", "0 0 * * *"),
		},
		Notification: NotificationConfig{
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// ReassignmentTimeout returns the stale-active reclaim window.
func (e EngineConfig) ReassignmentTimeout() time.Duration {
	return time.Duration(e.ReassignmentTimeoutMinutes) * time.Minute
}

// CompletedMaxAge returns the completed-ticket retention window.
func (e EngineConfig) CompletedMaxAge() time.Duration {
	return time.Duration(e.CompletedMaxAgeHours) * time.Hour
}

// ExpiryInactivity returns the absent-from-batch expiry window.
func (e EngineConfig) ExpiryInactivity() time.Duration {
	return time.Duration(e.ExpiryInactivityMinutes) * time.Minute
}

// CycleTimeout returns the per-cycle processing budget.
func (e EngineConfig) CycleTimeout() time.Duration {
	return time.Duration(e.CycleTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
