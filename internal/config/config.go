package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"

	LockDriverLocal = "local"
	LockDriverRedis = "redis"
)

// Config holds the runtime settings read from the environment
type Config struct {
	ServerPort string

	StorageDriver string
	DBHost        string
	DBPort        string
	DBUser        string
	DBPassword    string
	DBName        string
	DBSSLMode     string
	DBMaxConns    int
	RunMigrations bool

	LockDriver    string
	LockTTL       time.Duration
	LockWait      time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// MovementRetries bounds the transparent retries of a conflicting movement.
	MovementRetries int
	// StatementConcurrency bounds the parallel balance reads of one statement.
	StatementConcurrency int
}

// Load reads an optional .env file and then the process environment
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, relying on environment variables")
	}

	return &Config{
		ServerPort:           getEnv("SERVER_PORT", "8080"),
		StorageDriver:        strings.ToLower(getEnv("STORAGE_DRIVER", StorageDriverPostgres)),
		DBHost:               getEnv("DB_HOST", "localhost"),
		DBPort:               getEnv("DB_PORT", "5432"),
		DBUser:               getEnv("DB_USER", "postgres"),
		DBPassword:           getEnv("DB_PASSWORD", "password"),
		DBName:               getEnv("DB_NAME", "account_ledger"),
		DBSSLMode:            getEnv("DB_SSLMODE", "disable"),
		DBMaxConns:           getEnvInt("DB_MAX_CONNS", 25),
		RunMigrations:        getEnvBool("RUN_MIGRATIONS", true),
		LockDriver:           strings.ToLower(getEnv("LOCK_DRIVER", LockDriverLocal)),
		LockTTL:              getEnvDuration("LOCK_TTL", 10*time.Second),
		LockWait:             getEnvDuration("LOCK_WAIT", 5*time.Second),
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:        getEnv("REDIS_PASSWORD", ""),
		RedisDB:              getEnvInt("REDIS_DB", 0),
		MovementRetries:      getEnvInt("MOVEMENT_RETRIES", 3),
		StatementConcurrency: getEnvInt("STATEMENT_CONCURRENCY", 8),
	}
}

// GetDBConnectionString builds a lib/pq key/value DSN
func (c *Config) GetDBConnectionString() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

// Validate rejects combinations the server cannot start with
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case StorageDriverPostgres, StorageDriverMemory:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	switch c.LockDriver {
	case LockDriverLocal, LockDriverRedis:
	default:
		return fmt.Errorf("unknown LOCK_DRIVER %q", c.LockDriver)
	}
	if c.MovementRetries < 1 {
		return fmt.Errorf("MOVEMENT_RETRIES must be at least 1")
	}
	if c.LockDriver == LockDriverRedis && c.LockTTL <= 0 {
		return fmt.Errorf("LOCK_TTL must be positive when using redis locks")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}
