package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable.
type Config struct {
	Env  string // application environment (e.g. "dev", "prod")
	Port string // HTTP port to listen on

	DBDriver  string        // mysql | postgres | sqlite
	DBDSN     string        // DSN for postgres and sqlite
	DBUser    string        // mysql user
	DBPass    string        // mysql password (optional)
	DBHost    string        // mysql host
	DBPort    string        // mysql port
	DBName    string        // mysql database
	DBTimeout time.Duration // upper bound for one service operation

	JWTSecret  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	BcryptCost int

	RabbitMQURL    string // empty disables activity publishing
	ActivityLogDir string // where the worker appends activity.log
}

// Load reads configuration values from environment variables and returns a
// Config. Missing required variables and unparsable values cause the program
// to exit with a fatal log message.
func Load() Config {
	cfg := Config{
		Env:            envStr("APP_ENV", "dev"),
		Port:           envStr("APP_PORT", "8080"),
		DBDriver:       envStr("DB_DRIVER", "sqlite"),
		DBDSN:          os.Getenv("DB_DSN"),
		DBPass:         os.Getenv("DB_PASS"),
		DBTimeout:      mustDur("DB_TIMEOUT", 5*time.Second),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTL:      mustDur("ACCESS_TOKEN_TTL", time.Hour),
		RefreshTTL:     mustDur("REFRESH_TOKEN_TTL", 30*24*time.Hour),
		BcryptCost:     mustInt("BCRYPT_COST", 10),
		RabbitMQURL:    os.Getenv("RABBITMQ_URL"),
		ActivityLogDir: envStr("ACTIVITY_LOG_DIR", "logs"),
	}

	switch cfg.DBDriver {
	case "mysql":
		cfg.DBUser = must("DB_USER")
		cfg.DBHost = must("DB_HOST")
		cfg.DBPort = envStr("DB_PORT", "3306")
		cfg.DBName = must("DB_NAME")
	case "postgres":
		cfg.DBDSN = must("DB_DSN")
	case "sqlite":
		if cfg.DBDSN == "" {
			cfg.DBDSN = "tradeflow.db"
		}
	default:
		log.Fatalf("invalid DB_DRIVER: %q", cfg.DBDriver)
	}
	return cfg
}

// WorkerConfig is what the activity consumer needs; it does not require
// the API secrets.
type WorkerConfig struct {
	RabbitMQURL    string
	ActivityLogDir string
}

func LoadWorker() WorkerConfig {
	return WorkerConfig{
		RabbitMQURL:    os.Getenv("RABBITMQ_URL"),
		ActivityLogDir: envStr("ACTIVITY_LOG_DIR", "logs"),
	}
}

// must retrieves the value of a required environment variable.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt reads an optional integer, failing on a value that does not parse.
func mustInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

// mustDur reads an optional positive duration such as "15m" or "720h".
func mustDur(key string, def time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		log.Fatalf("invalid duration for %s: %q", key, s)
	}
	return d
}
