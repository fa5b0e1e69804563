// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Config is the process configuration, read from the environment. cmd mains
// import godotenv/autoload so a local .env file is honored.
type Config struct {
	Port     string
	Env      string
	LogLevel string

	StoreDriver string
	DatabaseURL string
	PGUser      string
	PGPassword  string
	PGHost      string
	PGPort      string
	PGDatabase  string

	TransportDriver string
	RedisAddr       string
	RedisDB         int
	StatsQueue      string

	HeartbeatInterval time.Duration
	MaxPlayers        int
	ChildGames        []string

	HistorianBatchSize int
	HistorianFlush     time.Duration
}

// Load reads every key with its default.
func Load() Config {
	return Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("PARTYROOM_ENV", "dev"),
		LogLevel: getEnv("LOG_LEVEL", ""),

		StoreDriver: getEnv("STORE_DRIVER", "memory"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		PGUser:      getEnv("POSTGRES_USER", "postgres"),
		PGPassword:  getEnv("POSTGRES_PASSWORD", ""),
		PGHost:      getEnv("PG_HOST", "localhost"),
		PGPort:      getEnv("PG_PORT", "5432"),
		PGDatabase:  getEnv("PG_DATABASE", "partyroom"),

		TransportDriver: getEnv("TRANSPORT_DRIVER", "memory"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:         getEnvInt("REDIS_DB", 0),
		StatsQueue:      getEnv("STATS_QUEUE_NAME", "partyroom_stats"),

		HeartbeatInterval: getEnvDuration("HEARTBEAT_INTERVAL", 10*time.Second),
		MaxPlayers:        getEnvInt("MAX_PLAYERS", 8),
		ChildGames:        getEnvList("CHILD_GAMES", []string{"kids-trivia", "pictionary-jr", "animal-charades"}),

		HistorianBatchSize: getEnvInt("HISTORIAN_BATCH_SIZE", 20),
		HistorianFlush:     time.Duration(getEnvInt("HISTORIAN_FLUSH_MS", 500)) * time.Millisecond,
	}
}

// DSN is DATABASE_URL when set, otherwise it is assembled from the PG_* keys.
func (c Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", c.PGUser, c.PGPassword, c.PGHost, c.PGPort, c.PGDatabase)
}

// Production reports whether PARTYROOM_ENV is "production".
func (c Config) Production() bool {
	return c.Env == "production"
}

// Level resolves LOG_LEVEL, defaulting to debug in dev and info in production.
func (c Config) Level() logrus.Level {
	if c.LogLevel != "" {
		if lvl, err := logrus.ParseLevel(c.LogLevel); err == nil {
			return lvl
		}
	}
	if c.Production() {
		return logrus.InfoLevel
	}
	return logrus.DebugLevel
}

// NewLogger builds the process logger. Production logs are JSON.
func (c Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.Level())
	if c.Production() {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

// getEnvDuration accepts Go duration syntax or a bare number of seconds.
func getEnvDuration(key string, def time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return def
}

func getEnvList(key string, def []string) []string {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
