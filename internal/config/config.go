package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Telegram
	BotToken string

	// Green Coin API
	APIBaseURL string
	APITimeout time.Duration
	APIRPS     float64
	APIBurst   int

	// Webhook / side server
	WebhookURL    string
	WebhookSecret string
	HTTPPort      int

	// Identity storage
	DBPath          string
	IdentityBackend string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int

	// Dashboard
	MetadataSource string
	HistoryLimit   int

	LogLevel slog.Level
}

const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"

	SourceRandom   = "random"
	SourceMeasured = "measured"
)

func Load() *Config {
	return &Config{
		// Telegram
		BotToken: getEnv("BOT_TOKEN", ""),

		// Green Coin API
		APIBaseURL: strings.TrimSuffix(getEnv("GREENCOIN_API_URL", "http://localhost:8000"), "/"),
		APITimeout: getEnvDuration("GREENCOIN_TIMEOUT", 15*time.Second),
		APIRPS:     getEnvFloat("GREENCOIN_RPS", 4),
		APIBurst:   getEnvInt("GREENCOIN_BURST", 2),

		// Webhook / side server
		WebhookURL:    getEnv("WEBHOOK_URL", ""),
		WebhookSecret: getEnv("WEBHOOK_SECRET", ""),
		HTTPPort:      getEnvInt("HTTP_PORT", 8080),

		// Identity storage
		DBPath:          getEnv("DB_PATH", "./greencoin.db"),
		IdentityBackend: strings.ToLower(getEnv("IDENTITY_BACKEND", BackendSQLite)),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisDB:         getEnvInt("REDIS_DB", 0),

		// Dashboard
		MetadataSource: strings.ToLower(getEnv("METADATA_SOURCE", SourceRandom)),
		HistoryLimit:   getEnvInt("HISTORY_LIMIT", 10),

		LogLevel: parseLevel(getEnv("LOG_LEVEL", "info")),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
