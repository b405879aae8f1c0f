package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"BOT_TOKEN", "GREENCOIN_API_URL", "GREENCOIN_TIMEOUT", "GREENCOIN_RPS",
		"GREENCOIN_BURST", "IDENTITY_BACKEND", "METADATA_SOURCE", "HISTORY_LIMIT", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, "", cfg.BotToken)
	assert.Equal(t, "http://localhost:8000", cfg.APIBaseURL)
	assert.Equal(t, 15*time.Second, cfg.APITimeout)
	assert.Equal(t, 4.0, cfg.APIRPS)
	assert.Equal(t, 2, cfg.APIBurst)
	assert.Equal(t, BackendSQLite, cfg.IdentityBackend)
	assert.Equal(t, SourceRandom, cfg.MetadataSource)
	assert.Equal(t, 10, cfg.HistoryLimit)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("GREENCOIN_API_URL", "https://api.example.org/")
	t.Setenv("GREENCOIN_TIMEOUT", "3s")
	t.Setenv("GREENCOIN_RPS", "0.5")
	t.Setenv("IDENTITY_BACKEND", "Redis")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("METADATA_SOURCE", "measured")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := Load()
	assert.Equal(t, "https://api.example.org", cfg.APIBaseURL)
	assert.Equal(t, 3*time.Second, cfg.APITimeout)
	assert.Equal(t, 0.5, cfg.APIRPS)
	assert.Equal(t, BackendRedis, cfg.IdentityBackend)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, SourceMeasured, cfg.MetadataSource)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoadBadValuesFallBack(t *testing.T) {
	t.Setenv("GREENCOIN_TIMEOUT", "soon")
	t.Setenv("HISTORY_LIMIT", "ten")
	t.Setenv("LOG_LEVEL", "loud")

	cfg := Load()
	assert.Equal(t, 15*time.Second, cfg.APITimeout)
	assert.Equal(t, 10, cfg.HistoryLimit)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}
