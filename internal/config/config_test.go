package config

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// allConfigKeys lists every AUTOPUNCH_ env var that Load() reads.
var allConfigKeys = []string{
	"AUTOPUNCH_LISTEN_ADDR",
	"AUTOPUNCH_DB_PATH",
	"AUTOPUNCH_VAULT_BIN",
	"AUTOPUNCH_VAULT_ITEM",
	"AUTOPUNCH_PORTAL_URL",
	"AUTOPUNCH_CHROME_PATH",
	"AUTOPUNCH_HEADLESS",
	"AUTOPUNCH_OUTPUT_DIR",
	"AUTOPUNCH_CACHE_PATH",
	"AUTOPUNCH_CACHE_KEY",
	"AUTOPUNCH_SCHEDULER_TICK",
	"AUTOPUNCH_MISFIRE_GRACE",
	"AUTOPUNCH_WORKERS",
	"AUTOPUNCH_SECRET_TTL",
	"AUTOPUNCH_LOG_LEVEL",
	"AUTOPUNCH_LOG_FORMAT",
	"AUTOPUNCH_LOG_FILE",
}

// isolateConfigEnv saves and unsets all AUTOPUNCH_ env vars so tests don't
// inherit values from the host environment (e.g. a local .env).
// t.Cleanup restores original values after the test.
func isolateConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range allConfigKeys {
		if orig, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { os.Setenv(key, orig) })
		} else {
			t.Cleanup(func() { os.Unsetenv(key) })
		}
		os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	isolateConfigEnv(t)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr)
	assert.Equal(t, "autopunch.db", cfg.DBPath)
	assert.Equal(t, "", cfg.VaultBinary)
	assert.Equal(t, "TouchOnTime", cfg.VaultItem)
	assert.Equal(t, DefaultPortalURL, cfg.PortalURL)
	assert.False(t, cfg.Headless)
	assert.Equal(t, "output", cfg.OutputDir)
	assert.Equal(t, ".secrets.json", cfg.CachePath)
	assert.Nil(t, cfg.CacheKey)
	assert.Equal(t, 15*time.Second, cfg.SchedulerTick)
	assert.Equal(t, time.Hour, cfg.MisfireGrace)
	assert.Equal(t, int64(1), cfg.Workers)
	assert.Equal(t, 12*time.Hour, cfg.SecretTTL)
	assert.Equal(t, "logs/app.log", cfg.LogFile)
}

func TestLoad_Success(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("AUTOPUNCH_LISTEN_ADDR", "0.0.0.0:9090")
	t.Setenv("AUTOPUNCH_DB_PATH", "/tmp/test.db")
	t.Setenv("AUTOPUNCH_VAULT_BIN", "/opt/bw/bw")
	t.Setenv("AUTOPUNCH_VAULT_ITEM", "Portal Login")
	t.Setenv("AUTOPUNCH_HEADLESS", "true")
	t.Setenv("AUTOPUNCH_MISFIRE_GRACE", "30m")
	t.Setenv("AUTOPUNCH_WORKERS", "2")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9090", cfg.ListenAddr)
	assert.Equal(t, "/tmp/test.db", cfg.DBPath)
	assert.Equal(t, "/opt/bw/bw", cfg.VaultBinary)
	assert.Equal(t, "Portal Login", cfg.VaultItem)
	assert.True(t, cfg.Headless)
	assert.Equal(t, 30*time.Minute, cfg.MisfireGrace)
	assert.Equal(t, int64(2), cfg.Workers)
}

func TestLoadWith_MapLookuper(t *testing.T) {
	cfg, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{
		"AUTOPUNCH_LOG_LEVEL":  "debug",
		"AUTOPUNCH_LOG_FORMAT": "json",
	}))

	require.NoError(t, err)
	level, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_InvalidSchedulerTick(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("AUTOPUNCH_SCHEDULER_TICK", "not-a-duration")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "process environment")
}

func TestLoad_ZeroWorkers(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("AUTOPUNCH_WORKERS", "0")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AUTOPUNCH_WORKERS")
}

func TestLoad_InvalidLogFormat(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("AUTOPUNCH_LOG_FORMAT", "xml")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AUTOPUNCH_LOG_FORMAT")
}

func TestLoad_InvalidLogLevel(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("AUTOPUNCH_LOG_LEVEL", "loud")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AUTOPUNCH_LOG_LEVEL")
}

func TestLoad_CacheKey_Valid(t *testing.T) {
	isolateConfigEnv(t)
	// 64 hex chars = 32 bytes
	t.Setenv("AUTOPUNCH_CACHE_KEY", "0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f20")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Len(t, cfg.CacheKey, 32)
}

func TestLoad_CacheKey_TooShort(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("AUTOPUNCH_CACHE_KEY", "deadbeef")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AUTOPUNCH_CACHE_KEY")
}

func TestLoad_CacheKey_NotHex(t *testing.T) {
	isolateConfigEnv(t)
	// 64 chars but not valid hex
	t.Setenv("AUTOPUNCH_CACHE_KEY", "zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AUTOPUNCH_CACHE_KEY")
}
