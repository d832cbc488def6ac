// Package config loads application configuration from environment variables.
package config

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// DefaultPortalURL is the personal recorder page of the time-clock portal.
const DefaultPortalURL = "https://kintai.touchontime.jp/independent/recorder/personal/"

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ListenAddr string `env:"AUTOPUNCH_LISTEN_ADDR, default=127.0.0.1:8080"`
	DBPath     string `env:"AUTOPUNCH_DB_PATH, default=autopunch.db"`

	// VaultBinary overrides the vault executable lookup. When empty the client
	// falls back to PATH and then to bin/bw_native.
	VaultBinary string `env:"AUTOPUNCH_VAULT_BIN"`
	VaultItem   string `env:"AUTOPUNCH_VAULT_ITEM, default=TouchOnTime"`

	PortalURL  string `env:"AUTOPUNCH_PORTAL_URL, default=https://kintai.touchontime.jp/independent/recorder/personal/"`
	ChromePath string `env:"AUTOPUNCH_CHROME_PATH"`
	Headless   bool   `env:"AUTOPUNCH_HEADLESS, default=false"`
	OutputDir  string `env:"AUTOPUNCH_OUTPUT_DIR, default=output"`

	CachePath   string `env:"AUTOPUNCH_CACHE_PATH, default=.secrets.json"`
	CacheKeyHex string `env:"AUTOPUNCH_CACHE_KEY"`
	// CacheKey is the decoded AES-256 key; nil leaves cached passwords unsealed.
	CacheKey []byte

	SchedulerTick time.Duration `env:"AUTOPUNCH_SCHEDULER_TICK, default=15s"`
	MisfireGrace  time.Duration `env:"AUTOPUNCH_MISFIRE_GRACE, default=1h"`
	Workers       int64         `env:"AUTOPUNCH_WORKERS, default=1"`
	SecretTTL     time.Duration `env:"AUTOPUNCH_SECRET_TTL, default=12h"`

	LogLevel  string `env:"AUTOPUNCH_LOG_LEVEL, default=info"`
	LogFormat string `env:"AUTOPUNCH_LOG_FORMAT, default=text"`
	LogFile   string `env:"AUTOPUNCH_LOG_FILE, default=logs/app.log"`
}

// Load reads configuration from the process environment and returns a
// validated Config. Every variable is optional; see the struct tags for defaults.
func Load() (*Config, error) {
	return LoadWith(context.Background(), envconfig.OsLookuper())
}

// LoadWith reads configuration through the given lookuper.
func LoadWith(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges and decodes the optional cache key.
func (c *Config) Validate() error {
	if c.VaultItem == "" {
		return fmt.Errorf("AUTOPUNCH_VAULT_ITEM must not be empty")
	}
	if c.SchedulerTick <= 0 {
		return fmt.Errorf("AUTOPUNCH_SCHEDULER_TICK must be positive, got %s", c.SchedulerTick)
	}
	if c.MisfireGrace < 0 {
		return fmt.Errorf("AUTOPUNCH_MISFIRE_GRACE must not be negative, got %s", c.MisfireGrace)
	}
	if c.Workers < 1 {
		return fmt.Errorf("AUTOPUNCH_WORKERS must be at least 1, got %d", c.Workers)
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("AUTOPUNCH_LOG_FORMAT must be \"text\" or \"json\", got %q", c.LogFormat)
	}

	if _, err := c.SlogLevel(); err != nil {
		return err
	}

	if c.CacheKeyHex != "" {
		key, err := hex.DecodeString(c.CacheKeyHex)
		if err != nil {
			return fmt.Errorf("AUTOPUNCH_CACHE_KEY is not valid hex: %w", err)
		}
		if len(key) != 32 {
			return fmt.Errorf("AUTOPUNCH_CACHE_KEY must decode to 32 bytes, got %d", len(key))
		}
		c.CacheKey = key
	}

	return nil
}

// SlogLevel parses LogLevel into a slog.Level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("AUTOPUNCH_LOG_LEVEL has invalid level %q: %w", c.LogLevel, err)
	}
	return level, nil
}
