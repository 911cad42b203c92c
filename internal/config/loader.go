package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies POLYDASH_* environment variable overrides, and
// returns the final Config. A missing file is not an error: the defaults plus
// environment are used. The returned Config has NOT been validated; the caller
// should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known POLYDASH_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty).
func applyEnvOverrides(cfg *Config) {
	// ── Polymarket ──
	setStr(&cfg.Polymarket.GammaHost, "POLYDASH_POLYMARKET_GAMMA_HOST")
	setStr(&cfg.Polymarket.ClobHost, "POLYDASH_POLYMARKET_CLOB_HOST")
	setStr(&cfg.Polymarket.DataHost, "POLYDASH_POLYMARKET_DATA_HOST")
	setStr(&cfg.Polymarket.WebHost, "POLYDASH_POLYMARKET_WEB_HOST")
	setStr(&cfg.Polymarket.UserAgent, "POLYDASH_POLYMARKET_USER_AGENT")
	setDuration(&cfg.Polymarket.HTTPTimeout, "POLYDASH_POLYMARKET_HTTP_TIMEOUT")

	// ── OpenRouter ──
	setStr(&cfg.OpenRouter.BaseURL, "POLYDASH_OPENROUTER_BASE_URL")
	setStr(&cfg.OpenRouter.APIKey, "POLYDASH_OPENROUTER_API_KEY")
	setStr(&cfg.OpenRouter.APIKey, "OPENROUTER_API_KEY") // compatibility alias
	setStr(&cfg.OpenRouter.Model, "POLYDASH_OPENROUTER_MODEL")
	setInt(&cfg.OpenRouter.MaxRetries, "POLYDASH_OPENROUTER_MAX_RETRIES")
	setDuration(&cfg.OpenRouter.BaseBackoff, "POLYDASH_OPENROUTER_BASE_BACKOFF")
	setDuration(&cfg.OpenRouter.Timeout, "POLYDASH_OPENROUTER_TIMEOUT")
	setDuration(&cfg.OpenRouter.CacheTTL, "POLYDASH_OPENROUTER_CACHE_TTL")

	// ── Stream ──
	setDuration(&cfg.Stream.PollInterval, "POLYDASH_STREAM_POLL_INTERVAL")
	setDuration(&cfg.Stream.HeartbeatInterval, "POLYDASH_STREAM_HEARTBEAT_INTERVAL")
	setInt(&cfg.Stream.BufferSize, "POLYDASH_STREAM_BUFFER_SIZE")

	// ── Supabase ──
	setBool(&cfg.Supabase.Enabled, "POLYDASH_SUPABASE_ENABLED")
	setStr(&cfg.Supabase.DSN, "POLYDASH_SUPABASE_DSN")
	setStr(&cfg.Supabase.DSN, "POLYDASH_SUPABASE_URL") // compatibility alias
	setStr(&cfg.Supabase.Host, "POLYDASH_SUPABASE_HOST")
	setInt(&cfg.Supabase.Port, "POLYDASH_SUPABASE_PORT")
	setStr(&cfg.Supabase.Database, "POLYDASH_SUPABASE_DATABASE")
	setStr(&cfg.Supabase.User, "POLYDASH_SUPABASE_USER")
	setStr(&cfg.Supabase.Password, "POLYDASH_SUPABASE_PASSWORD")
	setStr(&cfg.Supabase.SSLMode, "POLYDASH_SUPABASE_SSL_MODE")
	setInt(&cfg.Supabase.PoolMaxConns, "POLYDASH_SUPABASE_POOL_MAX_CONNS")
	setInt(&cfg.Supabase.PoolMinConns, "POLYDASH_SUPABASE_POOL_MIN_CONNS")
	setBool(&cfg.Supabase.RunMigrations, "POLYDASH_SUPABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "POLYDASH_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "POLYDASH_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "POLYDASH_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "POLYDASH_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "POLYDASH_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "POLYDASH_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "POLYDASH_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.MarketTTL, "POLYDASH_REDIS_MARKET_TTL")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "POLYDASH_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "POLYDASH_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "POLYDASH_S3_REGION")
	setStr(&cfg.S3.Bucket, "POLYDASH_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "POLYDASH_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "POLYDASH_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "POLYDASH_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "POLYDASH_S3_FORCE_PATH_STYLE")

	// ── Pipeline ──
	setBool(&cfg.Pipeline.Enabled, "POLYDASH_PIPELINE_ENABLED")
	setDuration(&cfg.Pipeline.SnapshotInterval, "POLYDASH_PIPELINE_SNAPSHOT_INTERVAL")
	setInt(&cfg.Pipeline.SnapshotLimit, "POLYDASH_PIPELINE_SNAPSHOT_LIMIT")

	// ── Server ──
	setInt(&cfg.Server.Port, "POLYDASH_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "POLYDASH_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "POLYDASH_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimitPerMinute, "POLYDASH_SERVER_RATE_LIMIT_PER_MINUTE")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "POLYDASH_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "POLYDASH_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "POLYDASH_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "POLYDASH_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "POLYDASH_MODE")
	setStr(&cfg.LogLevel, "POLYDASH_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
