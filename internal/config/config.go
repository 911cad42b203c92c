// Package config defines the top-level configuration for the polydash
// backend and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by POLYDASH_* environment variables.
type Config struct {
	Polymarket PolymarketConfig `toml:"polymarket"`
	OpenRouter OpenRouterConfig `toml:"openrouter"`
	Stream     StreamConfig     `toml:"stream"`
	Supabase   SupabaseConfig   `toml:"supabase"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Pipeline   PipelineConfig   `toml:"pipeline"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// PolymarketConfig holds the upstream Polymarket endpoints.
type PolymarketConfig struct {
	GammaHost   string   `toml:"gamma_host"`
	ClobHost    string   `toml:"clob_host"`
	DataHost    string   `toml:"data_host"`
	WebHost     string   `toml:"web_host"`
	UserAgent   string   `toml:"user_agent"`
	HTTPTimeout duration `toml:"http_timeout"`
}

// OpenRouterConfig holds the LLM completion endpoint and retry policy.
type OpenRouterConfig struct {
	BaseURL     string   `toml:"base_url"`
	APIKey      string   `toml:"api_key"`
	Model       string   `toml:"model"`
	MaxRetries  int      `toml:"max_retries"`
	BaseBackoff duration `toml:"base_backoff"`
	Timeout     duration `toml:"timeout"`
	CacheTTL    duration `toml:"cache_ttl"`
}

// StreamConfig holds price-stream timing.
type StreamConfig struct {
	PollInterval      duration `toml:"poll_interval"`
	HeartbeatInterval duration `toml:"heartbeat_interval"`
	BufferSize        int      `toml:"buffer_size"`
}

// SupabaseConfig holds PostgreSQL / Supabase connection parameters.
type SupabaseConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool     `toml:"enabled"`
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	MarketTTL  duration `toml:"market_ttl"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// PipelineConfig holds market snapshot parameters.
type PipelineConfig struct {
	Enabled          bool     `toml:"enabled"`
	SnapshotInterval duration `toml:"snapshot_interval"`
	SnapshotLimit    int      `toml:"snapshot_limit"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// APIKey enables X-API-Key authentication when non-empty.
	APIKey string `toml:"api_key"`
	// RateLimitPerMinute applies per-client limits when Redis is enabled; 0 disables.
	RateLimitPerMinute int `toml:"rate_limit_per_minute"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Polymarket: PolymarketConfig{
			GammaHost:   "https://gamma-api.polymarket.com",
			ClobHost:    "https://clob.polymarket.com",
			DataHost:    "https://data-api.polymarket.com",
			WebHost:     "https://polymarket.com",
			UserAgent:   "Mozilla/5.0",
			HTTPTimeout: duration{30 * time.Second},
		},
		OpenRouter: OpenRouterConfig{
			BaseURL:     "https://openrouter.ai/api/v1",
			Model:       "z-ai/glm-4.5-air:free",
			MaxRetries:  3,
			BaseBackoff: duration{500 * time.Millisecond},
			Timeout:     duration{60 * time.Second},
			CacheTTL:    duration{24 * time.Hour},
		},
		Stream: StreamConfig{
			PollInterval:      duration{2 * time.Second},
			HeartbeatInterval: duration{10 * time.Second},
			BufferSize:        64,
		},
		Supabase: SupabaseConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			MarketTTL:  duration{60 * time.Second},
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "polydash-snapshots",
			ForcePathStyle: true,
		},
		Pipeline: PipelineConfig{
			Enabled:          false,
			SnapshotInterval: duration{5 * time.Minute},
			SnapshotLimit:    500,
		},
		Server: ServerConfig{
			Port:               8000,
			CORSOrigins:        []string{"http://localhost:3000"},
			RateLimitPerMinute: 120,
		},
		Notify: NotifyConfig{
			Events: []string{"snapshot_failed", "error"},
		},
		Mode:     "server",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server":   true,
	"snapshot": true,
	"full":     true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	mode := strings.ToLower(c.Mode)
	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, snapshot, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Polymarket endpoints
	hosts := []struct{ name, value string }{
		{"gamma_host", c.Polymarket.GammaHost},
		{"clob_host", c.Polymarket.ClobHost},
		{"data_host", c.Polymarket.DataHost},
		{"web_host", c.Polymarket.WebHost},
	}
	for _, h := range hosts {
		if strings.TrimSpace(h.value) == "" {
			errs = append(errs, "polymarket: "+h.name+" must not be empty")
		}
	}

	// OpenRouter
	if c.OpenRouter.BaseURL == "" {
		errs = append(errs, "openrouter: base_url must not be empty")
	}
	if c.OpenRouter.MaxRetries < 0 {
		errs = append(errs, "openrouter: max_retries must be >= 0")
	}

	// Stream
	if c.Stream.PollInterval.Duration <= 0 {
		errs = append(errs, "stream: poll_interval must be > 0")
	}
	if c.Stream.HeartbeatInterval.Duration <= 0 {
		errs = append(errs, "stream: heartbeat_interval must be > 0")
	}
	if c.Stream.BufferSize < 1 {
		errs = append(errs, "stream: buffer_size must be >= 1")
	}

	// Supabase
	if c.Supabase.Enabled {
		if strings.TrimSpace(c.Supabase.DSN) == "" {
			if c.Supabase.Host == "" {
				errs = append(errs, "supabase: host must not be empty (or set supabase.dsn)")
			}
			if c.Supabase.Port <= 0 || c.Supabase.Port > 65535 {
				errs = append(errs, fmt.Sprintf("supabase: port must be 1-65535, got %d", c.Supabase.Port))
			}
			if c.Supabase.Database == "" {
				errs = append(errs, "supabase: database must not be empty")
			}
		}
		if c.Supabase.PoolMaxConns < 1 {
			errs = append(errs, "supabase: pool_max_conns must be >= 1")
		}
		if c.Supabase.PoolMinConns > c.Supabase.PoolMaxConns {
			errs = append(errs, "supabase: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
	}

	// Pipeline
	if mode == "snapshot" || (mode == "full" && c.Pipeline.Enabled) {
		if c.Pipeline.SnapshotInterval.Duration <= 0 {
			errs = append(errs, "pipeline: snapshot_interval must be > 0")
		}
		if !c.Redis.Enabled && !c.S3.Enabled {
			errs = append(errs, "pipeline: snapshots need redis.enabled or s3.enabled")
		}
	}

	// Server
	if mode != "snapshot" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimitPerMinute < 0 {
			errs = append(errs, "server: rate_limit_per_minute must be >= 0")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
