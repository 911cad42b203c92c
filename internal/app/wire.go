package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/polydash/internal/blob/s3"
	"github.com/alanyoungcy/polydash/internal/cache/redis"
	"github.com/alanyoungcy/polydash/internal/config"
	"github.com/alanyoungcy/polydash/internal/domain"
	"github.com/alanyoungcy/polydash/internal/notify"
	"github.com/alanyoungcy/polydash/internal/platform/openrouter"
	"github.com/alanyoungcy/polydash/internal/platform/polymarket"
	"github.com/alanyoungcy/polydash/internal/server/handler"
	"github.com/alanyoungcy/polydash/internal/store/postgres"
)

// Dependencies bundles the upstream clients and the optional backends. A
// backend that is disabled in the configuration leaves its fields nil.
type Dependencies struct {
	// Upstreams
	Gamma *polymarket.GammaClient
	Clob  *polymarket.ClobClient
	Data  *polymarket.DataClient
	Web   *polymarket.WebClient
	LLM   *openrouter.Client

	// Caches
	MarketCache   domain.MarketCache
	AnalysisCache domain.AnalysisCache
	RateLimiter   domain.RateLimiter
	LockManager   domain.LockManager

	// Stores
	AnalysisStore      domain.AnalysisStore
	StatsSnapshotStore domain.StatsSnapshotStore

	// Blob storage
	BlobWriter domain.BlobWriter
	BlobReader domain.BlobReader

	// Notifications
	Notifier *notify.Notifier

	// HealthChecks reports connectivity of each enabled backend for /api/health.
	HealthChecks map[string]handler.BackendCheck
}

// Backends reports which optional backends were wired.
func (d *Dependencies) Backends(llmEnabled, snapshots bool) handler.Backends {
	return handler.Backends{
		Redis:     d.MarketCache != nil,
		Postgres:  d.AnalysisStore != nil,
		S3:        d.BlobWriter != nil,
		LLM:       llmEnabled,
		Snapshots: snapshots,
	}
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{HealthChecks: make(map[string]handler.BackendCheck)}

	// --- Upstream clients ---
	pmOpts := []polymarket.Option{
		polymarket.WithTimeout(cfg.Polymarket.HTTPTimeout.Duration),
		polymarket.WithUserAgent(cfg.Polymarket.UserAgent),
	}
	deps.Gamma = polymarket.NewGammaClient(cfg.Polymarket.GammaHost, pmOpts...)
	deps.Clob = polymarket.NewClobClient(cfg.Polymarket.ClobHost, pmOpts...)
	deps.Data = polymarket.NewDataClient(cfg.Polymarket.DataHost, pmOpts...)
	deps.Web = polymarket.NewWebClient(cfg.Polymarket.WebHost, pmOpts...)
	deps.LLM = openrouter.New(openrouter.Config{
		BaseURL:     cfg.OpenRouter.BaseURL,
		APIKey:      cfg.OpenRouter.APIKey,
		Model:       cfg.OpenRouter.Model,
		MaxRetries:  cfg.OpenRouter.MaxRetries,
		BaseBackoff: cfg.OpenRouter.BaseBackoff.Duration,
		Timeout:     cfg.OpenRouter.Timeout.Duration,
	}, logger.With(slog.String("component", "openrouter")))

	// --- PostgreSQL / Supabase ---
	if cfg.Supabase.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Supabase.DSN,
			Host:     cfg.Supabase.Host,
			Port:     cfg.Supabase.Port,
			Database: cfg.Supabase.Database,
			User:     cfg.Supabase.User,
			Password: cfg.Supabase.Password,
			SSLMode:  cfg.Supabase.SSLMode,
			MaxConns: cfg.Supabase.PoolMaxConns,
			MinConns: cfg.Supabase.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Supabase.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.AnalysisStore = postgres.NewAnalysisStore(pool)
		deps.StatsSnapshotStore = postgres.NewStatsSnapshotStore(pool)
		deps.HealthChecks["postgres"] = func(ctx context.Context) error { return pool.Ping(ctx) }
	}

	// --- Redis ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.MarketCache = redis.NewMarketCache(redisClient)
		deps.AnalysisCache = redis.NewAnalysisCache(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.HealthChecks["redis"] = redisClient.Ping
	}

	// --- S3 blob storage ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.BlobReader = s3blob.NewReader(s3Client)
		deps.HealthChecks["s3"] = s3Client.Health
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger.With(slog.String("component", "notify")))

	logger.InfoContext(ctx, "dependencies wired",
		slog.Bool("redis", cfg.Redis.Enabled),
		slog.Bool("postgres", cfg.Supabase.Enabled),
		slog.Bool("s3", cfg.S3.Enabled),
		slog.Int("notify_senders", len(senders)),
	)
	return deps, cleanup, nil
}
