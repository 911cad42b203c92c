package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polydash/internal/pipeline"
	"github.com/alanyoungcy/polydash/internal/server"
	"github.com/alanyoungcy/polydash/internal/server/handler"
	"github.com/alanyoungcy/polydash/internal/server/ws"
	"github.com/alanyoungcy/polydash/internal/service"
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 5 * time.Second

// services holds the domain services shared by every mode.
type services struct {
	markets  *service.MarketService
	resolver *service.Resolver
	trades   *service.TradeService
	stats    *service.StatsService
	board    *service.LeaderboardService
	analysis *service.AnalysisService
	streamer *service.PriceStreamer
}

func (a *App) buildServices(deps *Dependencies) *services {
	log := func(name string) *slog.Logger {
		return a.base.With(slog.String("component", name))
	}
	return &services{
		markets: service.NewMarketService(
			deps.Gamma, deps.Clob, deps.MarketCache,
			a.cfg.Redis.MarketTTL.Duration, log("market_service"),
		),
		resolver: service.NewResolver(deps.Web, log("resolver")),
		trades:   service.NewTradeService(deps.Data, deps.Web, log("trade_service")),
		stats:    service.NewStatsService(deps.Web, deps.Data, deps.StatsSnapshotStore, log("stats_service")),
		board:    service.NewLeaderboardService(deps.Web, deps.Data, log("leaderboard_service")),
		analysis: service.NewAnalysisService(
			deps.LLM, deps.AnalysisCache, deps.AnalysisStore,
			a.cfg.OpenRouter.CacheTTL.Duration, log("analysis_service"),
		),
		streamer: service.NewPriceStreamer(
			deps.Clob,
			a.cfg.Stream.PollInterval.Duration,
			a.cfg.Stream.HeartbeatInterval.Duration,
			a.cfg.Stream.BufferSize,
			log("price_stream"),
		),
	}
}

// ServerMode serves the HTTP API until ctx is cancelled.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	svc := a.buildServices(deps)
	a.startHTTPServer(ctx, g, deps, svc, false)
	return g.Wait()
}

// SnapshotMode runs only the market snapshot loop.
func (a *App) SnapshotMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting snapshot mode")

	g, ctx := errgroup.WithContext(ctx)
	svc := a.buildServices(deps)
	a.startSnapshotter(ctx, g, deps, svc)
	return g.Wait()
}

// FullMode serves the HTTP API and, when pipeline.enabled is set, runs the
// snapshot loop alongside it.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	svc := a.buildServices(deps)
	snapshots := a.cfg.Pipeline.Enabled
	if snapshots {
		a.startSnapshotter(ctx, g, deps, svc)
	} else {
		a.logger.WarnContext(ctx, "pipeline.enabled is false, full mode runs the server only")
	}
	a.startHTTPServer(ctx, g, deps, svc, snapshots)
	return g.Wait()
}

func (a *App) startSnapshotter(ctx context.Context, g *errgroup.Group, deps *Dependencies, svc *services) {
	snap := pipeline.NewSnapshotter(
		svc.markets,
		deps.BlobWriter,
		deps.LockManager,
		deps.Notifier,
		a.cfg.Pipeline.SnapshotLimit,
		a.base.With(slog.String("component", "snapshotter")),
	)
	interval := a.cfg.Pipeline.SnapshotInterval.Duration
	g.Go(func() error {
		a.logger.InfoContext(ctx, "snapshot loop started", slog.Duration("interval", interval))
		return snap.RunLoop(ctx, interval)
	})
}

// startHTTPServer adds the HTTP server and its shutdown watcher to g.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, svc *services, snapshots bool) {
	httpLog := a.base.With(slog.String("component", "http"))

	handlers := server.Handlers{
		Health:      handler.NewHealthHandler(deps.HealthChecks, httpLog),
		Status:      handler.NewStatusHandler(a.cfg.Mode, deps.Backends(a.cfg.OpenRouter.APIKey != "", snapshots)),
		Markets:     handler.NewMarketHandler(svc.markets, a.cfg.Pipeline.SnapshotLimit, httpLog),
		PriceStream: handler.NewPriceStreamHandler(svc.streamer, httpLog),
		Leaderboard: handler.NewLeaderboardHandler(svc.board, httpLog),
		Users:       handler.NewUserHandler(svc.resolver, svc.trades, svc.stats, httpLog),
		Analysis:    handler.NewAnalysisHandler(svc.analysis, httpLog),
	}
	if deps.BlobReader != nil {
		handlers.Snapshots = handler.NewSnapshotHandler(deps.BlobReader, httpLog)
	}
	hub := ws.NewHub(svc.streamer, a.cfg.Server.CORSOrigins, a.base.With(slog.String("component", "ws")))

	srv := server.NewServer(server.Config{
		Port:               a.cfg.Server.Port,
		CORSOrigins:        a.cfg.Server.CORSOrigins,
		APIKey:             a.cfg.Server.APIKey,
		RateLimitPerMinute: a.cfg.Server.RateLimitPerMinute,
	}, handlers, hub, deps.RateLimiter, httpLog)

	g.Go(func() error {
		a.logger.InfoContext(ctx, "HTTP server listening",
			slog.Int("port", a.cfg.Server.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", a.cfg.Server.Port)),
		)
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
