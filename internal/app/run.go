package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cun0/vessel-notify/internal/auth"
	"github.com/cun0/vessel-notify/internal/broadcast"
	"github.com/cun0/vessel-notify/internal/config"
	"github.com/cun0/vessel-notify/internal/httpserver"
	"github.com/cun0/vessel-notify/internal/ingest"
	"github.com/cun0/vessel-notify/internal/jsonlog"
	"github.com/cun0/vessel-notify/internal/repo"
	"github.com/cun0/vessel-notify/internal/screening"
)

const supervisorStopTimeout = 5 * time.Second

// Options carries command-line overrides; empty fields fall back to the environment.
type Options struct {
	Version   string
	BuildTime string
	LogLevel  string
	LogFormat string
	Port      int
}

func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	if opts.LogFormat != "" {
		cfg.Log.Format = opts.LogFormat
	}
	if opts.Port > 0 {
		cfg.HTTP.Port = opts.Port
	}

	level, err := jsonlog.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger := jsonlog.NewWithFormat(os.Stdout, level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := repo.NewPool(ctx, cfg.DB)
	if err != nil {
		return err
	}
	// pool outlives the server: in-flight screening sessions still write to it during shutdown.
	defer pool.Close()

	notifications := repo.NewNotificationRepo(pool, cfg.DB.QueryTimeout)

	hub := broadcast.NewHub(broadcast.Config{
		MaxSubscribers:  cfg.Stream.MaxSubscribers,
		OutboxSize:      cfg.Stream.OutboxSize,
		HeartbeatPeriod: cfg.Stream.HeartbeatPeriod,
		IdleTimeout:     cfg.Stream.IdleTimeout,
	}, logger)

	provider := screening.NewClient(screening.ClientConfig{
		BaseURL:     cfg.Screening.BaseURL,
		APIKey:      cfg.Screening.APIKey,
		Username:    cfg.Screening.Username,
		CallTimeout: cfg.Screening.CallTimeout,
		RateLimit:   cfg.Screening.RateLimit,
		RateBurst:   cfg.Screening.RateBurst,
	})
	engine := screening.NewEngine(provider, notifications, hub, logger)
	supervisor := screening.NewSupervisor(engine, logger)

	checker, closeChecker, err := newChecker(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeChecker()

	coordinator := ingest.NewCoordinator(notifications, supervisor, hub, logger)

	handler := httpserver.BuildHandler(httpserver.Config{
		RequestTimeout: cfg.HTTP.RequestTimeout,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	}, logger, coordinator, notifications, hub, checker)

	logger.PrintInfo("service started", map[string]string{
		"version":    opts.Version,
		"build_time": opts.BuildTime,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return hub.Run(gctx)
	})
	g.Go(func() error {
		return httpserver.Serve(gctx, cfg.HTTP, logger, handler, func(sctx context.Context) error {
			// streams first, so the server drain is not held open by subscribers
			hub.Close()

			// leave part of the shutdown budget for the server drain
			stopCtx, cancel := context.WithTimeout(sctx, supervisorStopTimeout)
			defer cancel()
			err := supervisor.Stop(stopCtx)
			if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			if n := supervisor.InFlight(); n > 0 {
				logger.PrintWarn("screening sessions abandoned at shutdown", map[string]string{
					"in_flight": strconv.Itoa(n),
				})
			}
			return nil
		})
	})

	return g.Wait()
}

// newChecker wraps the auth client in a Redis-backed cache when REDIS_URL is set.
func newChecker(ctx context.Context, cfg config.Config, logger *jsonlog.Logger) (auth.Checker, func(), error) {
	client := auth.NewClient(cfg.Auth.BaseURL, cfg.Auth.CallTimeout)

	rdb, err := auth.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	if rdb == nil {
		return client, func() {}, nil
	}

	logger.PrintInfo("auth cache enabled", map[string]string{
		"ttl": cfg.Auth.CacheTTL.String(),
	})
	cached := auth.NewCachedChecker(client, auth.NewRedisCache(rdb), cfg.Auth.CacheTTL, logger)
	return cached, func() { _ = rdb.Close() }, nil
}
