// Package main - точка входа HTTP-сервиса геймификации.
//
// Сервис принимает начисления XP от подсистем оценок, посещаемости,
// проектов и курсов, ведёт серии и бейджи и отдаёт лидерборды.
//
// Слои:
// - Domain: журнал XP, бейджи, серии, лидерборд
// - Application: команды, запросы, саги и обработчики событий
// - Infrastructure: PostgreSQL или SQLite, Redis, каталог бейджей
// - Interface: HTTP API
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alem-hub/alem-gamification/config"
	"github.com/alem-hub/alem-gamification/internal/application"
	"github.com/alem-hub/alem-gamification/internal/domain/leaderboard"
	"github.com/alem-hub/alem-gamification/internal/domain/ledger"
	"github.com/alem-hub/alem-gamification/internal/infrastructure/messaging"
	"github.com/alem-hub/alem-gamification/internal/infrastructure/persistence"
	"github.com/alem-hub/alem-gamification/internal/infrastructure/persistence/postgres"
	"github.com/alem-hub/alem-gamification/internal/infrastructure/persistence/redis"
	httpserver "github.com/alem-hub/alem-gamification/internal/interface/http"
	"github.com/alem-hub/alem-gamification/internal/interface/http/handlers"
	"github.com/alem-hub/alem-gamification/pkg/logger"
	"github.com/alem-hub/alem-gamification/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting gamification service",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"timezone", cfg.Gamification.Timezone,
		"driver", cfg.Database.Driver,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ХРАНИЛИЩЕ И МИГРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("opening store...")
	storeOptions := persistence.Options{
		Driver:      cfg.Database.Driver,
		PostgresURL: cfg.Database.URL,
		Pool: postgres.PoolOptions{
			MaxConns:        int32(cfg.Database.MaxConns),
			MinConns:        int32(cfg.Database.MinConns),
			MaxConnLifetime: cfg.Database.ConnMaxLifetime,
			MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
		},
		SQLitePath: cfg.Database.SQLitePath,
	}
	// База может подниматься дольше сервиса (docker compose).
	startup := retry.StartupRetrier(retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
		log.Warn("store not reachable yet, retrying", "attempt", attempt, "delay", delay.String(), "error", err)
	}))
	stores, err := retry.DoWithData(ctx, startup, func(ctx context.Context) (*persistence.Stores, error) {
		s, err := persistence.Open(ctx, storeOptions)
		if errors.Is(err, persistence.ErrUnknownDriver) {
			return nil, retry.Permanent(err)
		}
		return s, err
	})
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		log.Info("closing store...")
		_ = stores.Close()
	}()

	if err := stores.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	if v, err := stores.Version(ctx); err != nil {
		log.Warn("failed to get migration version", "error", err)
	} else {
		log.Info("migrations completed", "version", v)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS (опционально, только кеш лидерборда)
	// ─────────────────────────────────────────────────────────────────────────
	var (
		redisCache       *redis.Cache
		leaderboardCache leaderboard.Cache
	)
	if !cfg.Redis.Disabled && cfg.Features.IsEnabled(config.FeatureLeaderboardCache) {
		redisCache, err = redis.NewCache(ctx, redis.Config{
			URL:          cfg.Redis.URL,
			Addr:         cfg.Redis.Addr(),
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
			KeyPrefix:    cfg.Redis.KeyPrefix,
		})
		if err != nil {
			// Лидерборд считается из журнала и без кеша.
			log.Warn("failed to connect to Redis, leaderboard cache disabled", "error", err)
		} else {
			defer redisCache.Close()
			leaderboardCache = redis.NewLeaderboardCache(redisCache)
			log.Info("Redis connection established", "addr", cfg.Redis.Addr())
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ПОЛИТИКА НАЧИСЛЕНИЙ
	// ─────────────────────────────────────────────────────────────────────────
	policy, err := config.LoadPolicy(cfg.Gamification.PolicyFile, log)
	if err != nil {
		return fmt.Errorf("failed to load point policy: %w", err)
	}
	if cfg.Gamification.PolicyFile != "" {
		policy.OnReload = func(p ledger.Policy) {
			log.Info("point policy reloaded", "milestones", p.MilestoneDays())
		}
		policy.Watch()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	eventBusConfig := messaging.DefaultInMemoryEventBusConfig()
	eventBusConfig.Logger = log
	eventBus := messaging.NewInMemoryEventBus(eventBusConfig)
	defer func() {
		log.Info("closing event bus...")
		_ = eventBus.Close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 7. APPLICATION LAYER
	// ─────────────────────────────────────────────────────────────────────────
	app, err := application.New(application.Repositories{
		Ledger:      stores.Ledger,
		Badges:      stores.Badges,
		Streaks:     stores.Streaks,
		Roster:      stores.Roster,
		Leaderboard: stores.Leaderboard,
	}, eventBus, application.Options{
		Location:            cfg.Gamification.Location,
		Logger:              log,
		Policy:              policy,
		Cache:               leaderboardCache,
		LeaderboardCacheTTL: cfg.Gamification.LeaderboardCacheTTL,
		BadgeParallelism:    cfg.Gamification.BadgeParallelism,
		DisableDailyBonus:   !cfg.Features.IsEnabled(config.FeatureStreakDailyBonus),
		DisableMilestones:   !cfg.Features.IsEnabled(config.FeatureStreakMilestones),
		DisableBadgeRewards: !cfg.Features.IsEnabled(config.FeatureBadgeXPReward),
	})
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. HEALTH CHECKS
	// ─────────────────────────────────────────────────────────────────────────
	health := handlers.NewCompositeHealthChecker(cfg.App.Version)
	health.AddCheck("store", true, stores.Ping)
	if redisCache != nil {
		health.AddCheck("redis", false, handlers.PingCheck(redisCache))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	httpConfig := httpserver.DefaultConfig()
	httpConfig.Addr = cfg.HTTP.Addr
	httpConfig.ReadTimeout = cfg.HTTP.ReadTimeout
	httpConfig.ReadHeaderTimeout = cfg.HTTP.ReadHeaderTimeout
	httpConfig.WriteTimeout = cfg.HTTP.WriteTimeout
	httpConfig.IdleTimeout = cfg.HTTP.IdleTimeout
	httpConfig.Version = cfg.App.Version

	server := httpserver.NewServer(httpConfig, httpserver.Dependencies{
		AwardHandler:          app.Award,
		XPHandler:             app.XP,
		GetBadgesHandler:      app.Badges,
		GetStreakHandler:      app.Streak,
		GetLeaderboardHandler: app.Leaderboard,
		Logger:                logger.New(logger.Options{Level: logger.ParseLevel(cfg.Observability.LogLevel)}),
		HealthChecker:         health,
	})
	errCh := server.StartAsync()

	// ─────────────────────────────────────────────────────────────────────────
	// 10. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("gamification service is running", "addr", cfg.HTTP.Addr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err, ok := <-errCh:
		if ok && err != nil {
			log.Error("http server error", "error", err)
			return err
		}
	case <-ctx.Done():
	}

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	uptime := server.Uptime()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", "error", err)
		return err
	}

	// Асинхронные обработчики (аудит, инвалидация кеша) дорабатывают до закрытия шины.
	eventBus.Wait()

	log.Info("shutdown completed", "uptime", uptime.Round(time.Second).String())
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLogger настраивает slog по LOG_LEVEL и LOG_FORMAT.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	switch strings.ToLower(cfg.Observability.LogLevel) {
	case "debug":
		opts.Level = slog.LevelDebug
	case "warn", "warning":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)
	return log
}
