// Package main - точка входа HTTP-сервиса Progression Engine.
//
// Сервис начисляет XP, ведёт серии активности и дневные цели, выдаёт
// достижения и отдаёт лидерборды. Состояние хранится в PostgreSQL; без
// DATABASE_URL сервис работает на in-memory хранилище (режим разработки).
// Redis опционален: кеш лидерборда и доставка событий между инстансами.
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

	"github.com/alem-hub/progression-engine/config"
	"github.com/alem-hub/progression-engine/internal/application/command"
	"github.com/alem-hub/progression-engine/internal/application/query"
	"github.com/alem-hub/progression-engine/internal/domain/progression"
	"github.com/alem-hub/progression-engine/internal/domain/shared"
	"github.com/alem-hub/progression-engine/internal/infrastructure/messaging"
	"github.com/alem-hub/progression-engine/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/progression-engine/internal/infrastructure/persistence/postgres"
	"github.com/alem-hub/progression-engine/internal/infrastructure/persistence/redis"
	httpserver "github.com/alem-hub/progression-engine/internal/interface/http"
	"github.com/alem-hub/progression-engine/internal/interface/http/handlers"
	"github.com/alem-hub/progression-engine/pkg/logger"
	"github.com/alem-hub/progression-engine/pkg/retry"
)

// backend - всё, что сервис требует от хранилища. Реализуется и
// postgres.Store, и memory.Store.
type backend interface {
	progression.Store
	progression.LedgerReader
	progression.StreakReader
	progression.DailyGoalReader
	progression.AchievementReader
	progression.LeaderboardReader
	progression.Catalog
	progression.ActivityCounter
	progression.UserDirectory
}

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
	log.Info("starting progression engine",
		"env", string(cfg.App.Environment),
		"version", cfg.App.Version,
		"timezone", cfg.App.Timezone,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ХРАНИЛИЩЕ (PostgreSQL или in-memory)
	// ─────────────────────────────────────────────────────────────────────────
	var store backend
	health := handlers.NewCompositeHealthChecker(cfg.App.Version)

	if cfg.Database.URL != "" {
		log.Info("connecting to database...")
		dbConn, err := postgres.Connect(ctx, cfg.Database.URL, postgres.PoolOptions{
			MaxConns:          int32(cfg.Database.MaxConns),
			MinConns:          int32(cfg.Database.MinConns),
			MaxConnLifetime:   cfg.Database.ConnMaxLifetime,
			MaxConnIdleTime:   cfg.Database.ConnMaxIdleTime,
			HealthCheckPeriod: time.Minute,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer func() {
			log.Info("closing database connection...")
			dbConn.Close()
		}()

		if cfg.Database.AutoMigrate {
			log.Info("running database migrations...")
			if err := postgres.NewMigrator(dbConn).Migrate(ctx); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
		}

		store = postgres.NewStore(dbConn, log)
		health.AddCheck("postgres", handlers.NewPingCheck(dbConn))
		log.Info("database connection established")
	} else {
		log.Warn("DATABASE_URL is not set, using in-memory store")
		store = memory.NewStore(progression.DefaultCatalog())
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS И EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	local := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{
		AsyncMode:      true,
		WorkerPoolSize: 10,
		Middlewares:    []messaging.Middleware{messaging.RetryMiddleware(retry.HandlerRetrier())},
		Logger:         log,
	})

	var bus shared.EventBus = local
	var leaderboard progression.LeaderboardReader = store

	if cfg.Redis.Enabled {
		log.Info("connecting to Redis...")
		cache, err := redis.NewCache(ctx, redisConfig(cfg.Redis))
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer func() {
			log.Info("closing Redis connection...")
			_ = cache.Close()
		}()
		health.AddOptionalCheck("redis", handlers.NewPingCheck(cache))

		boardCache := redis.NewLeaderboardCache(store, cache, redis.LeaderboardCacheConfig{
			TTL:    cfg.Progression.LeaderboardCacheTTL,
			Logger: log,
		})
		leaderboard = boardCache

		redisBus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:  cache.Client(),
			Local:   local,
			Channel: cfg.Redis.EventChannel,
			Logger:  log,
		})
		if err != nil {
			return fmt.Errorf("failed to create event bus: %w", err)
		}
		if err := redisBus.Start(ctx); err != nil {
			return fmt.Errorf("failed to start event bus: %w", err)
		}
		defer func() {
			log.Info("closing event bus...")
			_ = redisBus.Close()
		}()
		bus = redisBus

		// Начисление XP сбрасывает закешированные страницы на всех инстансах.
		if err := bus.Subscribe(shared.EventXPAwarded, boardCache.HandleXPAwarded); err != nil {
			return fmt.Errorf("failed to subscribe leaderboard cache: %w", err)
		}
		log.Info("Redis connection established")
	} else {
		defer func() {
			log.Info("closing event bus...")
			_ = local.Close()
		}()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ОБРАБОТЧИКИ КОМАНД И ЗАПРОСОВ
	// ─────────────────────────────────────────────────────────────────────────
	env := command.Environment{
		Publisher: bus,
		Calendar:  cfg.App.Calendar,
		Logger:    log,
		Policy: command.Policy{
			DailyGoalTargetXP: cfg.Progression.DailyGoalTargetXP,
			DefaultFreezes:    cfg.Progression.DefaultStreakFreezes,
		},
	}
	settings := query.Settings{
		Calendar:            cfg.App.Calendar,
		RecentTransactions:  cfg.Progression.RecentTransactionsLimit,
		NearestAchievements: cfg.Progression.NearestAchievementsLimit,
		DailyGoalTargetXP:   cfg.Progression.DailyGoalTargetXP,
		DefaultFreezes:      cfg.Progression.DefaultStreakFreezes,
	}

	evaluator := command.NewEvaluator(store, store, store, store, env)

	deps := httpserver.Dependencies{
		AwardXPHandler:             command.NewAwardXPHandler(store, evaluator, env),
		RecordActivityHandler:      command.NewRecordActivityHandler(store, env),
		ApplyFreezeHandler:         command.NewApplyFreezeHandler(store, env),
		CheckAchievementsHandler:   command.NewCheckAchievementsHandler(store, evaluator),
		GetUserXPHandler:           query.NewGetUserXPHandler(store, settings),
		GetUserStreakHandler:       query.NewGetUserStreakHandler(store, settings),
		GetDailyGoalHandler:        query.NewGetDailyGoalHandler(store, settings),
		GetActivityCalendarHandler: query.NewGetActivityCalendarHandler(store, settings),
		GetUserAchievementsHandler: query.NewGetUserAchievementsHandler(store, store, store, store, store, settings),
		ListAchievementsHandler:    query.NewListAchievementsHandler(store),
		GetLeaderboardHandler:      query.NewGetLeaderboardHandler(leaderboard, store, settings, log),
		Logger:                     setupAccessLogger(cfg),
		HealthChecker:              health,
	}

	if len(cfg.HTTP.APIKeyHashes) > 0 {
		auth, err := handlers.NewAPIKeyAuth("X-API-Key", cfg.HTTP.APIKeyHashes)
		if err != nil {
			return fmt.Errorf("failed to configure api keys: %w", err)
		}
		deps.Auth = auth
	} else {
		log.Warn("HTTP_API_KEY_HASHES is empty, API is not authenticated")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. HTTP СЕРВЕР
	// ─────────────────────────────────────────────────────────────────────────
	serverCfg := httpserver.DefaultConfig()
	serverCfg.Host = cfg.HTTP.Host
	serverCfg.Port = cfg.HTTP.Port
	serverCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	serverCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	serverCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	serverCfg.Version = cfg.App.Version

	server := httpserver.NewServer(serverCfg, deps)
	errCh := server.StartAsync()
	log.Info("progression engine is running", "addr", cfg.HTTP.Addr())

	// ─────────────────────────────────────────────────────────────────────────
	// 7. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	}

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("http server shutdown failed", "error", err)
	}

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLogger настраивает структурированное логирование.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slogLevel(cfg.Observability.LogLevel)}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.IsProduction() || strings.EqualFold(cfg.Observability.LogFormat, "json") {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)

	return log
}

// setupAccessLogger создаёт JSON-логгер для HTTP-запросов.
func setupAccessLogger(cfg *config.Config) *logger.Logger {
	return logger.New(logger.Options{
		Output: os.Stdout,
		Level:  logger.ParseLevel(cfg.Observability.LogLevel),
	}).With(logger.Component("http"))
}

func slogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

func redisConfig(rc config.RedisConfig) redis.Config {
	out := redis.DefaultConfig()
	out.URL = rc.URL
	out.PoolSize = rc.PoolSize
	out.MinIdleConns = rc.MinIdleConns
	out.DialTimeout = rc.DialTimeout
	out.ReadTimeout = rc.ReadTimeout
	out.WriteTimeout = rc.WriteTimeout
	return out
}
