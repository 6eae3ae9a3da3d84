package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/hearth/internal/adapter/httpserver"
	"github.com/pscheid92/hearth/internal/adapter/metrics"
	"github.com/pscheid92/hearth/internal/adapter/postgres"
	"github.com/pscheid92/hearth/internal/adapter/redis"
	"github.com/pscheid92/hearth/internal/adapter/weather"
	"github.com/pscheid92/hearth/internal/app"
	"github.com/pscheid92/hearth/internal/domain"
	"github.com/pscheid92/hearth/internal/hearth"
	"github.com/pscheid92/hearth/internal/platform/config"
	"github.com/pscheid92/hearth/internal/platform/logging"
)

const connectTimeout = 10 * time.Second

// storage bundles the persistence ports of the selected backend plus what
// main needs for health checks and cleanup.
type storage struct {
	state     domain.StateRepository
	cooldowns domain.CooldownStore
	checks    []httpserver.HealthCheck
	close     func()
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupRedis(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) *goredis.Client {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := redis.NewClient(ctx, cfg.RedisURL, redis.NewMetricsHook(metrics.NewRedisMetrics(reg)))
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func setupStorage(ctx context.Context, cfg *config.Config, rdb *goredis.Client, reg prometheus.Registerer) storage {
	switch cfg.StorageBackend {
	case config.BackendRedis:
		return storage{
			state:     redis.NewStateRepo(rdb, cfg.Pool),
			cooldowns: redis.NewCooldownStore(rdb, cfg.Pool),
			close:     func() {},
		}

	case config.BackendPostgres:
		connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()

		db, err := postgres.Connect(connectCtx, cfg.DatabaseURL, postgres.NewMetricsTracer(metrics.NewDBMetrics(reg)))
		if err != nil {
			slog.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		if err := postgres.RunMigrationsWithLock(connectCtx, db); err != nil {
			slog.Error("Failed to run migrations", "error", err)
			os.Exit(1)
		}
		return storage{
			state:     postgres.NewStateRepo(db, cfg.Pool),
			cooldowns: postgres.NewCooldownStore(db, cfg.Pool),
			checks:    []httpserver.HealthCheck{{Name: "postgres", Check: db.Ping}},
			close:     db.Close,
		}

	default:
		mem := hearth.NewMemoryStore()
		slog.Warn("Using in-memory storage, state is lost on restart")
		return storage{state: mem, cooldowns: mem, close: func() {}}
	}
}

func setupModifier(cfg *config.Config, clock clockwork.Clock, reg prometheus.Registerer) domain.ModifierProvider {
	if cfg.OpenWeatherAPIKey == "" {
		slog.Info("No OPENWEATHER_API_KEY set, decay runs at the base rate")
		return hearth.NeutralModifier
	}
	client := weather.NewClient(cfg.OpenWeatherAPIKey, cfg.WeatherLat, cfg.WeatherLon)
	return weather.NewProvider(client, clock, cfg.WeatherCacheTTL, metrics.NewWeatherMetrics(reg))
}

func instanceID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s-%d-%s", host, os.Getpid(), uuid.NewString()[:8])
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "storage", cfg.StorageBackend, "pool", cfg.Pool)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := metrics.NewRegistry()

	var rdb *goredis.Client
	if cfg.StorageBackend == config.BackendRedis || cfg.InventoryBackend == config.InventoryRedis {
		rdb = setupRedis(ctx, cfg, reg)
		defer func() { _ = rdb.Close() }()
	}

	store := setupStorage(ctx, cfg, rdb, reg)
	defer store.close()

	healthChecks := store.checks
	if rdb != nil {
		healthChecks = append(healthChecks, httpserver.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
	}

	engineOpts := []hearth.Option{hearth.WithObserver(metrics.NewEngineMetrics(reg))}
	if cfg.StorageBackend == config.BackendRedis {
		// Replicas share the pool, so every mutation reloads it under a lock.
		engineOpts = append(engineOpts, hearth.WithSharedState(redis.NewPoolLock(rdb, cfg.Pool)))
	}
	engine, err := hearth.NewEngine(ctx, clock, store.state, store.cooldowns, setupModifier(cfg, clock, reg), cfg.Settings(), engineOpts...)
	if err != nil {
		slog.Error("Failed to load hearth engine", "error", err)
		os.Exit(1)
	}

	var (
		source    domain.ContributionSource = app.UnlimitedInventory{}
		publisher domain.StatusPublisher
	)
	if cfg.InventoryBackend == config.InventoryRedis {
		source = redis.NewInventory(rdb, cfg.Pool)
	}
	if rdb != nil {
		publisher = redis.NewStatusPublisher(rdb, cfg.Pool)
	}

	appSvc := app.NewService(engine, source, publisher, clock)

	scheduler := hearth.NewScheduler(engine, clock,
		hearth.WithTickHook(appSvc.PublishAfterTick),
		hearth.WithResetLocation(cfg.ResetLocation()),
	)

	var wg sync.WaitGroup
	if cfg.StorageBackend == config.BackendRedis {
		// Only the lease holder runs decay, daily reset and cooldown GC.
		lease := app.NewWriterLease(redis.NewWriterLock(rdb, cfg.Pool, instanceID()), clock)
		wg.Go(func() { lease.Run(ctx, scheduler.Run) })
	} else {
		wg.Go(func() { scheduler.Run(ctx) })
	}

	srv := httpserver.NewServer(cfg, appSvc, metrics.NewHTTPMetrics(reg), metrics.Handler(reg), healthChecks)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutdown signal received, cleaning up...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown error", "error", err)
	}
	wg.Wait()

	if err := engine.Flush(shutdownCtx); err != nil {
		slog.Error("Final state flush failed", "error", err)
	}
	slog.Info("Shutdown complete")
}
