package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/linkedge-backend/internal/connections"
	"github.com/angelmondragon/linkedge-backend/internal/cron"
	"github.com/angelmondragon/linkedge-backend/internal/notifications"
	"github.com/angelmondragon/linkedge-backend/pkg/config"
	"github.com/angelmondragon/linkedge-backend/pkg/db"
	"github.com/angelmondragon/linkedge-backend/pkg/instance"
	"github.com/angelmondragon/linkedge-backend/pkg/logger"
	"github.com/angelmondragon/linkedge-backend/pkg/metrics"
	"github.com/angelmondragon/linkedge-backend/pkg/migrate"
	"github.com/angelmondragon/linkedge-backend/pkg/outbox"
	"github.com/angelmondragon/linkedge-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	var mirror connections.EdgeMirror
	if cfg.Graph.UsesNeo4j() {
		driver, err := connections.NewNeo4jDriver(context.Background(), cfg.Neo4j)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap neo4j", err)
			os.Exit(1)
		}
		defer func() {
			if err := driver.Close(context.Background()); err != nil {
				logg.Error(context.Background(), "error closing neo4j driver", err)
			}
		}()
		mirror = connections.NewNeo4jGraph(driver, cfg.Neo4j.Database)
	}

	jobs, err := buildJobs(cfg, logg, dbClient, mirror)
	if err != nil {
		logg.Error(context.Background(), "failed to build cron jobs", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron:"+envOrLocal(cfg.App.Env)), cfg.Cron.Interval)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	registry, err := cron.NewRegistry(jobs...)
	if err != nil {
		logg.Error(context.Background(), "failed to register cron jobs", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
	})

	go func() {
		if err := metrics.Serve(ctx, cfg.Metrics.Addr); err != nil {
			logg.Error(ctx, "metrics server stopped", err)
		}
	}()

	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildJobs(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, mirror connections.EdgeMirror) ([]cron.Job, error) {
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outbox.NewRepository(dbClient.DB()),
		Retention:  cfg.Cron.OutboxRetentionDays,
	})
	if err != nil {
		return nil, err
	}

	cleanup, err := cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
		Logger:     logg,
		Repository: notifications.NewRepository(dbClient.DB()),
		Retention:  cfg.Cron.NotificationRetentionD,
	})
	if err != nil {
		return nil, err
	}

	reconciler, err := connections.NewReconciler(connections.NewRepository(dbClient.DB()), mirror, logg)
	if err != nil {
		return nil, err
	}
	reconcile, err := cron.NewEdgeReconcileJob(cron.EdgeReconcileJobParams{
		Logger:     logg,
		Reconciler: reconciler,
		Lookback:   cfg.Cron.ReconcileLookback,
	})
	if err != nil {
		return nil, err
	}

	return []cron.Job{retention, cleanup, reconcile}, nil
}

func envOrLocal(env string) string {
	if env == "" {
		return "local"
	}
	return env
}
