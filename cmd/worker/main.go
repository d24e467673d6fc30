package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/linkedge-backend/internal/connections"
	"github.com/angelmondragon/linkedge-backend/internal/consumers"
	"github.com/angelmondragon/linkedge-backend/internal/graphclient"
	"github.com/angelmondragon/linkedge-backend/internal/notifications"
	"github.com/angelmondragon/linkedge-backend/pkg/config"
	"github.com/angelmondragon/linkedge-backend/pkg/db"
	"github.com/angelmondragon/linkedge-backend/pkg/eventbus/driver"
	"github.com/angelmondragon/linkedge-backend/pkg/instance"
	"github.com/angelmondragon/linkedge-backend/pkg/logger"
	"github.com/angelmondragon/linkedge-backend/pkg/metrics"
	"github.com/angelmondragon/linkedge-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/linkedge-backend/pkg/redis"
)

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)
	cfg.Service.Kind = "worker"

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	bus, err := driver.Open(ctx, cfg, logg)
	requireResource(ctx, logg, "event bus", err)
	defer func() {
		if err := bus.Close(); err != nil {
			logg.Error(ctx, "error closing event bus", err)
		}
	}()

	manager, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	requireResource(ctx, logg, "idempotency manager", err)

	notificationMetrics := metrics.NewNotificationMetrics(prometheus.DefaultRegisterer)

	dispatcher, err := notifications.NewDispatcher(cfg.Notifications, notifications.NewRepository(dbClient.DB()), logg)
	requireResource(ctx, logg, "notification dispatcher", err)
	fanout, err := notifications.FanoutFromConfig(cfg.Notifications, dispatcher, notificationMetrics, logg)
	requireResource(ctx, logg, "notification fanout", err)

	connectionNotifier, err := notifications.NewConnectionNotifier(fanout)
	requireResource(ctx, logg, "connection notifier", err)

	graphHTTP, err := graphclient.NewFromConfig(cfg.GraphClient)
	requireResource(ctx, logg, "graph client", err)
	var lookup graphclient.Lookup = graphHTTP
	if cfg.GraphClient.CacheTTL > 0 {
		lookup = graphclient.NewCachedClient(graphHTTP, redisClient, cfg.GraphClient.CacheTTL, logg)
	}
	contentNotifier, err := notifications.ContentNotifierFromConfig(cfg.Notifications, fanout, lookup, notificationMetrics, logg)
	requireResource(ctx, logg, "content notifier", err)

	var graphPing pinger
	var personMirror connections.PersonMirror
	if cfg.Graph.UsesNeo4j() {
		neo4jDriver, err := connections.NewNeo4jDriver(ctx, cfg.Neo4j)
		requireResource(ctx, logg, "neo4j", err)
		defer func() {
			if err := neo4jDriver.Close(ctx); err != nil {
				logg.Error(ctx, "error closing neo4j driver", err)
			}
		}()
		personMirror = connections.NewNeo4jGraph(neo4jDriver, cfg.Neo4j.Database)
		graphPing = pingFunc(neo4jDriver.VerifyConnectivity)
	}
	projector, err := connections.NewPeopleProjector(connections.NewRepository(dbClient.DB()), personMirror)
	requireResource(ctx, logg, "people projector", err)

	runner := func(h consumers.Handler) *consumers.Runner {
		r, err := consumers.NewRunner(consumers.RunnerParams{
			Handler:     h,
			Idempotency: manager,
			Metrics:     notificationMetrics,
			Logger:      logg,
		})
		requireResource(ctx, logg, h.Name()+" runner", err)
		return r
	}

	service, err := NewService(ServiceParams{
		Config: cfg,
		Logger: logg,
		DB:     dbClient,
		Redis:  redisClient,
		Bus:    bus,
		Graph:  graphPing,
		Runners: Runners{
			Connections: runner(connectionNotifier),
			Content:     runner(contentNotifier),
			People:      runner(projector),
		},
	})
	requireResource(ctx, logg, "worker service", err)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
		"eventBus":    cfg.Eventing.Driver,
	})

	go func() {
		if err := metrics.Serve(runCtx, cfg.Metrics.Addr); err != nil {
			logg.Error(runCtx, "metrics server stopped", err)
		}
	}()

	logg.Info(runCtx, "starting worker")
	if err := service.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(runCtx, "worker shutting down gracefully")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
