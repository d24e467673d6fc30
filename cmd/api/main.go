package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/angelmondragon/linkedge-backend/api/routes"
	"github.com/angelmondragon/linkedge-backend/internal/connections"
	"github.com/angelmondragon/linkedge-backend/internal/notifications"
	"github.com/angelmondragon/linkedge-backend/internal/posts"
	"github.com/angelmondragon/linkedge-backend/internal/users"
	"github.com/angelmondragon/linkedge-backend/pkg/config"
	"github.com/angelmondragon/linkedge-backend/pkg/db"
	"github.com/angelmondragon/linkedge-backend/pkg/instance"
	"github.com/angelmondragon/linkedge-backend/pkg/logger"
	"github.com/angelmondragon/linkedge-backend/pkg/migrate"
	"github.com/angelmondragon/linkedge-backend/pkg/outbox"
	"github.com/angelmondragon/linkedge-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	emitter := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	userService, err := users.NewService(dbClient, users.NewRepository(dbClient.DB()), emitter)
	if err != nil {
		logg.Error(context.Background(), "failed to create user service", err)
		os.Exit(1)
	}
	postService, err := posts.NewService(dbClient, posts.NewRepository(dbClient.DB()), emitter)
	if err != nil {
		logg.Error(context.Background(), "failed to create post service", err)
		os.Exit(1)
	}
	notificationService, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create notification service", err)
		os.Exit(1)
	}

	policy, err := connections.ParseReRequestPolicy(cfg.Connections.ReRequestPolicy)
	if err != nil {
		logg.Error(context.Background(), "invalid re-request policy", err)
		os.Exit(1)
	}
	connectionParams := connections.ServiceParams{
		DB:     dbClient,
		Repo:   connections.NewRepository(dbClient.DB()),
		Outbox: emitter,
		Graph:  connections.NewSQLGraph(dbClient.DB()),
		Policy: policy,
		Logger: logg,
	}
	if cfg.Graph.UsesNeo4j() {
		driver, err := connections.NewNeo4jDriver(context.Background(), cfg.Neo4j)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap neo4j", err)
			os.Exit(1)
		}
		defer closeNeo4j(logg, driver)
		graph := connections.NewNeo4jGraph(driver, cfg.Neo4j.Database)
		if err := graph.EnsureSchema(context.Background()); err != nil {
			logg.Error(context.Background(), "failed to ensure neo4j schema", err)
			os.Exit(1)
		}
		connectionParams.Graph = graph
		connectionParams.Mirror = graph
	}
	connectionService, err := connections.NewService(connectionParams)
	if err != nil {
		logg.Error(context.Background(), "failed to create connection service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
		"graph":    cfg.Graph.Backend,
	})

	server := &http.Server{
		Addr:              addr,
		ReadHeaderTimeout: 10 * time.Second,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:        cfg,
			Logger:        logg,
			DB:            dbClient,
			Redis:         redisClient,
			Idempotency:   redisClient,
			Users:         userService,
			Connections:   connectionService,
			Posts:         postService,
			Notifications: notificationService,
		}),
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
		logg.Info(ctx, "api server shutting down gracefully")
	}
}

func closeNeo4j(logg *logger.Logger, driver neo4j.DriverWithContext) {
	if err := driver.Close(context.Background()); err != nil {
		logg.Error(context.Background(), "error closing neo4j driver", err)
	}
}
