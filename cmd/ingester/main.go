package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	_ "cargo_ingest/docs"
	"cargo_ingest/internal/api/handlers"
	"cargo_ingest/internal/api/middleware"
	"cargo_ingest/internal/api/routes"
	"cargo_ingest/internal/cache"
	"cargo_ingest/internal/config"
	"cargo_ingest/internal/notifier"
	"cargo_ingest/internal/publisher"
	"cargo_ingest/internal/retry"
	"cargo_ingest/internal/scheduler"
	"cargo_ingest/internal/service"
	"cargo_ingest/internal/source/portal"
	"cargo_ingest/internal/storage/postgres"
	"cargo_ingest/internal/storage/sqlite"
)

// @title Cargo Ingest API
// @version 1.0
// @description Freight load ingestion: stored loads, ingestion status and cycle triggers
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey AdminKeyAuth
// @in header
// @name X-Admin-Key
func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	once := flag.Bool("once", false, "run a single ingestion cycle and exit")
	flag.Parse()

	logger := setupLogger("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	db, loads, runs, err := openStores(cfg.Database)
	if err != nil {
		logger.Error("failed to open database", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("connected to database", "driver", cfg.Database.Driver)

	var events service.Publisher
	if cfg.RabbitMQ.Enabled {
		rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, logger)
		if err != nil {
			logger.Error("failed to connect to rabbitmq", "error", err)
			os.Exit(1)
		}
		defer rabbitMQ.Close()
		events = rabbitMQ
	}

	policy := retry.DefaultPolicy()
	policy.Bypass = cfg.IsTest()
	executor := retry.New(policy, logger)

	portalClient, err := portal.New(portal.Config{
		BaseURL:    cfg.Portal.BaseURL,
		Username:   cfg.Portal.Username,
		Password:   cfg.Portal.Password,
		Timeout:    cfg.Portal.Timeout,
		AllowEmpty: cfg.IsTest(),
	}, executor, logger)
	if err != nil {
		logger.Error("failed to create portal client", "error", err)
		os.Exit(1)
	}

	whatsApp := notifier.NewWhatsApp(notifier.Config{
		BaseURL:   cfg.Messaging.BaseURL,
		Instance:  cfg.Messaging.Instance,
		APIKey:    cfg.Messaging.APIKey,
		PortalURL: cfg.Messaging.PortalURL,
		Timeout:   cfg.Messaging.Timeout,
	}, executor, logger)
	directory := notifier.NewDirectory(cfg.Recipients, cfg.Notify)

	ingestion := service.NewIngestionService(
		portalClient,
		loads,
		runs,
		whatsApp,
		directory,
		events,
		logger,
	)

	location, err := time.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		logger.Error("invalid schedule timezone", "timezone", cfg.Schedule.Timezone, "error", err)
		os.Exit(1)
	}

	responses := cache.New(cfg.CacheEnabled())

	sched := scheduler.NewScheduler(ingestion, responses, scheduler.Config{
		Interval: cfg.Schedule.Interval,
		Window: scheduler.Window{
			StartHour:    cfg.Schedule.StartHour,
			EndHour:      cfg.Schedule.EndHour,
			Location:     location,
			WeekdaysOnly: cfg.Schedule.WeekdaysOnly,
		},
	}, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *once {
		outcome, err := sched.RunOnce(ctx)
		if err != nil {
			logger.Error("ingestion cycle failed", "error", err)
			os.Exit(1)
		}
		logger.Info("ingestion cycle finished",
			"processed", outcome.Processed,
			"failed", outcome.Failed,
		)
		return
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(logger))
	routes.Setup(router, routes.Handlers{
		Loads:  handlers.NewLoadsHandler(loads, responses, cfg.Cache.LoadsTTL, cfg.IsProduction(), logger),
		Status: handlers.NewStatusHandler(loads, runs, responses, cfg.Cache.StatusTTL, cfg.IsProduction(), logger),
		Ingest: handlers.NewIngestHandler(sched, ingestion, responses, cfg.IsProduction(), logger),
	}, routes.Auth{
		AdminKey:            cfg.HTTP.AdminKey,
		SchedulerIdentities: cfg.HTTP.SchedulerIdentities,
		WebhookSecret:       cfg.HTTP.WebhookSecret,
	}, middleware.NewRateLimiter(cfg.HTTP.TriggerRPS, cfg.HTTP.TriggerBurst))

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("starting cargo ingester",
		"source", portalClient.Name(),
		"addr", cfg.HTTP.Addr,
		"interval", cfg.Schedule.Interval,
		"timezone", cfg.Schedule.Timezone,
		"cache_enabled", responses.Enabled(),
		"recipients", len(cfg.Notify),
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := sched.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("scheduler: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("ingester stopped with error", "error", err)
		os.Exit(1)
	}
}

func openStores(cfg config.DatabaseConfig) (*sqlx.DB, service.LoadStore, service.RunStore, error) {
	switch cfg.Driver {
	case "sqlite":
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, nil, fmt.Errorf("create data dir: %w", err)
			}
		}
		db, err := sqlite.Open(cfg.Path)
		if err != nil {
			return nil, nil, nil, err
		}
		return db, sqlite.NewLoadStore(db), sqlite.NewRunStore(db), nil
	case "postgres":
		db, err := sqlx.Connect("postgres", cfg.DSN())
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		return db, postgres.NewLoadStore(db), postgres.NewRunStore(db), nil
	default:
		return nil, nil, nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
