package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/usagegate/usagegate/internal/account"
	"github.com/usagegate/usagegate/internal/api"
	"github.com/usagegate/usagegate/internal/auth"
	"github.com/usagegate/usagegate/internal/config"
	"github.com/usagegate/usagegate/internal/database"
	"github.com/usagegate/usagegate/internal/events"
	"github.com/usagegate/usagegate/internal/ledger"
	"github.com/usagegate/usagegate/internal/middleware"
	"github.com/usagegate/usagegate/internal/plan"
	"github.com/usagegate/usagegate/internal/quota"
	"github.com/usagegate/usagegate/internal/ratelimit"
	iredis "github.com/usagegate/usagegate/internal/redis"
	"github.com/usagegate/usagegate/internal/server"
	"github.com/usagegate/usagegate/internal/usagelog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	ctx := context.Background()

	// Migrations
	if err := database.RunMigrations(cfg.DB.DSN(), cfg.Engine.MigrationsPath); err != nil {
		slog.Error("running migrations", "error", err)
		os.Exit(1)
	}

	// PostgreSQL
	pool, err := database.NewPostgresPool(ctx, cfg.DB)
	if err != nil {
		slog.Error("connecting to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Redis
	redisClient, err := iredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Error("connecting to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// Usage log storage
	usageRepo := usagelog.NewRepository(pool)

	// Event bus. When NATS is disabled the usage log writes straight to
	// storage instead of flowing through JetStream.
	var (
		eventsClient *events.Client
		recorder     usagelog.Recorder
	)
	if cfg.NATS.Enabled {
		eventsClient, err = events.NewClient(ctx, cfg.NATS)
		if err != nil {
			slog.Error("connecting to nats", "error", err)
			os.Exit(1)
		}
		defer eventsClient.Close()

		recorder = usagelog.NewEventLogger(events.NewPublisher(eventsClient.JetStream()))

		consumer := usagelog.NewConsumer(usageRepo, events.NewConsumerManager(eventsClient.JetStream()))
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("usage log consumer stopped", "error", err)
			}
		}()
	} else {
		recorder = usagelog.NewDirectLogger(usageRepo)
	}

	// Plans
	registry := plan.NewStaticRegistry()
	planStore := plan.NewStore(pool)
	planHandler := plan.NewHandler(planStore, registry)

	// Rate limiter
	rateSvc := ratelimit.NewService(ratelimit.NewRepository(pool), planStore, registry, recorder, cfg.Engine.StorageTimeout)
	rateHandler := ratelimit.NewHandler(rateSvc)

	// Quota manager
	quotaSvc := quota.NewService(quota.NewRepository(pool), planStore, registry, recorder, cfg.Engine.StorageTimeout)
	quotaHandler := quota.NewHandler(quotaSvc)

	// Credit ledger
	ledgerSvc := ledger.NewService(ledger.NewRepository(pool), recorder, cfg.Engine.StorageTimeout)
	ledgerHandler := ledger.NewHandler(ledgerSvc)

	// Prepaid accounts
	accountSvc := account.NewService(account.NewRepository(pool), recorder, cfg.Engine.StorageTimeout)
	accountHandler := account.NewHandler(accountSvc)

	// Usage reporting
	usageHandler := usagelog.NewHandler(usageRepo)

	// Service auth
	tokenMgr := auth.NewTokenManager(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.Audience)

	// Abuse guard
	abuseGuard := middleware.NewAbuseGuard(redisClient, cfg.Engine.AbuseGuardMaxReqs, cfg.Engine.AbuseGuardWindowSec)

	// Router
	router := api.NewRouter(pool, eventsClient, api.RouterConfig{
		CORSAllowedOrigins: cfg.Engine.CORSAllowedOrigins,
		AbuseGuard:         abuseGuard.Middleware,
	}, api.HandlerSet{
		RateLimitCheck:  rateHandler.Check,
		RateLimitStatus: rateHandler.Status,

		QuotaCheck:   quotaHandler.Check,
		QuotaConsume: quotaHandler.Consume,

		ConsumeCredits: ledgerHandler.Consume,
		GrantCredits:   ledgerHandler.Grant,
		CreditBalance:  ledgerHandler.Balance,
		RefundCredits:  ledgerHandler.Refund,

		ManageAccount: accountHandler.Manage,
		GetAccount:    accountHandler.Get,

		AssignPlan: planHandler.Assign,
		GetPlan:    planHandler.Get,

		ListUsageLog: usageHandler.List,

		AuthMiddleware: auth.Middleware(tokenMgr),
	})

	// Start server
	srv := server.New(cfg.Server, router)
	if err := srv.Start(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg config.Log) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
