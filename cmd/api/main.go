package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/jordanlanch/contactsync/config"
	"github.com/jordanlanch/contactsync/pkg/activity"
	apierrors "github.com/jordanlanch/contactsync/pkg/api/errors"
	"github.com/jordanlanch/contactsync/pkg/api/handlers"
	apimw "github.com/jordanlanch/contactsync/pkg/api/middleware"
	"github.com/jordanlanch/contactsync/pkg/cache"
	"github.com/jordanlanch/contactsync/pkg/contacts"
	"github.com/jordanlanch/contactsync/pkg/database"
	"github.com/jordanlanch/contactsync/pkg/gateway"
	"github.com/jordanlanch/contactsync/pkg/jobs"
	"github.com/jordanlanch/contactsync/pkg/logger"
	"github.com/jordanlanch/contactsync/pkg/metrics"
	custommw "github.com/jordanlanch/contactsync/pkg/middleware"
	"github.com/jordanlanch/contactsync/pkg/propagation"
	"github.com/jordanlanch/contactsync/pkg/reconcile"
	"github.com/jordanlanch/contactsync/pkg/secrets"
	"github.com/jordanlanch/contactsync/pkg/syncsettings"
)

func main() {
	// Local .env is optional
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.New(cfg.LogLevel)
	log.Info("configuration loaded", "environment", cfg.APIEnvironment)
	apierrors.SetLogger(log)

	// Initialize Sentry for error tracking
	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.SentryEnvironment,
			TracesSampleRate: 0.2,
			AttachStacktrace: true,
		})
		if err != nil {
			log.Warn("failed to initialize sentry", "error", err.Error())
		} else {
			log.Info("sentry initialized", "environment", cfg.SentryEnvironment)
			defer sentry.Flush(2 * time.Second)
		}
	} else {
		log.Info("sentry disabled (no DSN configured)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Secrets
	secretsManager, err := secrets.NewManager(secrets.Config{
		Backend:       cfg.SecretsBackend,
		AWSRegion:     cfg.AWSRegion,
		CacheDuration: 5 * time.Minute,
	}, log)
	if err != nil {
		fatal(log, "failed to initialize secrets manager", err)
	}
	defer secretsManager.Close()

	creds, err := secrets.LoadSyncSecrets(ctx, secretsManager, secrets.SyncSecrets{
		WebhookAPIKey:   cfg.IntegrationAppWebhookAPIKey,
		WorkspaceKey:    cfg.IntegrationAppWorkspaceKey,
		WorkspaceSecret: cfg.IntegrationAppWorkspaceSecret,
		JWTSecret:       cfg.JWTSecret,
	})
	if err != nil {
		fatal(log, "failed to load secrets", err)
	}
	if cfg.IsProduction() && creds.JWTSecret == "change-this-in-production" {
		fatal(log, "refusing to start", errors.New("JWT_SECRET is the development default"))
	}

	// Database
	db, err := openDatabase(cfg, log)
	if err != nil {
		fatal(log, "failed to connect to database", err)
	}
	defer db.Close()

	// Redis is optional: without it locks and receipts stay in-process
	var (
		locker    cache.Locker = cache.NewLocalLocker()
		receipts  cache.ReceiptStore
		sweeper   jobs.Sweeper
		cachePing handlers.Pinger
	)
	if cfg.RedisURL != "" {
		redisClient, err := cache.NewClient(cfg.RedisURL, log)
		if err != nil {
			fatal(log, "failed to connect to redis", err)
		}
		defer redisClient.Close()

		locker = cache.NewRedisLocker(redisClient)
		cachePing = redisClient
		if cfg.WebhookIdempotency {
			receipts = cache.NewRedisReceipts(redisClient)
		}
	} else {
		log.Warn("REDIS_URL not set, using in-process locks")
		if cfg.WebhookIdempotency {
			memoryReceipts := cache.NewMemoryReceipts()
			receipts = memoryReceipts
			sweeper = memoryReceipts
		}
	}

	m := metrics.New()

	// Stores
	contactStore := contacts.NewSQLStore(db)
	activityStore := activity.NewSQLStore(db)
	settingsStore := syncsettings.NewSQLStore(db)

	// Integration gateway and propagation
	factory := gateway.NewHTTPFactory(gateway.HTTPConfig{
		BaseURL:         cfg.IntegrationAppBaseURL,
		WorkspaceKey:    creds.WorkspaceKey,
		WorkspaceSecret: creds.WorkspaceSecret,
		TokenTTL:        cfg.IntegrationAppTokenTTL,
	})
	propagator := propagation.New(factory, contactStore, settingsStore, m, log, propagation.Config{
		Timeout:     cfg.PropagationTimeout,
		Concurrency: cfg.PropagationConcurrency,
		MaxRetries:  cfg.PropagationMaxRetries,
		RetryDelay:  cfg.PropagationRetryDelay,
	})

	engine := reconcile.NewEngine(reconcile.Dependencies{
		Store:      contactStore,
		Propagator: propagator,
		Activity:   activityStore,
		Locker:     locker,
		Receipts:   receipts,
		Metrics:    m,
		Logger:     log,
	}, reconcile.Config{
		LockTTL:        cfg.WebhookLockTTL,
		IdempotencyTTL: cfg.WebhookIdempotencyTTL,
	})
	contactService := contacts.NewService(contactStore, propagator, activityStore, cfg.PhoneDefaultRegion, log)

	// Scheduled jobs
	cronManager := jobs.NewCronManager(activityStore, sweeper, m, log, jobs.Config{
		ActivityRetention: time.Duration(cfg.ActivityRetentionDays) * 24 * time.Hour,
		ActivitySchedule:  cfg.ActivityPruneSchedule,
	})
	if err := cronManager.SetupJobs(); err != nil {
		fatal(log, "failed to setup cron jobs", err)
	}
	cronManager.Start()

	// Handlers
	webhookHandler := handlers.NewWebhookHandler(engine, cfg.WebhookReflectResult, cfg.WebhookTimeout, log)
	contactHandler := handlers.NewContactHandler(contactService)
	platformHandler := handlers.NewPlatformHandler(propagator)
	settingsHandler := handlers.NewSyncSettingsHandler(settingsStore)
	activityHandler := handlers.NewActivityHandler(activityStore)
	healthHandler := handlers.NewHealthHandler(db, cachePing)

	// Rate limiters
	apiLimiter := custommw.NewRateLimiter(cfg.RateLimitRequestsPerMinute, cfg.RateLimitBurst)
	webhookLimiter := custommw.NewRateLimiter(cfg.WebhookRateLimitPerMinute, cfg.WebhookRateLimitBurst)
	go apiLimiter.RunCleanup(ctx, 3*time.Minute)
	go webhookLimiter.RunCleanup(ctx, 3*time.Minute)

	e := echo.New()
	e.HideBanner = true

	httpLog := logger.Component(log, "http")
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			args := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency.String()}
			if v.Error != nil {
				args = append(args, "error", v.Error.Error())
			}
			httpLog.Info("request", args...)
			return nil
		},
	}))
	e.Use(middleware.Recover())

	if cfg.SentryDSN != "" {
		e.Use(sentryecho.New(sentryecho.Options{
			Repanic: true,
		}))
	}

	e.Use(m.Middleware())
	e.Use(middleware.CORSWithConfig(custommw.CORSConfig(cfg.CORSAllowedOrigins)))
	e.Use(middleware.Secure())

	// Public endpoints
	e.GET("/health", healthHandler.Health)
	e.GET("/metrics", echo.WrapHandler(m.Handler()))

	// Gateway webhooks
	e.POST("/api/webhooks/contacts", webhookHandler.ReceiveContactEvent,
		webhookLimiter.RateLimitMiddleware(),
		custommw.WebhookAuth(creds.WebhookAPIKey),
	)

	// Dashboard API
	v1 := e.Group("/api/v1", apiLimiter.RateLimitMiddleware(), apimw.JWTMiddleware(creds.JWTSecret))

	v1.GET("/contacts", contactHandler.ListContacts)
	v1.POST("/contacts", contactHandler.CreateContact)
	v1.GET("/contacts/:id", contactHandler.GetContact)
	v1.PUT("/contacts/:id", contactHandler.UpdateContact)
	v1.DELETE("/contacts/:id", contactHandler.DeleteContact)

	v1.GET("/platforms/:platformType/data", platformHandler.GetPlatformData)
	v1.DELETE("/platforms/:platformType/:externalId", platformHandler.DeletePlatformContact)

	v1.GET("/sync-settings", settingsHandler.GetSyncSettings)
	v1.POST("/sync-settings", settingsHandler.SaveSyncSettings)

	v1.GET("/logs", activityHandler.ListLogs)

	// Start server
	addr := cfg.APIHost + ":" + cfg.APIPort
	go func() {
		log.Info("starting server", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal(log, "server failed", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server")

	cronManager.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err.Error())
	}

	log.Info("server stopped")
}

func openDatabase(cfg *config.Config, log logger.Logger) (*database.Client, error) {
	if cfg.DatabaseDriver == database.DriverSQLite || cfg.DatabaseDriver == "sqlite" {
		return database.NewSQLiteClient(cfg.DatabaseURL, log)
	}

	return database.Open(database.DriverPostgres, cfg.DatabaseURL, database.DefaultPoolConfig(), &database.SSLConfig{
		Mode:         cfg.DBSSLMode,
		CertPath:     cfg.DBSSLCertPath,
		KeyPath:      cfg.DBSSLKeyPath,
		RootCertPath: cfg.DBSSLRootCertPath,
	}, log)
}

func fatal(log logger.Logger, msg string, err error) {
	log.Error(msg, "error", err.Error())
	os.Exit(1)
}
