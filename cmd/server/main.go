package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"

	appOrders "github.com/oms/backend/internal/application/orders"
	appShipping "github.com/oms/backend/internal/application/shipping"
	appStore "github.com/oms/backend/internal/application/store"
	appWebhook "github.com/oms/backend/internal/application/webhook"
	"github.com/oms/backend/internal/domain/integration"
	"github.com/oms/backend/internal/domain/shared"
	"github.com/oms/backend/internal/infrastructure/auth"
	"github.com/oms/backend/internal/infrastructure/cache"
	"github.com/oms/backend/internal/infrastructure/config"
	"github.com/oms/backend/internal/infrastructure/courier"
	"github.com/oms/backend/internal/infrastructure/event"
	applogger "github.com/oms/backend/internal/infrastructure/logger"
	"github.com/oms/backend/internal/infrastructure/messaging"
	"github.com/oms/backend/internal/infrastructure/persistence"
	"github.com/oms/backend/internal/infrastructure/platform"
	"github.com/oms/backend/internal/infrastructure/scheduler"
	"github.com/oms/backend/internal/interfaces/http/handler"
	"github.com/oms/backend/internal/interfaces/http/middleware"
	"github.com/oms/backend/internal/interfaces/http/router"
)

const shutdownTimeout = 30 * time.Second

// Webhook deliveries are bursty around platform retries; the limit is
// per client IP and sits well above normal traffic.
const (
	webhookRateLimit  = 300
	webhookRateWindow = time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	log.Info("starting order tracking service",
		zap.String("name", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Database
	gormLevel := gormlogger.Warn
	if cfg.App.Env == "development" {
		gormLevel = gormlogger.Info
	}
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database,
		applogger.NewGormLogger(log, gormLevel))
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	// Repositories
	orderRepo := persistence.NewGormOrderRepository(db.DB)
	awbRepo := persistence.NewGormAWBRepository(db.DB)
	jobRepo := persistence.NewGormDispatchJobRepository(db.DB)
	storeRepo := persistence.NewGormStoreRepository(db.DB)
	auditRepo := persistence.NewGormWebhookEventLogRepository(db.DB)

	// External gateways
	courierGateway, err := courier.NewHTTPGateway(&courier.GatewayConfig{
		Name:           cfg.Courier.Name,
		BaseURL:        cfg.Courier.BaseURL,
		APIKey:         cfg.Courier.APIKey,
		APISecret:      cfg.Courier.APISecret,
		TimeoutSeconds: int(cfg.Courier.Timeout.Seconds()),
	})
	if err != nil {
		log.Fatal("failed to configure courier gateway", zap.Error(err))
	}
	couriers := courier.NewRegistry(courierGateway)

	platformClient := platform.NewRestClient(platform.ClientConfig{
		BaseURL:    cfg.Platform.BaseURL,
		APIVersion: cfg.Platform.APIVersion,
		Timeout:    cfg.Platform.Timeout,
	}, platform.NewStoreTokenSource(storeRepo))

	var notifier integration.MessagingGateway
	if cfg.SMS.BaseURL != "" {
		notifier, err = messaging.NewSMSGateway(&messaging.Config{
			BaseURL:        cfg.SMS.BaseURL,
			APIKey:         cfg.SMS.APIKey,
			SenderID:       cfg.SMS.SenderID,
			TimeoutSeconds: int(cfg.SMS.Timeout.Seconds()),
		})
		if err != nil {
			log.Fatal("failed to configure SMS gateway", zap.Error(err))
		}
	} else {
		log.Info("no SMS account configured, notifications go to the log")
		notifier = messaging.NewLogGateway(log)
	}

	// Webhook dedupe store: Redis when reachable, in-memory otherwise.
	// Production requires Redis so redeliveries dedupe across replicas.
	dedupeStore, err := cache.NewIdempotencyStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	).CreateStore()
	if err != nil {
		log.Fatal("failed to create webhook dedupe store", zap.Error(err))
	}

	// Application services
	ledger := appOrders.NewLedgerService(orderRepo, log)
	statusService := appOrders.NewStatusService(orderRepo, awbRepo, couriers, log)
	awbPool := appShipping.NewAWBPoolService(awbRepo, couriers, log)
	dispatchService := appShipping.NewDispatchService(jobRepo, awbRepo, orderRepo, couriers, nil, log)
	storeService := appStore.NewService(storeRepo, log)
	ingestion := appWebhook.NewIngestionService(
		storeRepo,
		ledger,
		platform.NewHMACVerifier(),
		dedupeStore,
		shared.IdempotencyConfig{Enabled: cfg.Webhook.DedupeEnabled, TTL: cfg.Webhook.DedupeTTL},
		auditRepo,
		log,
	)

	// Dispatch worker pool. The pool books items through the service
	// and the service enqueues through the pool, so the queue is bound
	// after both exist.
	pool, err := scheduler.NewDispatchPool(scheduler.DispatchPoolConfig{
		Workers:       cfg.Dispatch.Workers,
		QueueSize:     cfg.Dispatch.QueueSize,
		ItemTimeout:   cfg.Dispatch.ItemTimeout,
		RetryAttempts: 3,
		RetryDelay:    2 * time.Second,
	}, dispatchService, log)
	if err != nil {
		log.Fatal("failed to create dispatch pool", zap.Error(err))
	}
	dispatchService.SetWorkQueue(pool)

	ctx := context.Background()
	if err := pool.Start(ctx); err != nil {
		log.Fatal("failed to start dispatch pool", zap.Error(err))
	}

	// Event bus for post-commit side effects. Payment capture is the
	// one side effect that must not run twice, so it gets the
	// idempotency wrapper; notifications are merely annoying when
	// repeated.
	bus := event.NewInMemoryEventBus(log)
	paymentCapture := event.NewIdempotentHandler(
		appWebhook.NewPaymentCaptureHandler(storeRepo, platformClient, log),
		dedupeStore,
		log,
	)
	notifications := appWebhook.NewNotificationHandler(orderRepo, notifier, log)
	bus.Subscribe(paymentCapture, paymentCapture.EventTypes()...)
	bus.Subscribe(notifications, notifications.EventTypes()...)
	if err := bus.Start(ctx); err != nil {
		log.Fatal("failed to start event bus", zap.Error(err))
	}
	ledger.SetEventPublisher(bus)
	statusService.SetEventPublisher(bus)
	dispatchService.SetEventPublisher(bus)

	// Items left pending by a previous crash re-enter the queue
	if err := dispatchService.RecoverUnsettled(ctx); err != nil {
		log.Warn("failed to recover unsettled dispatch jobs", zap.Error(err))
	}

	// Auth
	jwtService := auth.NewJWTService(cfg.JWT)
	var blacklist auth.TokenBlacklist
	redisBlacklist, blacklistErr := auth.NewRedisTokenBlacklist(auth.RedisTokenBlacklistConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if blacklistErr != nil {
		log.Warn("Redis unavailable, using in-memory token blacklist", zap.Error(blacklistErr))
		blacklist = auth.NewInMemoryTokenBlacklist()
	} else {
		blacklist = redisBlacklist
		defer redisBlacklist.Close() //nolint:errcheck
	}

	// Handlers
	webhookHandler := handler.NewWebhookHandler(ingestion, cfg.Webhook.MaxBodySize)
	orderHandler := handler.NewOrderHandler(statusService)
	awbHandler := handler.NewAWBHandler(awbPool)
	dispatchHandler := handler.NewDispatchHandler(dispatchService)
	storeHandler := handler.NewStoreHandler(storeService)
	authHandler := handler.NewAuthHandler(jwtService, blacklist, cfg.Auth, log)

	checkers := []handler.HealthChecker{dbChecker{db: db}}
	if blacklistErr == nil {
		checkers = append(checkers, redisChecker{blacklist: redisBlacklist})
	}
	systemHandler := handler.NewSystemHandler(checkers...)

	engine := buildEngine(cfg, log, jwtService, blacklist)

	engine.GET("/health", systemHandler.Health)
	engine.GET("/ready", systemHandler.Ready)

	setupRoutes(engine, webhookHandler, orderHandler, awbHandler,
		dispatchHandler, storeHandler, authHandler)

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", zap.Error(err))
	}
	// In-flight bookings drain before the bus stops so their events
	// still reach the side-effect handlers
	if err := pool.Stop(shutdownCtx); err != nil {
		log.Error("dispatch pool shutdown failed", zap.Error(err))
	}
	if err := bus.Stop(shutdownCtx); err != nil {
		log.Error("event bus shutdown failed", zap.Error(err))
	}
	log.Info("shutdown complete")
}

// buildEngine assembles the gin engine and its middleware stack
func buildEngine(cfg *config.Config, log *zap.Logger, jwtService *auth.JWTService, blacklist auth.TokenBlacklist) *gin.Engine {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Fatal("invalid trusted proxies", zap.Error(err))
		}
	}

	engine.Use(
		middleware.RequestID(),
		gin.Recovery(),
		applogger.GinMiddleware(log),
		middleware.Secure(),
		middleware.CORS(),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
		middleware.JWTAuthMiddlewareWithConfig(middleware.JWTMiddlewareConfig{
			JWTService:     jwtService,
			TokenBlacklist: blacklist,
			SkipPaths: []string{
				"/health",
				"/ready",
				"/api/v1/auth/login",
				"/api/v1/auth/refresh",
			},
			SkipPathPrefixes: []string{
				// webhook deliveries authenticate with HMAC, not JWT
				"/api/v1/webhooks",
			},
			Logger: log,
		}),
	)
	return engine
}

// setupRoutes registers the versioned API surface
func setupRoutes(
	engine *gin.Engine,
	webhookHandler *handler.WebhookHandler,
	orderHandler *handler.OrderHandler,
	awbHandler *handler.AWBHandler,
	dispatchHandler *handler.DispatchHandler,
	storeHandler *handler.StoreHandler,
	authHandler *handler.AuthHandler,
) {
	webhooks := router.NewDomainGroup("webhooks", "/webhooks")
	webhooks.Use(middleware.RateLimit(middleware.NewRateLimiter(webhookRateLimit, webhookRateWindow)))
	webhooks.POST("/platform", webhookHandler.Receive)

	authGroup := router.NewDomainGroup("auth", "/auth")
	authGroup.POST("/login", authHandler.Login)
	authGroup.POST("/refresh", authHandler.Refresh)
	authGroup.POST("/logout", authHandler.Logout)

	orders := router.NewDomainGroup("orders", "/orders")
	orders.GET("", orderHandler.List)
	orders.GET("/summary", orderHandler.Summary)
	orders.GET("/:id", orderHandler.Get)
	orders.GET("/external/:external_id", orderHandler.GetByExternalID)
	orders.POST("/:id/status", orderHandler.ChangeStatus)
	orders.POST("/status/bulk", orderHandler.BulkChangeStatus)
	orders.POST("/:id/return/book", orderHandler.BookReturn)

	awb := router.NewDomainGroup("awb", "/awb")
	awb.POST("/replenish", awbHandler.Replenish)
	awb.POST("/issue", awbHandler.Issue)
	awb.GET("/depth", awbHandler.Depth)

	dispatch := router.NewDomainGroup("dispatch", "/dispatch")
	dispatch.POST("", dispatchHandler.Create)
	dispatch.GET("/jobs", dispatchHandler.List)
	dispatch.GET("/jobs/:id", dispatchHandler.Get)
	dispatch.POST("/jobs/:id/retry", dispatchHandler.Retry)
	dispatch.POST("/jobs/:id/cancel", dispatchHandler.Cancel)

	stores := router.NewDomainGroup("stores", "/stores")
	stores.POST("", storeHandler.Register)
	stores.GET("", storeHandler.ListActive)
	stores.GET("/:id", storeHandler.Get)
	stores.POST("/:id/secret", storeHandler.RotateSecret)
	stores.DELETE("/:id", storeHandler.Deactivate)

	router.NewRouter(engine, router.WithAPIVersion("v1")).
		Register(webhooks).
		Register(authGroup).
		Register(orders).
		Register(awb).
		Register(dispatch).
		Register(stores).
		Setup()
}

type dbChecker struct {
	db *persistence.Database
}

func (c dbChecker) Name() string                 { return "postgres" }
func (c dbChecker) Ping(_ context.Context) error { return c.db.Ping() }

type redisChecker struct {
	blacklist *auth.RedisTokenBlacklist
}

func (c redisChecker) Name() string { return "redis" }

func (c redisChecker) Ping(ctx context.Context) error {
	return c.blacklist.GetClient().Ping(ctx).Err()
}
