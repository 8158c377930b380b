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

	appsync "github.com/dealbridge/backend/internal/application/sync"
	"github.com/dealbridge/backend/internal/domain/mapping"
	domainsync "github.com/dealbridge/backend/internal/domain/sync"
	"github.com/dealbridge/backend/internal/infrastructure/auth"
	"github.com/dealbridge/backend/internal/infrastructure/cache"
	"github.com/dealbridge/backend/internal/infrastructure/config"
	"github.com/dealbridge/backend/internal/infrastructure/hubspot"
	"github.com/dealbridge/backend/internal/infrastructure/logger"
	"github.com/dealbridge/backend/internal/infrastructure/partnercentral"
	"github.com/dealbridge/backend/internal/infrastructure/persistence"
	"github.com/dealbridge/backend/internal/infrastructure/queue"
	"github.com/dealbridge/backend/internal/infrastructure/scheduler"
	"github.com/dealbridge/backend/internal/interfaces/http/handler"
	"github.com/dealbridge/backend/internal/interfaces/http/middleware"
	"github.com/dealbridge/backend/internal/interfaces/http/router"
)

// version is overridden at build time via -ldflags.
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting dealbridge",
		zap.String("version", version),
		zap.String("env", cfg.App.Env),
	)

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Failed to close database", zap.Error(err))
		}
	}()

	if err := queue.Migrate(db.DB); err != nil {
		log.Fatal("Failed to migrate queue schema", zap.Error(err))
	}
	if err := persistence.MigrateConflicts(db.DB); err != nil {
		log.Fatal("Failed to migrate conflict schema", zap.Error(err))
	}

	// Durable queue and idempotency store
	eventQueue := queue.NewGormQueue(db.DB, queue.Config{
		LeaseDuration: cfg.Queue.LeaseDuration,
		MaxDeliveries: cfg.Queue.MaxDeliveries,
		DedupWindow:   cfg.Queue.DedupWindow,
	})

	storeFactory := cache.NewIdempotencyStoreFactory(cfg.Redis, cache.WithLogger(log))
	idempotencyStore, err := storeFactory.CreateStore()
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}

	// Provider clients
	crm, err := hubspot.NewClient(&hubspot.Config{
		BaseURL:        cfg.HubSpot.BaseURL,
		AccessToken:    cfg.HubSpot.AccessToken,
		TimeoutSeconds: int(cfg.HubSpot.Timeout / time.Second),
	})
	if err != nil {
		log.Fatal("Failed to create HubSpot client", zap.Error(err))
	}

	ctx := context.Background()
	partner, err := partnercentral.NewClient(ctx, &partnercentral.Config{
		Region:          cfg.AWS.Region,
		Catalog:         cfg.AWS.Catalog,
		AccessKeyID:     cfg.AWS.AccessKeyID,
		SecretAccessKey: cfg.AWS.SecretAccessKey,
		Endpoint:        cfg.AWS.Endpoint,
	})
	if err != nil {
		log.Fatal("Failed to create Partner Central client", zap.Error(err))
	}

	// Application services
	engine := mapping.NewEngine(cfg.AWS.Catalog)
	orchestrator := appsync.NewOrchestrator(crm, partner, engine, appsync.OrchestratorConfig{
		TriggerTag: cfg.Sync.TriggerTag,
	}, log)

	conflictRepo := persistence.NewGormConflictRepository(db.DB)
	detector := appsync.NewConflictDetector(crm, engine, conflictRepo, log)
	conflictService := appsync.NewConflictService(conflictRepo, crm, orchestrator, log)
	reconciler := appsync.NewReconciler(orchestrator, detector, log)
	ingestor := appsync.NewIngestor(eventQueue, log)

	eventRouter := appsync.NewRouter()
	hubspotHandlers := []domainsync.Handler{
		appsync.NewDealCreationHandler(orchestrator, log),
		appsync.NewDealUpdateHandler(orchestrator, log),
		appsync.NewCompanyUpdateHandler(orchestrator, log),
		appsync.NewNoteCreationHandler(orchestrator, log),
	}
	for _, h := range hubspotHandlers {
		if err := eventRouter.Register(domainsync.SourceHubSpot, h); err != nil {
			log.Fatal("Failed to register event handler", zap.Error(err))
		}
	}
	if err := eventRouter.Register(domainsync.SourceAWS, appsync.NewRemoteChangeHandler(orchestrator, detector, log)); err != nil {
		log.Fatal("Failed to register event handler", zap.Error(err))
	}

	processor := appsync.NewProcessor(eventQueue, eventRouter, idempotencyStore, appsync.ProcessorConfig{
		Workers:          cfg.Queue.Workers,
		PollInterval:     cfg.Queue.PollInterval,
		IdempotencyTTL:   cfg.Sync.IdempotencyTTL,
		CleanupEnabled:   cfg.Queue.CleanupEnabled,
		CleanupRetention: cfg.Queue.CleanupRetention,
	}, log)
	if err := processor.Start(ctx); err != nil {
		log.Fatal("Failed to start processor", zap.Error(err))
	}

	var reconcileScheduler *scheduler.ReconcileScheduler
	if cfg.Scheduler.Enabled {
		reconcileScheduler, err = scheduler.NewReconcileScheduler(partner, ingestor, scheduler.Config{
			PollInterval:  cfg.Scheduler.PollInterval,
			LookbackSlack: cfg.Scheduler.LookbackSlack,
			JobTimeout:    cfg.Scheduler.JobTimeout,
		}, log)
		if err != nil {
			log.Fatal("Failed to create reconcile scheduler", zap.Error(err))
		}
		if err := reconcileScheduler.Start(ctx); err != nil {
			log.Fatal("Failed to start reconcile scheduler", zap.Error(err))
		}
	}

	// HTTP server
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	ginEngine := gin.New()
	ginEngine.Use(middleware.RequestID())
	ginEngine.Use(logger.GinMiddleware(log))
	ginEngine.Use(logger.Recovery(log))
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := ginEngine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Fatal("Failed to set trusted proxies", zap.Error(err))
		}
	}

	healthHandler := handler.NewHealthHandler(eventQueue, version)
	ginEngine.GET("/healthz", healthHandler.Healthz)

	webhookHandler := handler.NewWebhookHandler(ingestor, log)
	ginEngine.POST("/webhooks/:source",
		middleware.BodyLimit(cfg.Webhook.MaxBodySize),
		middleware.WebhookSignature(cfg.Webhook.Secrets, log),
		webhookHandler.Receive,
	)

	jwtService := auth.NewJWTService(cfg.JWT)
	router.NewRouter(ginEngine, router.WithMiddleware(middleware.JWTAuth(jwtService))).
		Register(handler.NewConflictHandler(conflictService, log)).
		Register(handler.NewSyncHandler(orchestrator, reconciler, log)).
		Register(handler.NewQueueHandler(eventQueue, log)).
		Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        ginEngine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if reconcileScheduler != nil {
		if err := reconcileScheduler.Stop(shutdownCtx); err != nil {
			log.Error("Reconcile scheduler shutdown failed", zap.Error(err))
		}
	}
	if err := processor.Stop(shutdownCtx); err != nil {
		log.Error("Processor shutdown failed", zap.Error(err))
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
