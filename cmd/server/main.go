package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	syncapp "github.com/clientsync/backend/internal/application/sync"
	"github.com/clientsync/backend/internal/domain/sync"
	"github.com/clientsync/backend/internal/infrastructure/cache"
	"github.com/clientsync/backend/internal/infrastructure/config"
	"github.com/clientsync/backend/internal/infrastructure/logger"
	"github.com/clientsync/backend/internal/infrastructure/persistence"
	"github.com/clientsync/backend/internal/infrastructure/platforms"
	"github.com/clientsync/backend/internal/interfaces/http/handler"
	"github.com/clientsync/backend/internal/interfaces/http/middleware"
	"github.com/clientsync/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

//	@title			Client Sync API
//	@version		1.0
//	@description	Multi-platform sync orchestrator: replicates client records across a relational store, a spreadsheet ledger and a project tracker with saga-style rollback.

//	@host		localhost:8080
//	@BasePath	/api/v1

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting client sync service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Database with a GORM logger backed by zap
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Outside production the schema is synced on boot; production deploys
	// run the migrate CLI instead.
	if cfg.App.Env != "production" {
		if err := db.AutoMigrate(); err != nil {
			log.Fatal("Failed to auto-migrate schema", zap.Error(err))
		}
	}

	// Per-client locks. Redis coordinates across instances; a single dev
	// instance falls back to in-process locks when Redis is unreachable.
	var locker cache.ClientLocker
	redisLocker, err := cache.NewRedisClientLocker(cache.RedisLockerConfig{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		TTL:      cfg.Sync.LockTTL,
	}, log)
	if err != nil {
		if cfg.App.Env == "production" {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		log.Warn("Redis unavailable, using in-memory client locks", zap.Error(err))
		locker = cache.NewInMemoryClientLocker()
	} else {
		defer func() {
			if err := redisLocker.Close(); err != nil {
				log.Error("Error closing Redis locker", zap.Error(err))
			}
		}()
		locker = redisLocker
	}

	// Platform adapters
	sheetCfg := platforms.NewSheetConfig(cfg.Spreadsheet.BaseURL, cfg.Spreadsheet.APIToken, cfg.Spreadsheet.SheetID)
	sheetCfg.TimeoutSeconds = int(cfg.Sync.SpreadsheetTimeout.Seconds())
	sheet, err := platforms.NewSheetAdapter(sheetCfg)
	if err != nil {
		log.Fatal("Failed to configure spreadsheet adapter", zap.Error(err))
	}

	trackerCfg := platforms.NewTrackerConfig(cfg.Tracker.BaseURL, cfg.Tracker.APIToken, cfg.Tracker.DatabaseID)
	trackerCfg.TimeoutSeconds = int(cfg.Sync.TrackerTimeout.Seconds())
	tracker, err := platforms.NewTrackerAdapter(trackerCfg)
	if err != nil {
		log.Fatal("Failed to configure tracker adapter", zap.Error(err))
	}

	// Persistence-backed ports
	store := persistence.NewGormClientStore(db.DB)
	auditSink := persistence.NewGormAuditSink(db.DB, log)

	// Application services
	timeouts := syncapp.Timeouts{
		Primary:     cfg.Sync.PrimaryTimeout,
		Spreadsheet: cfg.Sync.SpreadsheetTimeout,
		Tracker:     cfg.Sync.TrackerTimeout,
	}
	resolver := sync.ResolverConfig{DriftWindow: cfg.Sync.DriftWindow}

	orchestrator := syncapp.NewOrchestrator(store, sheet, tracker, auditSink, log, timeouts)
	reconciler := syncapp.NewReconciler(store, sheet, auditSink, log, resolver, timeouts)

	syncHandler := handler.NewSyncHandler(orchestrator, reconciler, store, locker, auditSink)

	// HTTP engine and middleware
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Failed to set trusted proxies", zap.Error(err))
	}
	engine.Use(logger.RequestID())
	engine.Use(logger.GinMiddleware(log))
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.BodyLimit(1 << 20))
	engine.Use(middleware.CORSWithConfig(middleware.DefaultCORSConfig()))

	engine.GET("/health", healthHandler(db))

	syncRoutes := router.NewDomainGroup("sync", "/sync")
	syncRoutes.POST("/clients", syncHandler.Create)
	syncRoutes.PUT("/clients/:id", syncHandler.Update)
	syncRoutes.POST("/reconcile/rows/:row", syncHandler.Reconcile)
	syncRoutes.GET("/audit", syncHandler.ListAudit)

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(syncRoutes)
	r.Setup()

	engine.GET("/api/v1/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
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

	// Graceful shutdown. The write timeout already bounds in-flight sagas,
	// so the shutdown budget only needs to cover draining.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler reports process and database health
func healthHandler(db *persistence.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
