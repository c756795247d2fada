// Package main provides the entry point of the click fraud evaluation and blocking service
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirphl/click-sentinel/app/handlers"
	"github.com/amirphl/click-sentinel/app/middleware"
	"github.com/amirphl/click-sentinel/app/router"
	"github.com/amirphl/click-sentinel/app/scheduler"
	"github.com/amirphl/click-sentinel/app/services"
	businessflow "github.com/amirphl/click-sentinel/business_flow"
	"github.com/amirphl/click-sentinel/cache"
	"github.com/amirphl/click-sentinel/config"
	"github.com/amirphl/click-sentinel/database"
	"github.com/amirphl/click-sentinel/logger"
	"github.com/amirphl/click-sentinel/migrations"
	"github.com/amirphl/click-sentinel/repository"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Application represents the main application structure
type Application struct {
	router    router.Router
	config    *config.ProductionConfig
	log       *zap.Logger
	db        *gorm.DB
	redis     *redis.Client
	clickFlow businessflow.AdClickFlow
	stopFuncs []func()
}

func main() {
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog, err := logger.New(cfg.Logging, cfg.Deployment.Environment)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	zlog.Info("Starting click-sentinel",
		zap.String("version", cfg.Deployment.Version),
		zap.String("commit", cfg.Deployment.CommitHash),
		zap.String("environment", cfg.Deployment.Environment))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := initializeApplication(ctx, cfg, zlog)
	if err != nil {
		zlog.Fatal("Failed to initialize application", zap.Error(err))
	}

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		serverErr <- app.router.Start(address)
	}()

	select {
	case sig := <-sigChan:
		zlog.Info("Shutting down gracefully", zap.String("signal", sig.String()))
	case err := <-serverErr:
		if err != nil {
			zlog.Error("Server stopped unexpectedly", zap.Error(err))
		}
	}

	app.shutdown()
	zlog.Info("Server stopped")
}

// shutdown stops the listener first so no click is accepted after the evaluation queue drains
func (a *Application) shutdown() {
	if err := a.router.Shutdown(a.config.Server.ShutdownTimeout); err != nil {
		a.log.Error("Error during server shutdown", zap.Error(err))
	}

	drained := make(chan struct{})
	go func() {
		a.clickFlow.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(a.config.Server.ShutdownTimeout):
		a.log.Warn("Click evaluations still running at shutdown; reservations left pending will be reaped")
	}

	for _, fn := range a.stopFuncs {
		fn()
	}

	if a.redis != nil {
		_ = a.redis.Close()
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig, zlog *zap.Logger) (*gorm.DB, error) {
	gormCfg := &gorm.Config{TranslateError: true}
	if cfg.SlowQueryLog {
		gormCfg.Logger = gormlogger.New(zap.NewStdLog(zlog.Named("gorm")), gormlogger.Config{
			SlowThreshold:             cfg.SlowQueryTime,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		})
	} else {
		gormCfg.Logger = gormlogger.Default.LogMode(gormlogger.Silent)
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	zlog.Info("Database connection established",
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.MaxIdleConns))

	return db, nil
}

// initializeCache initializes the Redis client and verifies connectivity
func initializeCache(cfg config.CacheConfig, zlog *zap.Logger) (*redis.Client, error) {
	if !cfg.Enabled || cfg.Provider != "redis" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	zlog.Info("Redis connection established", zap.String("addr", opt.Addr), zap.Int("db", cfg.RedisDB))
	return rc, nil
}

// initializeApplication wires storage, the evaluation pipeline, handlers and background jobs
func initializeApplication(ctx context.Context, cfg *config.ProductionConfig, zlog *zap.Logger) (*Application, error) {
	if cfg.Database.RunMigrations {
		applied, err := database.RunMigrations(ctx, cfg.Database.DSN(), migrations.Files, zlog)
		if err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		zlog.Info("Migrations applied", zap.Int("count", applied))
	}

	db, err := initializeDatabase(cfg.Database, zlog)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache, zlog)
	if err != nil {
		return nil, err
	}
	store, err := cache.NewStore(cfg.Cache, rc)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}

	// Repositories
	advertiserRepo := repository.NewAdvertiserRepository(db)
	clickRepo := repository.NewAdClickRepository(db)
	ruleRepo := repository.NewBlockingRuleRepository(db)
	blockedRepo := repository.NewBlockedIPRepository(db)

	// Evaluation pipeline
	upstream := services.NewNaverAdClient(cfg.NaverAd, zlog)
	evaluator := businessflow.NewRuleEvaluator(clickRepo, ruleRepo, store, cfg.Pipeline.RuleCacheTTL, zlog)
	registry := businessflow.NewBlockRegistry(blockedRepo, store, cfg.Pipeline.BlockedCacheTTL, zlog)
	coordinator := businessflow.NewBlockingCoordinator(evaluator, registry, upstream, cfg.Pipeline.BlockMemo, zlog)

	// Flows
	clickFlow := businessflow.NewAdClickFlow(
		advertiserRepo,
		clickRepo,
		coordinator,
		cfg.Pipeline.EvaluationConcurrency,
		cfg.Pipeline.EvaluationTimeout,
		zlog,
	)
	ruleFlow := businessflow.NewBlockingRuleFlow(db, ruleRepo, evaluator)
	reportFlow := businessflow.NewAdReportFlow(clickRepo, blockedRepo)

	tokenService, err := services.NewTokenService(
		cfg.JWT.AccessTokenTTL,
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
		cfg.JWT.SecretKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}
	authMiddleware := middleware.NewAuthMiddleware(tokenService)

	appRouter := router.NewFiberRouter(cfg, router.Handlers{
		AdTracking:   handlers.NewAdTrackingHandler(clickFlow, zlog),
		BlockingRule: handlers.NewBlockingRuleHandler(ruleFlow, zlog),
		AdReport:     handlers.NewAdReportHandler(reportFlow, zlog),
	}, authMiddleware, zlog)

	supervisor := scheduler.NewSupervisor(zlog, cfg.Server.ShutdownTimeout)
	supervisor.Add(scheduler.NewReservationReaper(blockedRepo, zlog, cfg.Pipeline.ReservationTTL, cfg.Pipeline.ReaperInterval))
	if rc != nil {
		supervisor.Add(scheduler.NewCacheHealthMonitor(rc, 30*time.Second, zlog))
	}
	jobsCtx, stopJobs := context.WithCancel(ctx)
	jobsDone := supervisor.ServeBackground(jobsCtx)
	stopFuncs := []func(){func() {
		stopJobs()
		<-jobsDone
	}}

	return &Application{
		router:    appRouter,
		config:    cfg,
		log:       zlog,
		db:        db,
		redis:     rc,
		clickFlow: clickFlow,
		stopFuncs: stopFuncs,
	}, nil
}
