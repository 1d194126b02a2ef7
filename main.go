// Package main provides the entry point of the ParcelHub campus parcel hub API
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/jashub/parcelhub/app/handlers"
	"github.com/jashub/parcelhub/app/logging"
	"github.com/jashub/parcelhub/app/middleware"
	"github.com/jashub/parcelhub/app/router"
	"github.com/jashub/parcelhub/app/scheduler"
	"github.com/jashub/parcelhub/app/services"
	businessflow "github.com/jashub/parcelhub/business_flow"
	"github.com/jashub/parcelhub/config"
	"github.com/jashub/parcelhub/migrations"
	"github.com/jashub/parcelhub/pricing"
	"github.com/jashub/parcelhub/repository"
	"github.com/jashub/parcelhub/utils"
	"github.com/pressly/goose/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	config    *config.ProductionConfig
	server    *fiber.App
	stopFuncs []func()
}

func main() {
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logging.Setup(cfg.Logging)
	log.Printf("Starting ParcelHub %s (%s)...", cfg.Deployment.Version, cfg.Deployment.Environment)

	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := app.router.Start(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-sigChan
	log.Println("Shutting down gracefully...")

	// Drain in-flight requests before closing the pools they use
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	// Stop background workers
	for _, fn := range app.stopFuncs {
		fn()
	}

	log.Println("Server stopped")
}

// initializeDatabase opens the connection pool. Constraint violations are translated
// to gorm errors so duplicate tracking numbers can be told apart from other failures.
func initializeDatabase(cfg config.DatabaseConfig, logCfg config.LoggingConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		TranslateError: true,
		Logger: gormlogger.New(logging.New(logCfg, "", "gorm "), gormlogger.Config{
			SlowThreshold:             cfg.SlowQueryTime,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
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

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// runMigrations applies the embedded goose migrations
func runMigrations(ctx context.Context, sqlDB *sql.DB) error {
	provider, err := goose.NewProvider(goose.DialectPostgres, sqlDB, migrations.FS)
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	for _, r := range results {
		log.Printf("Applied migration %s in %s", r.Source.Path, r.Duration)
	}
	return nil
}

// initializeCache initializes the Redis client and verifies connectivity.
// A nil client means caching is disabled and in-process fallbacks are used.
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled {
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

	log.Printf("Redis connection established (db=%d)", cfg.RedisDB)
	return rc, nil
}

// startCacheHealthMonitor periodically pings Redis to surface connectivity issues in the logs
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeApplication wires repositories, services, flows and handlers
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()
	bg, stopBackground := context.WithCancel(context.Background())
	stopFuncs = append(stopFuncs, stopBackground)

	db, err := initializeDatabase(cfg.Database, cfg.Logging)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.Database.AutoMigrate {
		if err := runMigrations(bg, sqlDB); err != nil {
			return nil, err
		}
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}

	// Repositories
	tx := repository.NewTransactor(db)
	parcelRepo := repository.NewParcelRepository(db)
	eventRepo := repository.NewParcelEventRepository(db)
	paymentRepo := repository.NewParcelPaymentRepository(db)
	contactRepo := repository.NewContactMessageRepository(db)

	// Services
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	parcelMetrics := services.NewPrometheusParcelMetrics(registry)
	httpMetrics := middleware.NewHTTPMetrics(registry)

	var (
		cache  services.ParcelCache = services.NoopParcelCache{}
		locker                      = services.NewLocalLocker()
	)
	if rc != nil {
		cache = services.NewRedisParcelCache(rc, cfg.Cache.RedisPrefix, cfg.Cache.ParcelTTL)
		locker = services.NewRedisLocker(rc, cfg.Cache.RedisPrefix)
		stopFuncs = append(stopFuncs, startCacheHealthMonitor(bg, rc, cfg.Cache.HealthInterval))
	}

	calc := pricing.NewCalculator(nil)
	codes := services.NewPickupCodeService(cfg.Security.BcryptCost, utils.PickupCodeLength)
	notifier := services.NewNotificationServiceFromConfig(cfg.Notification)

	receipts, err := services.NewReceiptService(
		cfg.Receipt.TTL,
		cfg.Receipt.Issuer,
		cfg.Receipt.Audience,
		cfg.Receipt.UseRSAKeys,
		cfg.Receipt.PrivateKey,
		cfg.Receipt.PublicKey,
		cfg.Receipt.SecretKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize receipt service: %w", err)
	}
	log.Printf("Receipt service initialized with issuer: %s, audience: %s", cfg.Receipt.Issuer, cfg.Receipt.Audience)

	captchaSvc, err := services.NewCaptchaServiceRotate(bg, cfg.Security.CaptchaTTL, cfg.Security.CaptchaPadding, cfg.Security.CaptchaImgSize)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize captcha service: %w", err)
	}

	// Flows
	parcelFlow := businessflow.NewParcelFlow(parcelRepo, eventRepo, paymentRepo, cache, calc, parcelMetrics)
	parcelAdminFlow := businessflow.NewParcelAdminFlow(tx, parcelRepo, eventRepo, paymentRepo, cache, codes, notifier, calc, parcelMetrics, cfg.Notification)
	paymentFlow := businessflow.NewPaymentFlow(tx, parcelRepo, eventRepo, paymentRepo, cache, locker, codes, receipts, calc, parcelMetrics)
	reportFlow := businessflow.NewReportFlow(parcelRepo, paymentRepo, calc)
	contactFlow := businessflow.NewContactFlow(contactRepo, captchaSvc)

	health := []router.HealthCheck{{Name: "database", Ping: sqlDB.PingContext}}
	if rc != nil {
		health = append(health, router.HealthCheck{Name: "redis", Ping: func(ctx context.Context) error {
			return rc.Ping(ctx).Err()
		}})
	} else {
		health = append(health, router.HealthCheck{Name: "redis"})
	}

	appRouter := router.NewFiberRouter(cfg, router.Dependencies{
		Parcel:      handlers.NewParcelHandler(parcelFlow),
		ParcelAdmin: handlers.NewParcelAdminHandler(parcelAdminFlow),
		Payment:     handlers.NewPaymentHandler(paymentFlow),
		Report:      handlers.NewReportHandler(reportFlow),
		Contact:     handlers.NewContactHandler(contactFlow),
		AdminAuth:   middleware.NewAdminAuthMiddleware(cfg.Security.AdminAPIKeys),
		HTTPMetrics: httpMetrics,
		Gatherer:    registry,
		Health:      health,
		AccessLog:   logging.Writer(cfg.Logging, "access.log"),
	})

	if cfg.Scheduler.OverdueReminderEnabled {
		sched := scheduler.NewOverdueScheduler(
			parcelRepo,
			notifier,
			locker,
			calc,
			parcelMetrics,
			logging.New(cfg.Logging, "scheduler.log", "overdue "),
			cfg.Scheduler,
			cfg.Notification,
		)
		stopFuncs = append(stopFuncs, sched.Start(bg))
	}

	stopFuncs = append(stopFuncs, func() {
		if rc != nil {
			_ = rc.Close()
		}
		_ = sqlDB.Close()
	})

	return &Application{
		router:    appRouter,
		config:    cfg,
		server:    appRouter.GetApp(),
		stopFuncs: stopFuncs,
	}, nil
}
