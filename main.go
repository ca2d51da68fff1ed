// Package main provides the main entry point for the lead allocation engine
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/linkcrm/lead-engine/app/handlers"
	"github.com/linkcrm/lead-engine/app/middleware"
	"github.com/linkcrm/lead-engine/app/router"
	"github.com/linkcrm/lead-engine/app/services"
	businessflow "github.com/linkcrm/lead-engine/business_flow"
	"github.com/linkcrm/lead-engine/config"
	"github.com/linkcrm/lead-engine/models"
	"github.com/linkcrm/lead-engine/repository"
	"github.com/linkcrm/lead-engine/utils"
	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	config    *config.ProductionConfig
	server    *fiber.App
	stopFuncs []func()
}

func main() {
	log.Println("Starting lead engine...")

	// Load production configuration
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	setupLogging(cfg.Logging)

	// Initialize application
	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Setup routes
	app.router.SetupRoutes()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Server starting on %s", address)

		var err error
		if cfg.Security.TLSEnabled {
			err = app.server.Listen(address, fiber.ListenConfig{
				CertFile:    cfg.Security.TLSCertFile,
				CertKeyFile: cfg.Security.TLSKeyFile,
			})
		} else {
			err = app.server.Listen(address)
		}
		if err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Println("Shutting down gracefully...")

	// Stop background workers
	for _, fn := range app.stopFuncs {
		fn()
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// setupLogging routes the standard logger through lumberjack when file
// output is configured, so logs rotate without external tooling.
func setupLogging(cfg config.LoggingConfig) {
	if cfg.Output == "stdout" {
		return
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}

	switch cfg.Output {
	case "file":
		log.SetOutput(rotator)
	case "both":
		log.SetOutput(io.MultiWriter(os.Stdout, rotator))
	}
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB for connection pooling configuration
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

// migrateDatabase brings the schema up to date
func migrateDatabase(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Organization{},
		&models.UserProfile{},
		&models.AllocationRule{},
		&models.RoundRobinCursor{},
		&models.CommunityMappingRule{},
		&models.Lead{},
		&models.Followup{},
		&models.AllocationLog{},
		&models.DuplicateNotification{},
	)
}

// initializeCache initializes the Cache client and verifies connectivity
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled || cfg.Provider != "redis" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	// Override DB if provided in config
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established to %s (db=%d)", cfg.RedisURL, cfg.RedisDB)
	return rc, nil
}

// startCacheHealthMonitor starts a background goroutine that periodically pings Redis
// to detect connectivity issues. The returned cancel function stops the monitor.
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

// ensureDefaultPoolCursor seeds the cursor row of the configured fallback
// pool so the first default allocation starts at position zero.
func ensureDefaultPoolCursor(cursorRepo repository.RoundRobinCursorRepository) error {
	ctx := context.Background()

	cursor, err := cursorRepo.Get(ctx, businessflow.DefaultPoolCursorID)
	if err != nil {
		return err
	}
	if cursor != nil {
		return nil
	}

	return cursorRepo.Create(ctx, &models.RoundRobinCursor{
		RuleID:    businessflow.DefaultPoolCursorID,
		Position:  -1,
		UpdatedAt: utils.UTCNow(),
	})
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()

	// Initialize database
	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	if err := migrateDatabase(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		cancel := startCacheHealthMonitor(context.Background(), rc, cfg.Cache.CleanupInterval)
		stopFuncs = append(stopFuncs, cancel)
	}

	// Initialize repositories
	ruleRepo := repository.NewAllocationRuleRepository(db)
	cursorRepo := repository.NewRoundRobinCursorRepository(db)
	leadRepo := repository.NewLeadRepository(db)
	followupRepo := repository.NewFollowupRepository(db)
	logRepo := repository.NewAllocationLogRepository(db)
	notifRepo := repository.NewDuplicateNotificationRepository(db)
	mappingRepo := repository.NewCommunityMappingRuleRepository(db)
	userRepo := repository.NewUserProfileRepository(db)
	orgRepo := repository.NewOrganizationRepository(db)
	txManager := repository.NewTxManager(db)

	if err := ensureDefaultPoolCursor(cursorRepo); err != nil {
		return nil, fmt.Errorf("failed to seed default pool cursor: %w", err)
	}

	// Initialize services
	notificationService := services.NewNotificationService()

	tokenService, err := services.NewTokenService(
		cfg.JWT.AccessTokenTTL,
		cfg.JWT.RefreshTokenTTL,
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
		cfg.JWT.SecretKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	log.Printf("Token service initialized with issuer: %s, audience: %s", cfg.JWT.Issuer, cfg.JWT.Audience)

	// Initialize flows
	matcher := businessflow.NewRuleMatcher()
	strategy := businessflow.NewAssignmentStrategy(cursorRepo, followupRepo, cfg.Allocation)

	duplicateFlow := businessflow.NewDuplicateFlow(
		leadRepo,
		followupRepo,
		notifRepo,
		notificationService,
	)

	communityFlow := businessflow.NewCommunityFlow(
		mappingRepo,
		leadRepo,
		followupRepo,
		logRepo,
		orgRepo,
		txManager,
	)

	allocationFlow := businessflow.NewAllocationFlow(
		ruleRepo,
		leadRepo,
		followupRepo,
		logRepo,
		userRepo,
		orgRepo,
		matcher,
		strategy,
		duplicateFlow,
		communityFlow,
		txManager,
		cfg.Allocation,
	)

	ruleAdminFlow := businessflow.NewRuleAdminFlow(
		ruleRepo,
		mappingRepo,
		logRepo,
		userRepo,
	)

	statsFlow := businessflow.NewStatsFlow(
		logRepo,
		userRepo,
		rc,
		&cfg.Cache,
		cfg.Allocation,
	)

	// Initialize handlers
	allocationHandler := handlers.NewAllocationHandler(allocationFlow)
	ruleHandler := handlers.NewRuleHandler(ruleAdminFlow)
	communityHandler := handlers.NewCommunityHandler(ruleAdminFlow, communityFlow)
	notificationHandler := handlers.NewNotificationHandler(duplicateFlow)
	statsHandler := handlers.NewStatsHandler(statsFlow)

	// Initialize auth middleware
	authMiddleware := middleware.NewAuthMiddleware(tokenService)

	// Initialize router
	appRouter := router.NewFiberRouter(
		cfg,
		allocationHandler,
		ruleHandler,
		communityHandler,
		notificationHandler,
		statsHandler,
		authMiddleware,
	)

	fiberRouter := appRouter.(*router.FiberRouter)
	application := &Application{
		router:    fiberRouter,
		config:    cfg,
		server:    fiberRouter.GetApp(),
		stopFuncs: stopFuncs,
	}

	return application, nil
}
