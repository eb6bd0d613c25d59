// Package main provides the entry point for the billboard inventory ETL
// service.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/oohgrid/billboard-etl/app/handlers"
	"github.com/oohgrid/billboard-etl/app/router"
	businessflow "github.com/oohgrid/billboard-etl/business_flow"
	"github.com/oohgrid/billboard-etl/config"
	"github.com/oohgrid/billboard-etl/docstore"
	"github.com/oohgrid/billboard-etl/models"
	"github.com/oohgrid/billboard-etl/pipeline"
	"github.com/oohgrid/billboard-etl/repository"
	"github.com/oohgrid/billboard-etl/runner"
	"github.com/oohgrid/billboard-etl/services"
	"github.com/oohgrid/billboard-etl/utils"
)

// Application holds the wired service components.
type Application struct {
	router router.Router
	server *fiber.App
	config *config.Config
	logger *utils.Logger
}

func main() {
	log.Println("Starting billboard ETL service...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := app.server.Listen(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-sigChan
	log.Println("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
	log.Println("Server stopped")
}

// initializeApplication wires the persistence layers, external clients and
// the HTTP surface together.
func initializeApplication(cfg *config.Config) (*Application, error) {
	logger := utils.NewLogger(utils.LoggerOptions{
		Level:      cfg.Logging.Level,
		Output:     cfg.Logging.Output,
		FilePath:   cfg.Logging.FilePath,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})

	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	rc, err := initializeRedis(cfg.Redis)
	if err != nil {
		return nil, err
	}

	billboardRepo := repository.NewBillboardRepository(db)
	runRepo := repository.NewPipelineRunRepository(db)
	profileStore := docstore.NewProfileStore(rc)

	resolver, err := pipeline.NewCategoryResolver(cfg.Paths.CategoryMapFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load category map: %w", err)
	}

	checkpoints, err := runner.NewCheckpointStore(cfg.Paths.StateDir)
	if err != nil {
		return nil, err
	}

	var geocoder pipeline.Geocoder
	if cfg.Geocoder.APIKey != "" {
		geocoder = services.NewGoogleGeocoder(cfg.Geocoder.BaseURL, cfg.Geocoder.APIKey, cfg.Geocoder.Timeout)
	} else {
		logger.Warn("geocoder api key not set; address enrichment disabled")
	}

	var profileClient runner.BatchSubmitter
	if cfg.ProfileAPI.Enabled && cfg.ProfileAPI.BaseURL != "" {
		profileClient = services.NewProfileClient(cfg.ProfileAPI.BaseURL, cfg.ProfileAPI.Token, cfg.ProfileAPI.Timeout)
	}

	flow := businessflow.NewETLFlow(
		billboardRepo, runRepo, resolver, geocoder,
		profileClient, checkpoints, profileStore, cfg, logger,
	)

	pipelineHandler := handlers.NewPipelineHandler(flow)
	r := router.NewFiberRouter(pipelineHandler, cfg)

	return &Application{
		router: r,
		server: r.GetApp(),
		config: cfg,
		logger: logger,
	}, nil
}

// initializeDatabase opens the Postgres connection, configures pooling and
// migrates the schema.
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
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

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := db.AutoMigrate(&models.Billboard{}, &models.PipelineRun{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	log.Printf("Database connection established (%d max open, %d max idle)",
		cfg.MaxOpenConns, cfg.MaxIdleConns)
	return db, nil
}

// initializeRedis opens the Redis client and verifies connectivity.
func initializeRedis(cfg config.RedisConfig) (*redis.Client, error) {
	rc := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established to %s (db=%d)", cfg.Addr, cfg.DB)
	return rc, nil
}
