package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/limelightai/limelight/internal/api"
	"github.com/limelightai/limelight/internal/config"
	"github.com/limelightai/limelight/internal/logger"
	"github.com/limelightai/limelight/internal/provider"
	"github.com/limelightai/limelight/internal/repository"
	"github.com/limelightai/limelight/internal/scan"
	"github.com/limelightai/limelight/internal/storage"
)

func main() {
	// Initialize logger first so startup failures are captured
	log := logger.NewDefault()
	logger.SetDefaultLogger(log)
	defer logger.Sync()

	// Load configuration
	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("Failed to load config: %v", err)
	}

	// Initialize database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize database: %v", err)
	}

	// Initialize repositories
	orgRepo := repository.NewOrgRepository(db)
	promptRepo := repository.NewPromptRepository(db)
	jobRepo := repository.NewJobRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	schedRepo := repository.NewSchedulerRepository(db)

	// Initialize provider executors
	registry := provider.NewRegistryFromConfig(&cfg.Providers)
	logger.Info("Registered provider executors: %v", registry.IDs())

	// Initialize audit report archive (optional)
	var archive storage.ReportArchive
	if cfg.Archive.Enabled {
		s3Archive, err := storage.NewS3Archive(&storage.S3Config{
			Endpoint:  cfg.Archive.Endpoint,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
			UseSSL:    cfg.Archive.UseSSL,
			Bucket:    cfg.Archive.Bucket,
			Region:    cfg.Archive.Region,
			PublicURL: cfg.Archive.PublicURL,
		})
		if err != nil {
			logger.Fatal("Failed to initialize report archive: %v", err)
		}
		if err := s3Archive.EnsureBucket(context.Background()); err != nil {
			logger.Fatal("Failed to ensure archive bucket: %v", err)
		}
		archive = s3Archive
	}

	// Initialize orchestration engine
	gate, err := scan.NewGate(&cfg.Scheduler)
	if err != nil {
		logger.Fatal("Failed to initialize gate: %v", err)
	}
	manager := scan.NewManager(orgRepo, promptRepo, jobRepo, taskRepo, gate, &cfg.Quotas, cfg.Scheduler.TenantDelay)
	runner := scan.NewRunner(jobRepo, taskRepo, promptRepo, registry, cfg.Runner)
	reconciler := scan.NewReconciler(jobRepo, cfg.Reconciler)
	auditor := scan.NewAuditor(orgRepo, promptRepo, jobRepo, taskRepo, manager, archive, cfg.Audit)
	engine := scan.NewEngine(gate, manager, runner, reconciler, auditor, schedRepo)

	// Start the in-process trigger loop
	var cronSched *scan.CronScheduler
	if cfg.Scheduler.CronEnabled {
		cronSched = scan.NewCronScheduler(engine, cfg.Scheduler)
		if err := cronSched.Start(); err != nil {
			logger.Fatal("Failed to start cron scheduler: %v", err)
		}
	}

	// Setup HTTP server
	router := api.SetupRouter(cfg, db, engine, jobRepo, taskRepo, schedRepo, promptRepo)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Server listening on port %d", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down...")

	if cronSched != nil {
		cronSched.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Forced shutdown: %v", err)
	}
	logger.Info("Server stopped")
}
