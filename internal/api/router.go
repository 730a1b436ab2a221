package api

import (
	"github.com/gin-gonic/gin"
	"github.com/limelightai/limelight/internal/api/handler"
	"github.com/limelightai/limelight/internal/api/middleware"
	"github.com/limelightai/limelight/internal/config"
	"github.com/limelightai/limelight/internal/repository"
	"github.com/limelightai/limelight/internal/scan"
	"gorm.io/gorm"
)

// SetupRouter configures the Gin router with all routes
func SetupRouter(
	cfg *config.Config,
	db *gorm.DB,
	engine *scan.Engine,
	jobs *repository.JobRepository,
	tasks *repository.TaskRepository,
	sched *repository.SchedulerRepository,
	prompts *repository.PromptRepository,
) *gin.Engine {
	// Set Gin mode
	switch cfg.Server.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
		AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
	}))

	// Create handlers
	healthHandler := handler.NewHealthHandler(db)
	schedulerHandler := handler.NewSchedulerHandler(engine)
	adminHandler := handler.NewAdminHandler(engine, jobs, tasks, sched, prompts)

	// Health check
	r.GET("/health", healthHandler.Health)

	// Scheduler entry points for non-interactive callers
	scheduler := r.Group("/api/v1/scheduler")
	scheduler.Use(middleware.SchedulerSecret(cfg.Scheduler.Secret))
	{
		scheduler.POST("/daily", schedulerHandler.DailyTrigger)
		scheduler.POST("/reconcile", schedulerHandler.Reconcile)
		scheduler.POST("/audit", schedulerHandler.Audit)
	}

	// Admin-triggered variants
	admin := r.Group("/api/v1/admin")
	admin.Use(middleware.AdminKey(cfg.Scheduler.AdminKey))
	{
		admin.POST("/scans", adminHandler.BulkScan)
		admin.GET("/jobs/:id", adminHandler.GetJob)
		admin.POST("/jobs/:id/resume", adminHandler.ResumeJob)
		admin.PUT("/providers", adminHandler.UpsertProvider)
		admin.GET("/runs", adminHandler.ListRuns)
	}

	return r
}
