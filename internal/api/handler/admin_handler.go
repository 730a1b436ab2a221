package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/limelightai/limelight/internal/domain"
	"github.com/limelightai/limelight/internal/repository"
	"github.com/limelightai/limelight/internal/scan"
	"gorm.io/gorm"
)

// AdminHandler handles admin-triggered orchestration: bulk scans with
// replace/preflight, job inspection, manual job resumption, provider
// configuration, and the scheduler run log.
type AdminHandler struct {
	engine  *scan.Engine
	jobs    *repository.JobRepository
	tasks   *repository.TaskRepository
	sched   *repository.SchedulerRepository
	prompts *repository.PromptRepository
}

// NewAdminHandler creates a new admin handler.
// Parameters:
//   - engine: orchestration engine.
//   - jobs: batch job repository.
//   - tasks: task repository.
//   - sched: scheduler state/run repository.
//   - prompts: prompt and provider config repository.
// Returns:
//   - *AdminHandler: initialized handler.
func NewAdminHandler(
	engine *scan.Engine,
	jobs *repository.JobRepository,
	tasks *repository.TaskRepository,
	sched *repository.SchedulerRepository,
	prompts *repository.PromptRepository,
) *AdminHandler {
	return &AdminHandler{engine: engine, jobs: jobs, tasks: tasks, sched: sched, prompts: prompts}
}

// BulkScanRequest is the admin bulk-trigger request body.
type BulkScanRequest struct {
	Replace   bool `json:"replace"`
	Preflight bool `json:"preflight"`
}

// BulkScan handles POST /api/v1/admin/scans. Preflight mode resolves each
// tenant's quota-clamped fan-out without creating any rows, to estimate
// cost before committing.
func (h *AdminHandler) BulkScan(c *gin.Context) {
	var req BulkScanRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	results, err := h.engine.BulkScan(c.Request.Context(), scan.BulkOptions{
		Replace:   req.Replace,
		Preflight: req.Preflight,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"preflight": req.Preflight,
		"tenants":   results,
	})
}

// GetJob handles GET /api/v1/admin/jobs/:id.
func (h *AdminHandler) GetJob(c *gin.Context) {
	jobID := c.Param("id")

	job, err := h.jobs.GetByID(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	tasks, err := h.tasks.ListByJob(c.Request.Context(), jobID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"job":   job,
		"tasks": tasks,
	})
}

// ResumeJob handles POST /api/v1/admin/jobs/:id/resume. Runs only the
// job's remaining pending tasks; tasks with a terminal status are never
// re-issued.
func (h *AdminHandler) ResumeJob(c *gin.Context) {
	jobID := c.Param("id")

	stats, err := h.engine.RunJob(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, scan.ErrJobHeld) {
			c.JSON(http.StatusConflict, gin.H{"error": "job is held by another runner"})
			return
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// UpsertProviderRequest is the provider configuration request body. An
// empty org_id writes the global default row; a non-empty org_id writes an
// org-scoped override.
type UpsertProviderRequest struct {
	ID      string `json:"id" binding:"required"`
	OrgID   string `json:"org_id"`
	Model   string `json:"model" binding:"required"`
	Enabled bool   `json:"enabled"`
}

// UpsertProvider handles PUT /api/v1/admin/providers. Changes take effect
// on the next fan-out; tasks already created keep their provider.
func (h *AdminHandler) UpsertProvider(c *gin.Context) {
	var req UpsertProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pc := &domain.ProviderConfig{
		ID:      req.ID,
		OrgID:   req.OrgID,
		Model:   req.Model,
		Enabled: req.Enabled,
	}
	if err := h.prompts.UpsertProvider(c.Request.Context(), pc); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"provider": pc})
}

// ListRuns handles GET /api/v1/admin/runs?limit=50.
func (h *AdminHandler) ListRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	runs, err := h.sched.RecentRuns(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}
