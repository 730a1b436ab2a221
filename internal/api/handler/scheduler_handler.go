package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/limelightai/limelight/internal/scan"
)

// SchedulerHandler exposes the orchestration entry points called by
// external schedulers: daily trigger, reconciler sweep, and coverage audit.
// Gate rejections (outside-window, already-ran, locked) are expected
// outcomes and return 200; only store-level failures surface as 5xx.
type SchedulerHandler struct {
	engine *scan.Engine
}

// NewSchedulerHandler creates a new scheduler handler.
// Parameters:
//   - engine: orchestration engine.
// Returns:
//   - *SchedulerHandler: initialized handler.
func NewSchedulerHandler(engine *scan.Engine) *SchedulerHandler {
	return &SchedulerHandler{engine: engine}
}

// DailyTrigger handles POST /api/v1/scheduler/daily.
func (h *SchedulerHandler) DailyTrigger(c *gin.Context) {
	result, err := h.engine.DailyTrigger(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, result)
}

// Reconcile handles POST /api/v1/scheduler/reconcile.
func (h *SchedulerHandler) Reconcile(c *gin.Context) {
	result, err := h.engine.Reconcile(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, result)
}

// Audit handles POST /api/v1/scheduler/audit?repair=true.
func (h *SchedulerHandler) Audit(c *gin.Context) {
	repair, _ := strconv.ParseBool(c.DefaultQuery("repair", "false"))

	summary, err := h.engine.CoverageAudit(c.Request.Context(), repair)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, summary)
}
