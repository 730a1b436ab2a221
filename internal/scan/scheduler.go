package scan

import (
	"context"
	"fmt"

	"github.com/limelightai/limelight/internal/config"
	"github.com/limelightai/limelight/internal/logger"
	"github.com/robfig/cron/v3"
)

// CronScheduler drives the engine from inside the process: it polls the
// daily trigger, sweeps for stuck jobs, and fires the nightly coverage
// audit. External schedulers can hit the same HTTP entry points instead (or
// additionally); every path converges on the engine's atomic claims, so
// duplicate invocations are harmless.
type CronScheduler struct {
	engine *Engine
	cron   *cron.Cron
	cfg    config.SchedulerConfig
}

// NewCronScheduler creates a new CronScheduler.
func NewCronScheduler(engine *Engine, cfg config.SchedulerConfig) *CronScheduler {
	return &CronScheduler{
		engine: engine,
		cron:   cron.New(),
		cfg:    cfg,
	}
}

// Start registers the three recurring jobs and starts the cron loop.
func (s *CronScheduler) Start() error {
	ctx := logger.SetComponent(context.Background(), "cron")

	if _, err := s.cron.AddFunc(s.cfg.DailySpec, func() {
		res, err := s.engine.DailyTrigger(ctx)
		if err != nil {
			logger.CtxError(ctx, "Daily trigger failed: %v", err)
			return
		}
		if res.Status == StatusSuccess {
			logger.CtxInfo(ctx, "Daily trigger succeeded for %s (%d tenants)", res.Key, len(res.Results))
		}
	}); err != nil {
		return fmt.Errorf("invalid daily cron spec %q: %w", s.cfg.DailySpec, err)
	}

	if _, err := s.cron.AddFunc(s.cfg.ReconcileSpec, func() {
		if _, err := s.engine.Reconcile(ctx); err != nil {
			logger.CtxError(ctx, "Reconcile sweep failed: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid reconcile cron spec %q: %w", s.cfg.ReconcileSpec, err)
	}

	if _, err := s.cron.AddFunc(s.cfg.AuditSpec, func() {
		summary, err := s.engine.CoverageAudit(ctx, true)
		if err != nil {
			logger.CtxError(ctx, "Coverage audit failed: %v", err)
			return
		}
		logger.CtxInfo(ctx, "Coverage audit for %s: %s", summary.DayKey, summary.OverallHealth)
	}); err != nil {
		return fmt.Errorf("invalid audit cron spec %q: %w", s.cfg.AuditSpec, err)
	}

	s.cron.Start()
	logger.Info("Cron scheduler started (daily=%q reconcile=%q audit=%q)",
		s.cfg.DailySpec, s.cfg.ReconcileSpec, s.cfg.AuditSpec)
	return nil
}

// Stop halts the cron loop and waits for in-flight ticks to finish.
func (s *CronScheduler) Stop() {
	<-s.cron.Stop().Done()
}
