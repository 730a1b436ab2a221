package scan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/limelightai/limelight/internal/config"
	"github.com/limelightai/limelight/internal/domain"
	"github.com/limelightai/limelight/internal/logger"
	"github.com/limelightai/limelight/internal/provider"
	"github.com/limelightai/limelight/internal/repository"
)

// ErrJobHeld is returned when another worker currently owns the job.
var ErrJobHeld = errors.New("job is held by another runner")

// Runner executes a batch job's pending tasks with a bounded worker pool,
// stamping a liveness heartbeat while it works. A runner only ever fetches
// pending tasks, so resuming a half-finished job never re-issues a provider
// call for a task that already has a terminal status.
type Runner struct {
	jobs     *repository.JobRepository
	tasks    *repository.TaskRepository
	prompts  *repository.PromptRepository
	registry *provider.Registry
	cfg      config.RunnerConfig
}

// NewRunner creates a new Runner.
func NewRunner(
	jobs *repository.JobRepository,
	tasks *repository.TaskRepository,
	prompts *repository.PromptRepository,
	registry *provider.Registry,
	cfg config.RunnerConfig,
) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = 5
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 90 * time.Second
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 30 * time.Second
	}
	return &Runner{
		jobs:     jobs,
		tasks:    tasks,
		prompts:  prompts,
		registry: registry,
		cfg:      cfg,
	}
}

// RunStats summarizes one runner pass over a job.
type RunStats struct {
	JobID     string `json:"job_id"`
	Executed  int    `json:"executed"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
	Cancelled bool   `json:"cancelled"`
	Completed bool   `json:"completed"`
}

// Run claims the job and executes its remaining pending tasks. Safe to call
// on a fresh job or on one released by the reconciler; a job currently held
// by another runner returns ErrJobHeld.
func (r *Runner) Run(ctx context.Context, jobID string) (*RunStats, error) {
	runnerID := uuid.New().String()

	claimed, err := r.jobs.ClaimRunner(ctx, jobID, runnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to claim job %s: %w", jobID, err)
	}
	if !claimed {
		return nil, ErrJobHeld
	}

	ctx = logger.WithFields(ctx, logger.Fields{
		logger.FieldJobID:     jobID,
		logger.FieldComponent: "runner",
	})

	job, err := r.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load job %s: %w", jobID, err)
	}

	stats := &RunStats{JobID: jobID}

	pending, err := r.tasks.ListPending(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending tasks for job %s: %w", jobID, err)
	}
	if len(pending) == 0 {
		// Lost terminal write or empty job: close the books if the counters
		// already add up, then hand the job back.
		stats.Completed, err = r.jobs.TryComplete(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if !stats.Completed {
			if err := r.jobs.ReleaseRunner(ctx, jobID); err != nil {
				return nil, err
			}
		}
		return stats, nil
	}

	promptText, err := r.promptTextByID(ctx, job.OrgID)
	if err != nil {
		return nil, err
	}

	// cancelled is refreshed by the heartbeat loop; workers check it before
	// starting each task so no new provider call is issued after a
	// cancellation request, while completed tasks stay untouched.
	var cancelled atomic.Bool
	cancelled.Store(job.CancellationRequested)

	hbDone := make(chan struct{})
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go func() {
		defer hbWG.Done()
		r.heartbeatLoop(ctx, jobID, runnerID, &cancelled, hbDone)
	}()

	taskChan := make(chan domain.Task)
	var wg sync.WaitGroup
	var executed, succeeded, failed, skipped int64

	for i := 0; i < r.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range taskChan {
				if ctx.Err() != nil || cancelled.Load() {
					atomic.AddInt64(&skipped, 1)
					continue
				}
				atomic.AddInt64(&executed, 1)
				if r.executeTask(ctx, &task, promptText[task.PromptID]) {
					atomic.AddInt64(&succeeded, 1)
				} else {
					atomic.AddInt64(&failed, 1)
				}
			}
		}()
	}

	for _, task := range pending {
		taskChan <- task
	}
	close(taskChan)
	wg.Wait()

	close(hbDone)
	hbWG.Wait()

	stats.Executed = int(executed)
	stats.Succeeded = int(succeeded)
	stats.Failed = int(failed)
	stats.Skipped = int(skipped)
	stats.Cancelled = cancelled.Load()

	stats.Completed, err = r.jobs.TryComplete(ctx, jobID)
	if err != nil {
		return stats, err
	}
	if !stats.Completed {
		// Cancelled or partially skipped: release ownership so a later
		// trigger can resume the remaining pending tasks.
		if err := r.jobs.ReleaseRunner(ctx, jobID); err != nil {
			return stats, err
		}
	}

	logger.With(logger.Fields{
		logger.FieldCount:  stats.Executed,
		logger.FieldStatus: runStatus(stats),
	}).Info(ctx, "Runner finished: %d succeeded, %d failed, %d skipped",
		stats.Succeeded, stats.Failed, stats.Skipped)

	return stats, nil
}

func runStatus(stats *RunStats) string {
	switch {
	case stats.Completed:
		return "completed"
	case stats.Cancelled:
		return "cancelled"
	default:
		return "partial"
	}
}

// executeTask runs a single task end to end and reports success. Every exit
// path leaves the task in a terminal status; a task is never left running.
func (r *Runner) executeTask(ctx context.Context, task *domain.Task, prompt string) bool {
	taskCtx := logger.WithFields(ctx, logger.Fields{
		logger.FieldTaskID:   task.ID,
		logger.FieldProvider: task.ProviderID,
	})

	claimed, err := r.tasks.MarkRunning(taskCtx, task.ID)
	if err != nil {
		logger.CtxError(taskCtx, "Failed to mark task running: %v", err)
		return false
	}
	if !claimed {
		// Already terminal or picked up elsewhere; nothing to do.
		return false
	}

	fail := func(msg string) bool {
		if _, err := r.tasks.MarkError(taskCtx, task.ID, msg); err != nil {
			logger.CtxError(taskCtx, "Failed to record task error: %v", err)
		}
		if err := r.jobs.IncrementTaskCounts(taskCtx, task.JobID, 0, 1); err != nil {
			logger.CtxError(taskCtx, "Failed to increment failed count: %v", err)
		}
		return false
	}

	if prompt == "" {
		return fail("prompt not found")
	}

	executor, err := r.registry.Get(task.ProviderID)
	if err != nil {
		return fail(err.Error())
	}

	execCtx, cancel := context.WithTimeout(taskCtx, r.cfg.TaskTimeout)
	result, err := executor.Execute(execCtx, prompt)
	cancel()
	if err != nil {
		return fail(err.Error())
	}

	if _, err := r.tasks.MarkSuccess(taskCtx, task.ID, result.Content, result.TokensIn, result.TokensOut); err != nil {
		logger.CtxError(taskCtx, "Failed to record task success: %v", err)
		return false
	}
	if err := r.jobs.IncrementTaskCounts(taskCtx, task.JobID, 1, 0); err != nil {
		logger.CtxError(taskCtx, "Failed to increment completed count: %v", err)
	}
	return true
}

// heartbeatLoop stamps the job's liveness timestamp on a fixed interval and
// refreshes the cancellation flag. The interval stays well under the
// reconciler's staleness threshold to tolerate scheduling jitter.
func (r *Runner) heartbeatLoop(ctx context.Context, jobID, runnerID string, cancelled *atomic.Bool, done <-chan struct{}) {
	ticker := time.NewTicker(r.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			isCancelled, err := r.jobs.TouchHeartbeat(ctx, jobID, runnerID)
			if err != nil {
				logger.CtxWarn(ctx, "Heartbeat failed for job %s: %v", jobID, err)
				continue
			}
			if isCancelled {
				cancelled.Store(true)
			}
		}
	}
}

func (r *Runner) promptTextByID(ctx context.Context, orgID string) (map[string]string, error) {
	prompts, err := r.prompts.ListByOrg(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to load prompts for org %s: %w", orgID, err)
	}
	byID := make(map[string]string, len(prompts))
	for _, p := range prompts {
		byID[p.ID] = p.Text
	}
	return byID, nil
}
