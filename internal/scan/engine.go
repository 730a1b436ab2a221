package scan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/limelightai/limelight/internal/domain"
	"github.com/limelightai/limelight/internal/logger"
	"github.com/limelightai/limelight/internal/repository"
)

// Orchestration entry point names recorded in the scheduler run log.
const (
	FuncDailyTrigger  = "daily-trigger"
	FuncBulkTrigger   = "bulk-trigger"
	FuncReconcile     = "reconcile-sweep"
	FuncCoverageAudit = "coverage-audit"
)

// Daily trigger statuses. Gate rejections are expected, idempotent no-ops,
// not errors.
const (
	StatusOutsideWindow = "outside-window"
	StatusAlreadyRan    = "already-ran"
	StatusLocked        = "locked"
	StatusSuccess       = "success"
)

// TriggerResult is the daily trigger response.
type TriggerResult struct {
	Status  string         `json:"status"`
	Key     string         `json:"key"`
	Results []TenantResult `json:"result,omitempty"`
}

// Engine wires the gate, claim store, job manager, runner, reconciler, and
// auditor into the orchestration entry points. Every invocation appends a
// SchedulerRun audit row. Any number of processes may invoke any entry
// point concurrently; all coordination happens through the store's atomic
// conditional writes, never in-process locks.
type Engine struct {
	gate       *Gate
	manager    *Manager
	runner     *Runner
	reconciler *Reconciler
	auditor    *Auditor
	sched      *repository.SchedulerRepository
}

// NewEngine creates a new Engine.
func NewEngine(
	gate *Gate,
	manager *Manager,
	runner *Runner,
	reconciler *Reconciler,
	auditor *Auditor,
	sched *repository.SchedulerRepository,
) *Engine {
	return &Engine{
		gate:       gate,
		manager:    manager,
		runner:     runner,
		reconciler: reconciler,
		auditor:    auditor,
		sched:      sched,
	}
}

// Gate exposes the engine's window gate, mainly for handlers that need the
// current day key.
func (e *Engine) Gate() *Gate {
	return e.gate
}

// DailyTrigger runs the once-per-day scan if the window is open and this
// caller wins the claim. Safe to poll every few minutes from any number of
// schedulers: losers get a cheap no-op status. A claim is never rolled
// back, even if the fan-out then fails; gaps are repaired by the coverage
// audit, which avoids duplicate provider billing from naive re-runs.
func (e *Engine) DailyTrigger(ctx context.Context) (*TriggerResult, error) {
	now := time.Now()
	dayKey := e.gate.DayKey(now)

	if !e.gate.WindowOpen(now) {
		return &TriggerResult{Status: StatusOutsideWindow, Key: dayKey}, nil
	}

	claim, err := e.sched.TryClaim(ctx, dayKey)
	if err != nil {
		return nil, fmt.Errorf("claim failed for %s: %w", dayKey, err)
	}
	switch claim {
	case repository.ClaimAlreadyRan:
		return &TriggerResult{Status: StatusAlreadyRan, Key: dayKey}, nil
	case repository.ClaimLocked:
		return &TriggerResult{Status: StatusLocked, Key: dayKey}, nil
	}

	run, err := e.sched.StartRun(ctx, FuncDailyTrigger, dayKey)
	if err != nil {
		return nil, err
	}
	ctx = logger.SetRunID(ctx, run.ID)
	logger.CtxInfo(ctx, "Claimed daily run for %s", dayKey)

	results, err := e.manager.RunAll(ctx, BulkOptions{
		Source:        domain.JobSourceScheduled,
		CorrelationID: run.ID,
	})
	if err != nil {
		e.completeRun(ctx, run.ID, domain.RunStatusFailed, map[string]string{"error": err.Error()})
		return nil, err
	}

	e.launchCreatedJobs(ctx, results)
	e.completeRun(ctx, run.ID, domain.RunStatusCompleted, results)

	return &TriggerResult{Status: StatusSuccess, Key: dayKey, Results: results}, nil
}

// BulkScan is the admin trigger: fan-out for every tenant with optional
// replace and preflight. Not gated and does not touch the daily claim, so
// admins can force a scan at any time.
func (e *Engine) BulkScan(ctx context.Context, opts BulkOptions) ([]TenantResult, error) {
	dayKey := e.gate.DayKey(time.Now())

	if opts.Preflight {
		return e.manager.RunAll(ctx, opts)
	}

	run, err := e.sched.StartRun(ctx, FuncBulkTrigger, dayKey)
	if err != nil {
		return nil, err
	}
	ctx = logger.SetRunID(ctx, run.ID)
	if opts.Source == "" {
		opts.Source = domain.JobSourceManual
	}
	if opts.CorrelationID == "" {
		opts.CorrelationID = run.ID
	}

	results, err := e.manager.RunAll(ctx, opts)
	if err != nil {
		e.completeRun(ctx, run.ID, domain.RunStatusFailed, map[string]string{"error": err.Error()})
		return nil, err
	}

	e.launchCreatedJobs(ctx, results)
	e.completeRun(ctx, run.ID, domain.RunStatusCompleted, results)
	return results, nil
}

// Reconcile runs one stuck-job sweep.
func (e *Engine) Reconcile(ctx context.Context) (*SweepResult, error) {
	dayKey := e.gate.DayKey(time.Now())
	run, err := e.sched.StartRun(ctx, FuncReconcile, dayKey)
	if err != nil {
		return nil, err
	}
	ctx = logger.SetRunID(ctx, run.ID)

	result, err := e.reconciler.Sweep(ctx)
	if err != nil {
		e.completeRun(ctx, run.ID, domain.RunStatusFailed, map[string]string{"error": err.Error()})
		return nil, err
	}

	status := domain.RunStatusCompleted
	if result.ProcessedJobs == 0 {
		status = domain.RunStatusSkipped
	}
	e.completeRun(ctx, run.ID, status, result)
	return result, nil
}

// CoverageAudit runs the end-of-day audit and, with repair, executes any
// replacement jobs the healing pass created.
func (e *Engine) CoverageAudit(ctx context.Context, repair bool) (*AuditSummary, error) {
	dayKey := e.gate.DayKey(time.Now())
	run, err := e.sched.StartRun(ctx, FuncCoverageAudit, dayKey)
	if err != nil {
		return nil, err
	}
	ctx = logger.SetRunID(ctx, run.ID)

	summary, err := e.auditor.Audit(ctx, dayKey, repair)
	if err != nil {
		e.completeRun(ctx, run.ID, domain.RunStatusFailed, map[string]string{"error": err.Error()})
		return nil, err
	}

	for _, jobID := range summary.CreatedJobIDs() {
		e.runJobAsync(ctx, jobID)
	}

	e.completeRun(ctx, run.ID, domain.RunStatusCompleted, summary)
	return summary, nil
}

// RunJob executes one job synchronously, typically to resume a job the
// reconciler released.
func (e *Engine) RunJob(ctx context.Context, jobID string) (*RunStats, error) {
	return e.runner.Run(ctx, jobID)
}

// launchCreatedJobs starts a background runner for every job the fan-out
// pass created or found incomplete.
func (e *Engine) launchCreatedJobs(ctx context.Context, results []TenantResult) {
	for _, res := range results {
		if res.JobID == "" || !res.Success {
			continue
		}
		if res.Action == ActionCreated || res.Action == ActionExisting {
			e.runJobAsync(ctx, res.JobID)
		}
	}
}

// runJobAsync executes a job on a detached context so it outlives the HTTP
// request that triggered it. Held jobs are not an error: another runner is
// already on it.
func (e *Engine) runJobAsync(ctx context.Context, jobID string) {
	bg := logger.FromContext(ctx).WithContext(context.Background())
	go func() {
		if _, err := e.runner.Run(bg, jobID); err != nil && !errors.Is(err, ErrJobHeld) {
			logger.FromContext(bg).WithField(logger.FieldJobID, jobID).
				WithError(err).Error("Background job run failed")
		}
	}()
}

// completeRun finalizes the audit row with a JSON-encoded result payload.
func (e *Engine) completeRun(ctx context.Context, runID string, status domain.RunStatus, result interface{}) {
	payload, err := json.Marshal(result)
	if err != nil {
		payload = []byte(fmt.Sprintf(`{"marshal_error":%q}`, err.Error()))
	}
	if err := e.sched.CompleteRun(ctx, runID, status, string(payload)); err != nil {
		logger.CtxError(ctx, "Failed to complete scheduler run %s: %v", runID, err)
	}
}
