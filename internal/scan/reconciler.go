package scan

import (
	"context"
	"fmt"
	"time"

	"github.com/limelightai/limelight/internal/config"
	"github.com/limelightai/limelight/internal/logger"
	"github.com/limelightai/limelight/internal/repository"
)

// Reconciler sweeps for jobs that stalled mid-flight (crashed worker,
// provider outage, lost heartbeat) and repairs their state. A stuck job is
// either finalized, when its tasks all reached a terminal status but the
// closing write was lost, or marked resumable by clearing its runner. The
// reconciler never starts new work itself: firing replacement workers
// straight from the sweep would turn one persistent failure into a cascade.
type Reconciler struct {
	jobs *repository.JobRepository
	cfg  config.ReconcilerConfig
}

// NewReconciler creates a new Reconciler.
func NewReconciler(jobs *repository.JobRepository, cfg config.ReconcilerConfig) *Reconciler {
	if cfg.HeartbeatTimeout <= 0 {
		cfg.HeartbeatTimeout = 2 * time.Minute
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = 3 * time.Minute
	}
	return &Reconciler{jobs: jobs, cfg: cfg}
}

// JobResolution records what the sweep did with one stuck job.
type JobResolution struct {
	JobID  string `json:"job_id"`
	OrgID  string `json:"org_id"`
	Action string `json:"action"` // finalized | resumed | skipped
	Error  string `json:"error,omitempty"`
}

// SweepResult summarizes one reconciler pass.
type SweepResult struct {
	ProcessedJobs int             `json:"processed_jobs"`
	FinalizedJobs int             `json:"finalized_jobs"`
	ResumedJobs   int             `json:"resumed_jobs"`
	Results       []JobResolution `json:"results"`
}

// Sweep finds stuck jobs and resolves each one. Per-job failures are
// isolated so one bad row cannot abort the rest of the sweep.
func (r *Reconciler) Sweep(ctx context.Context) (*SweepResult, error) {
	now := time.Now().UTC()
	heartbeatCutoff := now.Add(-r.cfg.HeartbeatTimeout)
	graceCutoff := now.Add(-r.cfg.GracePeriod)

	stale, err := r.jobs.FindStale(ctx, heartbeatCutoff, graceCutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale jobs: %w", err)
	}

	result := &SweepResult{Results: make([]JobResolution, 0, len(stale))}
	for _, job := range stale {
		res := r.resolveStuckJob(ctx, job.ID)
		result.Results = append(result.Results, res)
		result.ProcessedJobs++
		switch res.Action {
		case "finalized":
			result.FinalizedJobs++
		case "resumed":
			result.ResumedJobs++
		}
	}

	if result.ProcessedJobs > 0 {
		logger.With(logger.Fields{
			logger.FieldCount: result.ProcessedJobs,
		}).Info(ctx, "Reconciler sweep: %d finalized, %d resumed",
			result.FinalizedJobs, result.ResumedJobs)
	}
	return result, nil
}

// resolveStuckJob re-reads the job's current counts and picks the branch:
// all tasks terminal means the job actually finished and only the closing
// status write was lost, so finalize it regardless of heartbeat. A job with
// cancellation requested and tasks still pending can never complete through
// task accounting (executors skip its tasks), so it is closed as failed
// here. Otherwise clear the runner so the next trigger resumes the
// remaining pending tasks; completed task data is never altered.
func (r *Reconciler) resolveStuckJob(ctx context.Context, jobID string) JobResolution {
	job, err := r.jobs.GetByID(ctx, jobID)
	if err != nil {
		return JobResolution{JobID: jobID, Action: "skipped", Error: err.Error()}
	}

	res := JobResolution{JobID: job.ID, OrgID: job.OrgID}
	if job.IsTerminal() {
		// Completed between the sweep query and now.
		res.Action = "skipped"
		return res
	}

	if job.TotalTasks > 0 && job.TerminalTasks() >= job.TotalTasks {
		finalized, err := r.jobs.TryComplete(ctx, job.ID)
		if err != nil {
			res.Action = "skipped"
			res.Error = err.Error()
			return res
		}
		if finalized {
			res.Action = "finalized"
			logger.FromContext(ctx).WithFields(logger.Fields{
				logger.FieldJobID: job.ID,
				logger.FieldOrgID: job.OrgID,
			}).Info("Finalized stuck job with all tasks terminal")
		} else {
			res.Action = "skipped"
		}
		return res
	}

	if job.CancellationRequested {
		if err := r.jobs.MarkFailed(ctx, job.ID); err != nil {
			res.Action = "skipped"
			res.Error = err.Error()
			return res
		}
		res.Action = "finalized"
		logger.FromContext(ctx).WithFields(logger.Fields{
			logger.FieldJobID: job.ID,
			logger.FieldOrgID: job.OrgID,
		}).Warnf("Finalized cancelled job as failed (%d/%d tasks terminal)",
			job.TerminalTasks(), job.TotalTasks)
		return res
	}

	if err := r.jobs.ReleaseRunner(ctx, job.ID); err != nil {
		res.Action = "skipped"
		res.Error = err.Error()
		return res
	}
	res.Action = "resumed"
	logger.FromContext(ctx).WithFields(logger.Fields{
		logger.FieldJobID: job.ID,
		logger.FieldOrgID: job.OrgID,
	}).Warnf("Marked stuck job resumable (%d/%d tasks terminal)",
		job.TerminalTasks(), job.TotalTasks)
	return res
}
