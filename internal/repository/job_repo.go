package repository

import (
	"context"
	"errors"
	"time"

	"github.com/limelightai/limelight/internal/domain"
	"gorm.io/gorm"
)

// JobRepository handles batch job persistence. All counter mutations go
// through single-statement atomic increments; status transitions to
// completed are guarded so they fire exactly once even when the runner and
// the reconciler race.
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new JobRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *JobRepository: repository instance bound to db.
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts a new batch job record.
func (r *JobRepository) Create(ctx context.Context, job *domain.BatchJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

// GetByID retrieves a job by its ID.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.BatchJob, error) {
	var job domain.BatchJob
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// FindIncomplete returns the newest non-terminal job for (org, dayKey), or
// nil when none exists. Used for idempotent fan-out.
func (r *JobRepository) FindIncomplete(ctx context.Context, orgID, dayKey string) (*domain.BatchJob, error) {
	var job domain.BatchJob
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND day_key = ? AND status IN ?", orgID, dayKey,
			[]domain.JobStatus{domain.JobStatusPending, domain.JobStatusProcessing}).
		Order("created_at DESC").
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// ClaimRunner takes exclusive ownership of a job for a worker: sets the
// runner ID, moves the job to processing, and stamps the first heartbeat.
// The update only matches when no runner currently holds the job, so two
// workers can never both win. StartedAt is preserved across resumes.
func (r *JobRepository) ClaimRunner(ctx context.Context, jobID, runnerID string) (bool, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&domain.BatchJob{}).
		Where("id = ? AND status IN ? AND (runner_id = '' OR runner_id IS NULL)", jobID,
			[]domain.JobStatus{domain.JobStatusPending, domain.JobStatusProcessing}).
		Updates(map[string]interface{}{
			"status":         domain.JobStatusProcessing,
			"runner_id":      runnerID,
			"started_at":     gorm.Expr("COALESCE(started_at, ?)", now),
			"last_heartbeat": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// TouchHeartbeat stamps the job's liveness timestamp for the owning runner
// and reports whether cancellation has been requested. The heartbeat is
// advisory liveness only; it carries no task-level progress.
func (r *JobRepository) TouchHeartbeat(ctx context.Context, jobID, runnerID string) (cancelled bool, err error) {
	res := r.db.WithContext(ctx).Model(&domain.BatchJob{}).
		Where("id = ? AND runner_id = ?", jobID, runnerID).
		Update("last_heartbeat", time.Now().UTC())
	if res.Error != nil {
		return false, res.Error
	}

	var job domain.BatchJob
	if err := r.db.WithContext(ctx).Select("cancellation_requested").
		First(&job, "id = ?", jobID).Error; err != nil {
		return false, err
	}
	return job.CancellationRequested, nil
}

// IncrementTaskCounts adds task terminal results to the job counters with a
// single UPDATE, never read-modify-write, so concurrent task completions
// cannot lose updates.
func (r *JobRepository) IncrementTaskCounts(ctx context.Context, jobID string, completed, failed int) error {
	if completed == 0 && failed == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&domain.BatchJob{}).
		Where("id = ?", jobID).
		Updates(map[string]interface{}{
			"completed_tasks": gorm.Expr("completed_tasks + ?", completed),
			"failed_tasks":    gorm.Expr("failed_tasks + ?", failed),
		}).Error
}

// TryComplete transitions a job to completed when every task reached a
// terminal status. The WHERE clause re-checks the counters inside the
// UPDATE, so only one of any number of racing callers performs the
// transition.
func (r *JobRepository) TryComplete(ctx context.Context, jobID string) (bool, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&domain.BatchJob{}).
		Where("id = ? AND status IN ? AND completed_tasks + failed_tasks >= total_tasks", jobID,
			[]domain.JobStatus{domain.JobStatusPending, domain.JobStatusProcessing}).
		Updates(map[string]interface{}{
			"status":       domain.JobStatusCompleted,
			"completed_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkFailed moves a job to failed status.
func (r *JobRepository) MarkFailed(ctx context.Context, jobID string) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Model(&domain.BatchJob{}).
		Where("id = ? AND status IN ?", jobID,
			[]domain.JobStatus{domain.JobStatusPending, domain.JobStatusProcessing}).
		Updates(map[string]interface{}{
			"status":       domain.JobStatusFailed,
			"completed_at": now,
		}).Error
}

// ReleaseRunner clears the runner ID so a later trigger can resume the
// job's remaining pending tasks. Status and task data stay untouched.
func (r *JobRepository) ReleaseRunner(ctx context.Context, jobID string) error {
	return r.db.WithContext(ctx).Model(&domain.BatchJob{}).
		Where("id = ?", jobID).
		Update("runner_id", "").Error
}

// RequestCancellation sets the cancellation flag on all non-terminal jobs
// for (org, dayKey). Executors stop issuing new provider calls but never
// roll back completed tasks.
func (r *JobRepository) RequestCancellation(ctx context.Context, orgID, dayKey string) error {
	return r.db.WithContext(ctx).Model(&domain.BatchJob{}).
		Where("org_id = ? AND day_key = ? AND status IN ?", orgID, dayKey,
			[]domain.JobStatus{domain.JobStatusPending, domain.JobStatusProcessing}).
		Update("cancellation_requested", true).Error
}

// FindStale returns candidate stuck jobs: non-terminal jobs whose heartbeat
// is older than heartbeatCutoff, or which are older than graceCutoff with
// zero progress. The two-part predicate avoids false positives on jobs that
// are young but silent (no heartbeat expected yet) and on jobs that are
// slow but progressing.
func (r *JobRepository) FindStale(ctx context.Context, heartbeatCutoff, graceCutoff time.Time) ([]domain.BatchJob, error) {
	var jobs []domain.BatchJob
	err := r.db.WithContext(ctx).
		Where("status IN ?", []domain.JobStatus{domain.JobStatusPending, domain.JobStatusProcessing}).
		Where(r.db.
			Where("last_heartbeat IS NOT NULL AND last_heartbeat < ?", heartbeatCutoff).
			Or("started_at IS NOT NULL AND started_at < ? AND completed_tasks + failed_tasks = 0", graceCutoff).
			Or("started_at IS NULL AND created_at < ? AND completed_tasks + failed_tasks = 0", graceCutoff)).
		Order("created_at ASC").
		Find(&jobs).Error
	return jobs, err
}

// CompletedJobExists reports whether the org has a completed job for the day.
func (r *JobRepository) CompletedJobExists(ctx context.Context, orgID, dayKey string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.BatchJob{}).
		Where("org_id = ? AND day_key = ? AND status = ?", orgID, dayKey, domain.JobStatusCompleted).
		Count(&count).Error
	return count > 0, err
}

// LatestRepairJob returns the most recent repair-source job for (org,
// dayKey), or nil when none exists. The auditor uses it to bound
// self-healing.
func (r *JobRepository) LatestRepairJob(ctx context.Context, orgID, dayKey string) (*domain.BatchJob, error) {
	var job domain.BatchJob
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND day_key = ? AND source = ?", orgID, dayKey, domain.JobSourceRepair).
		Order("created_at DESC").
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// CountRepairJobs counts repair-source jobs for (org, dayKey).
func (r *JobRepository) CountRepairJobs(ctx context.Context, orgID, dayKey string) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.BatchJob{}).
		Where("org_id = ? AND day_key = ? AND source = ?", orgID, dayKey, domain.JobSourceRepair).
		Count(&count).Error
	return int(count), err
}
