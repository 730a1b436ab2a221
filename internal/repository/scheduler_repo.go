package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/limelightai/limelight/internal/domain"
	"gorm.io/gorm"
)

// ClaimResult describes the outcome of a daily claim attempt.
type ClaimResult string

const (
	// ClaimAcquired means this caller won the claim and owns the run.
	ClaimAcquired ClaimResult = "acquired"
	// ClaimAlreadyRan means the day key was claimed by an earlier run.
	ClaimAlreadyRan ClaimResult = "already-ran"
	// ClaimLocked means a concurrent caller is claiming right now.
	ClaimLocked ClaimResult = "locked"
)

// SchedulerRepository handles the singleton coordination row and the
// append-only run audit log.
type SchedulerRepository struct {
	db *gorm.DB
}

// NewSchedulerRepository creates a new SchedulerRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *SchedulerRepository: repository instance bound to db.
func NewSchedulerRepository(db *gorm.DB) *SchedulerRepository {
	return &SchedulerRepository{db: db}
}

// TryClaim attempts to claim the daily run for dayKey with a single
// conditional UPDATE. Exactly one concurrent caller observes RowsAffected=1;
// losers re-read the row to distinguish "already ran" from a claim race
// still in flight. A check-then-set would leave a window between read and
// write; the conditional update closes it.
// Claims are never rolled back: a failed run is repaired by the reconciler
// and coverage auditor, not by re-claiming the day.
func (r *SchedulerRepository) TryClaim(ctx context.Context, dayKey string) (ClaimResult, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&domain.SchedulerState{}).
		Where("id = ? AND last_run_day_key <> ?", domain.SchedulerStateID, dayKey).
		Updates(map[string]interface{}{
			"last_run_day_key": dayKey,
			"last_run_at":      now,
		})
	if res.Error != nil {
		return "", res.Error
	}
	if res.RowsAffected == 1 {
		return ClaimAcquired, nil
	}

	state, err := r.GetState(ctx)
	if err != nil {
		return "", err
	}
	if state.LastRunDayKey == dayKey {
		return ClaimAlreadyRan, nil
	}
	return ClaimLocked, nil
}

// GetState reads the singleton scheduler state row.
func (r *SchedulerRepository) GetState(ctx context.Context) (*domain.SchedulerState, error) {
	var state domain.SchedulerState
	if err := r.db.WithContext(ctx).First(&state, "id = ?", domain.SchedulerStateID).Error; err != nil {
		return nil, err
	}
	return &state, nil
}

// StartRun appends a SchedulerRun audit row in "started" status.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - functionName: orchestration entry point (daily-trigger, reconcile-sweep, coverage-audit).
//   - runKey: idempotency key for the invocation, usually the day key.
// Returns:
//   - *domain.SchedulerRun: the created audit row.
//   - error: non-nil if the insert fails.
func (r *SchedulerRepository) StartRun(ctx context.Context, functionName, runKey string) (*domain.SchedulerRun, error) {
	run := &domain.SchedulerRun{
		ID:           uuid.New().String(),
		FunctionName: functionName,
		RunKey:       runKey,
		Status:       domain.RunStatusStarted,
		StartedAt:    time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

// CompleteRun finalizes an audit row. Rows are never mutated again after
// CompletedAt is set; a second call is a no-op by the status guard.
func (r *SchedulerRepository) CompleteRun(ctx context.Context, runID string, status domain.RunStatus, result string) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Model(&domain.SchedulerRun{}).
		Where("id = ? AND completed_at IS NULL", runID).
		Updates(map[string]interface{}{
			"status":       status,
			"result":       result,
			"completed_at": now,
		}).Error
}

// RecentRuns lists the most recent audit rows, newest first.
func (r *SchedulerRepository) RecentRuns(ctx context.Context, limit int) ([]domain.SchedulerRun, error) {
	if limit <= 0 {
		limit = 50
	}
	var runs []domain.SchedulerRun
	err := r.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}
