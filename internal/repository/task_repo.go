package repository

import (
	"context"
	"time"

	"github.com/limelightai/limelight/internal/domain"
	"gorm.io/gorm"
)

// TaskRepository handles task persistence. Terminal writes are guarded by
// the current status so a timed-out executor returning late can never flip
// a status that is already terminal.
type TaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new TaskRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *TaskRepository: repository instance bound to db.
func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// CreateBatch bulk-inserts tasks for a new job.
func (r *TaskRepository) CreateBatch(ctx context.Context, tasks []domain.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(tasks, 200).Error
}

// GetByID retrieves a task by its ID.
func (r *TaskRepository) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	var task domain.Task
	if err := r.db.WithContext(ctx).First(&task, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// ListPending returns the job's tasks that have not started. Resumption
// fetches only these, so tasks with a terminal status are never re-issued
// to a provider.
func (r *TaskRepository) ListPending(ctx context.Context, jobID string) ([]domain.Task, error) {
	var tasks []domain.Task
	err := r.db.WithContext(ctx).
		Where("job_id = ? AND status = ?", jobID, domain.TaskStatusPending).
		Order("created_at ASC").
		Find(&tasks).Error
	return tasks, err
}

// ListByJob returns all tasks of a job.
func (r *TaskRepository) ListByJob(ctx context.Context, jobID string) ([]domain.Task, error) {
	var tasks []domain.Task
	err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("created_at ASC").
		Find(&tasks).Error
	return tasks, err
}

// MarkRunning claims a pending task for execution. Only a pending task
// matches, so a task can never run twice concurrently.
func (r *TaskRepository) MarkRunning(ctx context.Context, taskID string) (bool, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&domain.Task{}).
		Where("id = ? AND status = ?", taskID, domain.TaskStatusPending).
		Updates(map[string]interface{}{
			"status":     domain.TaskStatusRunning,
			"started_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkSuccess records a successful provider result. The payload is stored
// opaquely; this layer never parses it.
func (r *TaskRepository) MarkSuccess(ctx context.Context, taskID, result string, tokensIn, tokensOut int) (bool, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&domain.Task{}).
		Where("id = ? AND status = ?", taskID, domain.TaskStatusRunning).
		Updates(map[string]interface{}{
			"status":       domain.TaskStatusSuccess,
			"result":       result,
			"tokens_in":    tokensIn,
			"tokens_out":   tokensOut,
			"completed_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkError records a task failure, including timeouts. A task is never
// left running indefinitely; the runner marks it error on timeout, which is
// what lets the reconciler trust terminal counts.
func (r *TaskRepository) MarkError(ctx context.Context, taskID, message string) (bool, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&domain.Task{}).
		Where("id = ? AND status = ?", taskID, domain.TaskStatusRunning).
		Updates(map[string]interface{}{
			"status":        domain.TaskStatusError,
			"error_message": message,
			"completed_at":  now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// CountDistinctSuccessfulPrompts counts distinct prompts with at least one
// successful task inside the day's jobs. Prompt-level coverage needs task
// granularity: a completed job may still contain failed tasks.
func (r *TaskRepository) CountDistinctSuccessfulPrompts(ctx context.Context, dayKey string) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Table("tasks").
		Joins("JOIN batch_jobs ON batch_jobs.id = tasks.job_id").
		Where("batch_jobs.day_key = ? AND tasks.status = ?", dayKey, domain.TaskStatusSuccess).
		Distinct("tasks.prompt_id").
		Count(&count).Error
	return int(count), err
}
