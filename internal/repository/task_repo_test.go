package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/limelightai/limelight/internal/domain"
	"gorm.io/gorm"
)

func seedTask(t *testing.T, db *gorm.DB, jobID string, mutate ...func(*domain.Task)) *domain.Task {
	t.Helper()

	task := &domain.Task{
		ID:         uuid.New().String(),
		JobID:      jobID,
		OrgID:      "org-1",
		PromptID:   uuid.New().String(),
		ProviderID: "openai",
		Status:     domain.TaskStatusPending,
		CreatedAt:  time.Now().UTC(),
	}
	for _, m := range mutate {
		m(task)
	}
	if err := db.Create(task).Error; err != nil {
		t.Fatalf("failed to seed task: %v", err)
	}
	return task
}

func TestTaskStatusTransitionsAreGuarded(t *testing.T) {
	db := newTestDB(t)
	repo := NewTaskRepository(db)
	ctx := context.Background()
	job := seedJob(t, db)
	task := seedTask(t, db, job.ID)

	// pending -> running claims once.
	ok, err := repo.MarkRunning(ctx, task.ID)
	if err != nil || !ok {
		t.Fatalf("MarkRunning: ok=%v err=%v", ok, err)
	}
	if ok, _ := repo.MarkRunning(ctx, task.ID); ok {
		t.Error("MarkRunning succeeded twice")
	}

	// running -> success once; a late error must not flip the status.
	ok, err = repo.MarkSuccess(ctx, task.ID, `{"content":"hi"}`, 12, 34)
	if err != nil || !ok {
		t.Fatalf("MarkSuccess: ok=%v err=%v", ok, err)
	}
	if ok, _ := repo.MarkError(ctx, task.ID, "late timeout"); ok {
		t.Error("MarkError flipped a terminal status")
	}

	got, err := repo.GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != domain.TaskStatusSuccess {
		t.Errorf("status: got %s, want %s", got.Status, domain.TaskStatusSuccess)
	}
	if got.TokensIn != 12 || got.TokensOut != 34 {
		t.Errorf("tokens: got %d/%d, want 12/34", got.TokensIn, got.TokensOut)
	}
	if got.ErrorMessage != "" {
		t.Errorf("error message leaked onto successful task: %q", got.ErrorMessage)
	}
}

func TestListPendingExcludesTerminalTasks(t *testing.T) {
	db := newTestDB(t)
	repo := NewTaskRepository(db)
	ctx := context.Background()
	job := seedJob(t, db)

	pending := seedTask(t, db, job.ID)
	seedTask(t, db, job.ID, func(task *domain.Task) { task.Status = domain.TaskStatusSuccess })
	seedTask(t, db, job.ID, func(task *domain.Task) { task.Status = domain.TaskStatusError })
	seedTask(t, db, job.ID, func(task *domain.Task) { task.Status = domain.TaskStatusRunning })

	tasks, err := repo.ListPending(ctx, job.ID)
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("pending count: got %d, want 1", len(tasks))
	}
	if tasks[0].ID != pending.ID {
		t.Errorf("pending task: got %s, want %s", tasks[0].ID, pending.ID)
	}
}

func TestCountDistinctSuccessfulPrompts(t *testing.T) {
	db := newTestDB(t)
	repo := NewTaskRepository(db)
	ctx := context.Background()

	job := seedJob(t, db)
	otherDay := seedJob(t, db, func(j *domain.BatchJob) { j.DayKey = "2026-08-29" })

	promptA := uuid.New().String()
	promptB := uuid.New().String()

	// Prompt A succeeded on two providers: counts once.
	seedTask(t, db, job.ID, func(task *domain.Task) {
		task.PromptID = promptA
		task.Status = domain.TaskStatusSuccess
	})
	seedTask(t, db, job.ID, func(task *domain.Task) {
		task.PromptID = promptA
		task.ProviderID = "anthropic"
		task.Status = domain.TaskStatusSuccess
	})
	// Prompt B only failed: does not count.
	seedTask(t, db, job.ID, func(task *domain.Task) {
		task.PromptID = promptB
		task.Status = domain.TaskStatusError
	})
	// Success on another day: does not count for today.
	seedTask(t, db, otherDay.ID, func(task *domain.Task) {
		task.Status = domain.TaskStatusSuccess
	})

	count, err := repo.CountDistinctSuccessfulPrompts(ctx, "2026-08-30")
	if err != nil {
		t.Fatalf("CountDistinctSuccessfulPrompts failed: %v", err)
	}
	if count != 1 {
		t.Errorf("distinct successful prompts: got %d, want 1", count)
	}
}
