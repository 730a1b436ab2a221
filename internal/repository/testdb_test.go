package repository

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/limelightai/limelight/internal/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestDB opens an in-memory SQLite database for tests. A single
// connection keeps the memory database alive and serializes concurrent
// access, so race tests exercise the conditional-update logic rather than
// SQLite locking.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := Migrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

// seedJob inserts a minimal job for tests, applying any mutators first.
func seedJob(t *testing.T, db *gorm.DB, mutate ...func(*domain.BatchJob)) *domain.BatchJob {
	t.Helper()

	job := &domain.BatchJob{
		ID:         uuid.New().String(),
		OrgID:      "org-1",
		DayKey:     "2026-08-30",
		Status:     domain.JobStatusPending,
		Source:     domain.JobSourceScheduled,
		TotalTasks: 4,
		CreatedAt:  time.Now().UTC(),
	}
	for _, m := range mutate {
		m(job)
	}
	if err := db.Create(job).Error; err != nil {
		t.Fatalf("failed to seed job: %v", err)
	}
	return job
}
