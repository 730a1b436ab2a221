package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/limelightai/limelight/internal/domain"
)

func TestClaimRunnerExclusive(t *testing.T) {
	db := newTestDB(t)
	repo := NewJobRepository(db)
	ctx := context.Background()
	job := seedJob(t, db)

	ok, err := repo.ClaimRunner(ctx, job.ID, "runner-a")
	if err != nil {
		t.Fatalf("first claim failed: %v", err)
	}
	if !ok {
		t.Fatal("first claim: got false, want true")
	}

	ok, err = repo.ClaimRunner(ctx, job.ID, "runner-b")
	if err != nil {
		t.Fatalf("second claim failed: %v", err)
	}
	if ok {
		t.Error("second claim succeeded while runner-a holds the job")
	}

	// Release and reclaim: started_at must survive the handoff.
	got, err := repo.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.StartedAt == nil {
		t.Fatal("started_at not set on claim")
	}
	firstStart := *got.StartedAt

	if err := repo.ReleaseRunner(ctx, job.ID); err != nil {
		t.Fatalf("ReleaseRunner failed: %v", err)
	}
	ok, err = repo.ClaimRunner(ctx, job.ID, "runner-b")
	if err != nil || !ok {
		t.Fatalf("reclaim after release: ok=%v err=%v", ok, err)
	}

	got, _ = repo.GetByID(ctx, job.ID)
	if got.RunnerID != "runner-b" {
		t.Errorf("runner: got %s, want runner-b", got.RunnerID)
	}
	if !got.StartedAt.Equal(firstStart) {
		t.Errorf("started_at changed on resume: got %v, want %v", got.StartedAt, firstStart)
	}
}

// TestIncrementTaskCountsConcurrent fires many concurrent single-task
// increments and verifies no update is lost.
func TestIncrementTaskCountsConcurrent(t *testing.T) {
	db := newTestDB(t)
	repo := NewJobRepository(db)
	ctx := context.Background()
	job := seedJob(t, db, func(j *domain.BatchJob) { j.TotalTasks = 100 })

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			if i%4 == 0 {
				err = repo.IncrementTaskCounts(ctx, job.ID, 0, 1)
			} else {
				err = repo.IncrementTaskCounts(ctx, job.ID, 1, 0)
			}
			if err != nil {
				t.Errorf("increment failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	got, err := repo.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.CompletedTasks != 75 || got.FailedTasks != 25 {
		t.Errorf("counters: got %d/%d, want 75/25", got.CompletedTasks, got.FailedTasks)
	}
}

func TestTryCompleteFiresOnce(t *testing.T) {
	db := newTestDB(t)
	repo := NewJobRepository(db)
	ctx := context.Background()
	job := seedJob(t, db, func(j *domain.BatchJob) { j.TotalTasks = 2 })

	// Not all tasks terminal yet: must not complete.
	if err := repo.IncrementTaskCounts(ctx, job.ID, 1, 0); err != nil {
		t.Fatalf("increment failed: %v", err)
	}
	ok, err := repo.TryComplete(ctx, job.ID)
	if err != nil {
		t.Fatalf("TryComplete failed: %v", err)
	}
	if ok {
		t.Error("completed with 1/2 tasks terminal")
	}

	if err := repo.IncrementTaskCounts(ctx, job.ID, 0, 1); err != nil {
		t.Fatalf("increment failed: %v", err)
	}

	// Racing completers: exactly one wins.
	const callers = 10
	wins := make([]bool, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			wins[i], _ = repo.TryComplete(ctx, job.ID)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, w := range wins {
		if w {
			winners++
		}
	}
	if winners != 1 {
		t.Errorf("completion winners: got %d, want exactly 1", winners)
	}

	got, _ := repo.GetByID(ctx, job.ID)
	if got.Status != domain.JobStatusCompleted {
		t.Errorf("status: got %s, want %s", got.Status, domain.JobStatusCompleted)
	}
	if got.CompletedAt == nil {
		t.Error("completed_at not set")
	}
}

func TestFindIncompleteIgnoresTerminalJobs(t *testing.T) {
	db := newTestDB(t)
	repo := NewJobRepository(db)
	ctx := context.Background()

	seedJob(t, db, func(j *domain.BatchJob) { j.Status = domain.JobStatusCompleted })
	seedJob(t, db, func(j *domain.BatchJob) { j.Status = domain.JobStatusFailed })

	got, err := repo.FindIncomplete(ctx, "org-1", "2026-08-30")
	if err != nil {
		t.Fatalf("FindIncomplete failed: %v", err)
	}
	if got != nil {
		t.Errorf("found terminal job %s as incomplete", got.ID)
	}

	live := seedJob(t, db, func(j *domain.BatchJob) { j.Status = domain.JobStatusProcessing })
	got, err = repo.FindIncomplete(ctx, "org-1", "2026-08-30")
	if err != nil {
		t.Fatalf("FindIncomplete failed: %v", err)
	}
	if got == nil || got.ID != live.ID {
		t.Errorf("incomplete job: got %+v, want %s", got, live.ID)
	}
}

func TestFindStale(t *testing.T) {
	db := newTestDB(t)
	repo := NewJobRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	old := now.Add(-10 * time.Minute)
	fresh := now.Add(-10 * time.Second)

	staleHeartbeat := seedJob(t, db, func(j *domain.BatchJob) {
		j.Status = domain.JobStatusProcessing
		j.StartedAt = &old
		j.LastHeartbeat = &old
		j.CompletedTasks = 3
	})
	neverStarted := seedJob(t, db, func(j *domain.BatchJob) {
		j.CreatedAt = old
	})
	staleNoProgress := seedJob(t, db, func(j *domain.BatchJob) {
		j.Status = domain.JobStatusProcessing
		j.StartedAt = &old
	})
	// Alive: fresh heartbeat and visible progress.
	healthy := seedJob(t, db, func(j *domain.BatchJob) {
		j.Status = domain.JobStatusProcessing
		j.StartedAt = &old
		j.LastHeartbeat = &fresh
		j.CompletedTasks = 1
	})
	// Young job inside the grace period.
	young := seedJob(t, db, func(j *domain.BatchJob) {
		j.CreatedAt = fresh
	})
	// Terminal jobs are never stale.
	done := seedJob(t, db, func(j *domain.BatchJob) {
		j.Status = domain.JobStatusCompleted
		j.StartedAt = &old
		j.LastHeartbeat = &old
	})

	heartbeatCutoff := now.Add(-2 * time.Minute)
	graceCutoff := now.Add(-3 * time.Minute)

	jobs, err := repo.FindStale(ctx, heartbeatCutoff, graceCutoff)
	if err != nil {
		t.Fatalf("FindStale failed: %v", err)
	}

	found := map[string]bool{}
	for _, j := range jobs {
		found[j.ID] = true
	}
	for _, want := range []*domain.BatchJob{staleHeartbeat, neverStarted, staleNoProgress} {
		if !found[want.ID] {
			t.Errorf("job %s not reported stale", want.ID)
		}
	}
	for _, skip := range []*domain.BatchJob{healthy, young, done} {
		if found[skip.ID] {
			t.Errorf("job %s wrongly reported stale", skip.ID)
		}
	}
}

func TestTouchHeartbeatReportsCancellation(t *testing.T) {
	db := newTestDB(t)
	repo := NewJobRepository(db)
	ctx := context.Background()
	job := seedJob(t, db)

	if ok, _ := repo.ClaimRunner(ctx, job.ID, "runner-a"); !ok {
		t.Fatal("claim failed")
	}

	cancelled, err := repo.TouchHeartbeat(ctx, job.ID, "runner-a")
	if err != nil {
		t.Fatalf("TouchHeartbeat failed: %v", err)
	}
	if cancelled {
		t.Error("cancellation reported before it was requested")
	}

	if err := repo.RequestCancellation(ctx, job.OrgID, job.DayKey); err != nil {
		t.Fatalf("RequestCancellation failed: %v", err)
	}
	cancelled, err = repo.TouchHeartbeat(ctx, job.ID, "runner-a")
	if err != nil {
		t.Fatalf("TouchHeartbeat failed: %v", err)
	}
	if !cancelled {
		t.Error("cancellation not reported after request")
	}
}

func TestCountRepairJobs(t *testing.T) {
	db := newTestDB(t)
	repo := NewJobRepository(db)
	ctx := context.Background()

	seedJob(t, db)
	seedJob(t, db, func(j *domain.BatchJob) { j.Source = domain.JobSourceRepair })
	seedJob(t, db, func(j *domain.BatchJob) {
		j.Source = domain.JobSourceRepair
		j.Status = domain.JobStatusCompleted
	})

	count, err := repo.CountRepairJobs(ctx, "org-1", "2026-08-30")
	if err != nil {
		t.Fatalf("CountRepairJobs failed: %v", err)
	}
	if count != 2 {
		t.Errorf("repair job count: got %d, want 2", count)
	}
}
