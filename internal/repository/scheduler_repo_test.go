package repository

import (
	"context"
	"sync"
	"testing"

	"github.com/limelightai/limelight/internal/domain"
)

func TestTryClaimFirstCallerWins(t *testing.T) {
	db := newTestDB(t)
	repo := NewSchedulerRepository(db)
	ctx := context.Background()

	result, err := repo.TryClaim(ctx, "2026-08-30")
	if err != nil {
		t.Fatalf("TryClaim failed: %v", err)
	}
	if result != ClaimAcquired {
		t.Errorf("first claim: got %s, want %s", result, ClaimAcquired)
	}

	result, err = repo.TryClaim(ctx, "2026-08-30")
	if err != nil {
		t.Fatalf("second TryClaim failed: %v", err)
	}
	if result != ClaimAlreadyRan {
		t.Errorf("second claim: got %s, want %s", result, ClaimAlreadyRan)
	}
}

func TestTryClaimNewDayReleasesGate(t *testing.T) {
	db := newTestDB(t)
	repo := NewSchedulerRepository(db)
	ctx := context.Background()

	if result, _ := repo.TryClaim(ctx, "2026-08-29"); result != ClaimAcquired {
		t.Fatalf("day one claim: got %s, want %s", result, ClaimAcquired)
	}
	if result, _ := repo.TryClaim(ctx, "2026-08-30"); result != ClaimAcquired {
		t.Errorf("day two claim: got %s, want %s", result, ClaimAcquired)
	}
}

// TestTryClaimConcurrent races many claimers for the same day key and
// verifies exactly one acquires.
func TestTryClaimConcurrent(t *testing.T) {
	db := newTestDB(t)
	repo := NewSchedulerRepository(db)
	ctx := context.Background()

	const callers = 20
	results := make([]ClaimResult, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = repo.TryClaim(ctx, "2026-08-30")
		}(i)
	}
	wg.Wait()

	acquired := 0
	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d failed: %v", i, errs[i])
		}
		if results[i] == ClaimAcquired {
			acquired++
		}
	}
	if acquired != 1 {
		t.Errorf("acquired count: got %d, want exactly 1", acquired)
	}
}

func TestCompleteRunIsGuarded(t *testing.T) {
	db := newTestDB(t)
	repo := NewSchedulerRepository(db)
	ctx := context.Background()

	run, err := repo.StartRun(ctx, "daily-trigger", "2026-08-30")
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}

	if err := repo.CompleteRun(ctx, run.ID, domain.RunStatusCompleted, `{"ok":true}`); err != nil {
		t.Fatalf("CompleteRun failed: %v", err)
	}
	// A second completion must not overwrite the first.
	if err := repo.CompleteRun(ctx, run.ID, domain.RunStatusFailed, `{"ok":false}`); err != nil {
		t.Fatalf("second CompleteRun failed: %v", err)
	}

	runs, err := repo.RecentRuns(ctx, 10)
	if err != nil {
		t.Fatalf("RecentRuns failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("run count: got %d, want 1", len(runs))
	}
	if runs[0].Status != domain.RunStatusCompleted {
		t.Errorf("run status: got %s, want %s", runs[0].Status, domain.RunStatusCompleted)
	}
	if runs[0].Result != `{"ok":true}` {
		t.Errorf("run result overwritten: got %s", runs[0].Result)
	}
}
