package scan

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/limelightai/limelight/internal/config"
	"github.com/limelightai/limelight/internal/domain"
)

func newTestAuditor(env *testEnv) *Auditor {
	return NewAuditor(env.orgs, env.prompts, env.jobs, env.tasks, env.manager, nil, config.AuditConfig{
		CoverageThreshold: 95.0,
		RepairBackoff:     time.Hour,
		RepairBackoffMax:  8 * time.Hour,
	})
}

// completeOrgDay seeds a completed job for the org with one successful task
// per active prompt, as a fully healthy day would leave behind.
func completeOrgDay(t *testing.T, env *testEnv, orgID, dayKey string) {
	t.Helper()
	ctx := context.Background()

	prompts, err := env.prompts.ListActiveByOrg(ctx, orgID)
	if err != nil {
		t.Fatalf("ListActiveByOrg failed: %v", err)
	}

	now := time.Now().UTC()
	job := &domain.BatchJob{
		ID:             uuid.New().String(),
		OrgID:          orgID,
		DayKey:         dayKey,
		Status:         domain.JobStatusCompleted,
		Source:         domain.JobSourceScheduled,
		TotalTasks:     len(prompts),
		CompletedTasks: len(prompts),
		CreatedAt:      now,
		CompletedAt:    &now,
	}
	if err := env.db.Create(job).Error; err != nil {
		t.Fatalf("failed to seed completed job: %v", err)
	}
	for _, p := range prompts {
		task := &domain.Task{
			ID:         uuid.New().String(),
			JobID:      job.ID,
			OrgID:      orgID,
			PromptID:   p.ID,
			ProviderID: "openai",
			Status:     domain.TaskStatusSuccess,
			CreatedAt:  now,
		}
		if err := env.db.Create(task).Error; err != nil {
			t.Fatalf("failed to seed task: %v", err)
		}
	}
}

func TestAuditHealthyDay(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	dayKey := env.gate.DayKey(time.Now())

	for _, org := range []string{"org-1", "org-2"} {
		env.seedOrg(t, org, domain.TierFree)
		env.seedPrompts(t, org, 3)
		completeOrgDay(t, env, org, dayKey)
	}

	summary, err := newTestAuditor(env).Audit(ctx, dayKey, false)
	if err != nil {
		t.Fatalf("Audit failed: %v", err)
	}
	if summary.OverallHealth != HealthOK {
		t.Errorf("health: got %s, want %s", summary.OverallHealth, HealthOK)
	}
	if summary.PromptCoverage.Percent != 100 || summary.OrgCoverage.Percent != 100 {
		t.Errorf("coverage: got %+v / %+v, want 100%%", summary.PromptCoverage, summary.OrgCoverage)
	}
	if len(summary.MissingOrgs) != 0 {
		t.Errorf("missing orgs on a healthy day: %v", summary.MissingOrgs)
	}
}

func TestAuditReportsGapsWithoutRepairing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	dayKey := env.gate.DayKey(time.Now())

	env.seedOrg(t, "org-done", domain.TierFree)
	env.seedPrompts(t, "org-done", 4)
	completeOrgDay(t, env, "org-done", dayKey)

	env.seedOrg(t, "org-missed", domain.TierFree)
	env.seedPrompts(t, "org-missed", 4)
	env.seedGlobalProviders(t, "openai")

	summary, err := newTestAuditor(env).Audit(ctx, dayKey, false)
	if err != nil {
		t.Fatalf("Audit failed: %v", err)
	}
	if summary.OverallHealth != HealthNeedsAttention {
		t.Errorf("health: got %s, want %s", summary.OverallHealth, HealthNeedsAttention)
	}
	if summary.OrgCoverage.Percent != 50 {
		t.Errorf("org coverage: got %.1f, want 50", summary.OrgCoverage.Percent)
	}
	if summary.PromptCoverage.Percent != 50 {
		t.Errorf("prompt coverage: got %.1f, want 50", summary.PromptCoverage.Percent)
	}
	if len(summary.MissingOrgs) != 1 || summary.MissingOrgs[0] != "org-missed" {
		t.Errorf("missing orgs: got %v, want [org-missed]", summary.MissingOrgs)
	}

	// Observation mode must not create anything.
	if summary.Healing.Attempted != 0 || summary.Healing.Created != 0 {
		t.Errorf("healing ran without repair: %+v", summary.Healing)
	}
	var jobCount int64
	env.db.Model(&domain.BatchJob{}).Where("source = ?", domain.JobSourceRepair).Count(&jobCount)
	if jobCount != 0 {
		t.Errorf("repair jobs created in observation mode: %d", jobCount)
	}
}

func TestAuditRepairCreatesJobForMissingOrg(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	dayKey := env.gate.DayKey(time.Now())

	env.seedOrg(t, "org-missed", domain.TierFree)
	env.seedPrompts(t, "org-missed", 2)
	env.seedGlobalProviders(t, "openai")

	summary, err := newTestAuditor(env).Audit(ctx, dayKey, true)
	if err != nil {
		t.Fatalf("Audit failed: %v", err)
	}
	if summary.Healing.Created != 1 {
		t.Fatalf("healing: got %+v, want 1 created", summary.Healing)
	}

	ids := summary.CreatedJobIDs()
	if len(ids) != 1 {
		t.Fatalf("created job IDs: got %v, want 1", ids)
	}
	job, err := env.jobs.GetByID(ctx, ids[0])
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if job.Source != domain.JobSourceRepair {
		t.Errorf("source: got %s, want %s", job.Source, domain.JobSourceRepair)
	}
	if job.RepairAttempts != 1 {
		t.Errorf("repair attempts: got %d, want 1", job.RepairAttempts)
	}
	if job.CorrelationID != "audit-"+dayKey {
		t.Errorf("correlation: got %s, want audit-%s", job.CorrelationID, dayKey)
	}
}

func TestAuditRepairResumesIncompleteJob(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	dayKey := env.gate.DayKey(time.Now())

	env.seedOrg(t, "org-stalled", domain.TierFree)
	env.seedPrompts(t, "org-stalled", 2)
	env.seedGlobalProviders(t, "openai")

	// The daily fan-out ran but the job stalled short of completion.
	existing, _, err := env.manager.CreateJobsForOrg(ctx, "org-stalled", CreateOptions{})
	if err != nil {
		t.Fatalf("CreateJobsForOrg failed: %v", err)
	}

	summary, err := newTestAuditor(env).Audit(ctx, dayKey, true)
	if err != nil {
		t.Fatalf("Audit failed: %v", err)
	}
	if summary.Healing.Resumed != 1 || summary.Healing.Created != 0 {
		t.Fatalf("healing: got %+v, want 1 resumed, 0 created", summary.Healing)
	}
	if d := summary.Healing.Details[0]; d.Action != "resumed" || d.JobID != existing.ID {
		t.Errorf("detail: got %+v, want resumed %s", d, existing.ID)
	}

	// The stalled job keeps its tasks: no cancellation, no replacement, so
	// none of its finished provider calls are ever re-issued.
	var jobCount int64
	env.db.Model(&domain.BatchJob{}).Where("org_id = ?", "org-stalled").Count(&jobCount)
	if jobCount != 1 {
		t.Errorf("jobs for org-stalled: got %d, want 1", jobCount)
	}
	got, err := env.jobs.GetByID(ctx, existing.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.CancellationRequested {
		t.Error("healing cancelled the job it should resume")
	}
}

func TestAuditRepairBacksOffRecentAttempt(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	dayKey := env.gate.DayKey(time.Now())

	env.seedOrg(t, "org-missed", domain.TierFree)
	env.seedPrompts(t, "org-missed", 2)
	env.seedGlobalProviders(t, "openai")

	auditor := newTestAuditor(env)

	first, err := auditor.Audit(ctx, dayKey, true)
	if err != nil {
		t.Fatalf("first audit failed: %v", err)
	}
	if first.Healing.Created != 1 {
		t.Fatalf("first healing: got %+v, want 1 created", first.Healing)
	}

	// The repair job has not finished; a second audit inside the backoff
	// window must not stack another one.
	second, err := auditor.Audit(ctx, dayKey, true)
	if err != nil {
		t.Fatalf("second audit failed: %v", err)
	}
	if second.Healing.Created != 0 {
		t.Errorf("second healing created jobs inside backoff: %+v", second.Healing)
	}
	if len(second.Healing.Details) != 1 || second.Healing.Details[0].Action != "backoff" {
		t.Errorf("second healing details: got %+v, want backoff", second.Healing.Details)
	}

	count, err := env.jobs.CountRepairJobs(ctx, "org-missed", dayKey)
	if err != nil {
		t.Fatalf("CountRepairJobs failed: %v", err)
	}
	if count != 1 {
		t.Errorf("repair jobs: got %d, want 1", count)
	}
}

func TestBackoffDoublesPerAttemptWithCap(t *testing.T) {
	env := newTestEnv(t)
	auditor := newTestAuditor(env)

	testCases := []struct {
		attempts int
		want     time.Duration
	}{
		{0, time.Hour},
		{1, time.Hour},
		{2, 2 * time.Hour},
		{3, 4 * time.Hour},
		{4, 8 * time.Hour},
		{10, 8 * time.Hour},
	}
	for _, tc := range testCases {
		if got := auditor.backoffFor(tc.attempts); got != tc.want {
			t.Errorf("backoffFor(%d): got %v, want %v", tc.attempts, got, tc.want)
		}
	}
}

func TestCoverageEmptyExpectationIsFull(t *testing.T) {
	c := coverage(0, 0)
	if c.Percent != 100 {
		t.Errorf("coverage(0,0): got %.1f, want 100", c.Percent)
	}
}
