package scan

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/limelightai/limelight/internal/config"
	"github.com/limelightai/limelight/internal/domain"
	"github.com/limelightai/limelight/internal/logger"
	"github.com/limelightai/limelight/internal/repository"
)

// Skip reasons reported by Plan and surfaced in bulk-trigger summaries.
const (
	SkipReasonInactiveOrg = "org-inactive"
	SkipReasonNoPrompts   = "no-active-prompts"
	SkipReasonNoProviders = "no-enabled-providers"
	SkipReasonJobExists   = "incomplete-job-exists"
)

// Actions reported per tenant by CreateJobsForOrg.
const (
	ActionCreated  = "created"
	ActionExisting = "existing"
	ActionSkipped  = "skipped"
)

// Manager owns job fan-out: it resolves each tenant's active prompts and
// enabled providers, clamps the cross product by the subscription-tier
// quota, and creates one batch job plus its tasks. Quota is enforced at
// creation time so totalTasks is always an honest denominator.
type Manager struct {
	orgs    *repository.OrgRepository
	prompts *repository.PromptRepository
	jobs    *repository.JobRepository
	tasks   *repository.TaskRepository
	gate    *Gate
	quotas  *config.QuotasConfig

	// tenantDelay spaces out tenant iterations during bulk fan-out so a
	// large fleet does not stampede the store.
	tenantDelay time.Duration
}

// NewManager creates a new Manager.
func NewManager(
	orgs *repository.OrgRepository,
	prompts *repository.PromptRepository,
	jobs *repository.JobRepository,
	tasks *repository.TaskRepository,
	gate *Gate,
	quotas *config.QuotasConfig,
	tenantDelay time.Duration,
) *Manager {
	return &Manager{
		orgs:        orgs,
		prompts:     prompts,
		jobs:        jobs,
		tasks:       tasks,
		gate:        gate,
		quotas:      quotas,
		tenantDelay: tenantDelay,
	}
}

// FanoutPlan is the quota-clamped fan-out for one tenant, computed without
// any writes. Preflight mode returns it directly.
type FanoutPlan struct {
	OrgID         string                  `json:"org_id"`
	Tier          domain.Tier             `json:"tier"`
	Prompts       []domain.Prompt         `json:"-"`
	Providers     []domain.ProviderConfig `json:"-"`
	PromptCount   int                     `json:"prompt_count"`
	ProviderCount int                     `json:"provider_count"`
	ExpectedTasks int                     `json:"expected_tasks"`
	SkipReason    string                  `json:"skip_reason,omitempty"`
}

// CreateOptions controls job creation for one tenant.
type CreateOptions struct {
	// Replace forces a fresh job even when an incomplete one exists; prior
	// non-terminal jobs get cancellation requested, never rolled back.
	Replace bool
	// Source tags the job for audit attribution.
	Source domain.JobSource
	// CorrelationID ties the job back to the triggering invocation.
	CorrelationID string
}

// Plan resolves prompts, providers, and quota for a tenant without creating
// any rows. This is the preflight path.
func (m *Manager) Plan(ctx context.Context, orgID string) (*FanoutPlan, error) {
	org, err := m.orgs.GetByID(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to load org %s: %w", orgID, err)
	}

	plan := &FanoutPlan{OrgID: orgID, Tier: org.Tier}
	if !org.Active {
		plan.SkipReason = SkipReasonInactiveOrg
		return plan, nil
	}

	prompts, err := m.prompts.ListActiveByOrg(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to load prompts for org %s: %w", orgID, err)
	}
	providers, err := m.prompts.ListEnabledProviders(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to load providers for org %s: %w", orgID, err)
	}

	// Clamp before creating anything: tasks beyond the quota are never
	// created, not silently dropped later.
	quota := m.quotas.QuotaForTier(string(org.Tier))
	if len(prompts) > quota.PromptsPerDay {
		prompts = prompts[:quota.PromptsPerDay]
	}
	if len(providers) > quota.ProvidersPerPrompt {
		providers = providers[:quota.ProvidersPerPrompt]
	}

	plan.Prompts = prompts
	plan.Providers = providers
	plan.PromptCount = len(prompts)
	plan.ProviderCount = len(providers)
	plan.ExpectedTasks = len(prompts) * len(providers)

	switch {
	case plan.PromptCount == 0:
		plan.SkipReason = SkipReasonNoPrompts
	case plan.ProviderCount == 0:
		plan.SkipReason = SkipReasonNoProviders
	}
	return plan, nil
}

// CreateJobsForOrg creates today's batch job and its tasks for one tenant.
// With Replace false the call is idempotent: an existing incomplete job for
// (org, day) is returned as-is and nothing is written.
// Returns the job (nil when skipped), the action taken, and an error.
func (m *Manager) CreateJobsForOrg(ctx context.Context, orgID string, opts CreateOptions) (*domain.BatchJob, string, error) {
	plan, err := m.Plan(ctx, orgID)
	if err != nil {
		return nil, "", err
	}
	if plan.SkipReason != "" {
		return nil, ActionSkipped, nil
	}

	dayKey := m.gate.DayKey(time.Now())

	if !opts.Replace {
		existing, err := m.jobs.FindIncomplete(ctx, orgID, dayKey)
		if err != nil {
			return nil, "", fmt.Errorf("failed to check existing job for org %s: %w", orgID, err)
		}
		if existing != nil {
			return existing, ActionExisting, nil
		}
	} else {
		if err := m.jobs.RequestCancellation(ctx, orgID, dayKey); err != nil {
			return nil, "", fmt.Errorf("failed to cancel prior jobs for org %s: %w", orgID, err)
		}
	}

	source := opts.Source
	if source == "" {
		source = domain.JobSourceScheduled
	}

	repairAttempts := 0
	if source == domain.JobSourceRepair {
		prior, err := m.jobs.CountRepairJobs(ctx, orgID, dayKey)
		if err != nil {
			return nil, "", fmt.Errorf("failed to count repair jobs for org %s: %w", orgID, err)
		}
		repairAttempts = prior + 1
	}

	job := &domain.BatchJob{
		ID:             uuid.New().String(),
		OrgID:          orgID,
		DayKey:         dayKey,
		Status:         domain.JobStatusPending,
		Source:         source,
		TotalTasks:     plan.ExpectedTasks,
		RepairAttempts: repairAttempts,
		CorrelationID:  opts.CorrelationID,
	}
	if err := m.jobs.Create(ctx, job); err != nil {
		return nil, "", fmt.Errorf("failed to create job for org %s: %w", orgID, err)
	}

	tasks := make([]domain.Task, 0, plan.ExpectedTasks)
	for _, p := range plan.Prompts {
		for _, pc := range plan.Providers {
			tasks = append(tasks, domain.Task{
				ID:         uuid.New().String(),
				JobID:      job.ID,
				OrgID:      orgID,
				PromptID:   p.ID,
				ProviderID: pc.ID,
				Status:     domain.TaskStatusPending,
			})
		}
	}
	if err := m.tasks.CreateBatch(ctx, tasks); err != nil {
		return nil, "", fmt.Errorf("failed to create tasks for job %s: %w", job.ID, err)
	}

	logger.With(logger.Fields{
		logger.FieldOrgID:  orgID,
		logger.FieldJobID:  job.ID,
		logger.FieldDayKey: dayKey,
		logger.FieldCount:  job.TotalTasks,
	}).Info(ctx, "Created batch job (source=%s)", source)

	return job, ActionCreated, nil
}

// TenantResult is the per-tenant entry of a bulk trigger summary.
type TenantResult struct {
	OrgID         string `json:"org_id"`
	Success       bool   `json:"success"`
	Action        string `json:"action,omitempty"`
	JobID         string `json:"job_id,omitempty"`
	PromptCount   int    `json:"prompt_count"`
	ProviderCount int    `json:"provider_count"`
	ExpectedTasks int    `json:"expected_tasks"`
	SkipReason    string `json:"skip_reason,omitempty"`
	Error         string `json:"error,omitempty"`
}

// BulkOptions controls a fleet-wide fan-out pass.
type BulkOptions struct {
	Replace       bool
	Preflight     bool
	Source        domain.JobSource
	CorrelationID string
}

// RunAll fans out jobs for every active tenant. Per-tenant failures are
// isolated: one tenant's error never stops the remaining tenants. In
// preflight mode nothing is written and the summary carries the planned
// counts only.
func (m *Manager) RunAll(ctx context.Context, opts BulkOptions) ([]TenantResult, error) {
	orgs, err := m.orgs.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active orgs: %w", err)
	}

	results := make([]TenantResult, 0, len(orgs))
	for i, org := range orgs {
		if i > 0 && m.tenantDelay > 0 {
			time.Sleep(m.tenantDelay)
		}
		results = append(results, m.runOne(ctx, org.ID, opts))
	}
	return results, nil
}

func (m *Manager) runOne(ctx context.Context, orgID string, opts BulkOptions) TenantResult {
	plan, err := m.Plan(ctx, orgID)
	if err != nil {
		logger.FromContext(ctx).WithField(logger.FieldOrgID, orgID).
			WithError(err).Error("Fan-out planning failed")
		return TenantResult{OrgID: orgID, Error: err.Error()}
	}

	res := TenantResult{
		OrgID:         orgID,
		PromptCount:   plan.PromptCount,
		ProviderCount: plan.ProviderCount,
		ExpectedTasks: plan.ExpectedTasks,
		SkipReason:    plan.SkipReason,
	}
	if opts.Preflight {
		res.Success = true
		res.Action = ActionSkipped
		if plan.SkipReason == "" {
			res.Action = "planned"
		}
		return res
	}

	job, action, err := m.CreateJobsForOrg(ctx, orgID, CreateOptions{
		Replace:       opts.Replace,
		Source:        opts.Source,
		CorrelationID: opts.CorrelationID,
	})
	if err != nil {
		logger.FromContext(ctx).WithField(logger.FieldOrgID, orgID).
			WithError(err).Error("Fan-out failed")
		res.Error = err.Error()
		return res
	}
	res.Success = true
	res.Action = action
	if action == ActionExisting {
		res.SkipReason = SkipReasonJobExists
	}
	if job != nil {
		res.JobID = job.ID
	}
	return res
}
