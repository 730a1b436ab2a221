package scan

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/limelightai/limelight/internal/config"
	"github.com/limelightai/limelight/internal/domain"
	"github.com/limelightai/limelight/internal/logger"
	"github.com/limelightai/limelight/internal/repository"
	"github.com/limelightai/limelight/internal/storage"
)

// Health values reported by the coverage audit.
const (
	HealthOK             = "HEALTHY"
	HealthNeedsAttention = "NEEDS_ATTENTION"
)

// Auditor compares what should have run today against what actually ran,
// on two independent granularities. Org-level job completion alone is not
// enough evidence: a completed job can contain failed tasks, so prompt-level
// task coverage is checked as well. With repair enabled it creates
// replacement jobs for missing tenants, bounded by per-tenant exponential
// backoff so healing cannot cascade.
type Auditor struct {
	orgs    *repository.OrgRepository
	prompts *repository.PromptRepository
	jobs    *repository.JobRepository
	tasks   *repository.TaskRepository
	manager *Manager
	archive storage.ReportArchive // nil disables archiving
	cfg     config.AuditConfig
}

// NewAuditor creates a new Auditor. archive may be nil.
func NewAuditor(
	orgs *repository.OrgRepository,
	prompts *repository.PromptRepository,
	jobs *repository.JobRepository,
	tasks *repository.TaskRepository,
	manager *Manager,
	archive storage.ReportArchive,
	cfg config.AuditConfig,
) *Auditor {
	if cfg.CoverageThreshold <= 0 {
		cfg.CoverageThreshold = 95.0
	}
	if cfg.RepairBackoff <= 0 {
		cfg.RepairBackoff = time.Hour
	}
	if cfg.RepairBackoffMax <= 0 {
		cfg.RepairBackoffMax = 8 * time.Hour
	}
	return &Auditor{
		orgs:    orgs,
		prompts: prompts,
		jobs:    jobs,
		tasks:   tasks,
		manager: manager,
		archive: archive,
		cfg:     cfg,
	}
}

// Coverage is one dimension of the audit: expected vs actual with percent.
type Coverage struct {
	Expected int     `json:"expected"`
	Actual   int     `json:"actual"`
	Percent  float64 `json:"percent"`
}

// HealingResult records one self-healing attempt for a missing tenant.
type HealingResult struct {
	OrgID  string `json:"org_id"`
	Action string `json:"action"` // created | resumed | backoff | skipped
	JobID  string `json:"job_id,omitempty"`
	Error  string `json:"error,omitempty"`
}

// HealingSummary aggregates the repair pass.
type HealingSummary struct {
	Attempted int             `json:"attempted"`
	Created   int             `json:"created"`
	Resumed   int             `json:"resumed"`
	Skipped   int             `json:"skipped"`
	Details   []HealingResult `json:"details,omitempty"`
}

// AuditSummary is the structured result of one coverage audit.
type AuditSummary struct {
	DayKey         string         `json:"day_key"`
	PromptCoverage Coverage       `json:"prompt_coverage"`
	OrgCoverage    Coverage       `json:"org_coverage"`
	MissingOrgs    []string       `json:"missing_orgs"`
	Healing        HealingSummary `json:"healing"`
	OverallHealth  string         `json:"overall_health"`
	GeneratedAt    time.Time      `json:"generated_at"`
}

// CreatedJobIDs returns the jobs the repair pass created, for the caller to
// trigger execution on.
func (s *AuditSummary) CreatedJobIDs() []string {
	var ids []string
	for _, h := range s.Healing.Details {
		if h.Action == "created" && h.JobID != "" {
			ids = append(ids, h.JobID)
		}
	}
	return ids
}

// Audit computes coverage for dayKey and, when repair is set, runs the
// bounded self-healing pass. Coverage gaps are always surfaced in the
// summary, never silently ignored.
func (a *Auditor) Audit(ctx context.Context, dayKey string, repair bool) (*AuditSummary, error) {
	summary := &AuditSummary{
		DayKey:      dayKey,
		MissingOrgs: []string{},
		GeneratedAt: time.Now().UTC(),
	}

	expectedPrompts, err := a.prompts.CountActivePrompts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count expected prompts: %w", err)
	}
	promptsRun, err := a.tasks.CountDistinctSuccessfulPrompts(ctx, dayKey)
	if err != nil {
		return nil, fmt.Errorf("failed to count prompts run: %w", err)
	}
	summary.PromptCoverage = coverage(expectedPrompts, promptsRun)

	orgs, err := a.orgs.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active orgs: %w", err)
	}
	covered := 0
	for _, org := range orgs {
		done, err := a.jobs.CompletedJobExists(ctx, org.ID, dayKey)
		if err != nil {
			// One tenant's lookup failure must not abort the audit.
			logger.FromContext(ctx).WithField(logger.FieldOrgID, org.ID).
				WithError(err).Error("Coverage lookup failed")
			summary.MissingOrgs = append(summary.MissingOrgs, org.ID)
			continue
		}
		if done {
			covered++
		} else {
			summary.MissingOrgs = append(summary.MissingOrgs, org.ID)
		}
	}
	summary.OrgCoverage = coverage(len(orgs), covered)

	if summary.PromptCoverage.Percent >= a.cfg.CoverageThreshold &&
		summary.OrgCoverage.Percent >= a.cfg.CoverageThreshold {
		summary.OverallHealth = HealthOK
	} else {
		summary.OverallHealth = HealthNeedsAttention
	}

	needsRepair := len(summary.MissingOrgs) > 0 ||
		summary.PromptCoverage.Percent < a.cfg.CoverageThreshold
	if repair && needsRepair {
		summary.Healing = a.heal(ctx, dayKey, summary.MissingOrgs)
	}

	if summary.OverallHealth != HealthOK {
		logger.With(logger.Fields{
			logger.FieldDayKey: dayKey,
			logger.FieldStatus: summary.OverallHealth,
		}).Warn(ctx, "Coverage audit: prompts %.1f%%, orgs %.1f%%, %d missing orgs",
			summary.PromptCoverage.Percent, summary.OrgCoverage.Percent, len(summary.MissingOrgs))
	}

	a.archiveSummary(ctx, summary)
	return summary, nil
}

// heal creates repair jobs for missing tenants. A tenant whose latest
// repair job is younger than its backoff window is skipped to avoid
// duplicate healing; the window doubles with each repair attempt. A tenant
// with an incomplete job already on file gets that job resumed by the
// reconciler instead of a replacement, so its completed tasks are never
// re-issued against the providers.
func (a *Auditor) heal(ctx context.Context, dayKey string, missingOrgs []string) HealingSummary {
	healing := HealingSummary{Details: make([]HealingResult, 0, len(missingOrgs))}
	now := time.Now().UTC()

	for _, orgID := range missingOrgs {
		res := HealingResult{OrgID: orgID}

		latest, err := a.jobs.LatestRepairJob(ctx, orgID, dayKey)
		if err != nil {
			res.Action = "skipped"
			res.Error = err.Error()
			healing.Skipped++
			healing.Details = append(healing.Details, res)
			continue
		}
		if latest != nil {
			wait := a.backoffFor(latest.RepairAttempts)
			if now.Sub(latest.CreatedAt) < wait {
				res.Action = "backoff"
				healing.Skipped++
				healing.Details = append(healing.Details, res)
				continue
			}
		}

		healing.Attempted++
		job, action, err := a.manager.CreateJobsForOrg(ctx, orgID, CreateOptions{
			Source:        domain.JobSourceRepair,
			CorrelationID: "audit-" + dayKey,
		})
		switch {
		case err != nil:
			res.Action = "skipped"
			res.Error = err.Error()
			healing.Skipped++
		case job == nil:
			// Plan-level skip (no prompts/providers); nothing to heal.
			res.Action = "skipped"
			healing.Skipped++
		case action == ActionExisting:
			res.Action = "resumed"
			res.JobID = job.ID
			healing.Resumed++
		default:
			res.Action = "created"
			res.JobID = job.ID
			healing.Created++
		}
		healing.Details = append(healing.Details, res)
	}
	return healing
}

// backoffFor doubles the base backoff per prior attempt, capped.
func (a *Auditor) backoffFor(attempts int) time.Duration {
	wait := a.cfg.RepairBackoff
	for i := 1; i < attempts; i++ {
		wait *= 2
		if wait >= a.cfg.RepairBackoffMax {
			return a.cfg.RepairBackoffMax
		}
	}
	return wait
}

// archiveSummary uploads the summary JSON to the report archive.
// Best-effort: archive failures are logged, never surfaced to the caller.
func (a *Auditor) archiveSummary(ctx context.Context, summary *AuditSummary) {
	if a.archive == nil {
		return
	}
	payload, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		logger.CtxError(ctx, "Failed to marshal audit summary: %v", err)
		return
	}
	key := fmt.Sprintf("audits/%s/%s.json", summary.DayKey,
		summary.GeneratedAt.Format("150405"))
	if err := a.archive.Upload(ctx, key, bytes.NewReader(payload), int64(len(payload)), "application/json"); err != nil {
		logger.CtxWarn(ctx, "Failed to archive audit summary: %v", err)
	}
}

func coverage(expected, actual int) Coverage {
	c := Coverage{Expected: expected, Actual: actual, Percent: 100}
	if expected > 0 {
		c.Percent = float64(actual) / float64(expected) * 100
	}
	return c
}
