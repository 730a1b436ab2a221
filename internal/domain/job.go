package domain

import "time"

// JobStatus represents the lifecycle status of a batch job.
// Values include JobStatusPending, JobStatusProcessing, JobStatusCompleted,
// and JobStatusFailed.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// JobSource records what kind of trigger created a job, so repair jobs stay
// attributable in coverage audits.
type JobSource string

const (
	JobSourceScheduled JobSource = "scheduled"
	JobSourceManual    JobSource = "manual"
	JobSourceRepair    JobSource = "repair"
)

// BatchJob groups all provider-call tasks for one organization's daily scan.
// Counters are mutated only through atomic increments; the status moves to
// completed exactly once, either by normal completion accounting or by the
// reconciler's finalize path.
type BatchJob struct {
	ID                    string     `gorm:"type:text;primaryKey" json:"id"`
	OrgID                 string     `gorm:"type:text;not null;index:idx_jobs_org_day" json:"org_id"`
	DayKey                string     `gorm:"type:text;not null;index:idx_jobs_org_day;index" json:"day_key"`
	Status                JobStatus  `gorm:"type:text;default:pending;index" json:"status"`
	Source                JobSource  `gorm:"type:text;default:scheduled" json:"source"`
	TotalTasks            int        `gorm:"default:0" json:"total_tasks"`
	CompletedTasks        int        `gorm:"default:0" json:"completed_tasks"`
	FailedTasks           int        `gorm:"default:0" json:"failed_tasks"`
	RepairAttempts        int        `gorm:"default:0" json:"repair_attempts"`
	CancellationRequested bool       `gorm:"default:false" json:"cancellation_requested"`
	RunnerID              string     `gorm:"type:text;default:''" json:"runner_id"`
	CorrelationID         string     `gorm:"type:text;default:''" json:"correlation_id"`
	CreatedAt             time.Time  `json:"created_at"`
	StartedAt             *time.Time `json:"started_at,omitempty"`
	LastHeartbeat         *time.Time `gorm:"index" json:"last_heartbeat,omitempty"`
	CompletedAt           *time.Time `json:"completed_at,omitempty"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// TableName returns the database table name for BatchJob.
func (BatchJob) TableName() string {
	return "batch_jobs"
}

// TerminalTasks returns the number of tasks that reached a terminal status.
func (j *BatchJob) TerminalTasks() int {
	return j.CompletedTasks + j.FailedTasks
}

// IsTerminal reports whether the job itself is in a terminal status.
func (j *BatchJob) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
