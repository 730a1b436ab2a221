package domain

import "time"

// SchedulerStateID is the primary key of the singleton coordination row.
const SchedulerStateID = "global"

// SchedulerState is the single shared row used as a lock-free mutex for the
// daily run. It is mutated only through the claim's conditional update and
// never deleted; at most one successful claim per day key can exist across
// all processes.
type SchedulerState struct {
	ID            string    `gorm:"type:text;primaryKey" json:"id"`
	LastRunDayKey string    `gorm:"type:text;default:''" json:"last_run_day_key"`
	LastRunAt     time.Time `json:"last_run_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName returns the database table name for SchedulerState.
func (SchedulerState) TableName() string {
	return "scheduler_states"
}

// RunStatus represents the outcome of one orchestration invocation.
type RunStatus string

const (
	RunStatusStarted   RunStatus = "started"
	RunStatusCompleted RunStatus = "completed"
	RunStatusSkipped   RunStatus = "skipped"
	RunStatusFailed    RunStatus = "failed"
)

// SchedulerRun is an append-only audit record, one per orchestration
// invocation (daily gate, reconciler sweep, coverage audit). Never mutated
// after CompletedAt is set.
type SchedulerRun struct {
	ID           string     `gorm:"type:text;primaryKey" json:"id"`
	FunctionName string     `gorm:"type:text;not null;index" json:"function_name"`
	RunKey       string     `gorm:"type:text;index" json:"run_key"`
	Status       RunStatus  `gorm:"type:text;default:started" json:"status"`
	Result       string     `gorm:"type:text" json:"result,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// TableName returns the database table name for SchedulerRun.
func (SchedulerRun) TableName() string {
	return "scheduler_runs"
}
