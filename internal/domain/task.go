package domain

import "time"

// TaskStatus represents the status of a single provider-call task.
type TaskStatus string

const (
	TaskStatusPending TaskStatus = "pending"
	TaskStatusRunning TaskStatus = "running"
	TaskStatusSuccess TaskStatus = "success"
	TaskStatusError   TaskStatus = "error"
)

// Task is one provider call for one (prompt, provider) pair inside a batch
// job. The result payload is provider-specific and opaque to the
// orchestration core; it is written once by the task executor and never
// parsed here.
type Task struct {
	ID           string     `gorm:"type:text;primaryKey" json:"id"`
	JobID        string     `gorm:"type:text;not null;index" json:"job_id"`
	OrgID        string     `gorm:"type:text;not null;index" json:"org_id"`
	PromptID     string     `gorm:"type:text;not null;index" json:"prompt_id"`
	ProviderID   string     `gorm:"type:text;not null" json:"provider_id"`
	Status       TaskStatus `gorm:"type:text;default:pending;index" json:"status"`
	TokensIn     int        `gorm:"default:0" json:"tokens_in"`
	TokensOut    int        `gorm:"default:0" json:"tokens_out"`
	Result       string     `gorm:"type:text" json:"result,omitempty"`
	ErrorMessage string     `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Task.
func (Task) TableName() string {
	return "tasks"
}

// IsTerminal reports whether the task reached a terminal status.
func (t *Task) IsTerminal() bool {
	return t.Status == TaskStatusSuccess || t.Status == TaskStatusError
}
