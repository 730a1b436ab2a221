package domain

import "time"

// Prompt is a brand-visibility question an organization wants asked of the
// AI providers on every daily scan.
type Prompt struct {
	ID        string    `gorm:"type:text;primaryKey" json:"id"`
	OrgID     string    `gorm:"type:text;not null;index" json:"org_id"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	Active    bool      `gorm:"index" json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Prompt.
func (Prompt) TableName() string {
	return "prompts"
}
