package domain

import "time"

// Tier identifies the subscription tier of an organization.
// The tier determines fan-out quotas (prompts per day, providers per prompt).
type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// Organization represents a customer account (tenant).
type Organization struct {
	ID        string    `gorm:"type:text;primaryKey" json:"id"`
	Name      string    `gorm:"type:text;not null" json:"name"`
	Tier      Tier      `gorm:"type:text;default:free;index" json:"tier"`
	Active    bool      `gorm:"index" json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Organization.
func (Organization) TableName() string {
	return "organizations"
}
