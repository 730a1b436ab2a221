package domain

import "time"

// ProviderConfig records an AI provider enabled for scans. A row with an
// empty OrgID is a global default; an org-scoped row overrides it for that
// organization only.
type ProviderConfig struct {
	ID        string    `gorm:"type:text;primaryKey" json:"id"`
	OrgID     string    `gorm:"type:text;primaryKey;default:''" json:"org_id"`
	Enabled   bool      `json:"enabled"`
	Model     string    `gorm:"type:text" json:"model"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for ProviderConfig.
func (ProviderConfig) TableName() string {
	return "provider_configs"
}
