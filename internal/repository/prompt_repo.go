package repository

import (
	"context"

	"github.com/limelightai/limelight/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PromptRepository handles prompt and provider-config reads for fan-out.
type PromptRepository struct {
	db *gorm.DB
}

// NewPromptRepository creates a new PromptRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *PromptRepository: repository instance bound to db.
func NewPromptRepository(db *gorm.DB) *PromptRepository {
	return &PromptRepository{db: db}
}

// Create inserts a new prompt record.
func (r *PromptRepository) Create(ctx context.Context, prompt *domain.Prompt) error {
	return r.db.WithContext(ctx).Create(prompt).Error
}

// ListActiveByOrg returns the organization's active prompts in creation
// order. Quota clamping takes a stable prefix of this list.
func (r *PromptRepository) ListActiveByOrg(ctx context.Context, orgID string) ([]domain.Prompt, error) {
	var prompts []domain.Prompt
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND active = ?", orgID, true).
		Order("created_at ASC").
		Find(&prompts).Error
	return prompts, err
}

// ListByOrg returns all of the organization's prompts, active or not.
// Runners use it to resolve prompt text for tasks created earlier in the
// day, which must still execute if the prompt was deactivated since.
func (r *PromptRepository) ListByOrg(ctx context.Context, orgID string) ([]domain.Prompt, error) {
	var prompts []domain.Prompt
	err := r.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Find(&prompts).Error
	return prompts, err
}

// CountActivePrompts counts active prompts belonging to active
// organizations, the denominator of prompt-level coverage.
func (r *PromptRepository) CountActivePrompts(ctx context.Context) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Table("prompts").
		Joins("JOIN organizations ON organizations.id = prompts.org_id").
		Where("prompts.active = ? AND organizations.active = ?", true, true).
		Count(&count).Error
	return int(count), err
}

// ListEnabledProviders returns the providers enabled for an organization:
// org-scoped rows override global rows with the same provider ID.
func (r *PromptRepository) ListEnabledProviders(ctx context.Context, orgID string) ([]domain.ProviderConfig, error) {
	var configs []domain.ProviderConfig
	err := r.db.WithContext(ctx).
		Where("org_id = ? OR org_id = ''", orgID).
		Order("id ASC").
		Find(&configs).Error
	if err != nil {
		return nil, err
	}

	merged := make(map[string]domain.ProviderConfig, len(configs))
	order := make([]string, 0, len(configs))
	for _, pc := range configs {
		existing, ok := merged[pc.ID]
		if !ok {
			order = append(order, pc.ID)
			merged[pc.ID] = pc
			continue
		}
		if existing.OrgID == "" && pc.OrgID == orgID {
			merged[pc.ID] = pc
		}
	}

	result := make([]domain.ProviderConfig, 0, len(order))
	for _, id := range order {
		if pc := merged[id]; pc.Enabled {
			result = append(result, pc)
		}
	}
	return result, nil
}

// UpsertProvider creates or updates a provider config row. An explicit
// ON CONFLICT upsert: Save would route global rows (empty OrgID, a zero
// primary key column) to a plain insert and fail on the second write.
func (r *PromptRepository) UpsertProvider(ctx context.Context, pc *domain.ProviderConfig) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(pc).Error
}
