package repository

import (
	"context"

	"github.com/limelightai/limelight/internal/domain"
	"gorm.io/gorm"
)

// OrgRepository handles organization (tenant) reads consumed by fan-out and
// the coverage audit.
type OrgRepository struct {
	db *gorm.DB
}

// NewOrgRepository creates a new OrgRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *OrgRepository: repository instance bound to db.
func NewOrgRepository(db *gorm.DB) *OrgRepository {
	return &OrgRepository{db: db}
}

// Create inserts a new organization record.
func (r *OrgRepository) Create(ctx context.Context, org *domain.Organization) error {
	return r.db.WithContext(ctx).Create(org).Error
}

// GetByID retrieves an organization by its ID.
func (r *OrgRepository) GetByID(ctx context.Context, id string) (*domain.Organization, error) {
	var org domain.Organization
	if err := r.db.WithContext(ctx).First(&org, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &org, nil
}

// ListActive returns all active organizations ordered by ID for stable
// iteration.
func (r *OrgRepository) ListActive(ctx context.Context) ([]domain.Organization, error) {
	var orgs []domain.Organization
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("id ASC").
		Find(&orgs).Error
	return orgs, err
}
