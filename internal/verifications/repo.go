package verifications

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/innocapforge/forge-backend/pkg/db/models"
)

// Repository persists verifications and reads the milestone context they need.
type Repository interface {
	Create(ctx context.Context, v *models.Verification) error
	ListByMilestone(ctx context.Context, milestoneID uuid.UUID) ([]models.Verification, error)
	CountByMilestone(ctx context.Context, milestoneID uuid.UUID) (int64, error)
	FindMilestone(ctx context.Context, id uuid.UUID) (*models.Milestone, error)
	FindProject(ctx context.Context, id uuid.UUID) (*models.Project, error)
	HasInvestment(ctx context.Context, projectID, investorID uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, v *models.Verification) error {
	return r.db.WithContext(ctx).Create(v).Error
}

func (r *repository) ListByMilestone(ctx context.Context, milestoneID uuid.UUID) ([]models.Verification, error) {
	var rows []models.Verification
	if err := r.db.WithContext(ctx).
		Where("milestone_id = ?", milestoneID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) CountByMilestone(ctx context.Context, milestoneID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Verification{}).Where("milestone_id = ?", milestoneID).Count(&n).Error
	return n, err
}

func (r *repository) FindMilestone(ctx context.Context, id uuid.UUID) (*models.Milestone, error) {
	var m models.Milestone
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *repository) FindProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	var p models.Project
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repository) HasInvestment(ctx context.Context, projectID, investorID uuid.UUID) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Investment{}).
		Where("project_id = ? AND investor_id = ?", projectID, investorID).
		Limit(1).
		Count(&n).Error
	return n > 0, err
}
