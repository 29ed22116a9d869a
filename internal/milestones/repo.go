package milestones

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/innocapforge/forge-backend/pkg/db/models"
	"github.com/innocapforge/forge-backend/pkg/enums"
)

// Repository manages milestone persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, milestone *models.Milestone) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Milestone, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Milestone, error)
	Updates(ctx context.Context, id uuid.UUID, fields map[string]any) error
	// Transition applies fields only while the milestone is in one of the
	// expected statuses. It reports whether a row changed.
	Transition(ctx context.Context, id uuid.UUID, from []enums.MilestoneStatus, fields map[string]any) (bool, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, milestone *models.Milestone) error {
	return r.db.WithContext(ctx).Create(milestone).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Milestone, error) {
	var m models.Milestone
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *repository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Milestone, error) {
	var rows []models.Milestone
	if err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("position ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) Updates(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	res := r.db.WithContext(ctx).Model(&models.Milestone{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) Transition(ctx context.Context, id uuid.UUID, from []enums.MilestoneStatus, fields map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Milestone{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
