package rules

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/innocapforge/forge-backend/pkg/db/models"
)

// Repository persists release rules and reads the project state they are
// evaluated against.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, rule *models.ReleaseRule) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.ReleaseRule, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.ReleaseRule, error)
	ListActive(ctx context.Context) ([]models.ReleaseRule, error)
	Updates(ctx context.Context, id uuid.UUID, fields map[string]any) error
	Delete(ctx context.Context, id uuid.UUID) error
	MarkEvaluated(ctx context.Context, id uuid.UUID, at time.Time) error
	Trigger(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)

	FindProject(ctx context.Context, id uuid.UUID) (*models.Project, error)
	ListMilestones(ctx context.Context, projectID uuid.UUID) ([]models.Milestone, error)
	CountVerifications(ctx context.Context, milestoneIDs []uuid.UUID) (map[uuid.UUID]int64, error)
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

func (r *repository) Create(ctx context.Context, rule *models.ReleaseRule) error {
	return r.db.WithContext(ctx).Create(rule).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.ReleaseRule, error) {
	var rule models.ReleaseRule
	if err := r.db.WithContext(ctx).First(&rule, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *repository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.ReleaseRule, error) {
	var rows []models.ReleaseRule
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListActive(ctx context.Context) ([]models.ReleaseRule, error) {
	var rows []models.ReleaseRule
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) Updates(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	res := r.db.WithContext(ctx).Model(&models.ReleaseRule{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.ReleaseRule{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) MarkEvaluated(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.ReleaseRule{}).
		Where("id = ?", id).
		UpdateColumn("last_evaluated_at", at).Error
}

// Trigger deactivates an active rule and stamps triggered_at. It reports false
// when another runner already fired the rule.
func (r *repository) Trigger(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ReleaseRule{}).
		Where("id = ? AND active = ?", id, true).
		UpdateColumns(map[string]any{
			"active":            false,
			"triggered_at":      at,
			"last_evaluated_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) FindProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	var project models.Project
	if err := r.db.WithContext(ctx).First(&project, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *repository) ListMilestones(ctx context.Context, projectID uuid.UUID) ([]models.Milestone, error) {
	var rows []models.Milestone
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("position ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) CountVerifications(ctx context.Context, milestoneIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	counts := make(map[uuid.UUID]int64, len(milestoneIDs))
	if len(milestoneIDs) == 0 {
		return counts, nil
	}
	var rows []struct {
		MilestoneID uuid.UUID
		Total       int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.Verification{}).
		Select("milestone_id, COUNT(*) AS total").
		Where("milestone_id IN ?", milestoneIDs).
		Group("milestone_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.MilestoneID] = row.Total
	}
	return counts, nil
}
