package verifications

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/innocapforge/forge-backend/pkg/auth"
	"github.com/innocapforge/forge-backend/pkg/db"
	"github.com/innocapforge/forge-backend/pkg/db/models"
	"github.com/innocapforge/forge-backend/pkg/enums"
	pkgerrors "github.com/innocapforge/forge-backend/pkg/errors"
)

const uniqueVerifierIndex = "ux_verifications_milestone_verifier"

// Service records investor attestations on submitted milestones.
type Service interface {
	Create(ctx context.Context, actor auth.Actor, milestoneID uuid.UUID, req CreateRequest) (*VerificationDTO, error)
	ListByMilestone(ctx context.Context, actor auth.Actor, milestoneID uuid.UUID) (*ListResult, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("verifications repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, actor auth.Actor, milestoneID uuid.UUID, req CreateRequest) (*VerificationDTO, error) {
	if !actor.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing actor")
	}
	if actor.Role != enums.UserRoleInvestor && !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only investors and admins can verify milestones")
	}
	for name, v := range map[string]*int{
		"completion":    req.Ratings.Completion,
		"documentation": req.Ratings.Documentation,
		"quality":       req.Ratings.Quality,
		"average":       req.Ratings.Average,
	} {
		if v != nil && (*v < 1 || *v > 5) {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "ratings.%s must be between 1 and 5", name)
		}
	}

	milestone, err := s.repo.FindMilestone(ctx, milestoneID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "milestone not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load milestone")
	}
	if milestone.Status != enums.MilestoneStatusAwaitingVerification && milestone.Status != enums.MilestoneStatusApproved {
		return nil, pkgerrors.Newf(pkgerrors.CodeStateConflict, "milestone in status %s cannot be verified", milestone.Status)
	}
	if !actor.IsAdmin() {
		invested, err := s.repo.HasInvestment(ctx, milestone.ProjectID, actor.UserID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check investment")
		}
		if !invested {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only investors in this project can verify its milestones")
		}
	}

	record := &models.Verification{
		MilestoneID:         milestone.ID,
		ProjectID:           milestone.ProjectID,
		VerifierID:          actor.UserID,
		VerifierRole:        actor.Role,
		RatingCompletion:    req.Ratings.Completion,
		RatingDocumentation: req.Ratings.Documentation,
		RatingQuality:       req.Ratings.Quality,
		RatingAverage:       req.Ratings.Average,
		CriteriaVerified:    cleanCriteria(req.CriteriaVerified),
		Comment:             trimOptional(req.Comment),
	}
	if err := s.repo.Create(ctx, record); err != nil {
		if db.IsUniqueViolation(err, uniqueVerifierIndex) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "milestone already verified by this user")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create verification")
	}
	dto := FromModel(record)
	return &dto, nil
}

func (s *service) ListByMilestone(ctx context.Context, actor auth.Actor, milestoneID uuid.UUID) (*ListResult, error) {
	if !actor.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing actor")
	}
	milestone, err := s.repo.FindMilestone(ctx, milestoneID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "milestone not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load milestone")
	}
	project, err := s.repo.FindProject(ctx, milestone.ProjectID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load project")
	}
	public := project.Status == enums.ProjectStatusActive || project.Status == enums.ProjectStatusCompleted
	if !public && !actor.IsAdmin() && project.OwnerID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "milestone not found")
	}

	rows, err := s.repo.ListByMilestone(ctx, milestoneID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list verifications")
	}
	items := make([]VerificationDTO, 0, len(rows))
	for i := range rows {
		items = append(items, FromModel(&rows[i]))
	}
	return &ListResult{Items: items, Aggregate: Aggregate(rows)}, nil
}

func cleanCriteria(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func trimOptional(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
