package projects

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/innocapforge/forge-backend/pkg/auth"
	"github.com/innocapforge/forge-backend/pkg/db"
	"github.com/innocapforge/forge-backend/pkg/db/dbtest"
	"github.com/innocapforge/forge-backend/pkg/db/models"
	"github.com/innocapforge/forge-backend/pkg/enums"
	pkgerrors "github.com/innocapforge/forge-backend/pkg/errors"
	"github.com/innocapforge/forge-backend/pkg/outbox"
)

type fixture struct {
	conn *gorm.DB
	svc  Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	conn := dbtest.Open(t)
	svc, err := NewService(NewRepository(conn), db.FromGorm(conn), outbox.NewService(outbox.NewRepository(conn), nil), nil)
	require.NoError(t, err)
	return fixture{conn: conn, svc: svc}
}

func actorFor(u *models.User) auth.Actor {
	return auth.Actor{UserID: u.ID, Role: u.Role}
}

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func validRequest() CreateProjectRequest {
	due := time.Now().UTC().Add(24 * time.Hour)
	return CreateProjectRequest{
		Title:       " Clean water ",
		Description: "Wells for three villages",
		FundingGoal: dec("10000"),
		SDGs:        []string{"6", " 6 ", "3"},
		Milestones: []MilestoneInput{
			{Title: "Survey", DueDate: due, CompletionPercentage: 33.33, EstimatedFunding: dec("3000")},
			{Title: "Drill", DueDate: due.Add(24 * time.Hour), CompletionPercentage: 33.33, EstimatedFunding: dec("4000")},
			{Title: "Handover", DueDate: due.Add(48 * time.Hour), CompletionPercentage: 33.34, EstimatedFunding: dec("3000")},
		},
	}
}

func countEvents(t *testing.T, conn *gorm.DB, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&n).Error)
	return n
}

func TestCreateProjectPersistsPlanAndEmits(t *testing.T) {
	f := newFixture(t)
	owner := dbtest.SeedUser(t, f.conn, enums.UserRoleInnovator)

	dto, err := f.svc.Create(context.Background(), actorFor(owner), validRequest())
	require.NoError(t, err)
	assert.Equal(t, "Clean water", dto.Title)
	assert.Equal(t, enums.ProjectStatusPendingApproval, dto.Status)
	assert.Equal(t, []string{"6", "3"}, dto.SDGs)
	require.Len(t, dto.Milestones, 3)
	assert.Equal(t, 1, dto.Milestones[0].Position)
	assert.Equal(t, enums.MilestoneStatusPending, dto.Milestones[2].Status)
	assert.EqualValues(t, 1, countEvents(t, f.conn, enums.EventProjectCreated))
}

func TestCreateProjectValidatesPlan(t *testing.T) {
	f := newFixture(t)
	owner := dbtest.SeedUser(t, f.conn, enums.UserRoleInnovator)
	investor := dbtest.SeedUser(t, f.conn, enums.UserRoleInvestor)

	_, err := f.svc.Create(context.Background(), actorFor(investor), validRequest())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	req := validRequest()
	req.Milestones[2].CompletionPercentage = 30
	_, err = f.svc.Create(context.Background(), actorFor(owner), req)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	req = validRequest()
	req.Milestones[1].DueDate = req.Milestones[0].DueDate.Add(-time.Hour)
	_, err = f.svc.Create(context.Background(), actorFor(owner), req)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	req = validRequest()
	req.Milestones[1].EstimatedFunding = dec("4000.01")
	_, err = f.svc.Create(context.Background(), actorFor(owner), req)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	req = validRequest()
	req.Milestones = nil
	_, err = f.svc.Create(context.Background(), actorFor(owner), req)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	var n int64
	require.NoError(t, f.conn.Model(&models.Project{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestGetHidesPendingProjectsFromOthers(t *testing.T) {
	f := newFixture(t)
	owner := dbtest.SeedUser(t, f.conn, enums.UserRoleInnovator)
	other := dbtest.SeedUser(t, f.conn, enums.UserRoleInvestor)
	admin := dbtest.SeedUser(t, f.conn, enums.UserRoleAdmin)
	project, _ := dbtest.SeedProject(t, f.conn, owner.ID, enums.ProjectStatusPendingApproval, "1000", 50, 50)

	_, err := f.svc.Get(context.Background(), actorFor(other), project.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	dto, err := f.svc.Get(context.Background(), actorFor(owner), project.ID)
	require.NoError(t, err)
	assert.Len(t, dto.Milestones, 2)

	_, err = f.svc.Get(context.Background(), actorFor(admin), project.ID)
	require.NoError(t, err)
}

func TestListPaginatesVisibleProjects(t *testing.T) {
	f := newFixture(t)
	owner := dbtest.SeedUser(t, f.conn, enums.UserRoleInnovator)
	viewer := dbtest.SeedUser(t, f.conn, enums.UserRoleInvestor)
	for i := 0; i < 3; i++ {
		dbtest.SeedProject(t, f.conn, owner.ID, enums.ProjectStatusActive, "1000", 100)
	}
	dbtest.SeedProject(t, f.conn, owner.ID, enums.ProjectStatusPendingApproval, "1000", 100)

	first, err := f.svc.List(context.Background(), actorFor(viewer), ListParams{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	require.NotEmpty(t, first.NextCursor)

	second, err := f.svc.List(context.Background(), actorFor(viewer), ListParams{Limit: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Empty(t, second.NextCursor)

	seen := map[uuid.UUID]bool{}
	for _, p := range append(first.Items, second.Items...) {
		assert.False(t, seen[p.ID], "duplicate across pages")
		seen[p.ID] = true
		assert.Equal(t, enums.ProjectStatusActive, p.Status)
	}

	mine, err := f.svc.List(context.Background(), actorFor(owner), ListParams{})
	require.NoError(t, err)
	assert.Len(t, mine.Items, 4)
}

func TestReviewApproveIsIdempotentAndRejectNeedsReason(t *testing.T) {
	f := newFixture(t)
	owner := dbtest.SeedUser(t, f.conn, enums.UserRoleInnovator)
	admin := dbtest.SeedUser(t, f.conn, enums.UserRoleAdmin)
	project, _ := dbtest.SeedProject(t, f.conn, owner.ID, enums.ProjectStatusPendingApproval, "1000", 100)
	ctx := context.Background()

	_, err := f.svc.Review(ctx, actorFor(owner), project.ID, ReviewRequest{Decision: enums.ReviewDecisionApprove})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	_, err = f.svc.Review(ctx, actorFor(admin), project.ID, ReviewRequest{Decision: enums.ReviewDecisionReject, Reason: "   "})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	dto, err := f.svc.Review(ctx, actorFor(admin), project.ID, ReviewRequest{Decision: enums.ReviewDecisionApprove})
	require.NoError(t, err)
	assert.Equal(t, enums.ProjectStatusActive, dto.Status)
	require.NotNil(t, dto.ReviewedBy)
	assert.Equal(t, admin.ID, *dto.ReviewedBy)

	again, err := f.svc.Review(ctx, actorFor(admin), project.ID, ReviewRequest{Decision: enums.ReviewDecisionApprove})
	require.NoError(t, err)
	assert.Equal(t, enums.ProjectStatusActive, again.Status)
	assert.EqualValues(t, 1, countEvents(t, f.conn, enums.EventProjectReviewed))

	_, err = f.svc.Review(ctx, actorFor(admin), project.ID, ReviewRequest{Decision: enums.ReviewDecisionReject, Reason: "late"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestUpdateGuardsFundingGoal(t *testing.T) {
	f := newFixture(t)
	owner := dbtest.SeedUser(t, f.conn, enums.UserRoleInnovator)
	other := dbtest.SeedUser(t, f.conn, enums.UserRoleInnovator)
	project, _ := dbtest.SeedProject(t, f.conn, owner.ID, enums.ProjectStatusActive, "1000", 50, 50)
	require.NoError(t, f.conn.Model(&models.Project{}).Where("id = ?", project.ID).
		Update("pledged_funding", dec("600")).Error)
	ctx := context.Background()

	title := "Renamed"
	_, err := f.svc.Update(ctx, actorFor(other), project.ID, UpdateProjectRequest{Title: &title})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	low := dec("500")
	_, err = f.svc.Update(ctx, actorFor(owner), project.ID, UpdateProjectRequest{FundingGoal: &low})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	belowEstimates := dec("900")
	_, err = f.svc.Update(ctx, actorFor(owner), project.ID, UpdateProjectRequest{FundingGoal: &belowEstimates})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	higher := dec("2500")
	dto, err := f.svc.Update(ctx, actorFor(owner), project.ID, UpdateProjectRequest{Title: &title, FundingGoal: &higher})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", dto.Title)
	assert.True(t, higher.Equal(dto.FundingGoal))

	var stored models.Project
	require.NoError(t, f.conn.First(&stored, "id = ?", project.ID).Error)
	assert.True(t, higher.Equal(stored.FundingGoal))
}

func TestUpdateRejectsClosedProjects(t *testing.T) {
	f := newFixture(t)
	owner := dbtest.SeedUser(t, f.conn, enums.UserRoleInnovator)
	project, _ := dbtest.SeedProject(t, f.conn, owner.ID, enums.ProjectStatusCompleted, "1000", 100)

	title := "Nope"
	_, err := f.svc.Update(context.Background(), actorFor(owner), project.ID, UpdateProjectRequest{Title: &title})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestSummaryAggregatesFundingAndRatings(t *testing.T) {
	f := newFixture(t)
	owner := dbtest.SeedUser(t, f.conn, enums.UserRoleInnovator)
	admin := dbtest.SeedUser(t, f.conn, enums.UserRoleAdmin)
	project, milestones := dbtest.SeedProject(t, f.conn, owner.ID, enums.ProjectStatusActive, "1000", 40, 60)
	dbtest.SetMilestoneStatus(t, f.conn, milestones[0].ID, enums.MilestoneStatusApproved)
	require.NoError(t, f.conn.Model(&models.Project{}).Where("id = ?", project.ID).
		Updates(map[string]any{"current_funding": dec("400"), "project_progress": 40.0}).Error)
	require.NoError(t, f.conn.Create(&models.EscrowTransaction{
		ProjectID:   project.ID,
		MilestoneID: milestones[0].ID,
		Amount:      dec("400"),
		Type:        enums.EscrowTypeMilestonePayment,
		Status:      enums.EscrowStatusCompleted,
		ReleasedBy:  admin.ID,
		ReleasedAt:  time.Now().UTC(),
	}).Error)
	five, three := 5, 3
	for _, r := range []*int{&five, &three} {
		require.NoError(t, f.conn.Create(&models.Verification{
			MilestoneID:      milestones[0].ID,
			ProjectID:        project.ID,
			VerifierID:       uuid.New(),
			VerifierRole:     enums.UserRoleInvestor,
			RatingCompletion: r,
		}).Error)
	}

	summary, err := f.svc.Summary(context.Background(), actorFor(owner), project.ID)
	require.NoError(t, err)
	assert.True(t, dec("400").Equal(summary.ReleasedTotal))
	assert.True(t, dec("600").Equal(summary.Remaining))
	assert.Equal(t, 1, summary.MilestoneCounts[enums.MilestoneStatusApproved])
	assert.Equal(t, 1, summary.MilestoneCounts[enums.MilestoneStatusPending])
	assert.Equal(t, 0, summary.MilestoneCounts[enums.MilestoneStatusRejected])
	require.Len(t, summary.Milestones, 2)
	assert.Equal(t, 4, summary.Milestones[0].Ratings.Completion)
	require.NotNil(t, summary.Milestones[0].Released)
	assert.Nil(t, summary.Milestones[1].Released)
}
