package escrow

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/innocapforge/forge-backend/internal/projects"
	"github.com/innocapforge/forge-backend/pkg/auth"
	"github.com/innocapforge/forge-backend/pkg/db"
	"github.com/innocapforge/forge-backend/pkg/db/dbtest"
	"github.com/innocapforge/forge-backend/pkg/db/models"
	"github.com/innocapforge/forge-backend/pkg/enums"
	pkgerrors "github.com/innocapforge/forge-backend/pkg/errors"
	"github.com/innocapforge/forge-backend/pkg/outbox"
	"github.com/innocapforge/forge-backend/pkg/pagination"
)

type fixture struct {
	conn    *gorm.DB
	svc     Service
	owner   *models.User
	admin   auth.Actor
	project *models.Project
	ms      []models.Milestone
}

func newFixture(t *testing.T, repo Repository) fixture {
	t.Helper()
	conn := dbtest.Open(t)
	if repo == nil {
		repo = NewRepository(conn)
	} else if b, ok := repo.(blindRepo); ok {
		b.Repository = NewRepository(conn)
		repo = b
	}
	svc, err := NewService(ServiceParams{
		Repo:     repo,
		Projects: projects.NewRepository(conn),
		DB:       db.FromGorm(conn),
		Emitter:  outbox.NewService(outbox.NewRepository(conn), nil),
	})
	require.NoError(t, err)
	owner := dbtest.SeedUser(t, conn, enums.UserRoleInnovator)
	admin := dbtest.SeedUser(t, conn, enums.UserRoleAdmin)
	project, ms := dbtest.SeedProject(t, conn, owner.ID, enums.ProjectStatusActive, "1000", 40, 60)
	return fixture{
		conn:    conn,
		svc:     svc,
		owner:   owner,
		admin:   auth.Actor{UserID: admin.ID, Role: admin.Role},
		project: project,
		ms:      ms,
	}
}

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func (f fixture) count(t *testing.T, model any, where string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.conn.Model(model).Where(where, args...).Count(&n).Error)
	return n
}

func TestReleaseWritesLedgerOnce(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	m := f.ms[0]
	dbtest.SetMilestoneStatus(t, f.conn, m.ID, enums.MilestoneStatusApproved)

	inv := models.Investment{ProjectID: f.project.ID, InvestorID: uuid.New(), Amount: dec("100")}
	require.NoError(t, f.conn.Create(&inv).Error)
	require.NoError(t, f.conn.Create(&models.DisbursementPhase{InvestmentID: inv.ID, MilestoneID: m.ID, Amount: dec("40")}).Error)
	require.NoError(t, f.conn.Create(&models.DisbursementPhase{InvestmentID: inv.ID, MilestoneID: f.ms[1].ID, Amount: dec("60")}).Error)

	res, err := f.svc.Release(ctx, f.admin, m.ID, ReleaseRequest{Note: " first tranche "})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.True(t, dec("400").Equal(res.Transaction.Amount))
	assert.True(t, dec("400").Equal(res.CurrentFunding))
	require.NotNil(t, res.Transaction.Note)
	assert.Equal(t, "first tranche", *res.Transaction.Note)

	again, err := f.svc.Release(ctx, f.admin, m.ID, ReleaseRequest{Amount: ptr(dec("10"))})
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Equal(t, res.Transaction.ID, again.Transaction.ID)

	assert.EqualValues(t, 1, f.count(t, &models.EscrowTransaction{}, "milestone_id = ?", m.ID))
	assert.EqualValues(t, 1, f.count(t, &models.OutboxEvent{}, "event_type = ?", enums.EventFundsReleased))
	assert.EqualValues(t, 1, f.count(t, &models.WalletTransaction{}, "user_id = ? AND direction = ?", f.owner.ID, enums.WalletCredit))
	assert.EqualValues(t, 1, f.count(t, &models.DisbursementPhase{}, "released = ?", true))

	var project models.Project
	require.NoError(t, f.conn.First(&project, "id = ?", f.project.ID).Error)
	assert.True(t, dec("400").Equal(project.CurrentFunding))
}

func TestReleaseRequiresApprovedMilestone(t *testing.T) {
	f := newFixture(t, nil)
	dbtest.SetMilestoneStatus(t, f.conn, f.ms[0].ID, enums.MilestoneStatusAwaitingVerification)

	_, err := f.svc.Release(context.Background(), f.admin, f.ms[0].ID, ReleaseRequest{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	_, err = f.svc.Release(context.Background(), f.admin, uuid.New(), ReleaseRequest{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.Release(context.Background(), auth.Actor{UserID: f.owner.ID, Role: f.owner.Role}, f.ms[0].ID, ReleaseRequest{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestReleaseRefusesToExceedGoal(t *testing.T) {
	f := newFixture(t, nil)
	dbtest.SetMilestoneStatus(t, f.conn, f.ms[1].ID, enums.MilestoneStatusApproved)
	require.NoError(t, f.conn.Model(&models.Project{}).Where("id = ?", f.project.ID).Update("current_funding", dec("500")).Error)

	_, err := f.svc.Release(context.Background(), f.admin, f.ms[1].ID, ReleaseRequest{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	assert.EqualValues(t, 0, f.count(t, &models.EscrowTransaction{}, "milestone_id = ?", f.ms[1].ID))

	_, err = f.svc.Release(context.Background(), f.admin, f.ms[1].ID, ReleaseRequest{Amount: ptr(dec("0"))})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	res, err := f.svc.Release(context.Background(), f.admin, f.ms[1].ID, ReleaseRequest{Amount: ptr(dec("500"))})
	require.NoError(t, err)
	assert.True(t, dec("1000").Equal(res.CurrentFunding))
}

// blindRepo hides existing payments inside the transaction, as a concurrent
// release that committed after our read would.
type blindRepo struct {
	Repository
}

func (b blindRepo) WithTx(tx *gorm.DB) Repository {
	return blindTx{Repository: b.Repository.WithTx(tx)}
}

type blindTx struct {
	Repository
}

func (blindTx) FindPaymentByMilestone(context.Context, uuid.UUID) (*models.EscrowTransaction, error) {
	return nil, nil
}

func TestReleaseLosingUniqueIndexReturnsWinner(t *testing.T) {
	f := newFixture(t, blindRepo{})
	m := f.ms[0]
	dbtest.SetMilestoneStatus(t, f.conn, m.ID, enums.MilestoneStatusApproved)
	winner := models.EscrowTransaction{
		ProjectID:   f.project.ID,
		MilestoneID: m.ID,
		Amount:      dec("400"),
		Type:        enums.EscrowTypeMilestonePayment,
		Status:      enums.EscrowStatusCompleted,
		ReleasedBy:  f.admin.UserID,
		ReleasedAt:  time.Now().UTC(),
	}
	require.NoError(t, f.conn.Create(&winner).Error)

	res, err := f.svc.Release(context.Background(), f.admin, m.ID, ReleaseRequest{})
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, winner.ID, res.Transaction.ID)
	assert.EqualValues(t, 0, f.count(t, &models.OutboxEvent{}, "event_type = ?", enums.EventFundsReleased))
	assert.EqualValues(t, 0, f.count(t, &models.WalletTransaction{}, "1 = 1"))
}

func TestListWalletPaginates(t *testing.T) {
	f := newFixture(t, nil)
	for _, m := range f.ms {
		dbtest.SetMilestoneStatus(t, f.conn, m.ID, enums.MilestoneStatusApproved)
		_, err := f.svc.Release(context.Background(), f.admin, m.ID, ReleaseRequest{})
		require.NoError(t, err)
	}
	owner := auth.Actor{UserID: f.owner.ID, Role: f.owner.Role}

	first, err := f.svc.ListWallet(context.Background(), owner, pagination.Params{Limit: 1})
	require.NoError(t, err)
	require.Len(t, first.Items, 1)
	require.NotEmpty(t, first.NextCursor)

	second, err := f.svc.ListWallet(context.Background(), owner, pagination.Params{Limit: 1, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Empty(t, second.NextCursor)
	assert.NotEqual(t, first.Items[0].ID, second.Items[0].ID)

	txs, err := f.svc.ListByProject(context.Background(), owner, f.project.ID)
	require.NoError(t, err)
	assert.Len(t, txs, 2)
}

func ptr[T any](v T) *T { return &v }
