package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/innocapforge/forge-backend/internal/auth"
	"github.com/innocapforge/forge-backend/internal/rules"
	"github.com/innocapforge/forge-backend/internal/users"
	pkgauth "github.com/innocapforge/forge-backend/pkg/auth"
	"github.com/innocapforge/forge-backend/pkg/db/models"
	"github.com/innocapforge/forge-backend/pkg/enums"
	"github.com/innocapforge/forge-backend/pkg/outbox"
)

type fakeRules struct {
	rules.Service
	validateErr error
	created     []rules.RuleRequest
	actor       pkgauth.Actor
	summary     *rules.RunSummary
	runErr      error
}

func (f *fakeRules) Validate(ctx context.Context, projectID uuid.UUID, req rules.RuleRequest) error {
	return f.validateErr
}

func (f *fakeRules) Create(ctx context.Context, actor pkgauth.Actor, projectID uuid.UUID, req rules.RuleRequest) (*rules.RuleDTO, error) {
	f.actor = actor
	f.created = append(f.created, req)
	return &rules.RuleDTO{ID: uuid.New(), ProjectID: projectID, Name: req.Name}, nil
}

func (f *fakeRules) RunActive(ctx context.Context) (*rules.RunSummary, error) {
	return f.summary, f.runErr
}

type fakeRegister struct {
	auth.RegisterService
	got auth.AdminRegisterRequest
}

func (f *fakeRegister) RegisterAdmin(ctx context.Context, req auth.AdminRegisterRequest) (*users.UserDTO, error) {
	f.got = req
	return &users.UserDTO{ID: uuid.New(), Email: req.Email, Role: enums.UserRoleAdmin}, nil
}

type fakeUsers map[uuid.UUID]models.User

func (f fakeUsers) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := f[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return &u, nil
}

type fakeDeadLetters struct {
	rows     []models.OutboxDLQ
	filter   outbox.DeadLetterFilter
	requeued []uuid.UUID
}

func (f *fakeDeadLetters) List(ctx context.Context, filter outbox.DeadLetterFilter) ([]models.OutboxDLQ, error) {
	f.filter = filter
	return f.rows, nil
}

func (f *fakeDeadLetters) Requeue(ctx context.Context, eventID uuid.UUID) error {
	if len(f.rows) == 0 {
		return outbox.ErrDeadLetterNotFound
	}
	f.requeued = append(f.requeued, eventID)
	return nil
}

func execute(t *testing.T, rt *runtime, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCmd(func(context.Context) (*runtime, error) { return rt, nil }, &out)
	cmd.SetArgs(args)
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.Execute()
	return out.String(), err
}

func writeDocument(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	body := `rules:
  - project_id: ` + uuid.NewString() + `
    name: Release phase one
    conditions:
      - type: milestone_completed
        milestone_id: ` + uuid.NewString() + `
    actions:
      - type: notify
        message: phase one done
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestRulesValidate(t *testing.T) {
	path := writeDocument(t)

	out, err := execute(t, &runtime{Rules: &fakeRules{}}, "rules", "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "1 rule(s) valid")

	_, err = execute(t, &runtime{Rules: &fakeRules{validateErr: errors.New("milestone not in project")}}, "rules", "validate", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Release phase one")
}

func TestRulesImportRequiresAdmin(t *testing.T) {
	path := writeDocument(t)
	adminID, investorID := uuid.New(), uuid.New()
	directory := fakeUsers{
		adminID:    {ID: adminID, Role: enums.UserRoleAdmin},
		investorID: {ID: investorID, Role: enums.UserRoleInvestor},
	}

	svc := &fakeRules{}
	out, err := execute(t, &runtime{Rules: svc, Users: directory}, "rules", "import", path, "--as", adminID.String())
	require.NoError(t, err)
	require.Len(t, svc.created, 1)
	assert.Equal(t, adminID, svc.actor.UserID)
	assert.Contains(t, out, "Release phase one")

	rejected := &fakeRules{}
	_, err = execute(t, &runtime{Rules: rejected, Users: directory}, "rules", "import", path, "--as", investorID.String())
	require.Error(t, err)
	assert.Empty(t, rejected.created)
}

func TestRulesRunPrintsSummaryOnPartialFailure(t *testing.T) {
	svc := &fakeRules{
		summary: &rules.RunSummary{Evaluated: 3, Triggered: 1, Failed: 1},
		runErr:  errors.New("rule x: escrow unavailable"),
	}
	out, err := execute(t, &runtime{Rules: svc}, "rules", "run")
	require.Error(t, err)
	assert.Contains(t, out, `"evaluated": 3`)
	assert.Contains(t, out, `"failed": 1`)
}

func TestCreateAdminReadsPasswordFromEnv(t *testing.T) {
	t.Setenv(adminPasswordEnv, "correct-horse-battery")
	reg := &fakeRegister{}

	out, err := execute(t, &runtime{Register: reg}, "users", "create-admin", "--name", "Ops", "--email", "ops@innocapforge.io")
	require.NoError(t, err)
	assert.Equal(t, "correct-horse-battery", reg.got.Password)
	assert.Equal(t, "ops@innocapforge.io", reg.got.Email)
	assert.Contains(t, out, "created admin")
}

func TestOutboxDeadLettersListsWithFilter(t *testing.T) {
	msg := "publish timeout"
	eventID := uuid.New()
	dlq := &fakeDeadLetters{rows: []models.OutboxDLQ{{
		EventID:      eventID,
		EventType:    enums.EventFundsReleased,
		ErrorReason:  enums.OutboxDLQReasonMaxAttempts,
		ErrorMessage: &msg,
		AttemptCount: 10,
		FailedAt:     time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	}}}

	out, err := execute(t, &runtime{DeadLetters: dlq}, "outbox", "dead-letters", "--type", "funds_released", "--limit", "5")
	require.NoError(t, err)
	assert.Equal(t, enums.EventFundsReleased, dlq.filter.EventType)
	assert.Equal(t, 5, dlq.filter.Limit)
	assert.Contains(t, out, eventID.String())
	assert.Contains(t, out, "publish timeout")
	assert.Contains(t, out, "2026-03-01T08:00:00Z")

	_, err = execute(t, &runtime{DeadLetters: dlq}, "outbox", "dead-letters", "--reason", "bored")
	require.Error(t, err)
}

func TestOutboxRequeue(t *testing.T) {
	eventID := uuid.New()
	dlq := &fakeDeadLetters{rows: []models.OutboxDLQ{{EventID: eventID}}}

	out, err := execute(t, &runtime{DeadLetters: dlq}, "outbox", "requeue", eventID.String())
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{eventID}, dlq.requeued)
	assert.Contains(t, out, "requeued "+eventID.String())

	_, err = execute(t, &runtime{DeadLetters: &fakeDeadLetters{}}, "outbox", "requeue", uuid.NewString())
	assert.ErrorIs(t, err, outbox.ErrDeadLetterNotFound)

	_, err = execute(t, &runtime{DeadLetters: dlq}, "outbox", "requeue", "nope")
	require.Error(t, err)
}
