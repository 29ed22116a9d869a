package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/innocapforge/forge-backend/internal/escrow"
	"github.com/innocapforge/forge-backend/internal/milestones"
	"github.com/innocapforge/forge-backend/internal/projects"
	"github.com/innocapforge/forge-backend/internal/rules"
	"github.com/innocapforge/forge-backend/pkg/auth"
	"github.com/innocapforge/forge-backend/pkg/enums"
	pkgerrors "github.com/innocapforge/forge-backend/pkg/errors"
)

type fakeMilestones struct {
	milestones.Service
	decideFn func(ctx context.Context, actor auth.Actor, milestoneID uuid.UUID, req milestones.DecisionRequest) (*milestones.DecisionResult, error)
	submitFn func(ctx context.Context, actor auth.Actor, projectID, milestoneID uuid.UUID, req milestones.SubmitRequest) (*projects.MilestoneDTO, error)
}

func (f *fakeMilestones) Decide(ctx context.Context, actor auth.Actor, milestoneID uuid.UUID, req milestones.DecisionRequest) (*milestones.DecisionResult, error) {
	return f.decideFn(ctx, actor, milestoneID, req)
}

func (f *fakeMilestones) Submit(ctx context.Context, actor auth.Actor, projectID, milestoneID uuid.UUID, req milestones.SubmitRequest) (*projects.MilestoneDTO, error) {
	return f.submitFn(ctx, actor, projectID, milestoneID, req)
}

type fakeEscrow struct {
	escrow.Service
	releaseFn func(ctx context.Context, actor auth.Actor, milestoneID uuid.UUID, req escrow.ReleaseRequest) (*escrow.ReleaseResult, error)
}

func (f *fakeEscrow) Release(ctx context.Context, actor auth.Actor, milestoneID uuid.UUID, req escrow.ReleaseRequest) (*escrow.ReleaseResult, error) {
	return f.releaseFn(ctx, actor, milestoneID, req)
}

type fakeRules struct {
	rules.Service
	setActiveFn func(ctx context.Context, actor auth.Actor, id uuid.UUID, active bool) (*rules.RuleDTO, error)
	runFn       func(ctx context.Context) (*rules.RunSummary, error)
}

func (f *fakeRules) SetActive(ctx context.Context, actor auth.Actor, id uuid.UUID, active bool) (*rules.RuleDTO, error) {
	return f.setActiveFn(ctx, actor, id, active)
}

func (f *fakeRules) RunActive(ctx context.Context) (*rules.RunSummary, error) {
	return f.runFn(ctx)
}

func TestAdminDecideMilestonePassesDecision(t *testing.T) {
	admin := newActor(enums.UserRoleAdmin)
	milestoneID := uuid.New()
	svc := &fakeMilestones{
		decideFn: func(ctx context.Context, actor auth.Actor, id uuid.UUID, req milestones.DecisionRequest) (*milestones.DecisionResult, error) {
			assert.Equal(t, admin, actor)
			assert.Equal(t, milestoneID, id)
			assert.Equal(t, enums.ReviewDecisionApprove, req.Decision)
			return &milestones.DecisionResult{
				Milestone:       projects.MilestoneDTO{ID: id, Status: enums.MilestoneStatusApproved},
				ProjectProgress: 50,
				ProjectStatus:   enums.ProjectStatusActive,
				Changed:         true,
			}, nil
		},
	}

	req := newRequest(http.MethodPost, "/", `{"decision":"approve"}`, &admin, "milestoneId", milestoneID.String())
	resp := httptest.NewRecorder()
	AdminDecideMilestone(svc, testLogger())(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	var envelope struct {
		Data milestones.DecisionResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	assert.Equal(t, float64(50), envelope.Data.ProjectProgress)
	assert.Equal(t, enums.MilestoneStatusApproved, envelope.Data.Milestone.Status)
}

func TestAdminDecideMilestoneStateConflict(t *testing.T) {
	admin := newActor(enums.UserRoleAdmin)
	svc := &fakeMilestones{
		decideFn: func(context.Context, auth.Actor, uuid.UUID, milestones.DecisionRequest) (*milestones.DecisionResult, error) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "milestone is not awaiting verification")
		},
	}

	req := newRequest(http.MethodPost, "/", `{"decision":"approve"}`, &admin, "milestoneId", uuid.NewString())
	resp := httptest.NewRecorder()
	AdminDecideMilestone(svc, testLogger())(resp, req)

	require.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	assert.Equal(t, string(pkgerrors.CodeStateConflict), decodeError(t, resp).Code)
}

func TestAdminDecideMilestoneRejectsUnknownFields(t *testing.T) {
	admin := newActor(enums.UserRoleAdmin)
	svc := &fakeMilestones{}

	req := newRequest(http.MethodPost, "/", `{"decision":"approve","extra":1}`, &admin, "milestoneId", uuid.NewString())
	resp := httptest.NewRecorder()
	AdminDecideMilestone(svc, testLogger())(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestSubmitMilestoneReadsBothPathIDs(t *testing.T) {
	owner := newActor(enums.UserRoleInnovator)
	projectID, milestoneID := uuid.New(), uuid.New()
	svc := &fakeMilestones{
		submitFn: func(ctx context.Context, actor auth.Actor, pid, mid uuid.UUID, req milestones.SubmitRequest) (*projects.MilestoneDTO, error) {
			assert.Equal(t, projectID, pid)
			assert.Equal(t, milestoneID, mid)
			assert.Equal(t, "done", req.CompletionDetails)
			return &projects.MilestoneDTO{ID: mid, Status: enums.MilestoneStatusAwaitingVerification}, nil
		},
	}

	req := newRequest(http.MethodPost, "/", `{"completion_details":"done"}`, &owner,
		"projectId", projectID.String(), "milestoneId", milestoneID.String())
	resp := httptest.NewRecorder()
	SubmitMilestone(svc, testLogger())(resp, req)
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestAdminReleaseFunds(t *testing.T) {
	admin := newActor(enums.UserRoleAdmin)
	milestoneID := uuid.New()
	amount := decimal.RequireFromString("250.00")
	svc := &fakeEscrow{
		releaseFn: func(ctx context.Context, actor auth.Actor, id uuid.UUID, req escrow.ReleaseRequest) (*escrow.ReleaseResult, error) {
			require.NotNil(t, req.Amount)
			assert.True(t, amount.Equal(*req.Amount))
			return &escrow.ReleaseResult{Created: true, CurrentFunding: amount}, nil
		},
	}

	req := newRequest(http.MethodPost, "/", `{"amount":"250.00","note":"phase one"}`, &admin, "milestoneId", milestoneID.String())
	resp := httptest.NewRecorder()
	AdminReleaseFunds(svc, testLogger())(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)

	var envelope struct {
		Data escrow.ReleaseResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	assert.True(t, envelope.Data.Created)
}

func TestAdminReleaseFundsAcceptsEmptyBody(t *testing.T) {
	admin := newActor(enums.UserRoleAdmin)
	calls := 0
	svc := &fakeEscrow{
		releaseFn: func(ctx context.Context, actor auth.Actor, id uuid.UUID, req escrow.ReleaseRequest) (*escrow.ReleaseResult, error) {
			calls++
			assert.Equal(t, escrow.ReleaseRequest{}, req)
			return &escrow.ReleaseResult{Created: true}, nil
		},
	}

	for _, body := range []string{"", "  \n"} {
		req := newRequest(http.MethodPost, "/", body, &admin, "milestoneId", uuid.NewString())
		resp := httptest.NewRecorder()
		AdminReleaseFunds(svc, testLogger())(resp, req)
		assert.Equal(t, http.StatusOK, resp.Code, "body %q", body)
	}
	assert.Equal(t, 2, calls)

	req := newRequest(http.MethodPost, "/", `{"note":"x","extra":true}`, &admin, "milestoneId", uuid.NewString())
	resp := httptest.NewRecorder()
	AdminReleaseFunds(svc, testLogger())(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, 2, calls)
}

func TestAdminDecideMilestoneStillRequiresBody(t *testing.T) {
	admin := newActor(enums.UserRoleAdmin)
	req := newRequest(http.MethodPost, "/", "", &admin, "milestoneId", uuid.NewString())
	resp := httptest.NewRecorder()
	AdminDecideMilestone(&fakeMilestones{}, testLogger())(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestAdminToggleReleaseRuleRequiresActiveFlag(t *testing.T) {
	admin := newActor(enums.UserRoleAdmin)
	svc := &fakeRules{}

	req := newRequest(http.MethodPatch, "/", `{}`, &admin, "ruleId", uuid.NewString())
	resp := httptest.NewRecorder()
	AdminToggleReleaseRule(svc, testLogger())(resp, req)

	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, string(pkgerrors.CodeValidation), decodeError(t, resp).Code)
}

func TestAdminToggleReleaseRule(t *testing.T) {
	admin := newActor(enums.UserRoleAdmin)
	ruleID := uuid.New()
	svc := &fakeRules{
		setActiveFn: func(ctx context.Context, actor auth.Actor, id uuid.UUID, active bool) (*rules.RuleDTO, error) {
			assert.Equal(t, ruleID, id)
			assert.False(t, active)
			return &rules.RuleDTO{ID: id, Active: false}, nil
		},
	}

	req := newRequest(http.MethodPatch, "/", `{"active":false}`, &admin, "ruleId", ruleID.String())
	resp := httptest.NewRecorder()
	AdminToggleReleaseRule(svc, testLogger())(resp, req)
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestAdminRunReleaseRulesReportsPartialFailure(t *testing.T) {
	admin := newActor(enums.UserRoleAdmin)
	svc := &fakeRules{
		runFn: func(context.Context) (*rules.RunSummary, error) {
			return &rules.RunSummary{Evaluated: 2, Triggered: 1, Failed: 1, Fired: []uuid.UUID{uuid.New()}}, errors.New("rule x: boom")
		},
	}

	req := newRequest(http.MethodPost, "/", "", &admin)
	resp := httptest.NewRecorder()
	AdminRunReleaseRules(svc, testLogger())(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	var envelope struct {
		Data rules.RunSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	assert.Equal(t, 1, envelope.Data.Failed)
	assert.Equal(t, 1, envelope.Data.Triggered)
}
