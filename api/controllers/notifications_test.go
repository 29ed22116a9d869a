package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/innocapforge/forge-backend/internal/notifications"
	"github.com/innocapforge/forge-backend/pkg/enums"
	pkgerrors "github.com/innocapforge/forge-backend/pkg/errors"
)

type testNotificationsService struct {
	markReadFn    func(ctx context.Context, userID, notificationID uuid.UUID) error
	markAllReadFn func(ctx context.Context, userID uuid.UUID) (int64, error)
	listFn        func(ctx context.Context, params notifications.ListParams) (*notifications.ListResult, error)
}

func (s *testNotificationsService) List(ctx context.Context, params notifications.ListParams) (*notifications.ListResult, error) {
	if s.listFn != nil {
		return s.listFn(ctx, params)
	}
	return &notifications.ListResult{Items: []notifications.NotificationDTO{}}, nil
}

func (s *testNotificationsService) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	if s.markReadFn != nil {
		return s.markReadFn(ctx, userID, notificationID)
	}
	return nil
}

func (s *testNotificationsService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	if s.markAllReadFn != nil {
		return s.markAllReadFn(ctx, userID)
	}
	return 0, nil
}

func TestMarkNotificationReadSuccess(t *testing.T) {
	actor := newActor(enums.UserRoleInnovator)
	notificationID := uuid.New()
	called := false
	svc := &testNotificationsService{
		markReadFn: func(ctx context.Context, uid, nid uuid.UUID) error {
			called = true
			assert.Equal(t, actor.UserID, uid)
			assert.Equal(t, notificationID, nid)
			return nil
		},
	}

	req := newRequest(http.MethodPost, "/api/v1/notifications/"+notificationID.String()+"/read", "", &actor, "notificationId", notificationID.String())
	resp := httptest.NewRecorder()
	MarkNotificationRead(svc, testLogger())(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, called)
	var envelope struct {
		Data map[string]bool `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	assert.True(t, envelope.Data["read"])
}

func TestMarkNotificationReadRequiresActor(t *testing.T) {
	req := newRequest(http.MethodPost, "/api/v1/notifications/x/read", "", nil, "notificationId", uuid.NewString())
	resp := httptest.NewRecorder()
	MarkNotificationRead(&testNotificationsService{}, testLogger())(resp, req)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestMarkNotificationReadInvalidID(t *testing.T) {
	actor := newActor(enums.UserRoleInvestor)
	req := newRequest(http.MethodPost, "/api/v1/notifications/invalid/read", "", &actor, "notificationId", "invalid")
	resp := httptest.NewRecorder()
	MarkNotificationRead(&testNotificationsService{}, testLogger())(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestMarkNotificationReadNotFound(t *testing.T) {
	actor := newActor(enums.UserRoleInvestor)
	svc := &testNotificationsService{
		markReadFn: func(context.Context, uuid.UUID, uuid.UUID) error {
			return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
		},
	}
	req := newRequest(http.MethodPost, "/", "", &actor, "notificationId", uuid.NewString())
	resp := httptest.NewRecorder()
	MarkNotificationRead(svc, testLogger())(resp, req)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestMarkAllNotificationsReadSuccess(t *testing.T) {
	actor := newActor(enums.UserRoleInvestor)
	svc := &testNotificationsService{
		markAllReadFn: func(ctx context.Context, uid uuid.UUID) (int64, error) {
			assert.Equal(t, actor.UserID, uid)
			return 5, nil
		},
	}

	req := newRequest(http.MethodPost, "/api/v1/notifications/read-all", "", &actor)
	resp := httptest.NewRecorder()
	MarkAllNotificationsRead(svc, testLogger())(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	var envelope struct {
		Data map[string]float64 `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	assert.Equal(t, float64(5), envelope.Data["updated"])
}

func TestListNotificationsPassesFilters(t *testing.T) {
	actor := newActor(enums.UserRoleInnovator)
	var got notifications.ListParams
	svc := &testNotificationsService{
		listFn: func(ctx context.Context, params notifications.ListParams) (*notifications.ListResult, error) {
			got = params
			return &notifications.ListResult{Items: []notifications.NotificationDTO{}, NextCursor: "next"}, nil
		},
	}

	req := newRequest(http.MethodGet, "/api/v1/notifications?limit=10&unread_only=true&cursor=abc", "", &actor)
	resp := httptest.NewRecorder()
	ListNotifications(svc, testLogger())(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, actor.UserID, got.UserID)
	assert.Equal(t, 10, got.Limit)
	assert.Equal(t, "abc", got.Cursor)
	assert.True(t, got.UnreadOnly)

	var body map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "next", body["next_cursor"])
}

func TestListNotificationsRejectsBadLimit(t *testing.T) {
	actor := newActor(enums.UserRoleInnovator)
	req := newRequest(http.MethodGet, "/api/v1/notifications?limit=1000", "", &actor)
	resp := httptest.NewRecorder()
	ListNotifications(&testNotificationsService{}, testLogger())(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}
