package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/innocapforge/forge-backend/api/middleware"
	"github.com/innocapforge/forge-backend/pkg/auth"
	"github.com/innocapforge/forge-backend/pkg/enums"
	"github.com/innocapforge/forge-backend/pkg/logger"
	"github.com/innocapforge/forge-backend/pkg/types"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func newActor(role enums.UserRole) auth.Actor {
	return auth.Actor{UserID: uuid.New(), Role: role}
}

// newRequest builds a request carrying an actor and chi URL params given as
// key/value pairs.
func newRequest(method, target, body string, actor *auth.Actor, params ...string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	ctx := req.Context()
	if actor != nil {
		ctx = middleware.WithActor(ctx, *actor)
	}
	routeCtx := chi.NewRouteContext()
	for i := 0; i+1 < len(params); i += 2 {
		routeCtx.URLParams.Add(params[i], params[i+1])
	}
	ctx = context.WithValue(ctx, chi.RouteCtxKey, routeCtx)
	return req.WithContext(ctx)
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) types.APIError {
	t.Helper()
	var envelope types.ErrorEnvelope
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	return envelope.Error
}
