package routes

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/innocapforge/forge-backend/api/controllers"
	"github.com/innocapforge/forge-backend/internal/notifications"
	pkgauth "github.com/innocapforge/forge-backend/pkg/auth"
	"github.com/innocapforge/forge-backend/pkg/auth/session"
	"github.com/innocapforge/forge-backend/pkg/config"
	"github.com/innocapforge/forge-backend/pkg/enums"
	"github.com/innocapforge/forge-backend/pkg/logger"
	"github.com/innocapforge/forge-backend/pkg/metrics"
)

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error {
	return s.err
}

type stubSessionChecker struct{}

func (stubSessionChecker) HasSession(context.Context, string) (bool, error) {
	return true, nil
}

type stubNotificationsService struct {
	notifications.Service
	listFn func(ctx context.Context, params notifications.ListParams) (*notifications.ListResult, error)
}

func (s stubNotificationsService) List(ctx context.Context, params notifications.ListParams) (*notifications.ListResult, error) {
	return s.listFn(ctx, params)
}

func testConfig(env string) *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: env, CORSOrigins: "*"},
		JWT: config.JWTConfig{Secret: "router-secret", Issuer: "forge-test", ExpirationMinutes: 15},
	}
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func bearer(t *testing.T, cfg *config.Config, role enums.UserRole) (string, uuid.UUID) {
	t.Helper()
	userID := uuid.New()
	token, err := pkgauth.MintAccessToken(cfg.JWT, time.Now(), pkgauth.AccessTokenPayload{
		UserID: userID,
		Role:   role,
		JTI:    session.NewAccessID(),
	})
	require.NoError(t, err)
	return "Bearer " + token, userID
}

func serve(handler http.Handler, method, target, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	return resp
}

func TestHealthEndpoints(t *testing.T) {
	cfg := testConfig("dev")
	router := NewRouter(cfg, testLogger(), Dependencies{
		Readiness: map[string]controllers.Pinger{"db": stubPinger{}},
	})

	live := serve(router, http.MethodGet, "/health/live", "")
	assert.Equal(t, http.StatusOK, live.Code)
	assert.Equal(t, "dev", live.Header().Get("X-Forge-Env"))

	ready := serve(router, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusOK, ready.Code)
}

func TestReadinessFailsWhenDependencyDown(t *testing.T) {
	router := NewRouter(testConfig("dev"), testLogger(), Dependencies{
		Readiness: map[string]controllers.Pinger{"redis": stubPinger{err: errors.New("connection refused")}},
	})

	resp := serve(router, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
}

func TestAuthenticatedRoutesRequireToken(t *testing.T) {
	router := NewRouter(testConfig("dev"), testLogger(), Dependencies{Sessions: stubSessionChecker{}})

	for _, target := range []string{"/api/v1/users/me", "/api/v1/projects", "/api/admin/v1/release-rules/run"} {
		resp := serve(router, http.MethodGet, target, "")
		assert.Equal(t, http.StatusUnauthorized, resp.Code, target)
	}
}

func TestAdminRoutesRejectNonAdmin(t *testing.T) {
	cfg := testConfig("dev")
	router := NewRouter(cfg, testLogger(), Dependencies{Sessions: stubSessionChecker{}})
	header, _ := bearer(t, cfg, enums.UserRoleInvestor)

	resp := serve(router, http.MethodPost, "/api/admin/v1/release-rules/run", header)
	assert.Equal(t, http.StatusForbidden, resp.Code)
}

func TestNotificationsRouteUsesActor(t *testing.T) {
	cfg := testConfig("dev")
	var seen notifications.ListParams
	router := NewRouter(cfg, testLogger(), Dependencies{
		Sessions: stubSessionChecker{},
		Notifications: stubNotificationsService{listFn: func(ctx context.Context, params notifications.ListParams) (*notifications.ListResult, error) {
			seen = params
			return &notifications.ListResult{Items: []notifications.NotificationDTO{}}, nil
		}},
	})
	header, userID := bearer(t, cfg, enums.UserRoleInnovator)

	resp := serve(router, http.MethodGet, "/api/v1/notifications?unread_only=true&limit=5", header)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, userID, seen.UserID)
	assert.True(t, seen.UnreadOnly)
	assert.Equal(t, 5, seen.Limit)
}

func TestAdminRegisterOnlyOutsideProd(t *testing.T) {
	prod := NewRouter(testConfig("prod"), testLogger(), Dependencies{})
	resp := serve(prod, http.MethodPost, "/api/admin/v1/auth/register", "")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	dev := NewRouter(testConfig("dev"), testLogger(), Dependencies{})
	resp = serve(dev, http.MethodPost, "/api/admin/v1/auth/register", "")
	assert.NotEqual(t, http.StatusUnauthorized, resp.Code)
	assert.NotEqual(t, http.StatusNotFound, resp.Code)
}

func TestMetricsEndpointExposesRequestCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	router := NewRouter(testConfig("dev"), testLogger(), Dependencies{
		HTTPMetrics:    metrics.NewHTTPMetrics(reg),
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	require.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/health/live", "").Code)

	resp := serve(router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "forge_http_requests_total")
}
