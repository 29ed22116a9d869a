package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/innocapforge/forge-backend/pkg/config"
	pkgerrors "github.com/innocapforge/forge-backend/pkg/errors"
	"github.com/innocapforge/forge-backend/pkg/metrics"
)

type fakeWindowLimiter struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func newFakeWindowLimiter() *fakeWindowLimiter {
	return &fakeWindowLimiter{counts: map[string]int64{}}
}

func (f *fakeWindowLimiter) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	if f.err != nil {
		return false, 0, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[scope]++
	return f.counts[scope] <= limit, f.counts[scope], nil
}

func (f *fakeWindowLimiter) scopes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.counts))
	for k := range f.counts {
		out = append(out, k)
	}
	return out
}

func limitsConfig() config.AuthRateLimitConfig {
	return config.AuthRateLimitConfig{
		LoginWindow:        time.Minute,
		LoginIPLimit:       10,
		LoginEmailLimit:    2,
		RegisterWindow:     time.Minute,
		RegisterIPLimit:    1,
		RegisterEmailLimit: 5,
	}
}

func postJSON(h http.Handler, path, body, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestLoginRateLimitPassesBodyThrough(t *testing.T) {
	limiter := newFakeWindowLimiter()
	var seen string
	h := AuthRateLimit(LoginRateLimit(limitsConfig()), limiter, nil, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		seen = string(body)
		w.WriteHeader(http.StatusOK)
	}))

	rec := postJSON(h, "/api/v1/auth/login", `{"email":" Ada@Forge.io ","password":"secret"}`, "1.2.3.4:5678")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, seen, `"password":"secret"`)
	assert.ElementsMatch(t, []string{
		"login:ip:1.2.3.4",
		"login:email:" + hashValue("ada@forge.io"),
	}, limiter.scopes())
}

func TestLoginRateLimitBlocksByEmailAndCounts(t *testing.T) {
	limiter := newFakeWindowLimiter()
	reg := prometheus.NewRegistry()
	recorder := metrics.NewHTTPMetrics(reg)
	h := AuthRateLimit(LoginRateLimit(limitsConfig()), limiter, recorder, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		rec := postJSON(h, "/api/v1/auth/login", `{"email":"investor@forge.io","password":"x"}`, "1.2.3.4:1")
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := postJSON(h, "/api/v1/auth/login", `{"email":"INVESTOR@forge.io","password":"x"}`, "9.9.9.9:1")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, string(pkgerrors.CodeRateLimit), payload.Error.Code)

	expected := `
# HELP forge_http_rate_limited_total Requests rejected by the auth rate limiter, by surface and scope.
# TYPE forge_http_rate_limited_total counter
forge_http_rate_limited_total{scope="email",surface="login"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "forge_http_rate_limited_total"))
}

func TestRegisterRateLimitBlocksByIP(t *testing.T) {
	limiter := newFakeWindowLimiter()
	h := AuthRateLimit(RegisterRateLimit(AuthSurfaceRegister, limitsConfig()), limiter, nil, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	body := `{"name":"Ines","email":"ines@forge.io","password":"longenough","role":"innovator"}`
	assert.Equal(t, http.StatusCreated, postJSON(h, "/api/v1/auth/register", body, "5.6.7.8:1").Code)
	assert.Equal(t, http.StatusTooManyRequests, postJSON(h, "/api/v1/auth/register", body, "5.6.7.8:2").Code)
}

func TestAdminRegisterCountsSeparately(t *testing.T) {
	limiter := newFakeWindowLimiter()
	cfg := limitsConfig()
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusCreated) })
	public := AuthRateLimit(RegisterRateLimit(AuthSurfaceRegister, cfg), limiter, nil, nil)(ok)
	admin := AuthRateLimit(RegisterRateLimit(AuthSurfaceAdminRegister, cfg), limiter, nil, nil)(ok)

	assert.Equal(t, http.StatusCreated, postJSON(public, "/api/v1/auth/register", `{"email":"a@forge.io"}`, "5.6.7.8:1").Code)
	assert.Equal(t, http.StatusCreated, postJSON(admin, "/api/admin/v1/auth/register", `{"email":"root@forge.io"}`, "5.6.7.8:1").Code)
	assert.Contains(t, limiter.scopes(), "admin_register:email:"+hashValue("root@forge.io"))
}

func TestAuthRateLimitIgnoresUnparseableBody(t *testing.T) {
	limiter := newFakeWindowLimiter()
	h := AuthRateLimit(LoginRateLimit(limitsConfig()), limiter, nil, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))

	assert.Equal(t, http.StatusBadRequest, postJSON(h, "/api/v1/auth/login", `not json`, "1.1.1.1:1").Code)
	assert.Equal(t, []string{"login:ip:1.1.1.1"}, limiter.scopes())
}

func TestAuthRateLimitDisabledOrLimiterDown(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	disabled := AuthRateLimit(LoginRateLimit(config.AuthRateLimitConfig{}), newFakeWindowLimiter(), nil, nil)(ok)
	assert.Equal(t, http.StatusOK, postJSON(disabled, "/api/v1/auth/login", `{}`, "1.1.1.1:1").Code)

	noStore := AuthRateLimit(LoginRateLimit(limitsConfig()), nil, nil, nil)(ok)
	assert.Equal(t, http.StatusOK, postJSON(noStore, "/api/v1/auth/login", `{}`, "1.1.1.1:1").Code)

	down := newFakeWindowLimiter()
	down.err = assert.AnError
	failing := AuthRateLimit(LoginRateLimit(limitsConfig()), down, nil, nil)(ok)
	assert.Equal(t, http.StatusServiceUnavailable, postJSON(failing, "/api/v1/auth/login", `{}`, "1.1.1.1:1").Code)
}

func TestClientIPPrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "10.0.0.1:80"
	assert.Equal(t, "10.0.0.1", clientIP(req))

	req.Header.Set("X-Real-IP", "7.7.7.7")
	assert.Equal(t, "7.7.7.7", clientIP(req))

	req.Header.Set("X-Forwarded-For", " 8.8.8.8 , 10.0.0.2")
	assert.Equal(t, "8.8.8.8", clientIP(req))
}
