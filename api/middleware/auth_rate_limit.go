package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/innocapforge/forge-backend/api/responses"
	"github.com/innocapforge/forge-backend/internal/auth"
	"github.com/innocapforge/forge-backend/pkg/config"
	pkgerrors "github.com/innocapforge/forge-backend/pkg/errors"
	"github.com/innocapforge/forge-backend/pkg/logger"
	"github.com/innocapforge/forge-backend/pkg/metrics"
)

// fixedWindowLimiter is satisfied by pkg/redis.Client, which owns the key layout.
type fixedWindowLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// AuthSurface names the credential endpoint a policy guards.
type AuthSurface string

const (
	AuthSurfaceLogin         AuthSurface = "login"
	AuthSurfaceRegister      AuthSurface = "register"
	AuthSurfaceAdminRegister AuthSurface = "admin_register"
)

// AuthRateLimitPolicy holds the per-IP and per-email budgets of one surface.
type AuthRateLimitPolicy struct {
	surface    AuthSurface
	window     time.Duration
	ipLimit    int64
	emailLimit int64
}

// LoginRateLimit throttles POST /auth/login.
func LoginRateLimit(cfg config.AuthRateLimitConfig) AuthRateLimitPolicy {
	return AuthRateLimitPolicy{
		surface:    AuthSurfaceLogin,
		window:     cfg.LoginWindow,
		ipLimit:    int64(cfg.LoginIPLimit),
		emailLimit: int64(cfg.LoginEmailLimit),
	}
}

// RegisterRateLimit throttles account creation. Admin bootstrap shares the
// register budgets but counts separately.
func RegisterRateLimit(surface AuthSurface, cfg config.AuthRateLimitConfig) AuthRateLimitPolicy {
	if surface != AuthSurfaceAdminRegister {
		surface = AuthSurfaceRegister
	}
	return AuthRateLimitPolicy{
		surface:    surface,
		window:     cfg.RegisterWindow,
		ipLimit:    int64(cfg.RegisterIPLimit),
		emailLimit: int64(cfg.RegisterEmailLimit),
	}
}

func (p AuthRateLimitPolicy) enabled() bool {
	return p.window > 0 && (p.ipLimit > 0 || p.emailLimit > 0)
}

func (p AuthRateLimitPolicy) scope(kind, subject string) string {
	return string(p.surface) + ":" + kind + ":" + subject
}

// email pulls the address out of the body using the request type the
// surface's handler decodes.
func (p AuthRateLimitPolicy) email(body []byte) string {
	var email string
	switch p.surface {
	case AuthSurfaceLogin:
		var req auth.LoginRequest
		if json.Unmarshal(body, &req) == nil {
			email = req.Email
		}
	case AuthSurfaceRegister:
		var req auth.RegisterRequest
		if json.Unmarshal(body, &req) == nil {
			email = req.Email
		}
	case AuthSurfaceAdminRegister:
		var req auth.AdminRegisterRequest
		if json.Unmarshal(body, &req) == nil {
			email = req.Email
		}
	}
	return strings.ToLower(strings.TrimSpace(email))
}

// AuthRateLimit enforces fixed-window counters per client IP and per email
// hash. Rejections are counted on recorder.
func AuthRateLimit(policy AuthRateLimitPolicy, limiter fixedWindowLimiter, recorder *metrics.HTTPMetrics, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || limiter == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if ip := clientIP(r); policy.ipLimit > 0 && ip != "" {
				allowed, count, err := limiter.FixedWindowAllow(ctx, policy.scope("ip", ip), policy.ipLimit, policy.window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
					return
				}
				if !allowed {
					rejectRateLimited(ctx, logg, recorder, w, policy, map[string]any{"scope": "ip", "ip": ip, "attempts": count})
					return
				}
			}

			if policy.emailLimit > 0 {
				body, err := io.ReadAll(r.Body)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))

				if email := policy.email(body); email != "" {
					hash := hashValue(email)
					allowed, count, err := limiter.FixedWindowAllow(ctx, policy.scope("email", hash), policy.emailLimit, policy.window)
					if err != nil {
						responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
						return
					}
					if !allowed {
						rejectRateLimited(ctx, logg, recorder, w, policy, map[string]any{"scope": "email", "email_hash": hash, "attempts": count})
						return
					}
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func rejectRateLimited(ctx context.Context, logg *logger.Logger, recorder *metrics.HTTPMetrics, w http.ResponseWriter, policy AuthRateLimitPolicy, fields map[string]any) {
	scope, _ := fields["scope"].(string)
	recorder.RateLimited(string(policy.surface), scope)
	if logg != nil {
		fields["surface"] = string(policy.surface)
		fields["window_seconds"] = int(policy.window.Seconds())
		logg.Warn(logg.WithFields(ctx, fields), "auth rate limit exceeded")
	}
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts, try again later"))
}

func clientIP(r *http.Request) string {
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		first, _, _ := strings.Cut(header, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

func hashValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
