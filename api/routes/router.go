package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/innocapforge/forge-backend/api/controllers"
	"github.com/innocapforge/forge-backend/api/middleware"
	"github.com/innocapforge/forge-backend/internal/auth"
	"github.com/innocapforge/forge-backend/internal/escrow"
	"github.com/innocapforge/forge-backend/internal/investments"
	"github.com/innocapforge/forge-backend/internal/messages"
	"github.com/innocapforge/forge-backend/internal/milestones"
	"github.com/innocapforge/forge-backend/internal/notifications"
	"github.com/innocapforge/forge-backend/internal/projects"
	"github.com/innocapforge/forge-backend/internal/rules"
	"github.com/innocapforge/forge-backend/internal/users"
	"github.com/innocapforge/forge-backend/internal/verifications"
	"github.com/innocapforge/forge-backend/pkg/auth/session"
	"github.com/innocapforge/forge-backend/pkg/config"
	"github.com/innocapforge/forge-backend/pkg/enums"
	"github.com/innocapforge/forge-backend/pkg/logger"
	"github.com/innocapforge/forge-backend/pkg/metrics"
)

// redisStore is the Redis surface used by rate limiting and idempotency.
type redisStore interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
}

// Dependencies carries everything the router mounts. Nil services produce
// 500s from their handlers rather than panics.
type Dependencies struct {
	Readiness      map[string]controllers.Pinger
	Redis          redisStore
	Sessions       session.AccessSessionChecker
	HTTPMetrics    *metrics.HTTPMetrics
	MetricsHandler http.Handler

	Auth          auth.Service
	Register      auth.RegisterService
	Users         *users.Service
	Projects      projects.Service
	Milestones    milestones.Service
	Verifications verifications.Service
	Escrow        escrow.Service
	Investments   investments.Service
	Messages      messages.Service
	Notifications notifications.Service
	Rules         rules.Service
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.CORS(cfg.App.AllowedOrigins()),
		middleware.Metrics(deps.HTTPMetrics),
		middleware.Logging(logg),
	)

	loginLimit := middleware.AuthRateLimit(middleware.LoginRateLimit(cfg.AuthRateLimit), deps.Redis, deps.HTTPMetrics, logg)
	registerLimit := middleware.AuthRateLimit(middleware.RegisterRateLimit(middleware.AuthSurfaceRegister, cfg.AuthRateLimit), deps.Redis, deps.HTTPMetrics, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Readiness))
	})
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(loginLimit).Post("/login", controllers.AuthLogin(deps.Auth, logg))
		r.With(registerLimit).Post("/register", controllers.AuthRegister(deps.Register, deps.Auth, logg))
		r.Post("/refresh", controllers.AuthRefresh(deps.Auth, logg))
		r.Post("/logout", controllers.AuthLogout(deps.Auth, cfg.JWT, logg))
	})

	if !cfg.App.IsProd() {
		adminRegisterLimit := middleware.AuthRateLimit(middleware.RegisterRateLimit(middleware.AuthSurfaceAdminRegister, cfg.AuthRateLimit), deps.Redis, deps.HTTPMetrics, logg)
		r.With(adminRegisterLimit).
			Post("/api/admin/v1/auth/register", controllers.AdminAuthRegister(deps.Register, deps.Auth, cfg, logg))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, deps.Sessions, logg))
		r.Use(middleware.Idempotency(deps.Redis, cfg.Eventing.HTTPIdempotencyTTL, logg))

		r.Get("/users/me", controllers.Me(deps.Users, logg))

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", controllers.ListProjects(deps.Projects, logg))
			r.With(middleware.RequireRole(logg, enums.UserRoleInnovator)).Post("/", controllers.CreateProject(deps.Projects, logg))

			r.Route("/{projectId}", func(r chi.Router) {
				r.Get("/", controllers.GetProject(deps.Projects, logg))
				r.Patch("/", controllers.UpdateProject(deps.Projects, logg))
				r.Get("/summary", controllers.ProjectSummary(deps.Projects, logg))
				r.Get("/escrow-transactions", controllers.ListEscrowTransactions(deps.Escrow, logg))

				r.Get("/investments", controllers.ListProjectInvestments(deps.Investments, logg))
				r.With(middleware.RequireRole(logg, enums.UserRoleInvestor)).Post("/investments", controllers.CreateInvestment(deps.Investments, logg))

				r.Route("/milestones", func(r chi.Router) {
					r.Get("/", controllers.ListMilestones(deps.Milestones, logg))
					r.Post("/", controllers.AddMilestone(deps.Milestones, logg))
					r.Put("/weights", controllers.ReweightMilestones(deps.Milestones, logg))
					r.Get("/{milestoneId}", controllers.GetMilestone(deps.Milestones, logg))
					r.Patch("/{milestoneId}", controllers.UpdateMilestone(deps.Milestones, logg))
					r.Post("/{milestoneId}/start", controllers.StartMilestone(deps.Milestones, logg))
					r.Post("/{milestoneId}/submit", controllers.SubmitMilestone(deps.Milestones, logg))
				})
			})
		})

		r.Route("/milestones/{milestoneId}/verifications", func(r chi.Router) {
			r.Get("/", controllers.ListVerifications(deps.Verifications, logg))
			r.Post("/", controllers.CreateVerification(deps.Verifications, logg))
		})

		r.Get("/investments", controllers.ListMyInvestments(deps.Investments, logg))
		r.Get("/wallet/transactions", controllers.ListWalletTransactions(deps.Escrow, logg))

		r.Route("/messages", func(r chi.Router) {
			r.Get("/", controllers.ListInbox(deps.Messages, logg))
			r.Post("/", controllers.SendMessage(deps.Messages, logg))
			r.Get("/conversations/{userId}", controllers.ListConversation(deps.Messages, logg))
			r.Post("/{messageId}/read", controllers.MarkMessageRead(deps.Messages, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(deps.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(deps.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(deps.Notifications, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, deps.Sessions, logg))
		r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))
		r.Use(middleware.Idempotency(deps.Redis, cfg.Eventing.HTTPIdempotencyTTL, logg))

		r.Post("/projects/{projectId}/review", controllers.AdminReviewProject(deps.Projects, logg))
		r.Post("/milestones/{milestoneId}/decision", controllers.AdminDecideMilestone(deps.Milestones, logg))
		r.Post("/milestones/{milestoneId}/release", controllers.AdminReleaseFunds(deps.Escrow, logg))

		r.Get("/projects/{projectId}/release-rules", controllers.AdminListReleaseRules(deps.Rules, logg))
		r.Post("/projects/{projectId}/release-rules", controllers.AdminCreateReleaseRule(deps.Rules, logg))
		r.Post("/release-rules/run", controllers.AdminRunReleaseRules(deps.Rules, logg))
		r.Route("/release-rules/{ruleId}", func(r chi.Router) {
			r.Get("/", controllers.AdminGetReleaseRule(deps.Rules, logg))
			r.Put("/", controllers.AdminReplaceReleaseRule(deps.Rules, logg))
			r.Patch("/", controllers.AdminToggleReleaseRule(deps.Rules, logg))
			r.Delete("/", controllers.AdminDeleteReleaseRule(deps.Rules, logg))
			r.Post("/evaluate", controllers.AdminEvaluateReleaseRule(deps.Rules, logg))
		})
	})

	return r
}
