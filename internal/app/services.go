package app

import (
	"fmt"

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
	"github.com/innocapforge/forge-backend/pkg/config"
	"github.com/innocapforge/forge-backend/pkg/db"
	"github.com/innocapforge/forge-backend/pkg/logger"
	"github.com/innocapforge/forge-backend/pkg/metrics"
	"github.com/innocapforge/forge-backend/pkg/outbox"
)

// Services holds the domain services shared by the api, cron-worker and
// forgectl binaries.
type Services struct {
	Users         *users.Service
	UserRepo      *users.Repository
	Register      auth.RegisterService
	Projects      projects.Service
	Milestones    milestones.Service
	Verifications verifications.Service
	Escrow        escrow.Service
	Investments   investments.Service
	Messages      messages.Service
	Notifications notifications.Service
	Rules         rules.Service

	NotificationRepo notifications.Repository
	OutboxRepo       *outbox.Repository
}

type ServicesParams struct {
	Config  *config.Config
	Logger  *logger.Logger
	DB      *db.Client
	Metrics *metrics.DomainMetrics
}

// NewServices builds every domain service over one database client and one
// outbox emitter.
func NewServices(params ServicesParams) (*Services, error) {
	if params.Config == nil || params.DB == nil {
		return nil, fmt.Errorf("config and database client required")
	}
	conn := params.DB.DB()
	logg := params.Logger

	outboxRepo := outbox.NewRepository(conn)
	emitter := outbox.NewService(outboxRepo, logg)

	userRepo := users.NewRepository(conn)
	projectRepo := projects.NewRepository(conn)
	notificationRepo := notifications.NewRepository(conn)

	out := &Services{
		UserRepo:         userRepo,
		NotificationRepo: notificationRepo,
		OutboxRepo:       outboxRepo,
	}

	var err error
	if out.Users, err = users.NewService(userRepo); err != nil {
		return nil, fmt.Errorf("users service: %w", err)
	}
	if out.Register, err = auth.NewRegisterService(auth.RegisterServiceParams{
		DB:             params.DB,
		PasswordConfig: params.Config.Password,
	}); err != nil {
		return nil, fmt.Errorf("register service: %w", err)
	}
	if out.Projects, err = projects.NewService(projectRepo, params.DB, emitter, logg); err != nil {
		return nil, fmt.Errorf("projects service: %w", err)
	}
	if out.Milestones, err = milestones.NewService(milestones.ServiceParams{
		Repo:     milestones.NewRepository(conn),
		Projects: projectRepo,
		DB:       params.DB,
		Emitter:  emitter,
		Metrics:  params.Metrics,
		Logger:   logg,
	}); err != nil {
		return nil, fmt.Errorf("milestones service: %w", err)
	}
	if out.Verifications, err = verifications.NewService(verifications.NewRepository(conn)); err != nil {
		return nil, fmt.Errorf("verifications service: %w", err)
	}
	if out.Escrow, err = escrow.NewService(escrow.ServiceParams{
		Repo:     escrow.NewRepository(conn),
		Projects: projectRepo,
		DB:       params.DB,
		Emitter:  emitter,
		Metrics:  params.Metrics,
		Logger:   logg,
	}); err != nil {
		return nil, fmt.Errorf("escrow service: %w", err)
	}
	if out.Investments, err = investments.NewService(investments.NewRepository(conn), projectRepo, params.DB, emitter, params.Metrics); err != nil {
		return nil, fmt.Errorf("investments service: %w", err)
	}
	if out.Messages, err = messages.NewService(messages.NewRepository(conn), userRepo, params.DB, emitter); err != nil {
		return nil, fmt.Errorf("messages service: %w", err)
	}
	if out.Notifications, err = notifications.NewService(notificationRepo); err != nil {
		return nil, fmt.Errorf("notifications service: %w", err)
	}
	if out.Rules, err = rules.NewService(rules.ServiceParams{
		Repo:          rules.NewRepository(conn),
		Projects:      projectRepo,
		Notifications: notificationRepo,
		Escrow:        out.Escrow,
		DB:            params.DB,
		Emitter:       emitter,
		Metrics:       params.Metrics,
		Logger:        logg,
	}); err != nil {
		return nil, fmt.Errorf("rules service: %w", err)
	}

	return out, nil
}
