package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/innocapforge/forge-backend/internal/app"
	"github.com/innocapforge/forge-backend/internal/auth"
	"github.com/innocapforge/forge-backend/internal/rules"
	"github.com/innocapforge/forge-backend/pkg/config"
	"github.com/innocapforge/forge-backend/pkg/db"
	"github.com/innocapforge/forge-backend/pkg/db/models"
	"github.com/innocapforge/forge-backend/pkg/env"
	"github.com/innocapforge/forge-backend/pkg/logger"
	"github.com/innocapforge/forge-backend/pkg/outbox"
)

type userLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type deadLetters interface {
	List(ctx context.Context, filter outbox.DeadLetterFilter) ([]models.OutboxDLQ, error)
	Requeue(ctx context.Context, eventID uuid.UUID) error
}

// runtime is what a subcommand needs from the database-backed services.
type runtime struct {
	Rules       rules.Service
	Register    auth.RegisterService
	Users       userLookup
	DeadLetters deadLetters
	Close       func() error
}

type opener func(ctx context.Context) (*runtime, error)

func main() {
	if err := rootCmd(openRuntime, os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd(open opener, out io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "forgectl",
		Short:         "Administrative tooling for the forge backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)
	cmd.AddCommand(rulesCmd(open), usersCmd(open), outboxCmd(open))
	return cmd
}

func openRuntime(ctx context.Context) (*runtime, error) {
	_ = godotenv.Load(env.Files()...)
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logg := logger.New(logger.Options{
		ServiceName: "forgectl",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Output:      os.Stderr,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	services, err := app.NewServices(app.ServicesParams{Config: cfg, Logger: logg, DB: dbClient})
	if err != nil {
		_ = dbClient.Close()
		return nil, err
	}
	return &runtime{
		Rules:       services.Rules,
		Register:    services.Register,
		Users:       services.UserRepo,
		DeadLetters: outbox.NewDLQRepository(dbClient.DB()),
		Close:       dbClient.Close,
	}, nil
}

// withRuntime opens the services for the duration of fn.
func withRuntime(cmd *cobra.Command, open opener, fn func(ctx context.Context, rt *runtime) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := open(ctx)
	if err != nil {
		return err
	}
	if rt.Close != nil {
		defer rt.Close()
	}
	return fn(ctx, rt)
}
