package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/innocapforge/forge-backend/internal/rules"
	"github.com/innocapforge/forge-backend/pkg/auth"
	"github.com/innocapforge/forge-backend/pkg/enums"
)

func rulesCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage milestone release rules",
	}
	cmd.AddCommand(rulesValidateCmd(open), rulesImportCmd(open), rulesRunCmd(open))
	return cmd
}

func rulesValidateCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file.yaml>",
		Short: "Check a rules document against the referenced projects",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDocument(args[0])
			if err != nil {
				return err
			}
			return withRuntime(cmd, open, func(ctx context.Context, rt *runtime) error {
				if err := rules.ValidateDocument(ctx, rt.Rules, doc); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d rule(s) valid\n", len(doc.Rules))
				return nil
			})
		},
	}
}

func rulesImportCmd(open opener) *cobra.Command {
	var adminID string
	cmd := &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Validate and create every rule in a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actorID, err := uuid.Parse(adminID)
			if err != nil {
				return fmt.Errorf("--as must be an admin user id: %w", err)
			}
			doc, err := readDocument(args[0])
			if err != nil {
				return err
			}
			return withRuntime(cmd, open, func(ctx context.Context, rt *runtime) error {
				user, err := rt.Users.FindByID(ctx, actorID)
				if err != nil {
					return fmt.Errorf("load admin %s: %w", actorID, err)
				}
				if user.Role != enums.UserRoleAdmin {
					return fmt.Errorf("user %s is not an admin", actorID)
				}

				created, err := rules.ImportDocument(ctx, rt.Rules, auth.Actor{UserID: user.ID, Role: user.Role}, doc)
				for _, rule := range created {
					fmt.Fprintf(cmd.OutOrStdout(), "created %s %q for project %s\n", rule.ID, rule.Name, rule.ProjectID)
				}
				return err
			})
		},
	}
	cmd.Flags().StringVar(&adminID, "as", "", "admin user id recorded as the rule author")
	_ = cmd.MarkFlagRequired("as")
	return cmd
}

func rulesRunCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Evaluate every active rule once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, open, func(ctx context.Context, rt *runtime) error {
				summary, err := rt.Rules.RunActive(ctx)
				if summary != nil {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					if encErr := enc.Encode(summary); encErr != nil {
						return encErr
					}
				}
				return err
			})
		},
	}
}

func readDocument(path string) (*rules.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return rules.ParseDocument(f)
}
