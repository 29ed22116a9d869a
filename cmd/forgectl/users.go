package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/innocapforge/forge-backend/internal/auth"
)

const adminPasswordEnv = "FORGE_ADMIN_PASSWORD"

func usersCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage platform users",
	}
	cmd.AddCommand(createAdminCmd(open))
	return cmd
}

func createAdminCmd(open opener) *cobra.Command {
	var req auth.AdminRegisterRequest
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin account",
		Long:  "Create an admin account. The password is read from " + adminPasswordEnv + " when --password is omitted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.Password == "" {
				req.Password = os.Getenv(adminPasswordEnv)
			}
			return withRuntime(cmd, open, func(ctx context.Context, rt *runtime) error {
				user, err := rt.Register.RegisterAdmin(ctx, req)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created admin %s <%s>\n", user.ID, user.Email)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&req.Name, "name", "", "display name")
	cmd.Flags().StringVar(&req.Email, "email", "", "login email")
	cmd.Flags().StringVar(&req.Password, "password", "", "initial password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}
