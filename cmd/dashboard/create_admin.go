package main

import (
	"fmt"

	"github.com/goliatone/go-print"
	"github.com/spf13/cobra"

	auth "github.com/goliatone/go-dashboard-auth"
)

type createAdminOptions struct {
	email    string
	password string
	name     string
}

func newCreateAdminCommand(opts *rootOptions) *cobra.Command {
	admin := &createAdminOptions{}

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Register a super admin account and its profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, opts.cfg, opts.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			session, err := a.provider.SignUp(ctx, admin.email, admin.password, map[string]any{
				"full_name": admin.name,
				"role":      auth.RoleSuperAdmin,
			})
			if err != nil {
				return fmt.Errorf("create admin: %s", auth.UserMessage(err))
			}

			profile := auth.ProvisionedProfile(session.Identity())
			profile.Role = auth.RoleSuperAdmin
			if err := a.store.Upsert(ctx, profile); err != nil {
				return err
			}

			fmt.Println(print.MaybePrettyJSON(profile))
			return nil
		},
	}

	cmd.Flags().StringVar(&admin.email, "email", "", "admin email")
	cmd.Flags().StringVar(&admin.password, "password", "", "admin password")
	cmd.Flags().StringVar(&admin.name, "name", "", "admin display name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}
