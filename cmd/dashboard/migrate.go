package main

import (
	"github.com/spf13/cobra"

	"github.com/goliatone/go-dashboard-auth/internal/database"
	"github.com/goliatone/go-dashboard-auth/internal/migrations"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := opts.logger.GetLogger("migrate")

			db, err := database.Open(cmd.Context(), opts.cfg.Database.DSN)
			if err != nil {
				return err
			}
			defer db.Close()

			group, err := migrations.Apply(cmd.Context(), db)
			if err != nil {
				return err
			}

			if group.IsZero() {
				log.Info("no new migrations to apply")
				return nil
			}
			log.Info("applied migration group", "group", group.ID, "migrations", group.String())
			return nil
		},
	}
}
