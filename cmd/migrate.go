package main

import (
	"github.com/Payphone-Digital/account-service/pkg/database"
	"github.com/Payphone-Digital/account-service/pkg/logger"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	var seed bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema and partial indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rt, err := bootstrap(ctx, "migrate")
			if err != nil {
				return err
			}
			defer rt.close()

			if err := database.AutoMigrate(ctx, rt.db); err != nil {
				return err
			}
			if seed || rt.cfg.Database.Seed {
				if err := database.Seed(ctx, rt.db); err != nil {
					return err
				}
			}

			logger.GetLogger().Info("Database migrated successfully")
			return nil
		},
	}

	cmd.Flags().BoolVar(&seed, "seed", false, "Create the demo account after migrating")
	return cmd
}
