package main

import (
	"github.com/spf13/cobra"

	"github.com/rpattn/custimport/internal/config"
	"github.com/rpattn/custimport/internal/db"
	"github.com/rpattn/custimport/internal/repository/sqlite"
)

func newMigrateCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			switch cfg.Database.Driver {
			case config.DriverSQLite:
				// Open migrates the file as a side effect
				store, err := sqlite.Open(cfg.Database.SQLitePath)
				if err != nil {
					return err
				}
				defer store.Close()
			default:
				if err := db.RunMigrations(cfg.Database.Postgres().URL()); err != nil {
					return err
				}
			}
			logger.WithField("driver", cfg.Database.Driver).Info("migrations applied")
			return nil
		},
	}
}
