package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rpattn/custimport/internal/config"
	"github.com/rpattn/custimport/internal/db"
	"github.com/rpattn/custimport/internal/logging"
	"github.com/rpattn/custimport/internal/repository"
	"github.com/rpattn/custimport/internal/repository/postgres"
	"github.com/rpattn/custimport/internal/repository/sqlite"
)

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:          "custimport",
		Short:        "Customer spreadsheet import service",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", ".", "directory containing config.yaml")

	load := func() (config.Config, *logrus.Logger, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return config.Config{}, nil, err
		}
		logger := logging.New(cfg.Log)
		if cfg.File != "" {
			logger.WithField("file", cfg.File).Info("loaded config")
		} else {
			logger.Info("no config.yaml found, using defaults and env vars")
		}
		return cfg, logger, nil
	}

	cmd.AddCommand(newServeCmd(load), newMigrateCmd(load))
	return cmd
}

type loader func() (config.Config, *logrus.Logger, error)

// openStore connects the configured backend and brings its schema up to date.
func openStore(ctx context.Context, cfg config.DatabaseConfig, logger logrus.FieldLogger) (repository.Store, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		logger.WithField("path", cfg.SQLitePath).Info("using sqlite store")
		return store, nil
	case config.DriverPostgres:
		pg := cfg.Postgres()
		if err := db.RunMigrations(pg.URL()); err != nil {
			return nil, err
		}
		conn, err := db.NewConnection(ctx, pg, logger)
		if err != nil {
			return nil, err
		}
		logger.WithFields(logrus.Fields{"host": pg.Host, "dbname": pg.DBName}).Info("using postgres store")
		return postgres.NewStore(conn), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
