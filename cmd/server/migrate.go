package main

import (
	"fmt"

	"card_shop/internal/config"
	"card_shop/internal/repository"

	"github.com/spf13/cobra"
)

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update database tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			db, err := repository.Open(cfg.DBDriver, cfg.DBDSN)
			if err != nil {
				return fmt.Errorf("db open: %w", err)
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}
			if err := repository.Migrate(db); err != nil {
				return fmt.Errorf("db migrate: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrated %s\n", cfg.DBDriver)
			return nil
		},
	}
}
