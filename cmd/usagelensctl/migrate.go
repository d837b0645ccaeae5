package main

import (
	"fmt"

	"github.com/smallbiznis/usagelens/internal/config"
	"github.com/smallbiznis/usagelens/internal/migration"
	"github.com/smallbiznis/usagelens/internal/observability"
	"github.com/smallbiznis/usagelens/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			cfg  config.Config
			conn *gorm.DB
		)
		app := fx.New(
			config.Module,
			observability.Module,
			db.Module,
			fx.NopLogger,
			fx.Populate(&cfg, &conn),
		)
		if err := app.Err(); err != nil {
			return err
		}

		if err := migration.Run(conn, cfg.DBType); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "migrations applied (%s)\n", cfg.DBType)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
