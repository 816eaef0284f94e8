package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/warp/leave-governance/config"
	"github.com/warp/leave-governance/store/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate [up|down|status|version|redo|reset] [args...]",
	Short: "Apply PostgreSQL schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		defer log.Sync()

		if cfg.Database.Driver != config.DriverPostgres {
			return fmt.Errorf("migrate needs the postgres driver, configured driver is %q", cfg.Database.Driver)
		}
		command := "up"
		if len(args) > 0 {
			command, args = args[0], args[1:]
		}
		return postgres.Migrate(cmd.Context(), cfg.Database.DSN, command, log, args...)
	},
}
