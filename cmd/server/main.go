/*
main.go - Application entry point

PURPOSE:
  The leavegov command. Subcommands:
    serve     Start the HTTP API (and the lateness digest scheduler)
    migrate   Apply PostgreSQL migrations (goose)
    token     Issue a signed bearer token for an employee

CONFIGURATION:
  Every subcommand reads config.yaml (--config), .env, and LEAVEGOV_*
  environment variables. See config/config.go for the keys.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the digest scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (http.shutdown_timeout)
  4. Close the store and the Redis client

EXAMPLES:
  # Run on an in-memory store with a bootstrap admin
  LEAVEGOV_AUTH_SECRET=dev LEAVEGOV_DATABASE_DRIVER=memory \
    leavegov serve --bootstrap-admin admin

  # Migrate PostgreSQL, then serve
  leavegov migrate up && leavegov serve

  # Get a token for local testing
  leavegov token --employee admin --role admin

SEE ALSO:
  - serve.go: Dependency wiring
  - api/server.go: Router configuration
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warp/leave-governance/config"
	"github.com/warp/leave-governance/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "leavegov",
	Short:         "Leave and attendance governance service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "YAML configuration file (optional)")
	rootCmd.AddCommand(serveCmd, migrateCmd, tokenCmd)
}

// loadConfig reads and validates the configuration and builds the logger.
func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
