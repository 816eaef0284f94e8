package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/warp/leave-governance/directory"
	"github.com/warp/leave-governance/generic"
	"github.com/warp/leave-governance/identity"
)

var (
	tokenEmployee string
	tokenRole     string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for an employee",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		defer log.Sync()

		role, err := directory.ParseRole(tokenRole)
		if err != nil {
			return err
		}
		// The role in the token is advisory; the directory's role wins at request time.
		tokens := identity.NewTokens(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.TTL)
		raw, err := tokens.Issue(directory.Actor{EmployeeID: generic.EntityID(tokenEmployee), Role: role})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), raw)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenEmployee, "employee", "", "employee id (required)")
	tokenCmd.Flags().StringVar(&tokenRole, "role", "employee", "employee, manager, hr or admin")
	_ = tokenCmd.MarkFlagRequired("employee")
}
