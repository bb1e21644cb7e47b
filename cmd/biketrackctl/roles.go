package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/phoenix-bikes/biketrack/internal/rbac"
)

func newRolesCmd(tk toolkit) *cobra.Command {
	rolesCmd := &cobra.Command{
		Use:   "roles",
		Short: "Manage role assignments",
	}

	assignCmd := &cobra.Command{
		Use:   "assign <email> <role>",
		Short: "Assign a role to an account",
		Long: `Assign a role to an existing account. The user must sign in again
for the new role to take effect.

Roles: ` + roleList() + `

Example:
  biketrackctl roles assign volunteer@phoenixbikes.org earn-a-bike`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, ok := rbac.ParseRoleTag(args[1])
			if !ok {
				return errorf("unknown role %q (want one of %s)", args[1], roleList())
			}
			ctx, cancel := timeoutCtx(cmd)
			defer cancel()
			svc, done, err := tk.openRoles(ctx)
			if err != nil {
				return err
			}
			defer done()

			userID, err := svc.AssignRoleByEmail(ctx, operator, args[0], role)
			if err != nil {
				return errorf("assign %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Assigned %s to %s (%s)\n", role.DisplayName(), args[0], userID)
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show [email]",
		Short: "List role assignments",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := timeoutCtx(cmd)
			defer cancel()
			svc, done, err := tk.openRoles(ctx)
			if err != nil {
				return err
			}
			defer done()

			assignments, err := svc.ListAssignments(ctx, operator)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "EMAIL\tROLE\tUSER ID")
			shown := 0
			for _, a := range assignments {
				if len(args) == 1 && !strings.EqualFold(a.Email, args[0]) {
					continue
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", a.Email, a.RoleName(), a.UserID)
				shown++
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if len(args) == 1 && shown == 0 {
				return errorf("no account with email %s", args[0])
			}
			return nil
		},
	}

	rolesCmd.AddCommand(assignCmd, showCmd)
	return rolesCmd
}

func roleList() string {
	names := make([]string, 0, len(rbac.AllRoles()))
	for _, r := range rbac.AllRoles() {
		names = append(names, r.String())
	}
	return strings.Join(names, ", ")
}
