package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/nerrad567/runbook-core/internal/auth"
)

func newInitCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the database and catalog, and seed the admin operator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(a *app) error {
				password, err := auth.SeedAdmin(cmd.Context(), a.auth, a.log.Logger)
				if err != nil {
					return err
				}
				out := map[string]any{
					"database":     a.cfg.Database.Path,
					"catalog":      a.cfg.Catalog.Path,
					"automations":  a.store.Count(),
					"admin_seeded": password != "",
				}
				if password != "" {
					out["username"] = "admin"
					out["password"] = password
				}
				return printJSON(cmd.OutOrStdout(), out)
			})
		},
	}
}

func newUserCmd(opts *rootOptions) *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage operators",
	}

	var password string
	createCmd := &cobra.Command{
		Use:   "create <username>",
		Short: "Register an operator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readPassword(cmd, password)
			if err != nil {
				return err
			}
			if pw == "" {
				return errors.New("--password or $RUNBOOK_PASSWORD is required")
			}
			return opts.withApp(cmd, func(a *app) error {
				user, err := a.auth.CreateUser(cmd.Context(), args[0], pw)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), user)
			})
		},
	}
	createCmd.Flags().StringVar(&password, "password", "", "password (default $RUNBOOK_PASSWORD)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List operators",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(a *app) error {
				users, err := a.auth.ListUsers(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), users)
			})
		},
	}

	userCmd.AddCommand(createCmd, listCmd)
	return userCmd
}

func newTokenCmd(opts *rootOptions) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "token <username>",
		Short: "Issue a bearer token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readPassword(cmd, password)
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(a *app) error {
				token, err := a.auth.IssueToken(cmd.Context(), args[0], pw)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"token":      token,
					"expires_in": a.cfg.TokenTTL().String(),
				})
			})
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "password (default $RUNBOOK_PASSWORD)")
	return cmd
}

// readPassword returns the --password flag, then $RUNBOOK_PASSWORD, then
// prompts when stdin is a terminal. Otherwise it returns "".
func readPassword(cmd *cobra.Command, flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if pw := os.Getenv("RUNBOOK_PASSWORD"); pw != "" {
		return pw, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", nil
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(pw), nil
}
