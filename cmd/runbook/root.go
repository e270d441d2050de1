package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nerrad567/runbook-core/internal/infrastructure/config"
	"github.com/nerrad567/runbook-core/internal/infrastructure/database"
)

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	token      string
}

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "runbook",
		Short:         "Versioned catalog of operational automations",
		Long:          `runbook stores shell and Lua automations, keeps every script version, and runs them behind a token gate.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default $RUNBOOK_CONFIG or "+defaultConfigPath+")")
	root.PersistentFlags().StringVar(&opts.token, "token", "", "bearer token (default $RUNBOOK_TOKEN)")

	root.AddCommand(
		newInitCmd(opts),
		newUserCmd(opts),
		newTokenCmd(opts),
		newAddCmd(opts),
		newSearchCmd(opts),
		newGetCmd(opts),
		newExecCmd(opts),
		newUpdateCmd(opts),
		newVersionsCmd(opts),
		newAuditCmd(opts),
		newWatchCmd(opts),
		newStatusCmd(opts),
		newMigrateCmd(opts),
	)
	return root
}

// callerToken returns the --token flag or $RUNBOOK_TOKEN.
func (o *rootOptions) callerToken() string {
	if o.token != "" {
		return o.token
	}
	return os.Getenv("RUNBOOK_TOKEN")
}

// withApp opens the application for one command and closes it afterwards.
func (o *rootOptions) withApp(cmd *cobra.Command, fn func(a *app) error) error {
	a, err := openApp(cmd.Context(), o.configPath, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

// withDatabase opens only the configured database, without applying
// migrations, for commands that manage the schema itself.
func (o *rootOptions) withDatabase(cmd *cobra.Command, fn func(cfg *config.Config, db *database.DB) error) error {
	cfg, err := config.Load(resolveConfigPath(o.configPath))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	db, err := openDatabase(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // read-mostly
	return fn(cfg, db)
}

// printJSON writes v to w as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseID parses a positional automation ID.
func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid automation id %q", s)
	}
	return id, nil
}
