package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nerrad567/runbook-core/internal/audit"
	"github.com/nerrad567/runbook-core/internal/automation"
)

// scriptSource reads a script from --script or --file ("-" is stdin).
type scriptSource struct {
	script string
	file   string
}

func (s *scriptSource) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.script, "script", "", "script body")
	cmd.Flags().StringVar(&s.file, "file", "", "read the script from a file, - for stdin")
	cmd.MarkFlagsMutuallyExclusive("script", "file")
	cmd.MarkFlagsOneRequired("script", "file")
}

func (s *scriptSource) read(stdin io.Reader) (string, error) {
	switch s.file {
	case "":
		return s.script, nil
	case "-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading script from stdin: %w", err)
		}
		return string(b), nil
	default:
		b, err := os.ReadFile(s.file)
		if err != nil {
			return "", fmt.Errorf("reading script file: %w", err)
		}
		return string(b), nil
	}
}

func newAddCmd(opts *rootOptions) *cobra.Command {
	var (
		question   string
		scriptType string
		tags       []string
		src        scriptSource
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an automation to the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := automation.ParseScriptType(scriptType)
			if err != nil {
				return err
			}
			script, err := src.read(cmd.InOrStdin())
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(a *app) error {
				id, err := a.agent.AddAutomation(cmd.Context(), question, script, tags, st, opts.callerToken())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]int{"id": id})
			})
		},
	}
	cmd.Flags().StringVar(&question, "question", "", "operational question the script answers")
	cmd.Flags().StringVar(&scriptType, "type", string(automation.ScriptShell), "script type: "+scriptTypeNames())
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "tag (repeatable)")
	_ = cmd.MarkFlagRequired("question")
	src.bind(cmd)
	return cmd
}

func newSearchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "search [query]",
		Short: "Find automations by question or tag",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(a *app) error {
				if len(args) == 0 {
					return printJSON(cmd.OutOrStdout(), a.agent.ListAutomations())
				}
				return printJSON(cmd.OutOrStdout(), a.agent.SearchAutomation(args[0]))
			})
		},
	}
}

func newGetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show an automation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(a *app) error {
				got, err := a.agent.GetAutomation(cmd.Context(), id)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), got)
			})
		},
	}
}

func newExecCmd(opts *rootOptions) *cobra.Command {
	var (
		params     []string
		paramsJSON string
	)
	cmd := &cobra.Command{
		Use:   "exec <id>",
		Short: "Run an automation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			p, err := parseParams(paramsJSON, params)
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(a *app) error {
				res, err := a.agent.ExecuteAutomation(cmd.Context(), id, opts.callerToken(), p)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().StringArrayVar(&params, "param", nil, "parameter key=value (repeatable; JSON values accepted)")
	cmd.Flags().StringVar(&paramsJSON, "params", "", "parameters as a JSON object")
	return cmd
}

// parseParams merges a JSON object with key=value pairs. Values that parse
// as JSON keep their type; anything else is a string. Nil when empty.
func parseParams(object string, pairs []string) (map[string]any, error) {
	if object == "" && len(pairs) == 0 {
		return nil, nil
	}
	params := make(map[string]any)
	if object != "" {
		if err := json.Unmarshal([]byte(object), &params); err != nil {
			return nil, fmt.Errorf("parsing --params: %w", err)
		}
	}
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --param %q: want key=value", pair)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		params[key] = v
	}
	return params, nil
}

func newUpdateCmd(opts *rootOptions) *cobra.Command {
	var src scriptSource
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Replace an automation's script, recording a new version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			script, err := src.read(cmd.InOrStdin())
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(a *app) error {
				updated, err := a.agent.UpdateAutomation(cmd.Context(), id, script, opts.callerToken())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), updated)
			})
		},
	}
	src.bind(cmd)
	return cmd
}

func newVersionsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "versions <id>",
		Short: "List an automation's script history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(a *app) error {
				versions, err := a.agent.Versions(id)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), versions)
			})
		},
	}
}

func newAuditCmd(opts *rootOptions) *cobra.Command {
	var filter audit.Filter
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the audit trail, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(a *app) error {
				page, err := a.agent.AuditLog(cmd.Context(), filter)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), page)
			})
		},
	}
	cmd.Flags().StringVar(&filter.Action, "action", "", "filter by action (create, update, execute, auth_failure)")
	cmd.Flags().StringVar(&filter.EntityID, "automation", "", "filter by automation id")
	cmd.Flags().StringVar(&filter.UserID, "user", "", "filter by user")
	cmd.Flags().IntVar(&filter.Limit, "limit", 50, "page size (max 200)")
	cmd.Flags().IntVar(&filter.Offset, "offset", 0, "page offset")
	return cmd
}

func scriptTypeNames() string {
	types := automation.AllScriptTypes()
	names := make([]string, len(types))
	for i, st := range types {
		names[i] = string(st)
	}
	return strings.Join(names, ", ")
}
