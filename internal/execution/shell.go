package execution

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kballard/go-shellquote"

	"github.com/nerrad567/runbook-core/internal/automation"
	"github.com/nerrad567/runbook-core/internal/process"
)

// DefaultShell runs shell automations when no shell is configured.
const DefaultShell = "/bin/sh"

// ParamsEnvVar carries JSON-encoded parameters into shell scripts.
const ParamsEnvVar = "RUNBOOK_PARAMS"

// ShellOutput is the payload of a shell run.
type ShellOutput struct {
	Stdout    string `json:"stdout"`
	Stderr    string `json:"stderr"`
	ExitCode  int    `json:"exit_code"`
	Truncated bool   `json:"truncated,omitempty"`
}

// ShellRunner runs scripts as `<shell> -c <script>`.
//
// A non-zero exit status is a completed run, not a failure; callers inspect
// ShellOutput.ExitCode.
type ShellRunner struct {
	argv   []string
	runner *process.Runner
}

// NewShellRunner parses shell as a command line, so "/bin/bash --noprofile"
// is accepted. An empty shell selects DefaultShell.
func NewShellRunner(shell string, runner *process.Runner) (*ShellRunner, error) {
	if shell == "" {
		shell = DefaultShell
	}
	argv, err := shellquote.Split(shell)
	if err != nil {
		return nil, fmt.Errorf("parsing shell %q: %w", shell, err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("parsing shell %q: empty command", shell)
	}
	if runner == nil {
		runner = process.NewRunner(0)
	}
	return &ShellRunner{argv: argv, runner: runner}, nil
}

// Run implements Runner.
func (s *ShellRunner) Run(ctx context.Context, a *automation.Automation, params map[string]any) (any, error) {
	args := make([]string, 0, len(s.argv)+1)
	args = append(args, s.argv[1:]...)
	args = append(args, "-c", a.Script)

	var env []string
	if params != nil {
		encoded, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("encoding params: %w", err)
		}
		env = append(env, ParamsEnvVar+"="+string(encoded))
	}

	res, err := s.runner.Run(ctx, process.Command{
		Name:   fmt.Sprintf("automation-%d", a.ID),
		Binary: s.argv[0],
		Args:   args,
		Env:    env,
	})
	if err != nil {
		return nil, err
	}

	return &ShellOutput{
		Stdout:    res.Stdout,
		Stderr:    res.Stderr,
		ExitCode:  res.ExitCode,
		Truncated: res.Truncated,
	}, nil
}
