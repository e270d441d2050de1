package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
)

// Defaults applied by NewRunner for zero values.
const (
	DefaultMaxOutput = 1 << 20
	defaultWaitDelay = 2 * time.Second
)

// ErrKilled is returned when a command is killed because its context ended.
var ErrKilled = errors.New("process: killed")

// Command describes one subprocess invocation.
type Command struct {
	// Name is a human-readable identifier for logging.
	Name string

	// Binary is the path to the executable.
	Binary string

	// Args are passed to the binary.
	Args []string

	// Env is appended to the parent environment.
	Env []string

	// WorkDir defaults to the parent's working directory.
	WorkDir string
}

// Result is the captured outcome of a finished command.
type Result struct {
	ExitCode  int           `json:"exit_code"`
	Stdout    string        `json:"stdout"`
	Stderr    string        `json:"stderr"`
	Duration  time.Duration `json:"duration"`
	TimedOut  bool          `json:"timed_out,omitempty"`
	Truncated bool          `json:"truncated,omitempty"`
}

// Logger defines the logging interface for the runner.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Runner executes short-lived commands and captures their output.
//
// Each command runs in its own process group. When the context ends the
// whole group receives SIGKILL, so pipelines and background children
// started by a shell script do not outlive it.
type Runner struct {
	maxOutput int
	waitDelay time.Duration
	logger    Logger
}

// NewRunner creates a Runner that keeps at most maxOutput bytes of each of
// stdout and stderr. Zero or negative selects DefaultMaxOutput.
func NewRunner(maxOutput int) *Runner {
	if maxOutput <= 0 {
		maxOutput = DefaultMaxOutput
	}
	return &Runner{
		maxOutput: maxOutput,
		waitDelay: defaultWaitDelay,
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the runner.
func (r *Runner) SetLogger(logger Logger) {
	r.logger = logger
}

// Run starts c and waits for it to exit.
//
// A non-zero exit status is not an error: it is reported in Result.ExitCode.
// An error is returned when the command cannot be started, or when it was
// killed because ctx ended; in the latter case the partial Result is
// returned as well.
func (r *Runner) Run(ctx context.Context, c Command) (*Result, error) {
	if c.Binary == "" {
		return nil, errors.New("process: binary is required")
	}

	cmd := exec.CommandContext(ctx, c.Binary, c.Args...)
	cmd.Dir = c.WorkDir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		// Negative PID signals the process group created via Setpgid.
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	// Grandchildren that escaped the group may hold the pipes open.
	cmd.WaitDelay = r.waitDelay

	stdout := newCappedBuffer(r.maxOutput)
	stderr := newCappedBuffer(r.maxOutput)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", c.Name, err)
	}
	r.logger.Debug("process started", "name", c.Name, "pid", cmd.Process.Pid)

	waitErr := cmd.Wait()

	res := &Result{
		ExitCode:  cmd.ProcessState.ExitCode(),
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		Duration:  time.Since(start),
		Truncated: stdout.truncated || stderr.truncated,
	}
	if res.Truncated {
		r.logger.Warn("process output truncated", "name", c.Name, "limit", humanize.IBytes(uint64(r.maxOutput))) //nolint:gosec // maxOutput is positive
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		res.TimedOut = errors.Is(ctxErr, context.DeadlineExceeded)
		r.logger.Warn("process killed", "name", c.Name, "timed_out", res.TimedOut, "duration", res.Duration)
		return res, fmt.Errorf("%w: %s: %w", ErrKilled, c.Name, ctxErr)
	}

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		// Output copy failures or WaitDelay expiry; the exit status is still valid.
		r.logger.Warn("process wait error", "name", c.Name, "error", waitErr)
	}

	r.logger.Debug("process exited", "name", c.Name, "exit_code", res.ExitCode, "duration", res.Duration)
	return res, nil
}
