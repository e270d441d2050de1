package execution

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/runbook-core/internal/automation"
)

// DefaultTimeout bounds a single run when the engine is built with zero.
const DefaultTimeout = 60 * time.Second

// Authorizer decides whether a caller may execute automations.
type Authorizer interface {
	Authorize(token string) bool
}

// AutomationSource resolves an automation by ID. Store.Get satisfies it and
// counts the lookup as a use.
type AutomationSource interface {
	Get(ctx context.Context, id int) (*automation.Automation, error)
}

// Runner executes one script body and returns its payload.
type Runner interface {
	Run(ctx context.Context, a *automation.Automation, params map[string]any) (any, error)
}

// Result is the in-band outcome of an execution.
type Result struct {
	Success      bool                  `json:"success"`
	Result       any                   `json:"result,omitempty"`
	Error        string                `json:"error,omitempty"`
	AutomationID int                   `json:"automation_id"`
	ScriptType   automation.ScriptType `json:"script_type,omitempty"`
	Duration     time.Duration         `json:"duration"`
}

// Logger defines the logging interface for the engine and its runners.
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

// Engine dispatches automations to the Runner registered for their type.
//
// Thread Safety: Register and Execute may be called concurrently. Runs do
// not hold any engine lock, so slow scripts never block each other.
type Engine struct {
	source  AutomationSource
	auth    Authorizer
	timeout time.Duration
	logger  Logger

	mu      sync.RWMutex
	runners map[automation.ScriptType]Runner
}

// NewEngine creates an engine reading from source. A nil auth disables the
// authorization check. A zero timeout selects DefaultTimeout.
func NewEngine(source AutomationSource, auth Authorizer, timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Engine{
		source:  source,
		auth:    auth,
		timeout: timeout,
		logger:  noopLogger{},
		runners: make(map[automation.ScriptType]Runner),
	}
}

// SetLogger sets the logger for the engine.
func (e *Engine) SetLogger(logger Logger) {
	e.logger = logger
}

// Register binds a runner to a script type, replacing any previous one.
func (e *Engine) Register(t automation.ScriptType, r Runner) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.runners[t] = r
}

// Timeout returns the per-run bound.
func (e *Engine) Timeout() time.Duration {
	return e.timeout
}

func (e *Engine) runner(t automation.ScriptType) (Runner, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r, ok := e.runners[t]
	return r, ok
}

// Execute runs automation id on behalf of caller.
//
// Authorization is checked before the automation is fetched, so a rejected
// caller leaves the catalog untouched. Errors are returned only for
// authorization and lookup failures; anything that goes wrong while running
// the script is reported in-band through Result.
func (e *Engine) Execute(ctx context.Context, id int, caller string, params map[string]any) (*Result, error) {
	if e.auth != nil && !e.auth.Authorize(caller) {
		e.logger.Warn("execution rejected", "automation_id", id)
		return nil, ErrAuthentication
	}

	a, err := e.source.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	res := &Result{AutomationID: a.ID, ScriptType: a.ScriptType}

	r, ok := e.runner(a.ScriptType)
	if !ok {
		res.Error = fmt.Sprintf("%v: %s", ErrNoRunner, a.ScriptType)
		e.logger.Warn("no runner registered", "automation_id", a.ID, "script_type", a.ScriptType)
		return res, nil
	}

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	payload, runErr := runSafely(runCtx, r, a, params)
	res.Duration = time.Since(start)

	if runErr != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			runErr = fmt.Errorf("%w after %s", ErrTimeout, e.timeout)
		}
		res.Error = runErr.Error()
		e.logger.Warn("automation failed",
			"automation_id", a.ID,
			"script_type", a.ScriptType,
			"duration", res.Duration,
			"error", runErr,
		)
		return res, nil
	}

	res.Success = true
	res.Result = payload
	e.logger.Info("automation executed",
		"automation_id", a.ID,
		"script_type", a.ScriptType,
		"duration", res.Duration,
	)
	return res, nil
}

// runSafely converts a runner panic into an error.
func runSafely(ctx context.Context, r Runner, a *automation.Automation, params map[string]any) (payload any, err error) {
	defer func() {
		if p := recover(); p != nil {
			payload = nil
			err = fmt.Errorf("runner panic: %v", p)
		}
	}()
	return r.Run(ctx, a, params)
}
