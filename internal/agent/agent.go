package agent

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nerrad567/runbook-core/internal/audit"
	"github.com/nerrad567/runbook-core/internal/auth"
	"github.com/nerrad567/runbook-core/internal/automation"
	"github.com/nerrad567/runbook-core/internal/execution"
	"github.com/nerrad567/runbook-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/runbook-core/internal/infrastructure/mqtt"
)

// ErrAuthentication is returned by gated operations for a missing, malformed,
// tampered or expired token.
var ErrAuthentication = execution.ErrAuthentication

// ErrAuditDisabled is returned by AuditLog when no audit repository is set.
var ErrAuditDisabled = errors.New("agent: audit log not configured")

// TokenVerifier resolves a bearer token to its claims. auth.Manager
// satisfies it.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// EventPublisher publishes lifecycle events. mqtt.Client satisfies it.
type EventPublisher interface {
	PublishJSON(topic string, v any) error
}

// MetricsWriter records execution metrics. influxdb.Client satisfies it.
type MetricsWriter interface {
	WriteExecution(e influxdb.Execution)
}

// Logger defines the logging interface for the agent.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config configures an Agent.
type Config struct {
	// AuthRequired gates AddAutomation, UpdateAutomation and
	// ExecuteAutomation. When false the caller string is used as the
	// identity directly.
	AuthRequired bool

	// Source is recorded on audit entries. Defaults to "cli".
	Source string
}

// Agent is the entry point to the automation catalog.
//
// Writes and executions go through the token gate when AuthRequired is set;
// search, get and version listings are open. The audit log, event publisher
// and metrics writer are optional: their failures are logged and never
// fail the operation.
type Agent struct {
	store    *automation.Store
	engine   *execution.Engine
	verifier TokenVerifier
	cfg      Config

	audit   audit.Repository
	events  EventPublisher
	metrics MetricsWriter
	logger  Logger
	now     func() time.Time
}

// New creates an Agent. When cfg.AuthRequired is set, verifier is required
// and engine must have been built with the matching Authorizer.
func New(store *automation.Store, engine *execution.Engine, verifier TokenVerifier, cfg Config) (*Agent, error) {
	if store == nil || engine == nil {
		return nil, errors.New("agent: store and engine are required")
	}
	if cfg.AuthRequired && verifier == nil {
		return nil, errors.New("agent: token verifier is required when auth is required")
	}
	if cfg.Source == "" {
		cfg.Source = "cli"
	}
	return &Agent{
		store:    store,
		engine:   engine,
		verifier: verifier,
		cfg:      cfg,
		logger:   noopLogger{},
		now:      time.Now,
	}, nil
}

// SetLogger sets the logger for the agent.
func (a *Agent) SetLogger(logger Logger) {
	a.logger = logger
}

// SetAuditRepository enables the audit trail.
func (a *Agent) SetAuditRepository(repo audit.Repository) {
	a.audit = repo
}

// SetEventPublisher enables lifecycle events.
func (a *Agent) SetEventPublisher(p EventPublisher) {
	a.events = p
}

// SetMetricsWriter enables execution metrics.
func (a *Agent) SetMetricsWriter(w MetricsWriter) {
	a.metrics = w
}

// identity resolves the acting user for caller.
func (a *Agent) identity(caller string) (string, error) {
	if !a.cfg.AuthRequired {
		return caller, nil
	}
	claims, err := a.verifier.Verify(caller)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAuthentication, err)
	}
	return claims.Username, nil
}

// AddAutomation validates and stores a new automation, returning its ID.
func (a *Agent) AddAutomation(ctx context.Context, question, script string, tags []string, scriptType automation.ScriptType, caller string) (int, error) {
	user, err := a.identity(caller)
	if err != nil {
		a.recordAuthFailure(ctx, audit.ActionCreate, 0)
		return 0, err
	}

	created, err := a.store.Add(ctx, automation.NewAutomation{
		Question:   question,
		Script:     script,
		Tags:       tags,
		ScriptType: scriptType,
		CreatedBy:  user,
	})
	if err != nil {
		return 0, err
	}

	a.logger.Info("automation added", "automation_id", created.ID, "script_type", created.ScriptType, "user", user)
	a.record(ctx, &audit.Entry{
		Action:     audit.ActionCreate,
		EntityType: audit.EntityAutomation,
		EntityID:   strconv.Itoa(created.ID),
		UserID:     user,
		Details: map[string]any{
			"question":    created.Question,
			"script_type": string(created.ScriptType),
			"script_hash": created.ScriptHash,
		},
	})
	a.publish(created.ID, mqtt.EventCreated, Event{
		Actor:      user,
		Version:    created.Version,
		ScriptType: created.ScriptType,
		ScriptHash: created.ScriptHash,
	})

	return created.ID, nil
}

// SearchAutomation returns automations whose question or tags contain
// query, case-insensitively, in insertion order.
func (a *Agent) SearchAutomation(query string) []automation.Automation {
	return a.store.Search(query)
}

// ListAutomations returns the whole catalog in insertion order. It does not
// count as a use of any automation.
func (a *Agent) ListAutomations() []automation.Automation {
	return a.store.List()
}

// GetAutomation returns automation id and counts the lookup as a use.
func (a *Agent) GetAutomation(ctx context.Context, id int) (*automation.Automation, error) {
	return a.store.Get(ctx, id)
}

// ExecuteAutomation runs automation id. Script failures are reported in the
// Result; only authorization and lookup failures are returned as errors.
func (a *Agent) ExecuteAutomation(ctx context.Context, id int, caller string, params map[string]any) (*execution.Result, error) {
	// The engine may have been built without an Authorizer.
	user, err := a.identity(caller)
	if err != nil {
		a.recordAuthFailure(ctx, audit.ActionExecute, id)
		return nil, err
	}

	res, err := a.engine.Execute(ctx, id, caller, params)
	if err != nil {
		if errors.Is(err, ErrAuthentication) {
			a.recordAuthFailure(ctx, audit.ActionExecute, id)
		}
		return nil, err
	}

	a.record(ctx, &audit.Entry{
		Action:     audit.ActionExecute,
		EntityType: audit.EntityAutomation,
		EntityID:   strconv.Itoa(id),
		UserID:     user,
		Details: map[string]any{
			"success":     res.Success,
			"duration_ms": res.Duration.Milliseconds(),
			"error":       res.Error,
		},
	})

	success := res.Success
	a.publish(id, mqtt.EventExecuted, Event{
		Actor:      user,
		ScriptType: res.ScriptType,
		Success:    &success,
		Error:      res.Error,
		DurationMS: res.Duration.Milliseconds(),
	})

	if a.metrics != nil {
		a.metrics.WriteExecution(influxdb.Execution{
			AutomationID: id,
			ScriptType:   string(res.ScriptType),
			Success:      res.Success,
			Duration:     res.Duration,
			At:           a.now(),
		})
	}

	return res, nil
}

// UpdateAutomation replaces the script of automation id and appends a
// version. An identical script is a no-op.
func (a *Agent) UpdateAutomation(ctx context.Context, id int, script, caller string) (*automation.Automation, error) {
	user, err := a.identity(caller)
	if err != nil {
		a.recordAuthFailure(ctx, audit.ActionUpdate, id)
		return nil, err
	}

	before, err := a.store.Versions(id)
	if err != nil {
		return nil, err
	}

	updated, err := a.store.Update(ctx, id, script, user)
	if err != nil {
		return nil, err
	}
	if len(before) > 0 && before[len(before)-1].Version == updated.Version {
		a.logger.Debug("automation unchanged", "automation_id", id)
		return updated, nil
	}

	a.logger.Info("automation updated", "automation_id", id, "version", updated.Version, "user", user)
	a.record(ctx, &audit.Entry{
		Action:     audit.ActionUpdate,
		EntityType: audit.EntityAutomation,
		EntityID:   strconv.Itoa(id),
		UserID:     user,
		Details: map[string]any{
			"version":     updated.Version,
			"script_hash": updated.ScriptHash,
		},
	})
	a.publish(id, mqtt.EventUpdated, Event{
		Actor:      user,
		Version:    updated.Version,
		ScriptType: updated.ScriptType,
		ScriptHash: updated.ScriptHash,
	})

	return updated, nil
}

// Versions returns the version history of automation id, oldest first.
func (a *Agent) Versions(id int) ([]automation.VersionRecord, error) {
	return a.store.Versions(id)
}

// AuditLog lists audit entries, newest first.
func (a *Agent) AuditLog(ctx context.Context, filter audit.Filter) (*audit.ListResult, error) {
	if a.audit == nil {
		return nil, ErrAuditDisabled
	}
	return a.audit.List(ctx, filter)
}

func (a *Agent) recordAuthFailure(ctx context.Context, attempted string, id int) {
	a.logger.Warn("authentication failed", "action", attempted, "automation_id", id)
	entry := &audit.Entry{
		Action:     audit.ActionAuthFailure,
		EntityType: audit.EntityAutomation,
		Details:    map[string]any{"attempted": attempted},
	}
	if id > 0 {
		entry.EntityID = strconv.Itoa(id)
	}
	a.record(ctx, entry)
}

func (a *Agent) record(ctx context.Context, entry *audit.Entry) {
	if a.audit == nil {
		return
	}
	entry.Source = a.cfg.Source
	entry.CreatedAt = a.now().UTC()
	if err := a.audit.Create(ctx, entry); err != nil {
		a.logger.Warn("recording audit entry", "action", entry.Action, "error", err)
	}
}
