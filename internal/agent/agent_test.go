package agent

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/runbook-core/internal/audit"
	"github.com/nerrad567/runbook-core/internal/automation"
	"github.com/nerrad567/runbook-core/internal/execution"
)

func TestNew_RequiresVerifierWhenAuthRequired(t *testing.T) {
	store := automation.NewStore(automation.NewFileBackend(t.TempDir() + "/a.json"))
	engine := execution.NewEngine(store, nil, 0)

	if _, err := New(store, engine, nil, Config{AuthRequired: true}); err == nil {
		t.Error("New() without verifier should fail when auth is required")
	}
	if _, err := New(store, engine, nil, Config{}); err != nil {
		t.Errorf("New() error = %v", err)
	}
	if _, err := New(nil, engine, nil, Config{}); err == nil {
		t.Error("New() without store should fail")
	}
}

func TestAddGetExecute_EndToEnd(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	id, err := h.agent.AddAutomation(ctx, "check disk", "df -h", []string{"system"}, automation.ScriptShell, h.token)
	if err != nil {
		t.Fatalf("AddAutomation() error = %v", err)
	}
	if id != 1 {
		t.Errorf("id = %d, want 1", id)
	}

	got, err := h.agent.GetAutomation(ctx, id)
	if err != nil {
		t.Fatalf("GetAutomation() error = %v", err)
	}
	if got.Version != 1 || got.CreatedBy != "u1" {
		t.Errorf("GetAutomation() = version %d created_by %q, want 1/u1", got.Version, got.CreatedBy)
	}
	if got.ScriptHash != automation.ContentHash("df -h") {
		t.Errorf("ScriptHash = %q, want ContentHash(script)", got.ScriptHash)
	}

	res, err := h.agent.ExecuteAutomation(ctx, id, h.token, nil)
	if err != nil {
		t.Fatalf("ExecuteAutomation() error = %v", err)
	}
	if !res.Success {
		t.Fatalf("Success = false, Error = %q", res.Error)
	}
	out := res.Result.(*execution.ShellOutput)
	if !strings.Contains(out.Stdout, "Filesystem") {
		t.Errorf("Stdout = %q, want Filesystem header", out.Stdout)
	}
}

func TestExecute_UnauthorizedLeavesCatalogUnchanged(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	id, err := h.agent.AddAutomation(ctx, "check disk", "df -h", nil, automation.ScriptShell, h.token)
	if err != nil {
		t.Fatalf("AddAutomation() error = %v", err)
	}
	versionsBefore, _ := h.agent.Versions(id)

	_, err = h.agent.ExecuteAutomation(ctx, id, "not-a-token", nil)
	if !errors.Is(err, ErrAuthentication) {
		t.Fatalf("ExecuteAutomation() error = %v, want ErrAuthentication", err)
	}

	a := h.store.List()[0]
	if a.TimesUsed != 0 {
		t.Errorf("TimesUsed = %d, want 0", a.TimesUsed)
	}
	versionsAfter, _ := h.agent.Versions(id)
	if !reflect.DeepEqual(versionsBefore, versionsAfter) {
		t.Errorf("versions changed: %v -> %v", versionsBefore, versionsAfter)
	}

	page, err := h.agent.AuditLog(ctx, audit.Filter{Action: audit.ActionAuthFailure})
	if err != nil {
		t.Fatalf("AuditLog() error = %v", err)
	}
	if page.Total != 1 {
		t.Errorf("auth_failure entries = %d, want 1", page.Total)
	}
}

func TestExecute_GatedWhenEngineHasNoAuthorizer(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	if _, err := h.agent.AddAutomation(ctx, "answer", "result = 42", nil, automation.ScriptLua, h.token); err != nil {
		t.Fatalf("AddAutomation() error = %v", err)
	}

	engine := execution.NewEngine(h.store, nil, 5*time.Second)
	engine.Register(automation.ScriptLua, execution.NewLuaRunner())
	a, err := New(h.store, engine, h.auth, Config{AuthRequired: true})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	res, err := a.ExecuteAutomation(ctx, 1, "garbage-token", nil)
	if !errors.Is(err, ErrAuthentication) {
		t.Fatalf("ExecuteAutomation() = %+v, %v, want ErrAuthentication", res, err)
	}
	if got := h.store.List()[0].TimesUsed; got != 0 {
		t.Errorf("TimesUsed = %d, want 0", got)
	}

	res, err = a.ExecuteAutomation(ctx, 1, h.token, nil)
	if err != nil {
		t.Fatalf("ExecuteAutomation() with valid token error = %v", err)
	}
	if !res.Success || res.Result != float64(42) {
		t.Errorf("Result = %+v, want success with 42", res)
	}
}

func TestAdd_Unauthorized(t *testing.T) {
	h := newHarness(t, true)

	_, err := h.agent.AddAutomation(context.Background(), "q", "echo", nil, automation.ScriptShell, "")
	if !errors.Is(err, ErrAuthentication) {
		t.Fatalf("AddAutomation() error = %v, want ErrAuthentication", err)
	}
	if h.store.Count() != 0 {
		t.Errorf("Count() = %d, want 0", h.store.Count())
	}
}

func TestAdd_ValidationError(t *testing.T) {
	h := newHarness(t, true)

	for _, st := range automation.AllScriptTypes() {
		_, err := h.agent.AddAutomation(context.Background(), "q", "   ", nil, st, h.token)
		if !errors.Is(err, automation.ErrValidation) {
			t.Errorf("AddAutomation(%s, empty) error = %v, want ErrValidation", st, err)
		}
	}
	if h.store.Count() != 0 {
		t.Errorf("Count() = %d, want 0", h.store.Count())
	}
}

func TestAuthNotRequired_CallerIsIdentity(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	id, err := h.agent.AddAutomation(ctx, "hello", `result = "hi " .. params.name`, []string{"demo"}, automation.ScriptLua, "alice")
	if err != nil {
		t.Fatalf("AddAutomation() error = %v", err)
	}

	res, err := h.agent.ExecuteAutomation(ctx, id, "alice", map[string]any{"name": "bob"})
	if err != nil {
		t.Fatalf("ExecuteAutomation() error = %v", err)
	}
	if !res.Success || res.Result != "hi bob" {
		t.Errorf("Result = %+v, want success hi bob", res)
	}

	got := h.store.List()[0]
	if got.CreatedBy != "alice" {
		t.Errorf("CreatedBy = %q, want alice", got.CreatedBy)
	}
}

func TestSearch(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	for _, in := range []struct {
		q    string
		tags []string
	}{
		{"check disk usage", []string{"system"}},
		{"restart nginx", []string{"web"}},
		{"list open ports", []string{"network", "system"}},
	} {
		if _, err := h.agent.AddAutomation(ctx, in.q, "true", in.tags, automation.ScriptShell, "u"); err != nil {
			t.Fatalf("AddAutomation(%q) error = %v", in.q, err)
		}
	}

	if got := h.agent.SearchAutomation("zzz"); len(got) != 0 {
		t.Errorf("Search(zzz) = %d results, want 0", len(got))
	}

	got := h.agent.SearchAutomation("SYSTEM")
	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 3 {
		t.Errorf("Search(SYSTEM) ids = %v, want [1 3]", ids(got))
	}

	if got := h.agent.SearchAutomation("DISK"); len(got) != 1 || got[0].Question != "check disk usage" {
		t.Errorf("Search(DISK) = %v", ids(got))
	}

	all := h.agent.ListAutomations()
	if len(all) != 3 || all[0].ID != 1 || all[2].ID != 3 {
		t.Errorf("ListAutomations() ids = %v, want [1 2 3]", ids(all))
	}
	for _, a := range all {
		if a.TimesUsed != 0 {
			t.Errorf("automation %d TimesUsed = %d after search and list, want 0", a.ID, a.TimesUsed)
		}
	}
}

func ids(as []automation.Automation) []int {
	out := make([]int, len(as))
	for i, a := range as {
		out[i] = a.ID
	}
	return out
}

func TestGet_CountsUses(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	id, err := h.agent.AddAutomation(ctx, "q", "true", nil, automation.ScriptShell, "u")
	if err != nil {
		t.Fatalf("AddAutomation() error = %v", err)
	}
	for _i := 0; _i < 3; _i++ {
		if _, err := h.agent.GetAutomation(ctx, id); err != nil {
			t.Fatalf("GetAutomation() error = %v", err)
		}
	}
	if got := h.store.List()[0].TimesUsed; got != 3 {
		t.Errorf("TimesUsed = %d, want 3", got)
	}

	if _, err := h.agent.GetAutomation(ctx, 99); !errors.Is(err, automation.ErrNotFound) {
		t.Errorf("GetAutomation(99) error = %v, want ErrNotFound", err)
	}
}

func TestExecute_FailureIsInBand(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	id, err := h.agent.AddAutomation(ctx, "boom", `error("boom")`, nil, automation.ScriptLua, "u")
	if err != nil {
		t.Fatalf("AddAutomation() error = %v", err)
	}

	res, err := h.agent.ExecuteAutomation(ctx, id, "u", nil)
	if err != nil {
		t.Fatalf("ExecuteAutomation() error = %v", err)
	}
	if res.Success || res.AutomationID != id || !strings.Contains(res.Error, "boom") {
		t.Errorf("Result = %+v, want in-band failure", res)
	}

	if len(h.metrics.writes) != 1 || h.metrics.writes[0].Success {
		t.Errorf("metrics = %+v, want one failed execution", h.metrics.writes)
	}
}

func TestUpdate(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	id, err := h.agent.AddAutomation(ctx, "q", "echo one", nil, automation.ScriptShell, h.token)
	if err != nil {
		t.Fatalf("AddAutomation() error = %v", err)
	}

	updated, err := h.agent.UpdateAutomation(ctx, id, "echo two", h.token)
	if err != nil {
		t.Fatalf("UpdateAutomation() error = %v", err)
	}
	if updated.Version != 2 {
		t.Errorf("Version = %d, want 2", updated.Version)
	}

	// Identical script: no new version, no event.
	eventsBefore := len(h.events.topics())
	same, err := h.agent.UpdateAutomation(ctx, id, "echo two", h.token)
	if err != nil {
		t.Fatalf("UpdateAutomation(same) error = %v", err)
	}
	if same.Version != 2 {
		t.Errorf("Version after no-op = %d, want 2", same.Version)
	}
	if len(h.events.topics()) != eventsBefore {
		t.Error("no-op update published an event")
	}

	versions, err := h.agent.Versions(id)
	if err != nil {
		t.Fatalf("Versions() error = %v", err)
	}
	if len(versions) != 2 || versions[0].Script != "echo one" || versions[1].Version != 2 {
		t.Errorf("Versions() = %+v", versions)
	}

	if _, err := h.agent.UpdateAutomation(ctx, id, "echo three", "bad"); !errors.Is(err, ErrAuthentication) {
		t.Errorf("UpdateAutomation(bad token) error = %v, want ErrAuthentication", err)
	}
	if _, err := h.agent.UpdateAutomation(ctx, 42, "echo", h.token); !errors.Is(err, automation.ErrNotFound) {
		t.Errorf("UpdateAutomation(42) error = %v, want ErrNotFound", err)
	}
}

func TestEventsAndAudit(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	id, err := h.agent.AddAutomation(ctx, "q", "true", nil, automation.ScriptShell, h.token)
	if err != nil {
		t.Fatalf("AddAutomation() error = %v", err)
	}
	if _, err := h.agent.UpdateAutomation(ctx, id, "true; true", h.token); err != nil {
		t.Fatalf("UpdateAutomation() error = %v", err)
	}
	if _, err := h.agent.ExecuteAutomation(ctx, id, h.token, nil); err != nil {
		t.Fatalf("ExecuteAutomation() error = %v", err)
	}

	want := []string{
		"runbook/automation/1/created",
		"runbook/automation/1/updated",
		"runbook/automation/1/executed",
	}
	if got := h.events.topics(); !reflect.DeepEqual(got, want) {
		t.Errorf("topics = %v, want %v", got, want)
	}
	executed := h.events.events[2].event
	if executed.Actor != "u1" || executed.Success == nil || !*executed.Success {
		t.Errorf("executed event = %+v", executed)
	}

	page, err := h.agent.AuditLog(ctx, audit.Filter{EntityID: "1"})
	if err != nil {
		t.Fatalf("AuditLog() error = %v", err)
	}
	if page.Total != 3 {
		t.Fatalf("audit entries = %d, want 3", page.Total)
	}
	for _, e := range page.Entries {
		if e.UserID != "u1" || e.Source != "cli" {
			t.Errorf("entry %s: user %q source %q", e.Action, e.UserID, e.Source)
		}
	}

	if len(h.metrics.writes) != 1 || h.metrics.writes[0].AutomationID != 1 || h.metrics.writes[0].ScriptType != "bash" {
		t.Errorf("metrics = %+v", h.metrics.writes)
	}
}

func TestSideEffectFailuresDoNotFailOperation(t *testing.T) {
	h := newHarness(t, false)
	h.agent.SetAuditRepository(failingAudit{})
	h.events.err = errors.New("broker down")

	id, err := h.agent.AddAutomation(context.Background(), "q", "true", nil, automation.ScriptShell, "u")
	if err != nil {
		t.Fatalf("AddAutomation() error = %v", err)
	}
	if _, err := h.agent.ExecuteAutomation(context.Background(), id, "u", nil); err != nil {
		t.Fatalf("ExecuteAutomation() error = %v", err)
	}
}

func TestAuditLog_Disabled(t *testing.T) {
	h := newHarness(t, false)
	h.agent.SetAuditRepository(nil)

	if _, err := h.agent.AuditLog(context.Background(), audit.Filter{}); !errors.Is(err, ErrAuditDisabled) {
		t.Errorf("AuditLog() error = %v, want ErrAuditDisabled", err)
	}
}
