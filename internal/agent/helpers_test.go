package agent

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/runbook-core/internal/audit"
	"github.com/nerrad567/runbook-core/internal/auth"
	"github.com/nerrad567/runbook-core/internal/automation"
	"github.com/nerrad567/runbook-core/internal/execution"
	"github.com/nerrad567/runbook-core/internal/infrastructure/database"
	"github.com/nerrad567/runbook-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/runbook-core/internal/process"
	"github.com/nerrad567/runbook-core/migrations"
)

const testSecret = "agent-test-secret-at-least-32-chars"

// harness bundles an agent with its collaborators.
type harness struct {
	agent   *Agent
	store   *automation.Store
	auth    *auth.Manager
	audit   *audit.SQLiteRepository
	events  *fakePublisher
	metrics *fakeMetrics
	token   string
}

func newHarness(t *testing.T, authRequired bool) *harness {
	t.Helper()
	ctx := context.Background()

	store := automation.NewStore(automation.NewFileBackend(filepath.Join(t.TempDir(), "automations.json")))
	if err := store.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	mgr, err := auth.NewManager(auth.NewMemoryUserRepository(), auth.ManagerConfig{Secret: testSecret})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	if _, err := mgr.CreateUser(ctx, "u1", "correct horse"); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	token, err := mgr.IssueToken(ctx, "u1", "correct horse")
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	var authorizer execution.Authorizer
	if authRequired {
		authorizer = mgr
	}
	engine := execution.NewEngine(store, authorizer, 10*time.Second)
	shell, err := execution.NewShellRunner("", process.NewRunner(0))
	if err != nil {
		t.Fatalf("NewShellRunner() error = %v", err)
	}
	engine.Register(automation.ScriptShell, shell)
	engine.Register(automation.ScriptLua, execution.NewLuaRunner())

	a, err := New(store, engine, mgr, Config{AuthRequired: authRequired})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	h := &harness{
		agent:   a,
		store:   store,
		auth:    mgr,
		audit:   audit.NewSQLiteRepository(testDB(t).DB),
		events:  &fakePublisher{},
		metrics: &fakeMetrics{},
		token:   token,
	}
	a.SetAuditRepository(h.audit)
	a.SetEventPublisher(h.events)
	a.SetMetricsWriter(h.metrics)
	return h
}

func testDB(t *testing.T) *database.DB {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{
		Path:        filepath.Join(t.TempDir(), "agent-test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("applying migrations: %v", err)
	}
	return db
}

type publishedEvent struct {
	topic string
	event Event
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *fakePublisher) PublishJSON(topic string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, publishedEvent{topic: topic, event: v.(Event)})
	return nil
}

func (p *fakePublisher) topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.topic
	}
	return out
}

type fakeMetrics struct {
	mu     sync.Mutex
	writes []influxdb.Execution
}

func (m *fakeMetrics) WriteExecution(e influxdb.Execution) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = append(m.writes, e)
}

// failingAudit rejects every write.
type failingAudit struct{}

func (failingAudit) Create(context.Context, *audit.Entry) error {
	return context.DeadlineExceeded
}

func (failingAudit) List(context.Context, audit.Filter) (*audit.ListResult, error) {
	return &audit.ListResult{}, nil
}
