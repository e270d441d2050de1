package auth

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/runbook-core/internal/infrastructure/database"
	"github.com/nerrad567/runbook-core/migrations"
)

const testSecret = "test-secret-key-at-least-32-chars!"

// testDB opens a temporary SQLite database with the schema migrations applied.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{
		Path:        filepath.Join(t.TempDir(), "auth-test.db"),
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
	return db.DB
}

// fakeClock is a settable time source.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestManager(t *testing.T, clock *fakeClock) *Manager {
	t.Helper()
	cfg := ManagerConfig{Secret: testSecret}
	if clock != nil {
		cfg.Now = clock.Now
	}
	m, err := NewManager(NewMemoryUserRepository(), cfg)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	return m
}
