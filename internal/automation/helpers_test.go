package automation

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

var errDiskFull = errors.New("disk full")

// memoryBackend keeps the last saved catalog and can be told to fail.
type memoryBackend struct {
	mu       sync.Mutex
	saved    *Catalog
	saves    int
	failSave bool
	loadErr  error
}

func (m *memoryBackend) Load(context.Context) (*Catalog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.saved == nil {
		return NewCatalog(), nil
	}
	return m.saved.DeepCopy(), nil
}

func (m *memoryBackend) Save(_ context.Context, c *Catalog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave {
		return errDiskFull
	}
	m.saved = c.DeepCopy()
	m.saves++
	return nil
}

func (m *memoryBackend) Close() error { return nil }

func (m *memoryBackend) setFailSave(v bool) {
	m.mu.Lock()
	m.failSave = v
	m.mu.Unlock()
}

// newTestStore returns a loaded store over a memoryBackend with a fixed clock.
func newTestStore(t *testing.T) (*Store, *memoryBackend) {
	t.Helper()
	backend := &memoryBackend{}
	s := NewStore(backend)
	s.now = func() time.Time { return time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC) }
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return s, backend
}

// newFileStore returns a loaded store persisted to a temp JSON file.
func newFileStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "automations.json")
	s := NewStore(NewFileBackend(path))
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return s, path
}

func mustAdd(t *testing.T, s *Store, question, script string, tags ...string) *Automation {
	t.Helper()
	a, err := s.Add(context.Background(), NewAutomation{
		Question:   question,
		Script:     script,
		Tags:       tags,
		ScriptType: ScriptShell,
		CreatedBy:  "u1",
	})
	if err != nil {
		t.Fatalf("Add(%q) error = %v", question, err)
	}
	return a
}
