package automation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Store.
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

// Store owns the automation catalog. The whole catalog is held in memory
// and rewritten through the Backend after every mutation.
//
// A single mutex serialises every operation, including the backend write,
// so concurrent Adds never observe the same count and never lose an
// increment. If a write fails the in-memory change is rolled back.
//
// Returned automations are deep copies; callers can safely modify them.
type Store struct {
	mu      sync.Mutex
	backend Backend
	catalog *Catalog
	index   map[int]int // automation ID -> position in catalog.Automations
	logger  Logger
	now     func() time.Time
}

// NewStore creates a Store over backend. Call Load before use.
func NewStore(backend Backend) *Store {
	s := &Store{
		backend: backend,
		logger:  noopLogger{},
		now:     time.Now,
	}
	s.replace(NewCatalog())
	return s
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	s.logger = logger
}

// Load reads the catalog from the backend. Missing or corrupt data yields an
// empty catalog and a warning; the next mutation overwrites it.
// Other read failures are returned so an unreadable catalog is never
// silently replaced.
func (s *Store) Load(ctx context.Context) error {
	c, err := s.backend.Load(ctx)
	if err != nil {
		if !errors.Is(err, ErrCorruptCatalog) {
			return fmt.Errorf("loading catalog: %w", err)
		}
		s.logger.Warn("catalog unreadable, starting empty", "error", err)
		c = NewCatalog()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.replace(c)

	s.logger.Info("catalog loaded", "automations", len(c.Automations))
	return nil
}

// replace installs c and rebuilds the ID index. Caller holds mu or owns s exclusively.
func (s *Store) replace(c *Catalog) {
	s.catalog = c
	s.index = make(map[int]int, len(c.Automations))
	for i, a := range c.Automations {
		s.index[a.ID] = i
	}
}

// persist writes the catalog. Caller holds mu.
func (s *Store) persist(ctx context.Context) error {
	if err := s.backend.Save(ctx, s.catalog); err != nil {
		return fmt.Errorf("persisting catalog: %w", err)
	}
	return nil
}

// Add validates and appends a new automation with version 1.
// The ID is the current count plus one.
func (s *Store) Add(ctx context.Context, in NewAutomation) (*Automation, error) {
	if err := ValidateScript(in.Script, in.ScriptType); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := len(s.catalog.Automations) + 1
	if _, taken := s.index[id]; taken {
		return nil, fmt.Errorf("%w: id %d already assigned", ErrCorruptCatalog, id)
	}

	now := s.now().UTC()
	hash := ContentHash(in.Script)
	a := Automation{
		ID:         id,
		Question:   in.Question,
		Script:     in.Script,
		ScriptType: in.ScriptType,
		Tags:       append([]string{}, in.Tags...),
		CreatedAt:  now,
		CreatedBy:  in.CreatedBy,
		TimesUsed:  0,
		Version:    1,
		ScriptHash: hash,
	}
	key := versionKey(id)

	s.catalog.Automations = append(s.catalog.Automations, a)
	s.catalog.Versions[key] = []VersionRecord{{
		Version:    1,
		Script:     in.Script,
		ScriptHash: hash,
		ModifiedAt: now,
		ModifiedBy: in.CreatedBy,
	}}
	s.index[id] = len(s.catalog.Automations) - 1

	if err := s.persist(ctx); err != nil {
		s.catalog.Automations = s.catalog.Automations[:len(s.catalog.Automations)-1]
		delete(s.catalog.Versions, key)
		delete(s.index, id)
		return nil, err
	}

	s.logger.Info("automation added", "id", id, "script_type", in.ScriptType, "created_by", in.CreatedBy)
	return a.DeepCopy(), nil
}

// Search returns automations whose question or any tag contains query,
// case-insensitively, in insertion order. An empty query matches everything.
func (s *Store) Search(query string) []Automation {
	q := strings.ToLower(query)

	s.mu.Lock()
	defer s.mu.Unlock()

	results := []Automation{}
	for i := range s.catalog.Automations {
		a := &s.catalog.Automations[i]
		if matches(a, q) {
			results = append(results, *a.DeepCopy())
		}
	}
	return results
}

func matches(a *Automation, lowerQuery string) bool {
	if strings.Contains(strings.ToLower(a.Question), lowerQuery) {
		return true
	}
	for _, tag := range a.Tags {
		if strings.Contains(strings.ToLower(tag), lowerQuery) {
			return true
		}
	}
	return false
}

// Get returns the automation and records one use of it. The incremented
// counter is persisted before Get returns.
func (s *Store) Get(ctx context.Context, id int) (*Automation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}

	a := &s.catalog.Automations[pos]
	a.TimesUsed++
	if err := s.persist(ctx); err != nil {
		a.TimesUsed--
		return nil, err
	}
	return a.DeepCopy(), nil
}

// Update replaces the script of an existing automation and appends a new
// version record. Submitting the current script again is a no-op.
func (s *Store) Update(ctx context.Context, id int, script, modifiedBy string) (*Automation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	a := &s.catalog.Automations[pos]

	if err := ValidateScript(script, a.ScriptType); err != nil {
		return nil, err
	}

	hash := ContentHash(script)
	if hash == a.ScriptHash {
		return a.DeepCopy(), nil
	}

	prev := *a
	key := versionKey(id)
	history := s.catalog.Versions[key]

	// History is authoritative if it ran ahead of the automation record.
	next := a.Version + 1
	if n := len(history); n > 0 && history[n-1].Version >= next {
		next = history[n-1].Version + 1
	}

	a.Script = script
	a.ScriptHash = hash
	a.Version = next
	s.catalog.Versions[key] = append(history, VersionRecord{
		Version:    next,
		Script:     script,
		ScriptHash: hash,
		ModifiedAt: s.now().UTC(),
		ModifiedBy: modifiedBy,
	})

	if err := s.persist(ctx); err != nil {
		*a = prev
		s.catalog.Versions[key] = history
		return nil, err
	}

	s.logger.Info("automation updated", "id", id, "version", next, "modified_by", modifiedBy)
	return a.DeepCopy(), nil
}

// Versions returns the version history of an automation, oldest first.
func (s *Store) Versions(id int) ([]VersionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[id]; !ok {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return append([]VersionRecord{}, s.catalog.Versions[versionKey(id)]...), nil
}

// List returns every automation in insertion order.
func (s *Store) List() []Automation {
	return s.Search("")
}

// Count returns the number of automations.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.catalog.Automations)
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}
