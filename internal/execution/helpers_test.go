package execution

import (
	"context"
	"sync"

	"github.com/nerrad567/runbook-core/internal/automation"
)

// fakeSource serves automations from memory and counts lookups.
type fakeSource struct {
	mu    sync.Mutex
	items map[int]*automation.Automation
	gets  int
}

func newFakeSource(items ...*automation.Automation) *fakeSource {
	s := &fakeSource{items: make(map[int]*automation.Automation)}
	for _, a := range items {
		s.items[a.ID] = a
	}
	return s
}

func (s *fakeSource) Get(_ context.Context, id int) (*automation.Automation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.items[id]
	if !ok {
		return nil, automation.ErrNotFound
	}
	s.gets++
	a.TimesUsed++
	return a.DeepCopy(), nil
}

func (s *fakeSource) getCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets
}

// staticAuth accepts exactly one token.
type staticAuth struct {
	token string
}

func (a staticAuth) Authorize(token string) bool {
	return token == a.token
}

// runnerFunc adapts a function to Runner.
type runnerFunc func(ctx context.Context, a *automation.Automation, params map[string]any) (any, error)

func (f runnerFunc) Run(ctx context.Context, a *automation.Automation, params map[string]any) (any, error) {
	return f(ctx, a, params)
}

// recordingLogger captures Info messages.
type recordingLogger struct {
	mu   sync.Mutex
	msgs []string
	args [][]any
}

func (l *recordingLogger) Debug(string, ...any) {}
func (l *recordingLogger) Warn(string, ...any)  {}
func (l *recordingLogger) Error(string, ...any) {}

func (l *recordingLogger) Info(msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = append(l.msgs, msg)
	l.args = append(l.args, args)
}

func shellAutomation(id int, script string) *automation.Automation {
	return &automation.Automation{ID: id, Script: script, ScriptType: automation.ScriptShell, Version: 1}
}

func luaAutomation(id int, script string) *automation.Automation {
	return &automation.Automation{ID: id, Script: script, ScriptType: automation.ScriptLua, Version: 1}
}
