// Package execution runs catalog automations.
//
// The Engine checks the caller with an optional Authorizer, resolves the
// automation from an AutomationSource and hands it to the Runner registered
// for its script type. Two runners are provided:
//
//   - ShellRunner: `/bin/sh -c <script>` via internal/process, capturing
//     stdout, stderr and the exit status
//   - LuaRunner: a fresh gopher-lua state per run with file and module
//     loading removed
//
// Every run is bounded by the engine timeout. Failures inside a run,
// including runner panics, are reported in Result rather than returned.
//
// Example usage:
//
//	engine := execution.NewEngine(store, authManager, cfg.ExecutionTimeout())
//	engine.Register(automation.ScriptShell, shellRunner)
//	engine.Register(automation.ScriptLua, execution.NewLuaRunner())
//
//	res, err := engine.Execute(ctx, 7, token, map[string]any{"host": "db1"})
//	if errors.Is(err, execution.ErrAuthentication) {
//	    // reject
//	}
package execution
