package execution

import (
	"context"
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/nerrad567/runbook-core/internal/automation"
)

// maxConvertDepth stops conversion of self-referencing tables.
const maxConvertDepth = 32

// DefaultMaxStringBytes caps strings built by string.rep and table.concat.
const DefaultMaxStringBytes = 16 << 20

// Globals removed from every sandbox: they reach the filesystem or compile
// arbitrary chunks at runtime.
var luaBlockedGlobals = []string{"dofile", "loadfile", "load", "loadstring", "require", "module"}

// LuaRunner runs scripts in a fresh sandboxed interpreter per call.
//
// Scripts receive their parameters in the global `params` and hand back a
// value by assigning the global `result`. Only the base, table, string and
// math libraries are available.
//
// string.rep and table.concat raise a Lua error instead of building a
// string larger than the configured limit; a failed Go allocation is fatal
// and cannot be recovered. The `..` operator has no hook and is left to the
// run timeout.
type LuaRunner struct {
	logger         Logger
	maxStringBytes int
}

// NewLuaRunner creates a LuaRunner with DefaultMaxStringBytes.
func NewLuaRunner() *LuaRunner {
	return &LuaRunner{logger: noopLogger{}, maxStringBytes: DefaultMaxStringBytes}
}

// SetMaxStringBytes sets the string size limit. Non-positive values restore
// the default.
func (r *LuaRunner) SetMaxStringBytes(n int) {
	if n <= 0 {
		n = DefaultMaxStringBytes
	}
	r.maxStringBytes = n
}

// SetLogger routes script print output to logger.
func (r *LuaRunner) SetLogger(logger Logger) {
	r.logger = logger
}

// Run implements Runner.
func (r *LuaRunner) Run(ctx context.Context, a *automation.Automation, params map[string]any) (any, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()

	if err := openSandboxLibs(L); err != nil {
		return nil, err
	}
	r.boundStringBuilders(L)
	for _, name := range luaBlockedGlobals {
		L.SetGlobal(name, lua.LNil)
	}
	L.SetGlobal("print", L.NewFunction(func(L *lua.LState) int {
		parts := make([]string, L.GetTop())
		for i := range parts {
			parts[i] = L.ToStringMeta(L.Get(i + 1)).String()
		}
		r.logger.Info("lua print", "automation_id", a.ID, "msg", strings.Join(parts, "\t"))
		return 0
	}))

	if len(params) > 0 {
		L.SetGlobal("params", goToLua(L, params))
	}

	L.SetContext(ctx)
	if err := L.DoString(a.Script); err != nil {
		return nil, fmt.Errorf("running lua: %w", err)
	}

	return luaToGo(L.GetGlobal("result"), 0), nil
}

func openSandboxLibs(L *lua.LState) error {
	libs := []struct {
		name string
		open lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	}
	for _, lib := range libs {
		err := L.CallByParam(lua.P{
			Fn:      L.NewFunction(lib.open),
			NRet:    0,
			Protect: true,
		}, lua.LString(lib.name))
		if err != nil {
			return fmt.Errorf("opening lua %s library: %w", lib.name, err)
		}
	}
	return nil
}

// boundStringBuilders replaces string.rep and table.concat with versions
// that check the result size before allocating. The string table is also
// the __index of string values, so ("x"):rep(n) is covered too.
func (r *LuaRunner) boundStringBuilders(L *lua.LState) {
	limit := r.maxStringBytes

	if str, ok := L.GetGlobal(lua.StringLibName).(*lua.LTable); ok {
		str.RawSetString("rep", L.NewFunction(func(L *lua.LState) int {
			s := L.CheckString(1)
			n := L.CheckInt(2)
			if n <= 0 || len(s) == 0 {
				L.Push(lua.LString(""))
				return 1
			}
			if n > limit/len(s) {
				L.RaiseError("string.rep: result exceeds %d bytes", limit)
				return 0
			}
			L.Push(lua.LString(strings.Repeat(s, n)))
			return 1
		}))
	}

	if tbl, ok := L.GetGlobal(lua.TabLibName).(*lua.LTable); ok {
		tbl.RawSetString("concat", L.NewFunction(func(L *lua.LState) int {
			t := L.CheckTable(1)
			sep := L.OptString(2, "")
			i := L.OptInt(3, 1)
			j := L.OptInt(4, t.Len())

			parts := make([]string, 0, max(j-i+1, 0))
			size := 0
			for k := i; k <= j; k++ {
				v := t.RawGetInt(k)
				if !lua.LVCanConvToString(v) {
					L.RaiseError("invalid value (at index %d) in table for 'concat'", k)
					return 0
				}
				part := lua.LVAsString(v)
				size += len(part)
				if k > i {
					size += len(sep)
				}
				if size > limit {
					L.RaiseError("table.concat: result exceeds %d bytes", limit)
					return 0
				}
				parts = append(parts, part)
			}
			L.Push(lua.LString(strings.Join(parts, sep)))
			return 1
		}))
	}
}

// goToLua converts a Go value, typically decoded JSON, to a Lua value.
func goToLua(L *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case string:
		return lua.LString(val)
	case int:
		return lua.LNumber(val)
	case int32:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case uint:
		return lua.LNumber(val)
	case uint32:
		return lua.LNumber(val)
	case uint64:
		return lua.LNumber(val)
	case float32:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case map[string]any:
		t := L.NewTable()
		for k, vv := range val {
			t.RawSetString(k, goToLua(L, vv))
		}
		return t
	case []any:
		t := L.NewTable()
		for i, vv := range val {
			t.RawSetInt(i+1, goToLua(L, vv))
		}
		return t
	case []string:
		t := L.NewTable()
		for i, vv := range val {
			t.RawSetInt(i+1, lua.LString(vv))
		}
		return t
	default:
		return lua.LString(fmt.Sprintf("%v", val))
	}
}

// luaToGo converts a Lua value to plain Go data. Sequences become []any,
// other tables become map[string]any. Numbers are float64.
func luaToGo(v lua.LValue, depth int) any {
	switch val := v.(type) {
	case *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(val)
	case lua.LString:
		return string(val)
	case lua.LNumber:
		return float64(val)
	case *lua.LTable:
		if depth >= maxConvertDepth {
			return nil
		}
		return tableToGo(val, depth+1)
	default:
		return v.String()
	}
}

func tableToGo(t *lua.LTable, depth int) any {
	n := t.Len()
	count := 0
	t.ForEach(func(lua.LValue, lua.LValue) { count++ })

	if n > 0 && n == count {
		out := make([]any, 0, n)
		for i := 1; i <= n; i++ {
			out = append(out, luaToGo(t.RawGetInt(i), depth))
		}
		return out
	}

	out := make(map[string]any, count)
	t.ForEach(func(k, v lua.LValue) {
		out[k.String()] = luaToGo(v, depth)
	})
	return out
}
