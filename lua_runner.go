package enhance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"
)

type luaRunnerConfig struct {
	registry *FunctionRegistry
	timeout  time.Duration
}

// LuaRunnerOption configures the Lua runner.
type LuaRunnerOption func(*luaRunnerConfig)

// LuaWithFunctionRegistry applies a FunctionRegistry to the Lua runner.
func LuaWithFunctionRegistry(registry *FunctionRegistry) LuaRunnerOption {
	return func(cfg *luaRunnerConfig) {
		if registry == nil {
			return
		}
		cfg.registry = registry.Clone()
	}
}

// LuaWithTimeout bounds each run. Zero keeps DefaultScriptTimeout.
func LuaWithTimeout(timeout time.Duration) LuaRunnerOption {
	return func(cfg *luaRunnerConfig) {
		cfg.timeout = timeout
	}
}

type luaRunner struct {
	registry *FunctionRegistry
	timeout  time.Duration
}

// NewLuaRunner constructs a Runner backed by gopher-lua. Scripts must define
// a main(config) function; the returned table becomes the run's document.
func NewLuaRunner(opts ...LuaRunnerOption) Runner {
	cfg := luaRunnerConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &luaRunner{
		registry: cfg.registry,
		timeout:  cfg.timeout,
	}
}

func (r *luaRunner) Name() string { return "lua" }

func (r *luaRunner) Run(ctx context.Context, program string, input Document) (result RunResult, err error) {
	if strings.TrimSpace(program) == "" {
		return RunResult{}, wrapScriptError("lua", "", ScriptErrorRuntime, fmt.Errorf("program must not be empty"))
	}
	if ctx == nil {
		ctx = context.Background()
	}
	timeout := r.timeout
	if timeout <= 0 {
		timeout = DefaultScriptTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	defer func() {
		if recovered := recover(); recovered != nil {
			err = wrapScriptError("lua", "", ScriptErrorRuntime, fmt.Errorf("lua panic: %v", recovered))
		}
	}()

	state := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer state.Close()
	state.SetContext(runCtx)

	openSafeLuaLibraries(state)
	logs := installLuaPrint(state)
	r.injectLuaHelpers(state)

	if err := state.DoString(program); err != nil {
		return RunResult{Logs: *logs}, wrapScriptError("lua", "", classifyLuaError(runCtx, err), err)
	}

	mainFn := state.GetGlobal("main")
	if mainFn.Type() != lua.LTFunction {
		return RunResult{Logs: *logs}, wrapScriptError("lua", "", ScriptErrorRuntime, errors.New("script must contain a main function"))
	}

	callErr := state.CallByParam(lua.P{
		Fn:      mainFn,
		NRet:    1,
		Protect: true,
	}, toLuaValue(state, CloneDocument(input)))
	if callErr != nil {
		return RunResult{Logs: *logs}, wrapScriptError("lua", "", classifyLuaError(runCtx, callErr), callErr)
	}

	returned := state.Get(-1)
	state.Pop(1)

	doc, ok := normalizeValue(toGoValue(returned)).(map[string]any)
	if !ok {
		return RunResult{Logs: *logs}, wrapScriptError("lua", "", ScriptErrorRuntime, fmt.Errorf("main must return a table, got %s", returned.Type()))
	}
	return RunResult{Document: doc, Logs: *logs}, nil
}

// Check loads the program in a throwaway sandboxed state and verifies it
// defines a main function, without calling it.
func (r *luaRunner) Check(program string) (err error) {
	if strings.TrimSpace(program) == "" {
		return wrapScriptError("lua", "", ScriptErrorRuntime, fmt.Errorf("program must not be empty"))
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			err = wrapScriptError("lua", "", ScriptErrorRuntime, fmt.Errorf("lua panic: %v", recovered))
		}
	}()

	checkCtx, cancel := context.WithTimeout(context.Background(), DefaultScriptTimeout)
	defer cancel()

	state := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer state.Close()
	state.SetContext(checkCtx)

	openSafeLuaLibraries(state)
	installLuaPrint(state)
	r.injectLuaHelpers(state)

	if err := state.DoString(program); err != nil {
		return wrapScriptError("lua", "", classifyLuaError(checkCtx, err), err)
	}
	if state.GetGlobal("main").Type() != lua.LTFunction {
		return wrapScriptError("lua", "", ScriptErrorRuntime, errors.New("script must contain a main function"))
	}
	return nil
}

// openSafeLuaLibraries opens base, table, string, and math only. io, os,
// debug, and package stay closed; the loader functions opened by the base
// library are removed so scripts cannot reach code outside the program text.
func openSafeLuaLibraries(state *lua.LState) {
	lua.OpenBase(state)
	lua.OpenTable(state)
	lua.OpenString(state)
	lua.OpenMath(state)

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring"} {
		state.SetGlobal(name, lua.LNil)
	}
}

func installLuaPrint(state *lua.LState) *[]string {
	logs := &[]string{}
	state.SetGlobal("print", state.NewFunction(func(L *lua.LState) int {
		top := L.GetTop()
		parts := make([]string, 0, top)
		for i := 1; i <= top; i++ {
			parts = append(parts, L.Get(i).String())
		}
		*logs = append(*logs, strings.Join(parts, "\t"))
		return 0
	}))
	return logs
}

func (r *luaRunner) injectLuaHelpers(state *lua.LState) {
	if r.registry == nil {
		return
	}
	state.SetGlobal("call", state.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		args := make([]any, 0, L.GetTop()-1)
		for i := 2; i <= L.GetTop(); i++ {
			args = append(args, toGoValue(L.Get(i)))
		}
		result, err := r.registry.Call(name, args...)
		if err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		L.Push(toLuaValue(L, result))
		return 1
	}))
	for _, name := range r.registry.Names() {
		fn := name
		state.SetGlobal(fn, state.NewFunction(func(L *lua.LState) int {
			args := make([]any, 0, L.GetTop())
			for i := 1; i <= L.GetTop(); i++ {
				args = append(args, toGoValue(L.Get(i)))
			}
			result, err := r.registry.Call(fn, args...)
			if err != nil {
				L.RaiseError("%s", err.Error())
				return 0
			}
			L.Push(toLuaValue(L, result))
			return 1
		}))
	}
}

func classifyLuaError(ctx context.Context, err error) ScriptErrorKind {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ScriptErrorTimeout
	}
	return ScriptErrorRuntime
}

// toLuaValue converts a Go value into its Lua representation.
func toLuaValue(state *lua.LState, value any) lua.LValue {
	switch typed := value.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(typed)
	case int:
		return lua.LNumber(typed)
	case int64:
		return lua.LNumber(typed)
	case uint64:
		return lua.LNumber(typed)
	case float64:
		return lua.LNumber(typed)
	case string:
		return lua.LString(typed)
	case []any:
		table := state.NewTable()
		for i, item := range typed {
			table.RawSetInt(i+1, toLuaValue(state, item))
		}
		return table
	case map[string]any:
		table := state.NewTable()
		for key, item := range typed {
			table.RawSetString(key, toLuaValue(state, item))
		}
		return table
	default:
		return lua.LString(fmt.Sprintf("%v", typed))
	}
}

// toGoValue converts a Lua value back into a Go value. Tables with
// contiguous integer keys from 1 become slices; everything else becomes a
// string-keyed map. Integral numbers come back as int64 so re-encoded YAML
// stays integer-typed.
func toGoValue(value lua.LValue) any {
	return toGoValueVisited(value, make(map[*lua.LTable]bool))
}

func toGoValueVisited(value lua.LValue, visited map[*lua.LTable]bool) any {
	switch typed := value.(type) {
	case lua.LBool:
		return bool(typed)
	case lua.LNumber:
		f := float64(typed)
		if f == float64(int64(f)) {
			return int64(f)
		}
		return f
	case lua.LString:
		return string(typed)
	case *lua.LTable:
		if visited[typed] {
			return nil
		}
		visited[typed] = true
		return tableToGoValue(typed, visited)
	default:
		return nil
	}
}

func tableToGoValue(table *lua.LTable, visited map[*lua.LTable]bool) any {
	maxN := table.MaxN()
	if maxN > 0 {
		count := 0
		table.ForEach(func(lua.LValue, lua.LValue) {
			count++
		})
		if count == maxN {
			out := make([]any, maxN)
			for i := 1; i <= maxN; i++ {
				out[i-1] = toGoValueVisited(table.RawGetInt(i), visited)
			}
			return out
		}
	}

	out := make(map[string]any)
	table.ForEach(func(key, item lua.LValue) {
		out[key.String()] = toGoValueVisited(item, visited)
	})
	return out
}
