package enhance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"
)

type jsRunnerConfig struct {
	cache    ProgramCache
	registry *FunctionRegistry
	timeout  time.Duration
}

// JSRunnerOption configures the JS runner.
type JSRunnerOption func(*jsRunnerConfig)

// JSWithProgramCache applies a ProgramCache to the JS runner.
func JSWithProgramCache(cache ProgramCache) JSRunnerOption {
	return func(cfg *jsRunnerConfig) {
		cfg.cache = cache
	}
}

// JSWithFunctionRegistry applies a FunctionRegistry to the JS runner.
func JSWithFunctionRegistry(registry *FunctionRegistry) JSRunnerOption {
	return func(cfg *jsRunnerConfig) {
		if registry == nil {
			return
		}
		cfg.registry = registry.Clone()
	}
}

// JSWithTimeout bounds each run. Zero keeps DefaultScriptTimeout.
func JSWithTimeout(timeout time.Duration) JSRunnerOption {
	return func(cfg *jsRunnerConfig) {
		cfg.timeout = timeout
	}
}

func applyJSRunnerOptions(opts []JSRunnerOption) jsRunnerConfig {
	cfg := jsRunnerConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

type jsRunner struct {
	cache    ProgramCache
	registry *FunctionRegistry
	timeout  time.Duration
}

// NewJSRunner constructs a Runner backed by goja. Scripts must define a
// main(config) function; the returned mapping becomes the run's document.
func NewJSRunner(opts ...JSRunnerOption) Runner {
	cfg := applyJSRunnerOptions(opts)
	return &jsRunner{
		cache:    cfg.cache,
		registry: cfg.registry,
		timeout:  cfg.timeout,
	}
}

func (r *jsRunner) Name() string { return "js" }

func (r *jsRunner) Run(ctx context.Context, program string, input Document) (RunResult, error) {
	if strings.TrimSpace(program) == "" {
		return RunResult{}, wrapScriptError("js", "", ScriptErrorRuntime, fmt.Errorf("program must not be empty"))
	}
	if ctx == nil {
		ctx = context.Background()
	}

	compiled, err := r.loadOrCompile(program)
	if err != nil {
		return RunResult{}, wrapScriptError("js", "", ScriptErrorRuntime, err)
	}

	vm := goja.New()
	logs := installConsole(vm)
	r.injectHelpers(vm)

	stop := r.guard(ctx, vm)
	defer stop()

	if _, err := vm.RunProgram(compiled); err != nil {
		return RunResult{Logs: *logs}, wrapScriptError("js", "", classifyJSError(err), err)
	}

	mainFn, ok := goja.AssertFunction(vm.Get("main"))
	if !ok {
		return RunResult{Logs: *logs}, wrapScriptError("js", "", ScriptErrorRuntime, errors.New("script must contain a main function"))
	}

	value, err := mainFn(goja.Undefined(), toJSValue(vm, input))
	if err != nil {
		return RunResult{Logs: *logs}, wrapScriptError("js", "", classifyJSError(err), err)
	}

	doc, ok := normalizeValue(value.Export()).(map[string]any)
	if !ok {
		return RunResult{Logs: *logs}, wrapScriptError("js", "", ScriptErrorRuntime, fmt.Errorf("main must return a mapping, got %T", value.Export()))
	}
	return RunResult{Document: doc, Logs: *logs}, nil
}

// Check loads the program in a throwaway VM and verifies it defines a main
// function, without calling it.
func (r *jsRunner) Check(program string) error {
	if strings.TrimSpace(program) == "" {
		return wrapScriptError("js", "", ScriptErrorRuntime, fmt.Errorf("program must not be empty"))
	}
	compiled, err := r.loadOrCompile(program)
	if err != nil {
		return wrapScriptError("js", "", ScriptErrorRuntime, err)
	}

	vm := goja.New()
	installConsole(vm)
	r.injectHelpers(vm)

	stop := r.guard(context.Background(), vm)
	defer stop()

	if _, err := vm.RunProgram(compiled); err != nil {
		return wrapScriptError("js", "", classifyJSError(err), err)
	}
	if _, ok := goja.AssertFunction(vm.Get("main")); !ok {
		return wrapScriptError("js", "", ScriptErrorRuntime, errors.New("script must contain a main function"))
	}
	return nil
}

func (r *jsRunner) loadOrCompile(program string) (*goja.Program, error) {
	if r.cache != nil {
		if cached, ok := r.cache.Get(program); ok {
			if compiled, ok := cached.(*goja.Program); ok {
				return compiled, nil
			}
		}
	}
	compiled, err := goja.Compile("script", program, false)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		r.cache.Set(program, compiled)
	}
	return compiled, nil
}

// guard interrupts the VM when the run deadline passes or ctx is cancelled.
// The returned func releases both watchers.
func (r *jsRunner) guard(ctx context.Context, vm *goja.Runtime) func() {
	timeout := r.timeout
	if timeout <= 0 {
		timeout = DefaultScriptTimeout
	}
	timer := time.AfterFunc(timeout, func() {
		vm.Interrupt("script timeout")
	})
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()
	return func() {
		timer.Stop()
		close(done)
	}
}

func (r *jsRunner) injectHelpers(vm *goja.Runtime) {
	if r.registry == nil {
		return
	}
	vm.Set("call", func(name string, arguments ...any) (any, error) {
		return r.registry.Call(name, arguments...)
	})
	for _, name := range r.registry.Names() {
		fn := name
		vm.Set(fn, func(arguments ...any) (any, error) {
			return r.registry.Call(fn, arguments...)
		})
	}
}

// toJSValue deep-converts a document value into native JS objects and arrays.
// Wrapped Go maps are writable through goja but growing a nested wrapped slice
// detaches it from its parent, so scripts get plain JS values instead.
func toJSValue(vm *goja.Runtime, value any) goja.Value {
	switch typed := value.(type) {
	case map[string]any:
		object := vm.NewObject()
		for key, item := range typed {
			_ = object.Set(key, toJSValue(vm, item))
		}
		return object
	case []any:
		items := make([]any, len(typed))
		for i, item := range typed {
			items[i] = toJSValue(vm, item)
		}
		return vm.NewArray(items...)
	default:
		return vm.ToValue(value)
	}
}

func installConsole(vm *goja.Runtime) *[]string {
	logs := &[]string{}
	record := func(call goja.FunctionCall) goja.Value {
		parts := make([]string, 0, len(call.Arguments))
		for _, argument := range call.Arguments {
			parts = append(parts, formatConsoleValue(argument))
		}
		*logs = append(*logs, strings.Join(parts, " "))
		return goja.Undefined()
	}
	console := vm.NewObject()
	for _, level := range []string{"log", "info", "warn", "error", "debug"} {
		_ = console.Set(level, record)
	}
	vm.Set("console", console)
	return logs
}

func formatConsoleValue(value goja.Value) string {
	exported := value.Export()
	switch typed := exported.(type) {
	case nil:
		return "null"
	case string:
		return typed
	default:
		return fmt.Sprintf("%v", typed)
	}
}

func classifyJSError(err error) ScriptErrorKind {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return ScriptErrorTimeout
	}
	return ScriptErrorRuntime
}
