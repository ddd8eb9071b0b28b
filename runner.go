package enhance

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultScriptTimeout bounds a single script run unless the runner is
// configured otherwise.
const DefaultScriptTimeout = 5 * time.Second

// DefaultEngine is the engine used when a script layer does not name one.
const DefaultEngine = "js"

// RunResult carries the document produced by a script run plus the log lines
// the script emitted.
type RunResult struct {
	Document Document
	Logs     []string
}

// Runner executes a transformation program against a document snapshot.
// Implementations must give every invocation a fresh, isolated context: no
// state leaks between runs and no ambient filesystem, network, or process
// access is reachable from the script.
type Runner interface {
	Name() string
	Run(ctx context.Context, program string, input Document) (RunResult, error)
}

// RunnerRegistry maps engine names to runners.
type RunnerRegistry struct {
	mu      sync.RWMutex
	runners map[string]Runner
}

// NewRunnerRegistry constructs an empty registry.
func NewRunnerRegistry() *RunnerRegistry {
	return &RunnerRegistry{runners: make(map[string]Runner)}
}

// DefaultRunnerRegistry returns a registry with the built-in JS and Lua
// runners registered.
func DefaultRunnerRegistry() *RunnerRegistry {
	registry := NewRunnerRegistry()
	_ = registry.Register(NewJSRunner())
	_ = registry.Register(NewLuaRunner())
	return registry
}

// Register stores runner under its engine name guarding against duplicates.
func (r *RunnerRegistry) Register(runner Runner) error {
	if runner == nil {
		return fmt.Errorf("enhance: runner is nil")
	}
	name := strings.ToLower(strings.TrimSpace(runner.Name()))
	if name == "" {
		return fmt.Errorf("enhance: runner name must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.runners == nil {
		r.runners = make(map[string]Runner)
	}
	if _, exists := r.runners[name]; exists {
		return fmt.Errorf("enhance: runner %q already registered", name)
	}
	r.runners[name] = runner
	return nil
}

// Lookup resolves name to a runner. An empty name resolves to DefaultEngine.
func (r *RunnerRegistry) Lookup(name string) (Runner, error) {
	if r == nil {
		return nil, fmt.Errorf("enhance: runner registry is nil")
	}
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = DefaultEngine
	}
	r.mu.RLock()
	runner := r.runners[key]
	r.mu.RUnlock()
	if runner == nil {
		return nil, fmt.Errorf("enhance: script engine %q not registered", key)
	}
	return runner, nil
}

// ScriptChecker is implemented by runners that can vet a program without
// transforming a document: the program must load and define a main
// function.
type ScriptChecker interface {
	Check(program string) error
}

// CheckScript vets program against the named engine's checker. Engines
// without a checker fall back to a throwaway run over an empty document.
func (r *RunnerRegistry) CheckScript(name, program string) error {
	runner, err := r.Lookup(name)
	if err != nil {
		return err
	}
	if checker, ok := runner.(ScriptChecker); ok {
		return checker.Check(program)
	}
	_, err = runner.Run(context.Background(), program, Document{})
	return err
}

// Names returns registered engine names sorted alphabetically.
func (r *RunnerRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.runners))
	for name := range r.runners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
