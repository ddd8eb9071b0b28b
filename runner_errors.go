package enhance

import (
	"errors"
	"fmt"
)

// ScriptErrorKind classifies script failures.
type ScriptErrorKind string

const (
	// ScriptErrorTimeout marks runs cancelled by the execution deadline.
	ScriptErrorTimeout ScriptErrorKind = "timeout"
	// ScriptErrorRuntime marks compile and execution failures inside the
	// engine, including scripts that return a non-mapping value.
	ScriptErrorRuntime ScriptErrorKind = "runtime"
)

// ScriptError captures engine metadata alongside the originating error.
type ScriptError struct {
	Engine string
	Script string
	Kind   ScriptErrorKind
	Err    error
}

func (e *ScriptError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("enhance: %s script %s kind=%s: %v", e.Engine, describeScript(e.Script), e.Kind, e.Err)
}

func (e *ScriptError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsScriptTimeout reports whether err wraps a timed-out script run.
func IsScriptTimeout(err error) bool {
	var scriptErr *ScriptError
	return errors.As(err, &scriptErr) && scriptErr.Kind == ScriptErrorTimeout
}

func describeScript(script string) string {
	if script == "" {
		return "name=<unnamed>"
	}
	return fmt.Sprintf("name=%q", script)
}

func wrapScriptError(engine, script string, kind ScriptErrorKind, err error) error {
	if err == nil {
		return nil
	}

	var scriptErr *ScriptError
	if errors.As(err, &scriptErr) {
		if scriptErr.Engine == "" {
			scriptErr.Engine = engine
		}
		if scriptErr.Script == "" {
			scriptErr.Script = script
		}
		if scriptErr.Kind == "" {
			scriptErr.Kind = kind
		}
		return scriptErr
	}

	return &ScriptError{
		Engine: engine,
		Script: script,
		Kind:   kind,
		Err:    err,
	}
}
