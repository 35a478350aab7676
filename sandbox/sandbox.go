// Package sandbox executes model-generated Starlark code against an
// allow-listed namespace. Nothing from the host process leaks in: the only
// bindings the code sees are the ones the caller builds per attempt.
package sandbox

import (
	"errors"
	"fmt"
	"strings"

	"go.starlark.net/starlark"
)

// Exec runs one code snippet to completion against the given globals and
// returns the bindings the code produced. Execution is synchronous and
// single-shot; the thread is discarded afterwards.
func Exec(name, code string, globals starlark.StringDict) (starlark.StringDict, error) {
	thread := &starlark.Thread{
		Name: name,
		Print: func(_ *starlark.Thread, _ string) {
			// Generated code is told not to print; swallow it if it does.
		},
	}

	out, err := starlark.ExecFile(thread, name+".star", code, globals)
	if err != nil {
		return nil, fmt.Errorf("%s", FormatError(err))
	}
	return out, nil
}

// FormatError renders an execution failure with its Starlark backtrace when
// one exists, so the retry prompt carries the full trace.
func FormatError(err error) string {
	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		return strings.TrimSpace(evalErr.Backtrace())
	}
	return err.Error()
}
