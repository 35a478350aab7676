package agent

import (
	"context"
	"errors"
	"fmt"

	"go.starlark.net/starlark"

	"datachat/dataset"
	"datachat/sandbox"
	"datachat/viz"
)

// GenerationResult is the terminal value of one retry-loop invocation.
// Exactly one of Frame/Chart is set on success, depending on the
// instantiation.
type GenerationResult struct {
	Success  bool
	Frame    *dataset.Frame
	Chart    *viz.Chart
	Code     string // last generated code, kept even on failure
	Err      string
	Attempts int
}

// artifact is what a task validator extracts from the executed namespace.
type artifact struct {
	frame *dataset.Frame
	chart *viz.Chart
}

// codeTask parameterizes one retry-loop instantiation: how to prompt, how
// to build the execution namespace, and how to validate the produced
// artifact. The namespace is rebuilt fresh per attempt, so nothing leaks
// from one attempt into the next.
type codeTask struct {
	name         string
	system       string
	basePrompt   string
	fixHints     string
	buildGlobals func() (starlark.StringDict, error)
	validate     func(starlark.StringDict) (artifact, error)
}

// Failure classes of a single attempt. Model errors, protocol errors,
// execution errors and validation errors are all recovered the same way:
// recorded into history and retried.
const (
	kindModel      = "ModelError"
	kindGeneration = "GenerationError"
	kindExecution  = "ExecutionError"
	kindValidation = "ValidationError"
)

type attemptError struct {
	kind string
	err  error
}

func (e *attemptError) Error() string { return e.err.Error() }
func (e *attemptError) Unwrap() error { return e.err }

func errorKind(err error) string {
	var ae *attemptError
	if errors.As(err, &ae) {
		return ae.kind
	}
	return "Error"
}

// runSelfHealing drives up to maxRetries+1 attempts of generate → execute →
// validate. Attempts 1..maxRetries use the primary model; the single extra
// attempt switches to the fallback model. Every failure is appended
// verbatim to the error history and re-injected into the next prompt.
func runSelfHealing(ctx context.Context, models ModelBuilder, maxRetries int, log func(string), task codeTask) *GenerationResult {
	var history []string
	lastCode := ""

	for attempt := 1; attempt <= maxRetries+1; attempt++ {
		useFallback := attempt > maxRetries
		log(fmt.Sprintf("[%s] attempt %d (fallback=%v)", task.name, attempt, useFallback))

		art, code, err := runAttempt(ctx, models, useFallback, task, history)
		if code != "" {
			lastCode = code
		}

		if err == nil {
			log(fmt.Sprintf("[%s] success on attempt %d", task.name, attempt))
			return &GenerationResult{
				Success:  true,
				Frame:    art.frame,
				Chart:    art.chart,
				Code:     code,
				Attempts: attempt,
			}
		}

		entry := fmt.Sprintf("Attempt %d failed.\nError type: %s\nError message: %s",
			attempt, errorKind(err), err.Error())
		log(fmt.Sprintf("[%s] %s", task.name, entry))
		history = append(history, entry)

		if attempt > maxRetries {
			log(fmt.Sprintf("[%s] all retries exhausted", task.name))
			return &GenerationResult{
				Success:  false,
				Code:     lastCode,
				Err:      err.Error(),
				Attempts: attempt,
			}
		}
	}

	// Unreachable when the loop above is correct; a result from here is a
	// bug marker, not a real outcome.
	return &GenerationResult{
		Success:  false,
		Code:     lastCode,
		Err:      "unexpected exit from retry loop",
		Attempts: maxRetries + 1,
	}
}

// runAttempt performs one generate → extract → execute → validate cycle.
func runAttempt(ctx context.Context, models ModelBuilder, useFallback bool, task codeTask, history []string) (artifact, string, error) {
	cm, err := models.Build(ctx, useFallback)
	if err != nil {
		return artifact{}, "", &attemptError{kind: kindModel, err: fmt.Errorf("failed to build chat model: %w", err)}
	}

	prompt := buildSelfHealingPrompt(task.basePrompt, history, task.fixHints)

	resp, err := generate(ctx, cm, task.system, prompt)
	if err != nil {
		return artifact{}, "", &attemptError{kind: kindModel, err: err}
	}

	code := ExtractTag(resp, "code")
	if code == "" {
		return artifact{}, "", &attemptError{
			kind: kindGeneration,
			err:  fmt.Errorf("model did not return a <code> block. Raw response: %s", truncate(resp, 300)),
		}
	}

	globals, err := task.buildGlobals()
	if err != nil {
		return artifact{}, code, &attemptError{kind: kindExecution, err: err}
	}

	out, err := sandbox.Exec(task.name, code, globals)
	if err != nil {
		return artifact{}, code, &attemptError{kind: kindExecution, err: err}
	}

	art, err := task.validate(out)
	if err != nil {
		return artifact{}, code, &attemptError{kind: kindValidation, err: err}
	}
	return art, code, nil
}
