// Package sandbox compiles and runs user-authored validator scripts.
//
// Validator code is a restricted rule DSL rather than a general-purpose
// scripting language: a script only ever sees the context map handed to a
// run, has no filesystem, network or cross-instance capability, and every
// run is time-bounded and panic-isolated. A script is one rule per line,
// blank lines and lines starting with # are skipped.
//
// field_visibility scripts:
//
//	set <field> = hidden|read|write [when <expression>]
//
// Every line whose condition holds contributes; later lines overwrite
// earlier ones for the same field. The run returns the resulting
// field -> permission map.
//
// step_access scripts:
//
//	allow [when <expression>]
//	deny [when <expression>]
//
// The first line whose condition holds decides. Falling off the end allows.
package sandbox

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/caseflow-io/caseflow/pkg/expr"
	"github.com/caseflow-io/caseflow/pkg/models"
)

// DefaultTimeout bounds a single validator run.
const DefaultTimeout = 2 * time.Second

// RunError reports a validator run that failed: compile error, malformed
// rule output, panic or timeout. Failures are never fatal to the runtime;
// callers surface them as warnings and apply the fail-open/fail-closed
// policy of the validator type.
type RunError struct {
	ValidatorKey string
	Reason       string
	Err          error
}

func (e *RunError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("validator %s: %s: %v", e.ValidatorKey, e.Reason, e.Err)
	}

	return fmt.Sprintf("validator %s: %s", e.ValidatorKey, e.Reason)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

type ruleKind int

const (
	ruleSet ruleKind = iota
	ruleAllow
	ruleDeny
)

type rule struct {
	kind       ruleKind
	field      string
	permission models.Permission
	condition  string // empty means unconditional
}

// Program is a compiled validator script, safe for concurrent reuse.
type Program struct {
	Key   string
	Type  models.ValidatorType
	rules []rule
}

// Compile parses a validator definition into a runnable program.
func Compile(v models.ValidatorDefinition) (*Program, error) {
	p := &Program{Key: v.Key, Type: v.Type}

	for lineNo, raw := range strings.Split(v.Code, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		r, err := parseRule(line, v.Type)
		if err != nil {
			return nil, &RunError{
				ValidatorKey: v.Key,
				Reason:       fmt.Sprintf("compile error at line %d", lineNo+1),
				Err:          err,
			}
		}

		p.rules = append(p.rules, r)
	}

	return p, nil
}

func parseRule(line string, vt models.ValidatorType) (rule, error) {
	body, condition := splitCondition(line)

	switch vt {
	case models.ValidatorTypeFieldVisibility:
		rest, ok := strings.CutPrefix(body, "set ")
		if !ok {
			return rule{}, fmt.Errorf("expected %q rule, got %q", "set", body)
		}

		field, perm, ok := strings.Cut(rest, "=")
		if !ok {
			return rule{}, fmt.Errorf("expected %q in rule %q", "=", body)
		}

		permission := models.Permission(strings.TrimSpace(perm))
		switch permission {
		case models.PermissionHidden, models.PermissionRead, models.PermissionWrite:
		default:
			return rule{}, fmt.Errorf("unknown permission %q", permission)
		}

		return rule{
			kind:       ruleSet,
			field:      strings.TrimSpace(field),
			permission: permission,
			condition:  condition,
		}, nil
	case models.ValidatorTypeStepAccess:
		switch body {
		case "allow":
			return rule{kind: ruleAllow, condition: condition}, nil
		case "deny":
			return rule{kind: ruleDeny, condition: condition}, nil
		}

		return rule{}, fmt.Errorf("expected allow or deny, got %q", body)
	}

	return rule{}, fmt.Errorf("unknown validator type %q", vt)
}

func splitCondition(line string) (body, condition string) {
	if idx := strings.Index(line, " when "); idx >= 0 {
		return strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx+len(" when "):])
	}

	return strings.TrimSpace(line), ""
}

// Runner executes compiled programs with a bounded timeout.
type Runner struct {
	timeout time.Duration
}

// NewRunner creates a runner. A non-positive timeout falls back to
// DefaultTimeout.
func NewRunner(timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Runner{timeout: timeout}
}

// RunFieldVisibility executes a field_visibility program against the given
// context and returns the field -> permission map it produced.
func (r *Runner) RunFieldVisibility(ctx context.Context, p *Program, runCtx map[string]any) (map[string]models.Permission, error) {
	if p.Type != models.ValidatorTypeFieldVisibility {
		return nil, &RunError{ValidatorKey: p.Key, Reason: fmt.Sprintf("not a field_visibility validator (type %s)", p.Type)}
	}

	result, err := runIsolated(ctx, r.timeout, p.Key, func() (map[string]models.Permission, error) {
		out := make(map[string]models.Permission)

		for _, rl := range p.rules {
			if rl.condition != "" && !expr.Evaluate(rl.condition, runCtx) {
				continue
			}

			out[rl.field] = rl.permission
		}

		return out, nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// RunStepAccess executes a step_access program against the given context
// plus node id and returns its verdict.
func (r *Runner) RunStepAccess(ctx context.Context, p *Program, runCtx map[string]any, nodeID string) (bool, error) {
	if p.Type != models.ValidatorTypeStepAccess {
		return false, &RunError{ValidatorKey: p.Key, Reason: fmt.Sprintf("not a step_access validator (type %s)", p.Type)}
	}

	scoped := make(map[string]any, len(runCtx)+1)
	for k, v := range runCtx {
		scoped[k] = v
	}

	scoped["node_id"] = nodeID

	return runIsolated(ctx, r.timeout, p.Key, func() (bool, error) {
		for _, rl := range p.rules {
			if rl.condition != "" && !expr.Evaluate(rl.condition, scoped) {
				continue
			}

			switch rl.kind {
			case ruleAllow:
				return true, nil
			case ruleDeny:
				return false, nil
			}
		}

		return true, nil
	})
}

// runIsolated runs fn in its own goroutine with panic recovery, bounded by
// the runner timeout. A runaway script must never stall the instance lock
// held by the caller.
func runIsolated[T any](ctx context.Context, timeout time.Duration, key string, fn func() (T, error)) (T, error) {
	var zero T

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}

	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- outcome{err: &RunError{
					ValidatorKey: key,
					Reason:       fmt.Sprintf("panic: %v", rec),
				}}
			}
		}()

		value, err := fn()
		done <- outcome{value: value, err: err}
	}()

	select {
	case out := <-done:
		return out.value, out.err
	case <-ctx.Done():
		return zero, &RunError{ValidatorKey: key, Reason: "timed out", Err: ctx.Err()}
	}
}
