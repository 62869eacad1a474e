// Package access computes the effective per-field permission for a form:
// static role/expression rules merged with field_visibility validator
// output, most restrictive result winning.
package access

import (
	"context"
	"log/slog"

	"github.com/caseflow-io/caseflow/pkg/expr"
	"github.com/caseflow-io/caseflow/pkg/models"
	"github.com/caseflow-io/caseflow/pkg/sandbox"
)

// Engine resolves field access. It is stateless and safe for concurrent use.
type Engine struct {
	runner *sandbox.Runner
	logger *slog.Logger
}

// NewEngine creates an access engine using the given sandbox runner.
func NewEngine(runner *sandbox.Runner, logger *slog.Logger) *Engine {
	return &Engine{
		runner: runner,
		logger: logger.With("module", "access_engine"),
	}
}

// Resolution is the outcome of resolving one form against a context.
type Resolution struct {
	// Permissions maps every field name of the form to its effective
	// permission.
	Permissions map[string]models.Permission

	// Warnings collects non-fatal validator failures. A failed
	// field_visibility validator contributes nothing (fail-open for the
	// merge; other rules still apply).
	Warnings []string
}

// PermissionFor returns the effective permission for a field, defaulting to
// write for fields the form does not know.
func (r *Resolution) PermissionFor(field string) models.Permission {
	if p, ok := r.Permissions[field]; ok {
		return p
	}

	return models.PermissionWrite
}

// Resolve computes effective permissions for every field of the form.
// evalCtx is the instance context extended with the acting user's role_ids;
// visibility holds the compiled field_visibility programs bound to the
// current node.
func (e *Engine) Resolve(
	ctx context.Context,
	form *models.FormDefinition,
	evalCtx map[string]any,
	user models.ActingUser,
	visibility []*sandbox.Program,
) *Resolution {
	resolution := &Resolution{
		Permissions: make(map[string]models.Permission, len(form.Fields)),
	}

	// Static rules first: a field with no matching rule is fully editable.
	for _, field := range form.Fields {
		effective := models.PermissionWrite

		for _, rule := range field.AccessRules {
			if !ruleMatches(rule, evalCtx, user) {
				continue
			}

			if models.MoreRestrictive(rule.Permission, effective) {
				effective = rule.Permission
			}
		}

		resolution.Permissions[field.Name] = effective
	}

	// Merge field_visibility validator output, still most restrictive wins.
	for _, program := range visibility {
		verdict, err := e.runner.RunFieldVisibility(ctx, program, evalCtx)
		if err != nil {
			e.logger.WarnContext(ctx, "Field visibility validator failed", "validator", program.Key, "error", err)
			resolution.Warnings = append(resolution.Warnings, err.Error())

			continue
		}

		for field, permission := range verdict {
			current, ok := resolution.Permissions[field]
			if !ok {
				// Validators may only speak about fields the form has.
				continue
			}

			if models.MoreRestrictive(permission, current) {
				resolution.Permissions[field] = permission
			}
		}
	}

	return resolution
}

// ruleMatches reports whether a static rule applies to this caller and
// context. A rule with neither role nor expression is an authoring defect
// the runtime tolerates by treating it as always-matching.
func ruleMatches(rule models.AccessRule, evalCtx map[string]any, user models.ActingUser) bool {
	if rule.RoleID == "" && rule.Expression == "" {
		return true
	}

	if rule.RoleID != "" && user.HasRole(rule.RoleID) {
		return true
	}

	if rule.Expression != "" && expr.Evaluate(rule.Expression, evalCtx) {
		return true
	}

	return false
}
