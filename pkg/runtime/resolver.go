package runtime

import (
	"context"
	"log/slog"

	"github.com/caseflow-io/caseflow/pkg/expr"
	"github.com/caseflow-io/caseflow/pkg/models"
	"github.com/caseflow-io/caseflow/pkg/registry"
	"github.com/caseflow-io/caseflow/pkg/sandbox"
)

// AvailableTransition is one currently permitted outgoing edge.
type AvailableTransition struct {
	EdgeID       string `json:"edge_id"`
	Key          string `json:"key,omitempty"`
	Label        string `json:"label,omitempty"`
	TargetNodeID string `json:"target_node_id"`
}

// Resolver computes the set of transitions currently permitted from a node.
type Resolver struct {
	registry *registry.Registry
	runner   *sandbox.Runner
	logger   *slog.Logger
}

// NewResolver creates a transition resolver.
func NewResolver(reg *registry.Registry, runner *sandbox.Runner, logger *slog.Logger) *Resolver {
	return &Resolver{
		registry: reg,
		runner:   runner,
		logger:   logger.With("module", "transition_resolver"),
	}
}

// Resolve returns the available transitions from the node plus non-fatal
// warnings collected along the way.
//
// Step nodes expose every outgoing edge whose step_access validators all
// allow it; a validator error or timeout fails closed for that one edge
// only. Gateway nodes select the first edge in definition order whose
// condition is truthy; an edge without a condition acts as the default.
func (r *Resolver) Resolve(
	ctx context.Context,
	definition *models.ProcessDefinition,
	node *models.Node,
	evalCtx map[string]any,
) ([]AvailableTransition, []string) {
	edges := definition.EdgesFrom(node.ID)

	switch node.Kind {
	case models.NodeKindGateway:
		return r.resolveGateway(edges, evalCtx), nil
	default:
		return r.resolveStep(ctx, definition.ProjectID, node.ID, edges, evalCtx)
	}
}

func (r *Resolver) resolveGateway(edges []models.Edge, evalCtx map[string]any) []AvailableTransition {
	for _, edge := range edges {
		if edge.ConditionExpression == "" {
			// Default/else edge; by convention authors place it last.
			return []AvailableTransition{toTransition(edge)}
		}

		if expr.Evaluate(edge.ConditionExpression, evalCtx) {
			return []AvailableTransition{toTransition(edge)}
		}
	}

	return nil
}

func (r *Resolver) resolveStep(
	ctx context.Context,
	projectID, nodeID string,
	edges []models.Edge,
	evalCtx map[string]any,
) ([]AvailableTransition, []string) {
	var (
		available []AvailableTransition
		warnings  []string
	)

	for _, edge := range edges {
		allowed := true

		programs, resolveWarnings := r.registry.Resolve(ctx, projectID, edge.TransitionValidatorKeys, models.ValidatorTypeStepAccess)
		warnings = append(warnings, resolveWarnings...)

		// A validator key that could not be resolved gates the edge closed:
		// an absent guard must not silently open a transition.
		if len(resolveWarnings) > 0 {
			allowed = false
		}

		for _, program := range programs {
			verdict, err := r.runner.RunStepAccess(ctx, program, evalCtx, nodeID)
			if err != nil {
				r.logger.WarnContext(ctx, "Step access validator failed, edge unavailable",
					"edge_id", edge.ID,
					"validator", program.Key,
					"error", err,
				)
				warnings = append(warnings, err.Error())

				allowed = false

				break
			}

			if !verdict {
				allowed = false

				break
			}
		}

		if allowed {
			available = append(available, toTransition(edge))
		}
	}

	return available, warnings
}

func toTransition(edge models.Edge) AvailableTransition {
	return AvailableTransition{
		EdgeID:       edge.ID,
		Key:          edge.Key,
		Label:        edge.Label,
		TargetNodeID: edge.TargetNodeID,
	}
}
