// Package models defines the core domain models for the process runtime:
// process definitions, forms, validators and process instances.
package models

import (
	"errors"
	"fmt"
)

// NodeKind represents the kind of a process node.
type NodeKind string

const (
	NodeKindStart   NodeKind = "start"
	NodeKindStep    NodeKind = "step"    // Interactive step bound to a form
	NodeKindGateway NodeKind = "gateway" // Routes by condition, never holds state
	NodeKindEnd     NodeKind = "end"
)

// ErrDefinitionInvalid indicates a malformed process graph. It is fatal at
// start time and never retried.
var ErrDefinitionInvalid = errors.New("process definition invalid")

// Node is a single node of a process graph. ValidatorKeys reference
// field_visibility validators active while an instance sits at this node.
type Node struct {
	ID            string   `json:"id"             validate:"required"`
	Kind          NodeKind `json:"kind"           validate:"required,oneof=start step gateway end"`
	Label         string   `json:"label"`
	FormID        string   `json:"form_id,omitempty"`    // step nodes only
	Expression    string   `json:"expression,omitempty"` // gateway nodes only
	ValidatorKeys []string `json:"validator_keys,omitempty"`
	PositionX     float64  `json:"position_x"`
	PositionY     float64  `json:"position_y"`
}

// Edge is a directed transition between two nodes. Key is the stable
// identifier callers use to choose between branches; TransitionValidatorKeys
// reference step_access validators gating this transition.
type Edge struct {
	ID                      string   `json:"id"                 validate:"required"`
	SourceNodeID            string   `json:"source_node_id"     validate:"required"`
	TargetNodeID            string   `json:"target_node_id"     validate:"required"`
	Key                     string   `json:"key,omitempty"`
	Label                   string   `json:"label,omitempty"`
	ConditionExpression     string   `json:"condition_expression,omitempty"`
	TransitionValidatorKeys []string `json:"transition_validator_keys,omitempty"`
}

// ProcessDefinition is an immutable, versioned process graph. Nodes and
// edges reference each other by stable id only, so definitions can be
// shared and cached across instances.
type ProcessDefinition struct {
	ID        string `json:"id"`
	Name      string `json:"name"    validate:"required,min=1"`
	Version   int    `json:"version" validate:"required,min=1"`
	ProjectID string `json:"project_id,omitempty"`
	Nodes     []Node `json:"nodes"`
	Edges     []Edge `json:"edges"`
}

// GetNode returns the node with the given id, or nil.
func (p *ProcessDefinition) GetNode(nodeID string) *Node {
	for i := range p.Nodes {
		if p.Nodes[i].ID == nodeID {
			return &p.Nodes[i]
		}
	}

	return nil
}

// StartNode returns the definition's single start node, or nil.
func (p *ProcessDefinition) StartNode() *Node {
	for i := range p.Nodes {
		if p.Nodes[i].Kind == NodeKindStart {
			return &p.Nodes[i]
		}
	}

	return nil
}

// EdgesFrom returns all edges whose source is nodeID, in definition order.
func (p *ProcessDefinition) EdgesFrom(nodeID string) []Edge {
	var out []Edge

	for _, e := range p.Edges {
		if e.SourceNodeID == nodeID {
			out = append(out, e)
		}
	}

	return out
}

// Validate checks the structural invariants of the graph: exactly one start
// node, unique node and edge ids, and every edge endpoint resolving to an
// existing node. Violations are reported as ErrDefinitionInvalid.
func (p *ProcessDefinition) Validate() error {
	nodeIDs := make(map[string]bool, len(p.Nodes))
	startCount := 0

	for _, n := range p.Nodes {
		if nodeIDs[n.ID] {
			return fmt.Errorf("%w: duplicate node id %q", ErrDefinitionInvalid, n.ID)
		}

		nodeIDs[n.ID] = true

		if n.Kind == NodeKindStart {
			startCount++
		}
	}

	if startCount != 1 {
		return fmt.Errorf("%w: expected exactly one start node, found %d", ErrDefinitionInvalid, startCount)
	}

	edgeIDs := make(map[string]bool, len(p.Edges))

	for _, e := range p.Edges {
		if edgeIDs[e.ID] {
			return fmt.Errorf("%w: duplicate edge id %q", ErrDefinitionInvalid, e.ID)
		}

		edgeIDs[e.ID] = true

		if !nodeIDs[e.SourceNodeID] {
			return fmt.Errorf("%w: edge %q references unknown source node %q", ErrDefinitionInvalid, e.ID, e.SourceNodeID)
		}

		if !nodeIDs[e.TargetNodeID] {
			return fmt.Errorf("%w: edge %q references unknown target node %q", ErrDefinitionInvalid, e.ID, e.TargetNodeID)
		}
	}

	return nil
}
