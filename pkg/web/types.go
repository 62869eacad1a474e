// Package web provides HTTP request and response types for the runtime API.
package web

import (
	"github.com/caseflow-io/caseflow/pkg/models"
	"github.com/caseflow-io/caseflow/pkg/runtime"
)

// StartProcessResponse is returned by POST /runtime/processes/:id/start.
type StartProcessResponse struct {
	InstanceID     string   `json:"instance_id"`
	DocumentNumber int64    `json:"document_number"`
	CurrentNodeID  string   `json:"current_node_id,omitempty"`
	Status         string   `json:"status"`
	Warnings       []string `json:"warnings,omitempty"`
}

// CurrentFormResponse is returned by GET /runtime/instances/:id/form.
type CurrentFormResponse struct {
	InstanceID           string                        `json:"instance_id"`
	NodeID               string                        `json:"node_id"`
	FormID               string                        `json:"form_id"`
	FormName             string                        `json:"form_name"`
	Fields               []runtime.ResolvedField       `json:"fields"`
	Data                 map[string]any                `json:"data"`
	AvailableTransitions []runtime.AvailableTransition `json:"available_transitions"`
	Warnings             []string                      `json:"warnings,omitempty"`
}

// SaveStepRequest is the body of POST /runtime/instances/:id/nodes/:nodeId/save.
type SaveStepRequest struct {
	Data map[string]any `json:"data" validate:"required"`
}

// SaveStepResponse acknowledges a stored draft.
type SaveStepResponse struct {
	Saved bool `json:"saved"`
}

// SubmitStepRequest is the body of POST /runtime/instances/:id/nodes/:nodeId/submit.
type SubmitStepRequest struct {
	Data    map[string]any `json:"data"     validate:"required"`
	EdgeKey string         `json:"edge_key,omitempty"`
}

// SubmitStepResponse reports where the instance ended up.
type SubmitStepResponse struct {
	InstanceID    string   `json:"instance_id"`
	Status        string   `json:"status"`
	CurrentNodeID string   `json:"current_node_id,omitempty"`
	Completed     bool     `json:"completed"`
	Warnings      []string `json:"warnings,omitempty"`
}

// InstanceResponse is the full view of one instance.
type InstanceResponse struct {
	ID                  string         `json:"id"`
	DocumentNumber      int64          `json:"document_number"`
	ProcessDefinitionID string         `json:"process_definition_id"`
	ProjectID           string         `json:"project_id,omitempty"`
	CurrentNodeID       string         `json:"current_node_id,omitempty"`
	Status              string         `json:"status"`
	Context             map[string]any `json:"context"`
}

// TransformInstanceResponse maps a model instance onto its API shape.
func TransformInstanceResponse(instance *models.ProcessInstance) InstanceResponse {
	return InstanceResponse{
		ID:                  instance.ID,
		DocumentNumber:      instance.DocumentNumber,
		ProcessDefinitionID: instance.ProcessDefinitionID,
		ProjectID:           instance.ProjectID,
		CurrentNodeID:       instance.CurrentNodeID,
		Status:              string(instance.Status),
		Context:             instance.Context,
	}
}
