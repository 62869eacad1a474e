// Package services exposes the runtime facade consumed by the API layer.
package services

import (
	"context"

	"github.com/caseflow-io/caseflow/pkg/models"
	"github.com/caseflow-io/caseflow/pkg/persistence"
	"github.com/caseflow-io/caseflow/pkg/runtime"
)

// Runtime is the only service external callers compose against. It wraps
// the instance state machine and the stores behind the facade operations.
type Runtime struct {
	engine      *runtime.Engine
	definitions persistence.DefinitionStore
	instances   persistence.InstanceRepository
}

// NewRuntime creates the runtime facade.
func NewRuntime(engine *runtime.Engine, definitions persistence.DefinitionStore, instances persistence.InstanceRepository) *Runtime {
	return &Runtime{
		engine:      engine,
		definitions: definitions,
		instances:   instances,
	}
}

// StartProcess starts a new instance of the given process definition.
func (s *Runtime) StartProcess(ctx context.Context, processDefinitionID string, user models.ActingUser) (*runtime.StartResult, error) {
	return s.engine.Start(ctx, processDefinitionID, user)
}

// GetCurrentForm returns the access-resolved current step of an instance.
func (s *Runtime) GetCurrentForm(ctx context.Context, instanceID string, user models.ActingUser) (*runtime.FormView, error) {
	return s.engine.GetCurrentForm(ctx, instanceID, user)
}

// SaveStep stores draft data without advancing the instance.
func (s *Runtime) SaveStep(ctx context.Context, instanceID, nodeID string, data map[string]any, user models.ActingUser) error {
	return s.engine.Save(ctx, instanceID, nodeID, data, user)
}

// SubmitStep validates and advances the instance.
func (s *Runtime) SubmitStep(ctx context.Context, instanceID, nodeID string, data map[string]any, chosenEdgeKey string, user models.ActingUser) (*runtime.SubmitResult, error) {
	return s.engine.Submit(ctx, instanceID, nodeID, data, chosenEdgeKey, user)
}

// GetInstance returns one instance by id.
func (s *Runtime) GetInstance(ctx context.Context, instanceID string) (*models.ProcessInstance, error) {
	return s.instances.InstanceByID(ctx, instanceID)
}

// InstanceListItem is one row of the document list, enriched with the
// process name for human-readable listings.
type InstanceListItem struct {
	ID                  string         `json:"id"`
	DocumentNumber      int64          `json:"document_number"`
	ProcessDefinitionID string         `json:"process_definition_id"`
	ProcessName         string         `json:"process_name"`
	ProjectID           string         `json:"project_id,omitempty"`
	Status              string         `json:"status"`
	CurrentNodeID       string         `json:"current_node_id,omitempty"`
	Context             map[string]any `json:"context"`
}

// ListInstances lists instances, optionally scoped to a project. Process
// names are resolved best-effort; a missing definition leaves the name
// empty rather than failing the listing.
func (s *Runtime) ListInstances(ctx context.Context, projectID string) ([]InstanceListItem, error) {
	instances, err := s.instances.ListInstances(ctx, projectID)
	if err != nil {
		return nil, err
	}

	names := make(map[string]string)
	items := make([]InstanceListItem, 0, len(instances))

	for _, instance := range instances {
		name, ok := names[instance.ProcessDefinitionID]
		if !ok {
			if definition, err := s.definitions.ProcessDefinitionByID(ctx, instance.ProcessDefinitionID); err == nil {
				name = definition.Name
			}

			names[instance.ProcessDefinitionID] = name
		}

		items = append(items, InstanceListItem{
			ID:                  instance.ID,
			DocumentNumber:      instance.DocumentNumber,
			ProcessDefinitionID: instance.ProcessDefinitionID,
			ProcessName:         name,
			ProjectID:           instance.ProjectID,
			Status:              string(instance.Status),
			CurrentNodeID:       instance.CurrentNodeID,
			Context:             instance.Context,
		})
	}

	return items, nil
}

// HealthCheck reports whether the backing stores are reachable.
func (s *Runtime) HealthCheck(ctx context.Context, p persistence.Persistence) (string, bool) {
	if err := p.HealthCheck(ctx); err != nil {
		return err.Error(), false
	}

	return "ok", true
}
