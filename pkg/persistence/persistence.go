// Package persistence provides the storage abstraction for the process
// runtime: read-only definition access, instance state and per-step drafts.
package persistence

import (
	"context"

	"github.com/caseflow-io/caseflow/pkg/models"
)

// DefinitionStore is the runtime's read-only view of authored definitions.
// Authoring tools own the write side; the runtime never mutates these.
type DefinitionStore interface {
	ProcessDefinitionByID(ctx context.Context, id string) (*models.ProcessDefinition, error)
	FormDefinitionByID(ctx context.Context, id string) (*models.FormDefinition, error)
	CatalogByID(ctx context.Context, id string) (*models.Catalog, error)
	ValidatorByKey(ctx context.Context, projectID, key string) (*models.ValidatorDefinition, error)
	ListRoles(ctx context.Context) ([]models.Role, error)
}

// InstanceRepository owns process instance state. CreateInstance assigns the
// per-project document number. UpdateInstance is a compare-and-swap on the
// instance revision: the update applies only when the stored revision equals
// expectedRevision, otherwise ErrRevisionConflict is returned.
type InstanceRepository interface {
	CreateInstance(ctx context.Context, instance *models.ProcessInstance) error
	InstanceByID(ctx context.Context, id string) (*models.ProcessInstance, error)
	ListInstances(ctx context.Context, projectID string) ([]*models.ProcessInstance, error)
	UpdateInstance(ctx context.Context, instance *models.ProcessInstance, expectedRevision int64) error
	SaveSubmission(ctx context.Context, submission *models.FormSubmission) error
	SubmissionsByInstance(ctx context.Context, instanceID string) ([]*models.FormSubmission, error)
}

// DraftRepository stores saved-but-not-submitted step data. Drafts are
// overwritten wholesale on every save.
type DraftRepository interface {
	SaveDraft(ctx context.Context, instanceID, nodeID string, data map[string]any) error
	DraftByInstanceAndNode(ctx context.Context, instanceID, nodeID string) (map[string]any, error)
	DeleteDraft(ctx context.Context, instanceID, nodeID string) error
}

// Persistence aggregates the stores behind one backend.
type Persistence interface {
	DefinitionStore() DefinitionStore
	InstanceRepository() InstanceRepository
	DraftRepository() DraftRepository
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
