package models

import "time"

// InstanceStatus represents the lifecycle state of a process instance.
type InstanceStatus string

const (
	InstanceStatusActive    InstanceStatus = "active"
	InstanceStatusCompleted InstanceStatus = "completed"
	InstanceStatusCancelled InstanceStatus = "cancelled" // set by external administrative action
)

// ProcessInstance is one running (or finished) execution of a process
// definition. CurrentNodeID is cleared once the instance completes.
// Revision is a monotonic counter used for optimistic concurrency: every
// state-changing update must carry the revision it read.
type ProcessInstance struct {
	ID                  string         `json:"id"`
	DocumentNumber      int64          `json:"document_number"` // per-project, human-readable reference
	ProcessDefinitionID string         `json:"process_definition_id"`
	ProjectID           string         `json:"project_id,omitempty"`
	CurrentNodeID       string         `json:"current_node_id,omitempty"`
	Status              InstanceStatus `json:"status"`
	Context             map[string]any `json:"context"` // field values accumulated across submitted steps
	Revision            int64          `json:"revision"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// IsActive reports whether the instance can still advance.
func (i *ProcessInstance) IsActive() bool {
	return i.Status == InstanceStatusActive
}

// IsCompleted reports whether the instance reached an end node.
func (i *ProcessInstance) IsCompleted() bool {
	return i.Status == InstanceStatusCompleted
}

// FormSubmission is the audit record of one accepted submit for a node.
// The flat instance context stays authoritative for evaluation; submissions
// preserve the per-node history.
type FormSubmission struct {
	ID                string         `json:"id"`
	ProcessInstanceID string         `json:"process_instance_id"`
	NodeID            string         `json:"node_id"`
	FormDefinitionID  string         `json:"form_definition_id"`
	Data              map[string]any `json:"data"`
	SubmittedAt       time.Time      `json:"submitted_at"`
}

// ActingUser identifies the caller of a runtime operation. Identity and
// role administration are external; the runtime only consumes role ids.
type ActingUser struct {
	ID      string   `json:"id"`
	RoleIDs []string `json:"role_ids"`
}

// HasRole reports whether the user carries the given role id.
func (u ActingUser) HasRole(roleID string) bool {
	for _, r := range u.RoleIDs {
		if r == roleID {
			return true
		}
	}

	return false
}
