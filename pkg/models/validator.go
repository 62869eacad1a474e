package models

// ValidatorType distinguishes the two kinds of user-authored validators.
type ValidatorType string

const (
	// ValidatorTypeFieldVisibility validators compute a field -> permission
	// mapping while an instance sits at a node.
	ValidatorTypeFieldVisibility ValidatorType = "field_visibility"

	// ValidatorTypeStepAccess validators gate a single transition with a
	// boolean verdict.
	ValidatorTypeStepAccess ValidatorType = "step_access"
)

// ValidatorDefinition is user-authored validation code, unique by key within
// a project. Code is a rule script executed by the sandbox.
type ValidatorDefinition struct {
	Key       string        `json:"key"  validate:"required,min=1"`
	Name      string        `json:"name"`
	Type      ValidatorType `json:"type" validate:"required,oneof=field_visibility step_access"`
	Code      string        `json:"code"`
	ProjectID string        `json:"project_id,omitempty"`
}
