// Package runtime owns the instance state machine and transition
// resolution: starting instances, saving drafts, validating and advancing
// submits, and detecting completion.
package runtime

import (
	"errors"
	"fmt"

	"github.com/caseflow-io/caseflow/pkg/schema"
)

var (
	// ErrStaleNode indicates an operation against a node the instance has
	// already moved past, typically a concurrent-submit race. Callers
	// should refetch the current form and retry.
	ErrStaleNode = errors.New("instance has advanced past the given node")

	// ErrNoTransition indicates a dead end: no outgoing transition is
	// currently available. A definition-authoring defect, surfaced rather
	// than silently stuck.
	ErrNoTransition = errors.New("no available transition")

	// ErrAmbiguousTransition indicates several transitions are available
	// and the caller did not pick one.
	ErrAmbiguousTransition = errors.New("multiple transitions available, edge key required")

	// ErrCycleDetected indicates gateway routing revisited a gateway within
	// one submit, which would loop forever on a malformed definition.
	ErrCycleDetected = errors.New("gateway cycle detected")

	// ErrNoFormBound indicates the current node has no form to serve.
	ErrNoFormBound = errors.New("current node has no bound form")

	// ErrInstanceCompleted indicates the instance has no current node
	// because it already finished.
	ErrInstanceCompleted = errors.New("instance already completed")

	// ErrInstanceNotActive covers cancelled instances.
	ErrInstanceNotActive = errors.New("instance is not active")
)

// ValidationError carries per-field detail for a rejected submit.
type ValidationError struct {
	InstanceID string
	NodeID     string
	Fields     []schema.FieldError
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for instance %s at node %s: %d field error(s)", e.InstanceID, e.NodeID, len(e.Fields))
}

// IsValidationError checks for a rejected submit and extracts the detail.
func IsValidationError(err error) (*ValidationError, bool) {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr, true
	}

	return nil, false
}
