// Package persistence provides standardized error types for store operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrInstanceNotFound indicates a process instance was not found.
	ErrInstanceNotFound = errors.New("process instance not found")

	// ErrDefinitionNotFound indicates a process definition was not found.
	ErrDefinitionNotFound = errors.New("process definition not found")

	// ErrFormNotFound indicates a form definition was not found.
	ErrFormNotFound = errors.New("form definition not found")

	// ErrCatalogNotFound indicates a catalog was not found.
	ErrCatalogNotFound = errors.New("catalog not found")

	// ErrValidatorNotFound indicates no validator exists for the given key.
	ErrValidatorNotFound = errors.New("validator not found")

	// ErrDraftNotFound indicates no draft was saved for the instance and node.
	ErrDraftNotFound = errors.New("draft not found")

	// ErrInstanceAlreadyExists indicates an instance with the same id exists.
	ErrInstanceAlreadyExists = errors.New("process instance already exists")

	// ErrRevisionConflict indicates a compare-and-swap update lost the race:
	// the stored instance revision no longer matches the one the caller read.
	ErrRevisionConflict = errors.New("instance revision conflict")
)

// InstanceError wraps instance-related errors with additional context.
type InstanceError struct {
	Op         string // Operation being performed (e.g. "Create", "Update")
	InstanceID string
	NodeID     string
	Err        error
}

func (e *InstanceError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("%s operation failed for instance %s at node %s: %v", e.Op, e.InstanceID, e.NodeID, e.Err)
	}

	return fmt.Sprintf("%s operation failed for instance %s: %v", e.Op, e.InstanceID, e.Err)
}

func (e *InstanceError) Unwrap() error {
	return e.Err
}

func (e *InstanceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewInstanceError creates a new instance error with context.
func NewInstanceError(op, instanceID string, err error) *InstanceError {
	return &InstanceError{Op: op, InstanceID: instanceID, Err: err}
}

// IsInstanceNotFound checks if an error indicates a missing instance.
func IsInstanceNotFound(err error) bool {
	return errors.Is(err, ErrInstanceNotFound)
}

// IsDefinitionNotFound checks if an error indicates a missing definition.
func IsDefinitionNotFound(err error) bool {
	return errors.Is(err, ErrDefinitionNotFound)
}

// IsFormNotFound checks if an error indicates a missing form definition.
func IsFormNotFound(err error) bool {
	return errors.Is(err, ErrFormNotFound)
}

// IsRevisionConflict checks if an error indicates a lost CAS race.
func IsRevisionConflict(err error) bool {
	return errors.Is(err, ErrRevisionConflict)
}

// IsNotFound checks if an error is any of the not-found sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrInstanceNotFound) ||
		errors.Is(err, ErrDefinitionNotFound) ||
		errors.Is(err, ErrFormNotFound) ||
		errors.Is(err, ErrCatalogNotFound) ||
		errors.Is(err, ErrValidatorNotFound)
}
