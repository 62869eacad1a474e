// Package events defines event types for process instance lifecycle
// notifications.
package events

import "time"

type EventType string

// Topic carries all instance lifecycle events.
const Topic = "caseflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	InstanceStartedEvent   EventType = "instance.started"
	StepSavedEvent         EventType = "step.saved"
	StepSubmittedEvent     EventType = "step.submitted"
	InstanceCompletedEvent EventType = "instance.completed"
)

// Event is implemented by every lifecycle event.
type Event interface {
	GetType() EventType
}

type BaseEvent struct {
	ID                  string    `json:"id"`
	Type                EventType `json:"type"`
	Timestamp           time.Time `json:"timestamp"`
	InstanceID          string    `json:"instance_id"`
	ProcessDefinitionID string    `json:"process_definition_id"`
}

type InstanceStarted struct {
	BaseEvent

	DocumentNumber int64  `json:"document_number"`
	CurrentNodeID  string `json:"current_node_id,omitempty"`
}

func (e InstanceStarted) GetType() EventType {
	return InstanceStartedEvent
}

type StepSaved struct {
	BaseEvent

	NodeID string `json:"node_id"`
}

func (e StepSaved) GetType() EventType {
	return StepSavedEvent
}

type StepSubmitted struct {
	BaseEvent

	NodeID       string `json:"node_id"`
	EdgeID       string `json:"edge_id"`
	EdgeKey      string `json:"edge_key,omitempty"`
	NextNodeID   string `json:"next_node_id,omitempty"`
	ActingUserID string `json:"acting_user_id,omitempty"`
}

func (e StepSubmitted) GetType() EventType {
	return StepSubmittedEvent
}

type InstanceCompleted struct {
	BaseEvent

	DocumentNumber int64 `json:"document_number"`
}

func (e InstanceCompleted) GetType() EventType {
	return InstanceCompletedEvent
}
