package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/caseflow-io/caseflow/pkg/access"
	"github.com/caseflow-io/caseflow/pkg/eventbus"
	"github.com/caseflow-io/caseflow/pkg/events"
	"github.com/caseflow-io/caseflow/pkg/models"
	"github.com/caseflow-io/caseflow/pkg/otelhelper"
	"github.com/caseflow-io/caseflow/pkg/persistence"
	"github.com/caseflow-io/caseflow/pkg/registry"
	"github.com/caseflow-io/caseflow/pkg/schema"
)

// Engine is the instance state machine. It exclusively owns mutation of
// instance current node, status and context; definitions are read-only.
type Engine struct {
	definitions persistence.DefinitionStore
	instances   persistence.InstanceRepository
	drafts      persistence.DraftRepository
	accessEng   *access.Engine
	resolver    *Resolver
	registry    *registry.Registry
	eventBus    eventbus.EventBus
	logger      *slog.Logger
	tracer      trace.Tracer
	locks       *instanceLocks
}

// NewEngine wires the state machine. eventBus may be nil, in which case no
// lifecycle events are published.
func NewEngine(
	definitions persistence.DefinitionStore,
	instances persistence.InstanceRepository,
	drafts persistence.DraftRepository,
	accessEng *access.Engine,
	resolver *Resolver,
	reg *registry.Registry,
	eventBus eventbus.EventBus,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		definitions: definitions,
		instances:   instances,
		drafts:      drafts,
		accessEng:   accessEng,
		resolver:    resolver,
		registry:    reg,
		eventBus:    eventBus,
		logger:      logger.With("module", "instance_engine"),
		tracer:      otel.Tracer("caseflow-runtime"),
		locks:       newInstanceLocks(),
	}
}

// StartResult is the outcome of starting a process.
type StartResult struct {
	Instance *models.ProcessInstance
	Warnings []string
}

// FormView is the access-resolved view of the current step.
type FormView struct {
	Instance             *models.ProcessInstance
	NodeID               string
	Form                 *models.FormDefinition
	Fields               []ResolvedField
	Data                 map[string]any
	AvailableTransitions []AvailableTransition
	Warnings             []string
}

// ResolvedField is one visible field with its effective access applied.
// Hidden fields never appear in a view.
type ResolvedField struct {
	Name     string                `json:"name"`
	Label    string                `json:"label"`
	Type     models.FieldType      `json:"type"`
	Required bool                  `json:"required"`
	Options  []models.SelectOption `json:"options,omitempty"`
	Width    int                   `json:"width,omitempty"`
	ReadOnly bool                  `json:"read_only"`
}

// SubmitResult is the outcome of a submit.
type SubmitResult struct {
	InstanceID    string
	Status        models.InstanceStatus
	CurrentNodeID string
	Completed     bool
	Warnings      []string
}

// Start creates a new instance of the process definition. If the start node
// has exactly one ungated outgoing edge the instance auto-advances through
// it (and through any gateways behind it) immediately.
func (e *Engine) Start(ctx context.Context, processDefinitionID string, user models.ActingUser) (*StartResult, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.start",
		attribute.String(otelhelper.DefinitionIDKey, processDefinitionID),
	)
	defer span.End()

	definition, err := e.definitions.ProcessDefinitionByID(ctx, processDefinitionID)
	if err != nil {
		return nil, err
	}

	if err := definition.Validate(); err != nil {
		return nil, err
	}

	instance := &models.ProcessInstance{
		ID:                  uuid.New().String(),
		ProcessDefinitionID: definition.ID,
		ProjectID:           definition.ProjectID,
		CurrentNodeID:       definition.StartNode().ID,
		Status:              models.InstanceStatusActive,
		Context:             map[string]any{},
	}

	var warnings []string

	startNode := definition.StartNode()
	outgoing := definition.EdgesFrom(startNode.ID)

	if len(outgoing) == 1 && len(outgoing[0].TransitionValidatorKeys) == 0 {
		nextNodeID, completed, err := e.route(ctx, definition, outgoing[0].TargetNodeID, e.evalContext(instance.Context, nil, user))
		if err != nil {
			return nil, err
		}

		if completed {
			instance.Status = models.InstanceStatusCompleted
			instance.CurrentNodeID = ""
		} else {
			instance.CurrentNodeID = nextNodeID
		}
	}

	if err := e.instances.CreateInstance(ctx, instance); err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "Started process instance",
		"instance_id", instance.ID,
		"definition_id", definition.ID,
		"document_number", instance.DocumentNumber,
		"current_node_id", instance.CurrentNodeID,
	)

	e.publish(ctx, instance.ID, events.InstanceStarted{
		BaseEvent:      e.baseEvent(events.InstanceStartedEvent, instance),
		DocumentNumber: instance.DocumentNumber,
		CurrentNodeID:  instance.CurrentNodeID,
	})

	if instance.IsCompleted() {
		e.publish(ctx, instance.ID, events.InstanceCompleted{
			BaseEvent:      e.baseEvent(events.InstanceCompletedEvent, instance),
			DocumentNumber: instance.DocumentNumber,
		})
	}

	return &StartResult{Instance: instance, Warnings: warnings}, nil
}

// GetCurrentForm returns the access-resolved form bound to the instance's
// current node, the caller's view of its data, and the currently available
// transitions.
func (e *Engine) GetCurrentForm(ctx context.Context, instanceID string, user models.ActingUser) (*FormView, error) {
	instance, err := e.instances.InstanceByID(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	if instance.IsCompleted() || instance.CurrentNodeID == "" {
		return nil, fmt.Errorf("instance %s: %w", instanceID, ErrInstanceCompleted)
	}

	if !instance.IsActive() {
		return nil, fmt.Errorf("instance %s: %w", instanceID, ErrInstanceNotActive)
	}

	definition, err := e.definitions.ProcessDefinitionByID(ctx, instance.ProcessDefinitionID)
	if err != nil {
		return nil, err
	}

	node := definition.GetNode(instance.CurrentNodeID)
	if node == nil {
		return nil, fmt.Errorf("%w: instance %s points at unknown node %s", models.ErrDefinitionInvalid, instanceID, instance.CurrentNodeID)
	}

	if node.Kind != models.NodeKindStep || node.FormID == "" {
		return nil, fmt.Errorf("node %s: %w", node.ID, ErrNoFormBound)
	}

	form, err := e.definitions.FormDefinitionByID(ctx, node.FormID)
	if err != nil {
		return nil, err
	}

	evalCtx := e.evalContext(instance.Context, nil, user)

	visibility, warnings := e.registry.Resolve(ctx, definition.ProjectID, node.ValidatorKeys, models.ValidatorTypeFieldVisibility)

	resolution := e.accessEng.Resolve(ctx, form, evalCtx, user, visibility)
	warnings = append(warnings, resolution.Warnings...)

	catalogs, catalogWarnings := e.loadCatalogs(ctx, form)
	warnings = append(warnings, catalogWarnings...)

	fields := make([]ResolvedField, 0, len(form.Fields))
	visible := make(map[string]bool, len(form.Fields))

	for _, field := range form.Fields {
		permission := resolution.PermissionFor(field.Name)
		if permission == models.PermissionHidden {
			continue
		}

		visible[field.Name] = true

		options := field.Options
		if field.CatalogID != "" {
			if catalog, ok := catalogs[field.CatalogID]; ok {
				options = catalog.Items
			}
		}

		fields = append(fields, ResolvedField{
			Name:     field.Name,
			Label:    field.Label,
			Type:     field.Type,
			Required: field.Required,
			Options:  options,
			Width:    field.Width,
			ReadOnly: permission == models.PermissionRead,
		})
	}

	// Draft data overlays the accumulated context; hidden fields never
	// leave the engine.
	data := make(map[string]any)

	for name, value := range instance.Context {
		if visible[name] {
			data[name] = value
		}
	}

	draft, err := e.drafts.DraftByInstanceAndNode(ctx, instanceID, node.ID)
	if err != nil && !errors.Is(err, persistence.ErrDraftNotFound) {
		return nil, err
	}

	for name, value := range draft {
		if visible[name] {
			data[name] = value
		}
	}

	transitions, resolveWarnings := e.resolver.Resolve(ctx, definition, node, evalCtx)
	warnings = append(warnings, resolveWarnings...)

	return &FormView{
		Instance:             instance,
		NodeID:               node.ID,
		Form:                 form,
		Fields:               fields,
		Data:                 data,
		AvailableTransitions: transitions,
		Warnings:             warnings,
	}, nil
}

// Save stores draft data for the current node without validation or
// advancement. Repeated saves overwrite the draft.
func (e *Engine) Save(ctx context.Context, instanceID, nodeID string, data map[string]any, user models.ActingUser) error {
	unlock := e.locks.Lock(instanceID)
	defer unlock()

	instance, err := e.instances.InstanceByID(ctx, instanceID)
	if err != nil {
		return err
	}

	if !instance.IsActive() {
		return fmt.Errorf("instance %s: %w", instanceID, ErrInstanceNotActive)
	}

	if instance.CurrentNodeID != nodeID {
		return fmt.Errorf("instance %s is at node %s, not %s: %w", instanceID, instance.CurrentNodeID, nodeID, ErrStaleNode)
	}

	if err := e.drafts.SaveDraft(ctx, instanceID, nodeID, data); err != nil {
		return err
	}

	e.publish(ctx, instanceID, events.StepSaved{
		BaseEvent: e.baseEvent(events.StepSavedEvent, instance),
		NodeID:    nodeID,
	})

	return nil
}

// Submit validates the submitted data against the resolved field access,
// merges it into the instance context and advances the instance along the
// selected transition, routing transparently through gateways.
func (e *Engine) Submit(ctx context.Context, instanceID, nodeID string, data map[string]any, chosenEdgeKey string, user models.ActingUser) (*SubmitResult, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.submit",
		attribute.String(otelhelper.InstanceIDKey, instanceID),
		attribute.String(otelhelper.NodeIDKey, nodeID),
	)
	defer span.End()

	unlock := e.locks.Lock(instanceID)
	defer unlock()

	instance, err := e.instances.InstanceByID(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	if instance.IsCompleted() {
		return nil, fmt.Errorf("instance %s: %w", instanceID, ErrInstanceCompleted)
	}

	if !instance.IsActive() {
		return nil, fmt.Errorf("instance %s: %w", instanceID, ErrInstanceNotActive)
	}

	if instance.CurrentNodeID != nodeID {
		return nil, fmt.Errorf("instance %s is at node %s, not %s: %w", instanceID, instance.CurrentNodeID, nodeID, ErrStaleNode)
	}

	expectedRevision := instance.Revision

	definition, err := e.definitions.ProcessDefinitionByID(ctx, instance.ProcessDefinitionID)
	if err != nil {
		return nil, err
	}

	node := definition.GetNode(nodeID)
	if node == nil {
		return nil, fmt.Errorf("%w: instance %s points at unknown node %s", models.ErrDefinitionInvalid, instanceID, nodeID)
	}

	var warnings []string

	accepted := data

	if node.FormID != "" {
		form, err := e.definitions.FormDefinitionByID(ctx, node.FormID)
		if err != nil {
			return nil, err
		}

		accepted, warnings, err = e.validateSubmission(ctx, definition, node, form, instance, data, user)
		if err != nil {
			return nil, err
		}
	}

	// Merge accepted data into the accumulated context.
	newContext := make(map[string]any, len(instance.Context)+len(accepted))
	for k, v := range instance.Context {
		newContext[k] = v
	}

	for k, v := range accepted {
		newContext[k] = v
	}

	evalCtx := e.evalContext(newContext, nil, user)

	transitions, resolveWarnings := e.resolver.Resolve(ctx, definition, node, evalCtx)
	warnings = append(warnings, resolveWarnings...)

	selected, err := e.selectTransition(ctx, instanceID, transitions, chosenEdgeKey)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String(otelhelper.EdgeIDKey, selected.EdgeID))

	nextNodeID, completed, err := e.route(ctx, definition, selected.TargetNodeID, evalCtx)
	if err != nil {
		return nil, err
	}

	instance.Context = newContext

	if completed {
		instance.Status = models.InstanceStatusCompleted
		instance.CurrentNodeID = ""
	} else {
		instance.CurrentNodeID = nextNodeID
	}

	if err := e.instances.UpdateInstance(ctx, instance, expectedRevision); err != nil {
		if persistence.IsRevisionConflict(err) {
			return nil, fmt.Errorf("instance %s: concurrent update: %w", instanceID, ErrStaleNode)
		}

		return nil, err
	}

	if node.FormID != "" {
		submission := &models.FormSubmission{
			ID:                uuid.New().String(),
			ProcessInstanceID: instanceID,
			NodeID:            nodeID,
			FormDefinitionID:  node.FormID,
			Data:              accepted,
			SubmittedAt:       time.Now().UTC(),
		}
		if err := e.instances.SaveSubmission(ctx, submission); err != nil {
			e.logger.WarnContext(ctx, "Failed to record submission", "instance_id", instanceID, "error", err)
		}
	}

	if err := e.drafts.DeleteDraft(ctx, instanceID, nodeID); err != nil {
		e.logger.WarnContext(ctx, "Failed to delete draft after submit", "instance_id", instanceID, "error", err)
	}

	e.logger.InfoContext(ctx, "Submitted step",
		"instance_id", instanceID,
		"node_id", nodeID,
		"edge_id", selected.EdgeID,
		"next_node_id", instance.CurrentNodeID,
		"completed", completed,
	)

	e.publish(ctx, instanceID, events.StepSubmitted{
		BaseEvent:    e.baseEvent(events.StepSubmittedEvent, instance),
		NodeID:       nodeID,
		EdgeID:       selected.EdgeID,
		EdgeKey:      selected.Key,
		NextNodeID:   instance.CurrentNodeID,
		ActingUserID: user.ID,
	})

	if completed {
		e.publish(ctx, instanceID, events.InstanceCompleted{
			BaseEvent:      e.baseEvent(events.InstanceCompletedEvent, instance),
			DocumentNumber: instance.DocumentNumber,
		})
	}

	return &SubmitResult{
		InstanceID:    instanceID,
		Status:        instance.Status,
		CurrentNodeID: instance.CurrentNodeID,
		Completed:     completed,
		Warnings:      warnings,
	}, nil
}

// validateSubmission resolves field access against the accumulated context
// plus incoming data, rejects writes to hidden/read fields and missing
// required values, and type-checks the payload. Returns the accepted data.
func (e *Engine) validateSubmission(
	ctx context.Context,
	definition *models.ProcessDefinition,
	node *models.Node,
	form *models.FormDefinition,
	instance *models.ProcessInstance,
	data map[string]any,
	user models.ActingUser,
) (map[string]any, []string, error) {
	evalCtx := e.evalContext(instance.Context, data, user)

	visibility, warnings := e.registry.Resolve(ctx, definition.ProjectID, node.ValidatorKeys, models.ValidatorTypeFieldVisibility)

	resolution := e.accessEng.Resolve(ctx, form, evalCtx, user, visibility)
	warnings = append(warnings, resolution.Warnings...)

	var fieldErrors []schema.FieldError

	for name := range data {
		field := form.GetField(name)
		if field == nil {
			fieldErrors = append(fieldErrors, schema.FieldError{Field: name, Message: "unknown field"})

			continue
		}

		switch resolution.PermissionFor(name) {
		case models.PermissionHidden:
			fieldErrors = append(fieldErrors, schema.FieldError{Field: name, Message: "field is hidden"})
		case models.PermissionRead:
			fieldErrors = append(fieldErrors, schema.FieldError{Field: name, Message: "field is read-only"})
		}
	}

	for _, field := range form.Fields {
		if !field.Required || resolution.PermissionFor(field.Name) != models.PermissionWrite {
			continue
		}

		value, ok := data[field.Name]
		if !ok {
			value = instance.Context[field.Name]
		}

		if isEmptyValue(value) {
			fieldErrors = append(fieldErrors, schema.FieldError{Field: field.Name, Message: "required field is missing"})
		}
	}

	catalogs, catalogWarnings := e.loadCatalogs(ctx, form)
	warnings = append(warnings, catalogWarnings...)

	schemaErrors, err := schema.ValidateData(form, catalogs, data)
	if err != nil {
		return nil, warnings, err
	}

	fieldErrors = append(fieldErrors, schemaErrors...)

	if len(fieldErrors) > 0 {
		return nil, warnings, &ValidationError{
			InstanceID: instance.ID,
			NodeID:     node.ID,
			Fields:     fieldErrors,
		}
	}

	return data, warnings, nil
}

// selectTransition applies the submit branching rules to the available set.
func (e *Engine) selectTransition(ctx context.Context, instanceID string, transitions []AvailableTransition, chosenEdgeKey string) (AvailableTransition, error) {
	switch len(transitions) {
	case 0:
		return AvailableTransition{}, fmt.Errorf("instance %s: %w", instanceID, ErrNoTransition)
	case 1:
		if chosenEdgeKey != "" && transitions[0].Key != chosenEdgeKey && transitions[0].EdgeID != chosenEdgeKey {
			e.logger.InfoContext(ctx, "Ignoring non-matching edge key for single transition",
				"instance_id", instanceID,
				"chosen_edge_key", chosenEdgeKey,
				"edge_id", transitions[0].EdgeID,
			)
		}

		return transitions[0], nil
	default:
		if chosenEdgeKey == "" {
			return AvailableTransition{}, fmt.Errorf("instance %s: %w", instanceID, ErrAmbiguousTransition)
		}

		for _, transition := range transitions {
			if transition.Key == chosenEdgeKey || transition.EdgeID == chosenEdgeKey {
				return transition, nil
			}
		}

		return AvailableTransition{}, fmt.Errorf("instance %s: edge key %q not available: %w", instanceID, chosenEdgeKey, ErrAmbiguousTransition)
	}
}

// route follows gateways transparently until a step or end node is reached.
// Revisiting a gateway within one call means the definition loops.
func (e *Engine) route(ctx context.Context, definition *models.ProcessDefinition, nodeID string, evalCtx map[string]any) (string, bool, error) {
	visited := make(map[string]bool)

	for {
		node := definition.GetNode(nodeID)
		if node == nil {
			return "", false, fmt.Errorf("%w: edge targets unknown node %s", models.ErrDefinitionInvalid, nodeID)
		}

		switch node.Kind {
		case models.NodeKindEnd:
			return "", true, nil
		case models.NodeKindGateway:
			if visited[node.ID] {
				return "", false, fmt.Errorf("gateway %s: %w", node.ID, ErrCycleDetected)
			}

			visited[node.ID] = true

			transitions, _ := e.resolver.Resolve(ctx, definition, node, evalCtx)
			if len(transitions) == 0 {
				return "", false, fmt.Errorf("gateway %s: %w", node.ID, ErrNoTransition)
			}

			nodeID = transitions[0].TargetNodeID
		default:
			return node.ID, false, nil
		}
	}
}

// evalContext builds the evaluation environment: the accumulated context,
// optionally overlaid with incoming data, plus the caller's role ids.
func (e *Engine) evalContext(context map[string]any, data map[string]any, user models.ActingUser) map[string]any {
	evalCtx := make(map[string]any, len(context)+len(data)+1)

	for k, v := range context {
		evalCtx[k] = v
	}

	for k, v := range data {
		evalCtx[k] = v
	}

	roleIDs := make([]any, 0, len(user.RoleIDs))
	for _, roleID := range user.RoleIDs {
		roleIDs = append(roleIDs, roleID)
	}

	evalCtx["role_ids"] = roleIDs

	return evalCtx
}

func (e *Engine) loadCatalogs(ctx context.Context, form *models.FormDefinition) (map[string]*models.Catalog, []string) {
	catalogs := make(map[string]*models.Catalog)

	var warnings []string

	for _, field := range form.Fields {
		if field.CatalogID == "" {
			continue
		}

		if _, ok := catalogs[field.CatalogID]; ok {
			continue
		}

		catalog, err := e.definitions.CatalogByID(ctx, field.CatalogID)
		if err != nil {
			// Catalogs are externally owned; a missing one degrades the
			// option set, it does not block the step.
			e.logger.WarnContext(ctx, "Failed to load catalog", "catalog_id", field.CatalogID, "error", err)
			warnings = append(warnings, "catalog "+field.CatalogID+": "+err.Error())

			continue
		}

		catalogs[field.CatalogID] = catalog
	}

	return catalogs, warnings
}

func (e *Engine) baseEvent(eventType events.EventType, instance *models.ProcessInstance) events.BaseEvent {
	return events.BaseEvent{
		ID:                  uuid.New().String(),
		Type:                eventType,
		Timestamp:           time.Now().UTC(),
		InstanceID:          instance.ID,
		ProcessDefinitionID: instance.ProcessDefinitionID,
	}
}

func (e *Engine) publish(ctx context.Context, key string, event events.Event) {
	if e.eventBus == nil {
		return
	}

	if err := e.eventBus.Publish(ctx, key, event); err != nil {
		e.logger.WarnContext(ctx, "Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

func isEmptyValue(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []any:
		return len(v) == 0
	case []string:
		return len(v) == 0
	}

	return false
}
