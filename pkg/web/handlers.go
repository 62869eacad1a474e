// Package web provides the HTTP handlers for the runtime API.
package web

import (
	"encoding/json"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/caseflow-io/caseflow/pkg/models"
	"github.com/caseflow-io/caseflow/pkg/services"
)

type APIHandlers struct {
	runtimeService *services.Runtime
	validator      *validator.Validate
}

func NewAPIHandlers(runtimeService *services.Runtime, validator *validator.Validate) *APIHandlers {
	return &APIHandlers{
		runtimeService: runtimeService,
		validator:      validator,
	}
}

// actingUser extracts the caller identity from the gateway-injected
// headers. Authentication itself is an upstream concern.
func actingUser(c fiber.Ctx) models.ActingUser {
	user := models.ActingUser{ID: c.Get("X-User-Id")}

	if raw := c.Get("X-Role-Ids"); raw != "" {
		for _, roleID := range strings.Split(raw, ",") {
			if roleID = strings.TrimSpace(roleID); roleID != "" {
				user.RoleIDs = append(user.RoleIDs, roleID)
			}
		}
	}

	return user
}

func (h *APIHandlers) StartProcess(c fiber.Ctx) error {
	processDefinitionID := c.Params("id")
	if processDefinitionID == "" {
		return badRequest(c, "Process definition ID is required")
	}

	result, err := h.runtimeService.StartProcess(c.Context(), processDefinitionID, actingUser(c))
	if err != nil {
		return handleRuntimeError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(StartProcessResponse{
		InstanceID:     result.Instance.ID,
		DocumentNumber: result.Instance.DocumentNumber,
		CurrentNodeID:  result.Instance.CurrentNodeID,
		Status:         string(result.Instance.Status),
		Warnings:       result.Warnings,
	})
}

func (h *APIHandlers) GetCurrentForm(c fiber.Ctx) error {
	instanceID := c.Params("id")
	if instanceID == "" {
		return badRequest(c, "Instance ID is required")
	}

	view, err := h.runtimeService.GetCurrentForm(c.Context(), instanceID, actingUser(c))
	if err != nil {
		return handleRuntimeError(c, err)
	}

	return c.JSON(CurrentFormResponse{
		InstanceID:           view.Instance.ID,
		NodeID:               view.NodeID,
		FormID:               view.Form.ID,
		FormName:             view.Form.Name,
		Fields:               view.Fields,
		Data:                 view.Data,
		AvailableTransitions: view.AvailableTransitions,
		Warnings:             view.Warnings,
	})
}

func (h *APIHandlers) SaveStep(c fiber.Ctx) error {
	instanceID := c.Params("id")
	nodeID := c.Params("nodeId")

	var req SaveStepRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return badRequest(c, "Invalid request: "+err.Error())
	}

	if err := h.runtimeService.SaveStep(c.Context(), instanceID, nodeID, req.Data, actingUser(c)); err != nil {
		return handleRuntimeError(c, err)
	}

	return c.JSON(SaveStepResponse{Saved: true})
}

func (h *APIHandlers) SubmitStep(c fiber.Ctx) error {
	instanceID := c.Params("id")
	nodeID := c.Params("nodeId")

	var req SubmitStepRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return badRequest(c, "Invalid request: "+err.Error())
	}

	result, err := h.runtimeService.SubmitStep(c.Context(), instanceID, nodeID, req.Data, req.EdgeKey, actingUser(c))
	if err != nil {
		return handleRuntimeError(c, err)
	}

	return c.JSON(SubmitStepResponse{
		InstanceID:    result.InstanceID,
		Status:        string(result.Status),
		CurrentNodeID: result.CurrentNodeID,
		Completed:     result.Completed,
		Warnings:      result.Warnings,
	})
}

func (h *APIHandlers) GetInstance(c fiber.Ctx) error {
	instanceID := c.Params("id")
	if instanceID == "" {
		return badRequest(c, "Instance ID is required")
	}

	instance, err := h.runtimeService.GetInstance(c.Context(), instanceID)
	if err != nil {
		return handleRuntimeError(c, err)
	}

	return c.JSON(TransformInstanceResponse(instance))
}

func (h *APIHandlers) ListInstances(c fiber.Ctx) error {
	items, err := h.runtimeService.ListInstances(c.Context(), c.Query("project_id"))
	if err != nil {
		return handleRuntimeError(c, err)
	}

	return c.JSON(fiber.Map{
		"instances":   items,
		"total_count": len(items),
	})
}
