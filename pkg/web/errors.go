package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/caseflow-io/caseflow/pkg/models"
	"github.com/caseflow-io/caseflow/pkg/persistence"
	"github.com/caseflow-io/caseflow/pkg/runtime"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleRuntimeError maps the runtime error taxonomy onto problem documents.
func handleRuntimeError(c fiber.Ctx, err error) error {
	if validationErr, ok := runtime.IsValidationError(err); ok {
		problem := problems.NewStatusProblem(422).
			WithInstance(c.Path()).
			WithType("validation_failed").
			WithDetail(validationErr.Error())

		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"type":     problem.Type,
			"title":    problem.Title,
			"status":   problem.Status,
			"detail":   problem.Detail,
			"instance": problem.Instance,
			"fields":   validationErr.Fields,
		})
	}

	switch {
	case persistence.IsNotFound(err):
		return notFound(c, err.Error())

	case errors.Is(err, runtime.ErrStaleNode):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("stale_node").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	case errors.Is(err, runtime.ErrAmbiguousTransition):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("ambiguous_transition").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	case errors.Is(err, runtime.ErrInstanceCompleted):
		problem := problems.NewStatusProblem(410).
			WithInstance(c.Path()).
			WithType("instance_completed").
			WithDetail(err.Error())

		return c.Status(fiber.StatusGone).JSON(problem)

	case errors.Is(err, runtime.ErrInstanceNotActive):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("instance_not_active").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	case errors.Is(err, runtime.ErrNoTransition),
		errors.Is(err, runtime.ErrCycleDetected),
		errors.Is(err, runtime.ErrNoFormBound),
		errors.Is(err, models.ErrDefinitionInvalid):
		// Definition-authoring defects: surfaced, logged, never retried.
		problem := problems.NewStatusProblem(422).
			WithInstance(c.Path()).
			WithType("definition_defect").
			WithDetail(err.Error())

		return c.Status(fiber.StatusUnprocessableEntity).JSON(problem)

	default:
		return internalError(c, err)
	}
}
