// Package main provides the Caseflow runtime API server.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/caseflow-io/caseflow/pkg/services"
	"github.com/caseflow-io/caseflow/pkg/web"
)

type API struct {
	logger         *slog.Logger
	runtimeService *services.Runtime
	validate       *validator.Validate
}

func NewAPI(logger *slog.Logger, runtimeService *services.Runtime) *API {
	return &API{
		logger:         logger,
		runtimeService: runtimeService,
		validate:       validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.runtimeService, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Caseflow Runtime API")
	})

	r := app.Group("/runtime")
	r.Post("/processes/:id/start", handlers.StartProcess)
	r.Get("/instances", handlers.ListInstances)
	r.Get("/instances/:id", handlers.GetInstance)
	r.Get("/instances/:id/form", handlers.GetCurrentForm)
	r.Post("/instances/:id/nodes/:nodeId/save", handlers.SaveStep)
	r.Post("/instances/:id/nodes/:nodeId/submit", handlers.SubmitStep)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
