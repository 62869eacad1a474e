package main

import (
	"context"
	"os"
	"time"

	cli "github.com/urfave/cli/v3"

	"github.com/caseflow-io/caseflow/pkg/access"
	"github.com/caseflow-io/caseflow/pkg/cache"
	"github.com/caseflow-io/caseflow/pkg/cmd"
	"github.com/caseflow-io/caseflow/pkg/log"
	"github.com/caseflow-io/caseflow/pkg/registry"
	"github.com/caseflow-io/caseflow/pkg/runtime"
	"github.com/caseflow-io/caseflow/pkg/sandbox"
	"github.com/caseflow-io/caseflow/pkg/services"
)

const defaultPort = 9091

func main() {
	command := &cli.Command{
		Name:                  "caseflow-api",
		Usage:                 "Run the process runtime API server",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Storage URL for definitions and instances",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "draft-store",
				Usage:   "Draft store URL (file:// or redis://); defaults to the database backend",
				Sources: cli.EnvVars("DRAFT_STORE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.DurationFlag{
				Name:    "definition-cache-ttl",
				Usage:   "How long cached process definitions stay fresh",
				Value:   30 * time.Second,
				Sources: cli.EnvVars("DEFINITION_CACHE_TTL"),
			},
			&cli.DurationFlag{
				Name:    "validator-timeout",
				Usage:   "Execution bound for a single validator run",
				Value:   2 * time.Second,
				Sources: cli.EnvVars("VALIDATOR_TIMEOUT"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("api")
			logger.InfoContext(ctx, "Initializing Caseflow runtime API")

			persistence := cmd.NewPersistence(command.String("database-url"))
			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			drafts, err := cmd.NewDraftRepository(command.String("draft-store"), persistence)
			if err != nil {
				return err
			}

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			definitions := cache.NewDefinitionCache(
				persistence.DefinitionStore(),
				command.Duration("definition-cache-ttl"),
				logger,
			)
			if err := definitions.StartSweeper("@every 1m"); err != nil {
				return err
			}
			defer definitions.StopSweeper()

			runner := sandbox.NewRunner(command.Duration("validator-timeout"))
			validatorRegistry := registry.NewRegistry(definitions, logger)
			accessEngine := access.NewEngine(runner, logger)
			resolver := runtime.NewResolver(validatorRegistry, runner, logger)

			engine := runtime.NewEngine(
				definitions,
				persistence.InstanceRepository(),
				drafts,
				accessEngine,
				resolver,
				validatorRegistry,
				eventBus,
				logger,
			)

			runtimeService := services.NewRuntime(engine, definitions, persistence.InstanceRepository())

			api := NewAPI(logger, runtimeService)

			return api.Start(command.Int("port"))
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
