package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseflow-io/caseflow/pkg/access"
	"github.com/caseflow-io/caseflow/pkg/log"
	"github.com/caseflow-io/caseflow/pkg/models"
	"github.com/caseflow-io/caseflow/pkg/persistence"
	"github.com/caseflow-io/caseflow/pkg/persistence/file"
	"github.com/caseflow-io/caseflow/pkg/registry"
	"github.com/caseflow-io/caseflow/pkg/runtime"
	"github.com/caseflow-io/caseflow/pkg/sandbox"
)

func newTestRuntime(t *testing.T) (*Runtime, *file.DefinitionStore, persistence.InstanceRepository) {
	t.Helper()

	root := t.TempDir()
	backend := file.NewPersistence(root)
	logger := log.WithModule("test")

	runner := sandbox.NewRunner(time.Second)
	reg := registry.NewRegistry(backend.DefinitionStore(), logger)
	resolver := runtime.NewResolver(reg, runner, logger)

	engine := runtime.NewEngine(
		backend.DefinitionStore(),
		backend.InstanceRepository(),
		backend.DraftRepository(),
		access.NewEngine(runner, logger),
		resolver,
		reg,
		nil,
		logger,
	)

	return NewRuntime(engine, backend.DefinitionStore(), backend.InstanceRepository()),
		file.NewDefinitionStore(root),
		backend.InstanceRepository()
}

func TestListInstancesEnrichesProcessName(t *testing.T) {
	t.Parallel()

	svc, store, instances := newTestRuntime(t)
	ctx := context.Background()

	require.NoError(t, store.SaveProcessDefinition(&models.ProcessDefinition{
		ID:      "onboarding",
		Name:    "Employee Onboarding",
		Version: 1,
		Nodes: []models.Node{
			{ID: "start", Kind: models.NodeKindStart},
			{ID: "done", Kind: models.NodeKindEnd},
		},
		Edges: []models.Edge{{ID: "e1", SourceNodeID: "start", TargetNodeID: "done"}},
	}))

	require.NoError(t, instances.CreateInstance(ctx, &models.ProcessInstance{
		ID:                  "i1",
		ProcessDefinitionID: "onboarding",
		Status:              models.InstanceStatusActive,
		Context:             map[string]any{},
	}))
	require.NoError(t, instances.CreateInstance(ctx, &models.ProcessInstance{
		ID:                  "i2",
		ProcessDefinitionID: "deleted-process",
		Status:              models.InstanceStatusActive,
		Context:             map[string]any{},
	}))

	items, err := svc.ListInstances(ctx, "")
	require.NoError(t, err)
	require.Len(t, items, 2)

	byID := make(map[string]InstanceListItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	assert.Equal(t, "Employee Onboarding", byID["i1"].ProcessName)

	// A vanished definition leaves the name empty instead of failing the
	// listing.
	assert.Empty(t, byID["i2"].ProcessName)
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestRuntime(t)

	backend := file.NewPersistence(t.TempDir())

	message, ok := svc.HealthCheck(context.Background(), backend)
	assert.True(t, ok)
	assert.Equal(t, "ok", message)

	missing := file.NewPersistence("/nonexistent/path")
	message, ok = svc.HealthCheck(context.Background(), missing)
	assert.False(t, ok)
	assert.NotEmpty(t, message)
}
