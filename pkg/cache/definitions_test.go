package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseflow-io/caseflow/pkg/log"
	"github.com/caseflow-io/caseflow/pkg/models"
	"github.com/caseflow-io/caseflow/pkg/persistence"
)

type countingStore struct {
	persistence.DefinitionStore

	mu         sync.Mutex
	fetches    int
	definition *models.ProcessDefinition
}

func (s *countingStore) ProcessDefinitionByID(_ context.Context, id string) (*models.ProcessDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.definition == nil || s.definition.ID != id {
		return nil, persistence.ErrDefinitionNotFound
	}

	s.fetches++

	return s.definition, nil
}

func (s *countingStore) set(def *models.ProcessDefinition) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.definition = def
}

func (s *countingStore) fetchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.fetches
}

func TestProcessDefinitionByIDCaches(t *testing.T) {
	t.Parallel()

	store := &countingStore{}
	store.set(&models.ProcessDefinition{ID: "p1", Name: "P1", Version: 1})

	cache := NewDefinitionCache(store, time.Minute, log.WithModule("test"))
	ctx := context.Background()

	first, err := cache.ProcessDefinitionByID(ctx, "p1")
	require.NoError(t, err)

	second, err := cache.ProcessDefinitionByID(ctx, "p1")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, store.fetchCount())
}

func TestProcessDefinitionByIDExpiry(t *testing.T) {
	t.Parallel()

	store := &countingStore{}
	store.set(&models.ProcessDefinition{ID: "p1", Name: "P1", Version: 1})

	cache := NewDefinitionCache(store, 10*time.Millisecond, log.WithModule("test"))
	ctx := context.Background()

	_, err := cache.ProcessDefinitionByID(ctx, "p1")
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	store.set(&models.ProcessDefinition{ID: "p1", Name: "P1", Version: 2})

	refreshed, err := cache.ProcessDefinitionByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, refreshed.Version)
	assert.Equal(t, 2, store.fetchCount())
}

func TestInvalidate(t *testing.T) {
	t.Parallel()

	store := &countingStore{}
	store.set(&models.ProcessDefinition{ID: "p1", Name: "P1", Version: 1})

	cache := NewDefinitionCache(store, time.Minute, log.WithModule("test"))
	ctx := context.Background()

	_, err := cache.ProcessDefinitionByID(ctx, "p1")
	require.NoError(t, err)

	store.set(&models.ProcessDefinition{ID: "p1", Name: "P1", Version: 3})
	cache.Invalidate("p1")

	refreshed, err := cache.ProcessDefinitionByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 3, refreshed.Version)
}

func TestMissPropagatesNotFound(t *testing.T) {
	t.Parallel()

	cache := NewDefinitionCache(&countingStore{}, time.Minute, log.WithModule("test"))

	_, err := cache.ProcessDefinitionByID(context.Background(), "missing")
	require.ErrorIs(t, err, persistence.ErrDefinitionNotFound)
}

func TestSweeperSpec(t *testing.T) {
	t.Parallel()

	cache := NewDefinitionCache(&countingStore{}, time.Minute, log.WithModule("test"))

	require.Error(t, cache.StartSweeper("not a cron spec"))

	require.NoError(t, cache.StartSweeper("@every 1m"))
	cache.StopSweeper()
}
