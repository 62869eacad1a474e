// Package cache wraps the definition store with a TTL cache. Definitions
// are immutable per version, so caching is safe; a version bump in the
// backing store is picked up when the entry expires, on the scheduled
// sweep, or on explicit invalidation.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/caseflow-io/caseflow/pkg/models"
	"github.com/caseflow-io/caseflow/pkg/persistence"
)

// DefaultTTL is how long a cached definition is trusted.
const DefaultTTL = 30 * time.Second

type entry struct {
	definition *models.ProcessDefinition
	fetchedAt  time.Time
}

// DefinitionCache caches process definitions by id. It implements the
// read path of persistence.DefinitionStore for process definitions and
// delegates the rest to the underlying store.
type DefinitionCache struct {
	persistence.DefinitionStore

	logger *slog.Logger
	ttl    time.Duration
	cron   *cron.Cron

	mu      sync.RWMutex
	entries map[string]entry
}

// NewDefinitionCache wraps the store. A non-positive ttl falls back to
// DefaultTTL.
func NewDefinitionCache(store persistence.DefinitionStore, ttl time.Duration, logger *slog.Logger) *DefinitionCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &DefinitionCache{
		DefinitionStore: store,
		logger:          logger.With("module", "definition_cache"),
		ttl:             ttl,
		entries:         make(map[string]entry),
	}
}

// ProcessDefinitionByID serves from cache while the entry is fresh.
func (c *DefinitionCache) ProcessDefinitionByID(ctx context.Context, id string) (*models.ProcessDefinition, error) {
	c.mu.RLock()
	e, ok := c.entries[id]
	c.mu.RUnlock()

	if ok && time.Since(e.fetchedAt) < c.ttl {
		return e.definition, nil
	}

	definition, err := c.DefinitionStore.ProcessDefinitionByID(ctx, id)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()

	if ok && c.entries[id].definition != nil && c.entries[id].definition.Version != definition.Version {
		c.logger.InfoContext(ctx, "Definition version changed, cache refreshed",
			"definition_id", id,
			"old_version", c.entries[id].definition.Version,
			"new_version", definition.Version,
		)
	}

	c.entries[id] = entry{definition: definition, fetchedAt: time.Now()}
	c.mu.Unlock()

	return definition, nil
}

// Invalidate drops the cached entry for a definition id.
func (c *DefinitionCache) Invalidate(id string) {
	c.mu.Lock()
	delete(c.entries, id)
	c.mu.Unlock()
}

// StartSweeper schedules a periodic sweep that drops expired entries, so
// long-idle definitions do not pin stale graphs in memory. Returns an error
// only for an invalid cron spec.
func (c *DefinitionCache) StartSweeper(spec string) error {
	c.cron = cron.New()

	_, err := c.cron.AddFunc(spec, c.sweep)
	if err != nil {
		return err
	}

	c.cron.Start()

	return nil
}

// StopSweeper stops the scheduled sweep.
func (c *DefinitionCache) StopSweeper() {
	if c.cron != nil {
		c.cron.Stop()
	}
}

func (c *DefinitionCache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, e := range c.entries {
		if time.Since(e.fetchedAt) >= c.ttl {
			delete(c.entries, id)
		}
	}
}
