// Package registry resolves validator keys to compiled sandbox programs,
// caching compilations so hot submit paths do not re-parse scripts.
package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync"

	"github.com/caseflow-io/caseflow/pkg/models"
	"github.com/caseflow-io/caseflow/pkg/persistence"
	"github.com/caseflow-io/caseflow/pkg/sandbox"
)

// Registry caches compiled validator programs keyed by validator key plus a
// hash of the code, so edited validators recompile transparently.
type Registry struct {
	store  persistence.DefinitionStore
	logger *slog.Logger

	mu       sync.RWMutex
	programs map[string]*sandbox.Program
}

// NewRegistry creates a registry over the given definition store.
func NewRegistry(store persistence.DefinitionStore, logger *slog.Logger) *Registry {
	return &Registry{
		store:    store,
		logger:   logger.With("module", "validator_registry"),
		programs: make(map[string]*sandbox.Program),
	}
}

// Resolve loads, compiles and caches the validators behind the given keys.
// Unknown keys and compile failures are reported as warnings, not errors:
// one broken validator must never make the whole runtime unavailable.
func (r *Registry) Resolve(ctx context.Context, projectID string, keys []string, want models.ValidatorType) ([]*sandbox.Program, []string) {
	var (
		programs []*sandbox.Program
		warnings []string
	)

	for _, key := range keys {
		definition, err := r.store.ValidatorByKey(ctx, projectID, key)
		if err != nil {
			r.logger.WarnContext(ctx, "Failed to load validator", "key", key, "error", err)
			warnings = append(warnings, "validator "+key+": "+err.Error())

			continue
		}

		if definition.Type != want {
			// Authoring bound a validator of the wrong kind; skip it.
			r.logger.WarnContext(ctx, "Validator type mismatch", "key", key, "type", definition.Type, "want", want)
			warnings = append(warnings, "validator "+key+": type mismatch")

			continue
		}

		program, err := r.compile(*definition)
		if err != nil {
			r.logger.WarnContext(ctx, "Failed to compile validator", "key", key, "error", err)
			warnings = append(warnings, "validator "+key+": "+err.Error())

			continue
		}

		programs = append(programs, program)
	}

	return programs, warnings
}

func (r *Registry) compile(definition models.ValidatorDefinition) (*sandbox.Program, error) {
	cacheKey := definition.Key + "@" + codeHash(definition.Code)

	r.mu.RLock()
	program, ok := r.programs[cacheKey]
	r.mu.RUnlock()

	if ok {
		return program, nil
	}

	program, err := sandbox.Compile(definition)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.programs[cacheKey] = program
	r.mu.Unlock()

	return program, nil
}

func codeHash(code string) string {
	sum := sha256.Sum256([]byte(code))

	return hex.EncodeToString(sum[:8])
}
