package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/caseflow-io/caseflow/pkg/persistence"
	"github.com/caseflow-io/caseflow/pkg/persistence/file"
	"github.com/caseflow-io/caseflow/pkg/persistence/redisdraft"
)

// NewPersistence creates the storage backend for the given URL. Only the
// file backend is aggregate today; draft storage can be swapped separately
// via NewDraftRepository.
func NewPersistence(databaseURL string) persistence.Persistence {
	return file.NewPersistence(databaseURL)
}

// NewDraftRepository selects the draft store: an empty or file:// URL uses
// the aggregate backend's drafts, a redis:// URL uses Redis.
func NewDraftRepository(draftStoreURL string, p persistence.Persistence) (persistence.DraftRepository, error) {
	switch {
	case draftStoreURL == "" || strings.HasPrefix(draftStoreURL, "file://"):
		return p.DraftRepository(), nil
	case strings.HasPrefix(draftStoreURL, "redis://"), strings.HasPrefix(draftStoreURL, "rediss://"):
		return redisdraft.NewDraftRepository(draftStoreURL, 30*24*time.Hour)
	default:
		return nil, fmt.Errorf("unsupported draft store: %s", draftStoreURL)
	}
}
