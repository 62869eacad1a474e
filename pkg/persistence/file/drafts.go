package file

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/caseflow-io/caseflow/pkg/persistence"
)

// DraftRepository stores per-instance, per-node draft data as JSON files.
type DraftRepository struct {
	root string
	mu   sync.RWMutex
}

// NewDraftRepository creates a draft repository rooted at the directory.
func NewDraftRepository(root string) *DraftRepository {
	return &DraftRepository{root: root}
}

func (dr *DraftRepository) draftPath(instanceID, nodeID string) string {
	return filepath.Join(dr.root, "drafts", instanceID, nodeID+".json")
}

// SaveDraft overwrites the draft for the instance and node.
func (dr *DraftRepository) SaveDraft(_ context.Context, instanceID, nodeID string, data map[string]any) error {
	dr.mu.Lock()
	defer dr.mu.Unlock()

	return writeJSON(dr.draftPath(instanceID, nodeID), data)
}

func (dr *DraftRepository) DraftByInstanceAndNode(_ context.Context, instanceID, nodeID string) (map[string]any, error) {
	dr.mu.RLock()
	defer dr.mu.RUnlock()

	var data map[string]any
	if err := readJSON(dr.draftPath(instanceID, nodeID), &data, persistence.ErrDraftNotFound); err != nil {
		return nil, err
	}

	return data, nil
}

func (dr *DraftRepository) DeleteDraft(_ context.Context, instanceID, nodeID string) error {
	dr.mu.Lock()
	defer dr.mu.Unlock()

	err := os.Remove(dr.draftPath(instanceID, nodeID))
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	return nil
}
