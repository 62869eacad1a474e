package file

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/caseflow-io/caseflow/pkg/models"
	"github.com/caseflow-io/caseflow/pkg/persistence"
)

// InstanceRepository stores process instances, submissions and document
// number counters. A single mutex serializes read-modify-write cycles so
// the revision compare-and-swap is sound within one process.
type InstanceRepository struct {
	root string
	mu   sync.Mutex
}

// NewInstanceRepository creates an instance repository rooted at the directory.
func NewInstanceRepository(root string) *InstanceRepository {
	return &InstanceRepository{root: root}
}

func (ir *InstanceRepository) instancePath(id string) string {
	return filepath.Join(ir.root, "instances", id+".json")
}

// CreateInstance persists a new instance and assigns its per-project
// document number.
func (ir *InstanceRepository) CreateInstance(_ context.Context, instance *models.ProcessInstance) error {
	ir.mu.Lock()
	defer ir.mu.Unlock()

	path := ir.instancePath(instance.ID)
	if _, err := os.Stat(path); err == nil {
		return &persistence.InstanceError{Op: "Create", InstanceID: instance.ID, Err: persistence.ErrInstanceAlreadyExists}
	}

	number, err := ir.nextDocumentNumber(instance.ProjectID)
	if err != nil {
		return &persistence.InstanceError{Op: "Create", InstanceID: instance.ID, Err: err}
	}

	now := time.Now().UTC()
	instance.DocumentNumber = number
	instance.Revision = 1
	instance.CreatedAt = now
	instance.UpdatedAt = now

	if err := writeJSON(path, instance); err != nil {
		return &persistence.InstanceError{Op: "Create", InstanceID: instance.ID, Err: err}
	}

	return nil
}

func (ir *InstanceRepository) InstanceByID(_ context.Context, id string) (*models.ProcessInstance, error) {
	ir.mu.Lock()
	defer ir.mu.Unlock()

	return ir.load(id)
}

func (ir *InstanceRepository) load(id string) (*models.ProcessInstance, error) {
	var instance models.ProcessInstance
	if err := readJSON(ir.instancePath(id), &instance, persistence.ErrInstanceNotFound); err != nil {
		return nil, err
	}

	return &instance, nil
}

// ListInstances returns all instances, optionally filtered by project,
// ordered by document number.
func (ir *InstanceRepository) ListInstances(_ context.Context, projectID string) ([]*models.ProcessInstance, error) {
	ir.mu.Lock()
	defer ir.mu.Unlock()

	dir := os.DirFS(filepath.Join(ir.root, "instances"))

	jsonFiles, err := fs.Glob(dir, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list instance files: %w", err)
	}

	instances := make([]*models.ProcessInstance, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		id := file[:len(file)-len(".json")]

		instance, err := ir.load(id)
		if err != nil {
			return nil, fmt.Errorf("failed to load instance %s: %w", id, err)
		}

		if projectID != "" && instance.ProjectID != projectID {
			continue
		}

		instances = append(instances, instance)
	}

	sort.Slice(instances, func(i, j int) bool {
		return instances[i].DocumentNumber < instances[j].DocumentNumber
	})

	return instances, nil
}

// UpdateInstance applies the update only if the stored revision matches
// expectedRevision, bumping the revision on success.
func (ir *InstanceRepository) UpdateInstance(_ context.Context, instance *models.ProcessInstance, expectedRevision int64) error {
	ir.mu.Lock()
	defer ir.mu.Unlock()

	stored, err := ir.load(instance.ID)
	if err != nil {
		return &persistence.InstanceError{Op: "Update", InstanceID: instance.ID, Err: err}
	}

	if stored.Revision != expectedRevision {
		return &persistence.InstanceError{Op: "Update", InstanceID: instance.ID, Err: persistence.ErrRevisionConflict}
	}

	instance.Revision = expectedRevision + 1
	instance.DocumentNumber = stored.DocumentNumber
	instance.CreatedAt = stored.CreatedAt
	instance.UpdatedAt = time.Now().UTC()

	if err := writeJSON(ir.instancePath(instance.ID), instance); err != nil {
		return &persistence.InstanceError{Op: "Update", InstanceID: instance.ID, Err: err}
	}

	return nil
}

// SaveSubmission appends a submission to the instance's audit log.
func (ir *InstanceRepository) SaveSubmission(_ context.Context, submission *models.FormSubmission) error {
	ir.mu.Lock()
	defer ir.mu.Unlock()

	path := filepath.Join(ir.root, "submissions", submission.ProcessInstanceID+".json")

	var submissions []*models.FormSubmission
	if err := readJSON(path, &submissions, nil); err != nil {
		return &persistence.InstanceError{Op: "SaveSubmission", InstanceID: submission.ProcessInstanceID, Err: err}
	}

	submissions = append(submissions, submission)

	if err := writeJSON(path, submissions); err != nil {
		return &persistence.InstanceError{Op: "SaveSubmission", InstanceID: submission.ProcessInstanceID, Err: err}
	}

	return nil
}

func (ir *InstanceRepository) SubmissionsByInstance(_ context.Context, instanceID string) ([]*models.FormSubmission, error) {
	ir.mu.Lock()
	defer ir.mu.Unlock()

	path := filepath.Join(ir.root, "submissions", instanceID+".json")

	var submissions []*models.FormSubmission
	if err := readJSON(path, &submissions, nil); err != nil {
		return nil, err
	}

	if submissions == nil {
		submissions = []*models.FormSubmission{}
	}

	return submissions, nil
}

// nextDocumentNumber increments and returns the per-project counter.
// Callers must hold the repository mutex.
func (ir *InstanceRepository) nextDocumentNumber(projectID string) (int64, error) {
	if projectID == "" {
		projectID = "_default"
	}

	path := filepath.Join(ir.root, "counters", projectID+".json")

	var counter struct {
		Next int64 `json:"next"`
	}

	if err := readJSON(path, &counter, nil); err != nil {
		return 0, err
	}

	counter.Next++

	if err := writeJSON(path, &counter); err != nil {
		return 0, err
	}

	return counter.Next, nil
}
