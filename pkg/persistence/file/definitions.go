package file

import (
	"context"
	"path/filepath"

	"github.com/caseflow-io/caseflow/pkg/models"
	"github.com/caseflow-io/caseflow/pkg/persistence"
)

// DefinitionStore serves authored definitions from JSON documents. The
// runtime only reads these; the authoring side (external) writes them.
type DefinitionStore struct {
	root string
}

// NewDefinitionStore creates a definition store rooted at the directory.
func NewDefinitionStore(root string) *DefinitionStore {
	return &DefinitionStore{root: root}
}

func (ds *DefinitionStore) ProcessDefinitionByID(_ context.Context, id string) (*models.ProcessDefinition, error) {
	var def models.ProcessDefinition

	path := filepath.Join(ds.root, "processes", id+".json")
	if err := readJSON(path, &def, persistence.ErrDefinitionNotFound); err != nil {
		return nil, err
	}

	return &def, nil
}

func (ds *DefinitionStore) FormDefinitionByID(_ context.Context, id string) (*models.FormDefinition, error) {
	var form models.FormDefinition

	path := filepath.Join(ds.root, "forms", id+".json")
	if err := readJSON(path, &form, persistence.ErrFormNotFound); err != nil {
		return nil, err
	}

	return &form, nil
}

func (ds *DefinitionStore) CatalogByID(_ context.Context, id string) (*models.Catalog, error) {
	var catalog models.Catalog

	path := filepath.Join(ds.root, "catalogs", id+".json")
	if err := readJSON(path, &catalog, persistence.ErrCatalogNotFound); err != nil {
		return nil, err
	}

	return &catalog, nil
}

// ValidatorByKey looks a validator up by project and key. Validators with no
// project live under the "_default" project directory.
func (ds *DefinitionStore) ValidatorByKey(_ context.Context, projectID, key string) (*models.ValidatorDefinition, error) {
	if projectID == "" {
		projectID = "_default"
	}

	var v models.ValidatorDefinition

	path := filepath.Join(ds.root, "validators", projectID, key+".json")
	if err := readJSON(path, &v, persistence.ErrValidatorNotFound); err != nil {
		return nil, err
	}

	return &v, nil
}

func (ds *DefinitionStore) ListRoles(_ context.Context) ([]models.Role, error) {
	var roles []models.Role

	// A missing roles file means no roles are defined yet, which is fine.
	path := filepath.Join(ds.root, "roles.json")
	if err := readJSON(path, &roles, nil); err != nil {
		return nil, err
	}

	return roles, nil
}

// SaveProcessDefinition writes a definition document. Used by tests and by
// external authoring tooling sharing the same store layout.
func (ds *DefinitionStore) SaveProcessDefinition(def *models.ProcessDefinition) error {
	return writeJSON(filepath.Join(ds.root, "processes", def.ID+".json"), def)
}

// SaveFormDefinition writes a form document.
func (ds *DefinitionStore) SaveFormDefinition(form *models.FormDefinition) error {
	return writeJSON(filepath.Join(ds.root, "forms", form.ID+".json"), form)
}

// SaveCatalog writes a catalog document.
func (ds *DefinitionStore) SaveCatalog(catalog *models.Catalog) error {
	return writeJSON(filepath.Join(ds.root, "catalogs", catalog.ID+".json"), catalog)
}

// SaveValidator writes a validator document under its project directory.
func (ds *DefinitionStore) SaveValidator(v *models.ValidatorDefinition) error {
	projectID := v.ProjectID
	if projectID == "" {
		projectID = "_default"
	}

	return writeJSON(filepath.Join(ds.root, "validators", projectID, v.Key+".json"), v)
}

// SaveRoles writes the roles document.
func (ds *DefinitionStore) SaveRoles(roles []models.Role) error {
	return writeJSON(filepath.Join(ds.root, "roles.json"), roles)
}
