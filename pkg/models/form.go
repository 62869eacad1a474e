package models

// FieldType represents the data type of a form field.
type FieldType string

const (
	FieldTypeText        FieldType = "text"
	FieldTypeTextarea    FieldType = "textarea"
	FieldTypeNumber      FieldType = "number"
	FieldTypeDate        FieldType = "date"
	FieldTypeDatetime    FieldType = "datetime"
	FieldTypeBoolean     FieldType = "boolean"
	FieldTypeSelect      FieldType = "select"
	FieldTypeMultiselect FieldType = "multiselect"
)

// Permission is the effective access level for a form field.
type Permission string

const (
	PermissionWrite  Permission = "write"
	PermissionRead   Permission = "read"
	PermissionHidden Permission = "hidden"
)

// restrictiveness orders permissions: hidden > read > write.
var restrictiveness = map[Permission]int{
	PermissionWrite:  0,
	PermissionRead:   1,
	PermissionHidden: 2,
}

// MoreRestrictive reports whether a is stricter than b.
func MoreRestrictive(a, b Permission) bool {
	return restrictiveness[a] > restrictiveness[b]
}

// AccessRule grants a permission by role membership or by expression over
// the instance context. A rule carrying neither is rejected at authoring
// time; the runtime tolerates one defensively by treating it as
// always-matching.
type AccessRule struct {
	RoleID     string     `json:"role_id,omitempty"`
	Expression string     `json:"expression,omitempty"`
	Permission Permission `json:"permission" validate:"required,oneof=read write hidden"`
}

// SelectOption is a single option of a select/multiselect field.
type SelectOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// FieldSchema describes one field of a form. Name is the stable key, unique
// within the form. CatalogID, when set, supplies the option set for
// select/multiselect fields and overrides inline Options.
type FieldSchema struct {
	Name        string         `json:"name"  validate:"required,min=1"`
	Label       string         `json:"label"`
	Type        FieldType      `json:"type"  validate:"required,oneof=text textarea number date datetime boolean select multiselect"`
	Required    bool           `json:"required"`
	CatalogID   string         `json:"catalog_id,omitempty"`
	Options     []SelectOption `json:"options,omitempty"`
	Validations map[string]any `json:"validations,omitempty"` // e.g. {"min": 0, "max": 100}
	AccessRules []AccessRule   `json:"access_rules,omitempty"`
	Width       int            `json:"width,omitempty"` // layout hint, passed through untouched
}

// FormDefinition is an ordered list of field schemas bound to step nodes.
type FormDefinition struct {
	ID     string        `json:"id"`
	Name   string        `json:"name" validate:"required,min=1"`
	Fields []FieldSchema `json:"fields"`
}

// GetField returns the field with the given name, or nil.
func (f *FormDefinition) GetField(name string) *FieldSchema {
	for i := range f.Fields {
		if f.Fields[i].Name == name {
			return &f.Fields[i]
		}
	}

	return nil
}

// Catalog supplies option sets for select/multiselect fields.
type Catalog struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Items []SelectOption `json:"items"`
}

// Role is an externally administered role referenced by access rules.
type Role struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
