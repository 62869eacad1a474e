// Package schema validates submitted form data against a JSON schema built
// from the form's field schemas: value types per field type, numeric
// min/max from field validations, and enums from inline options or the
// referenced catalog.
package schema

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/caseflow-io/caseflow/pkg/models"
)

// FieldError is one field-level validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// BuildFormSchema builds the JSON schema document for a form. catalogs maps
// catalog id to the resolved catalog for option-backed fields; a missing
// entry leaves the field unconstrained rather than failing, since catalogs
// are an external collaborator.
func BuildFormSchema(form *models.FormDefinition, catalogs map[string]*models.Catalog) map[string]any {
	properties := make(map[string]any, len(form.Fields))

	for _, field := range form.Fields {
		properties[field.Name] = fieldSchema(field, catalogs)
	}

	return map[string]any{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": true,
	}
}

func fieldSchema(field models.FieldSchema, catalogs map[string]*models.Catalog) map[string]any {
	s := make(map[string]any)

	switch field.Type {
	case models.FieldTypeNumber:
		s["type"] = []string{"number", "null"}

		if minimum, ok := field.Validations["min"]; ok {
			s["minimum"] = minimum
		}

		if maximum, ok := field.Validations["max"]; ok {
			s["maximum"] = maximum
		}
	case models.FieldTypeBoolean:
		s["type"] = []string{"boolean", "null"}
	case models.FieldTypeMultiselect:
		items := map[string]any{"type": "string"}
		if values := optionValues(field, catalogs); values != nil {
			items["enum"] = values
		}

		s["type"] = []string{"array", "null"}
		s["items"] = items
	case models.FieldTypeSelect:
		s["type"] = []string{"string", "null"}

		if values := optionValues(field, catalogs); values != nil {
			s["enum"] = append(values, nil) // allow explicit null alongside the option set
		}
	default:
		// text, textarea, date, datetime: plain strings. Date formats are a
		// UI concern; the runtime stores what it is given.
		s["type"] = []string{"string", "null"}
	}

	return s
}

// optionValues resolves the option set for a select/multiselect field.
// Catalog items override inline options when a catalog is bound.
func optionValues(field models.FieldSchema, catalogs map[string]*models.Catalog) []any {
	options := field.Options

	if field.CatalogID != "" {
		catalog, ok := catalogs[field.CatalogID]
		if !ok {
			return nil
		}

		options = catalog.Items
	}

	if len(options) == 0 {
		return nil
	}

	values := make([]any, 0, len(options))
	for _, option := range options {
		values = append(values, option.Value)
	}

	return values
}

// ValidateData validates submitted data against the form schema and returns
// per-field errors.
func ValidateData(form *models.FormDefinition, catalogs map[string]*models.Catalog, data map[string]any) ([]FieldError, error) {
	schemaLoader := gojsonschema.NewGoLoader(BuildFormSchema(form, catalogs))
	dataLoader := gojsonschema.NewGoLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	if result.Valid() {
		return nil, nil
	}

	fieldErrors := make([]FieldError, 0, len(result.Errors()))
	for _, resultError := range result.Errors() {
		fieldErrors = append(fieldErrors, FieldError{
			Field:   resultError.Field(),
			Message: resultError.Description(),
		})
	}

	return fieldErrors, nil
}
