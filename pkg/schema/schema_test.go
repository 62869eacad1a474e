package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseflow-io/caseflow/pkg/models"
)

func expenseForm() *models.FormDefinition {
	return &models.FormDefinition{
		ID:   "expense-form",
		Name: "Expense",
		Fields: []models.FieldSchema{
			{Name: "amount", Type: models.FieldTypeNumber, Validations: map[string]any{"min": 0, "max": 10000}},
			{Name: "reason", Type: models.FieldTypeTextarea},
			{Name: "urgent", Type: models.FieldTypeBoolean},
			{
				Name: "category",
				Type: models.FieldTypeSelect,
				Options: []models.SelectOption{
					{Value: "travel", Label: "Travel"},
					{Value: "meals", Label: "Meals"},
				},
			},
			{Name: "tags", Type: models.FieldTypeMultiselect, Options: []models.SelectOption{
				{Value: "billable", Label: "Billable"},
				{Value: "recurring", Label: "Recurring"},
			}},
			{Name: "country", Type: models.FieldTypeSelect, CatalogID: "countries"},
		},
	}
}

func testCatalogs() map[string]*models.Catalog {
	return map[string]*models.Catalog{
		"countries": {
			ID: "countries",
			Items: []models.SelectOption{
				{Value: "br", Label: "Brazil"},
				{Value: "pt", Label: "Portugal"},
			},
		},
	}
}

func TestValidateDataAcceptsValidSubmission(t *testing.T) {
	t.Parallel()

	fieldErrors, err := ValidateData(expenseForm(), testCatalogs(), map[string]any{
		"amount":   float64(500),
		"reason":   "team offsite",
		"urgent":   true,
		"category": "travel",
		"tags":     []any{"billable"},
		"country":  "br",
	})
	require.NoError(t, err)
	assert.Empty(t, fieldErrors)
}

func TestValidateDataAcceptsNulls(t *testing.T) {
	t.Parallel()

	// Explicit nulls clear a field; requiredness is enforced elsewhere.
	fieldErrors, err := ValidateData(expenseForm(), testCatalogs(), map[string]any{
		"amount":   nil,
		"urgent":   nil,
		"category": nil,
	})
	require.NoError(t, err)
	assert.Empty(t, fieldErrors)
}

func TestValidateDataTypeMismatches(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		data  map[string]any
		field string
	}{
		{"string for number", map[string]any{"amount": "five hundred"}, "amount"},
		{"number for string", map[string]any{"reason": float64(12)}, "reason"},
		{"string for boolean", map[string]any{"urgent": "yes"}, "urgent"},
		{"scalar for multiselect", map[string]any{"tags": "billable"}, "tags"},
		{"below minimum", map[string]any{"amount": float64(-1)}, "amount"},
		{"above maximum", map[string]any{"amount": float64(20000)}, "amount"},
		{"unknown select option", map[string]any{"category": "lodging"}, "category"},
		{"unknown catalog option", map[string]any{"country": "xx"}, "country"},
		{"unknown multiselect item", map[string]any{"tags": []any{"billable", "bogus"}}, "tags"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fieldErrors, err := ValidateData(expenseForm(), testCatalogs(), tt.data)
			require.NoError(t, err)
			require.NotEmpty(t, fieldErrors)
			assert.Contains(t, fieldErrors[0].Field, tt.field)
		})
	}
}

func TestValidateDataMissingCatalogLeavesFieldUnconstrained(t *testing.T) {
	t.Parallel()

	fieldErrors, err := ValidateData(expenseForm(), map[string]*models.Catalog{}, map[string]any{
		"country": "anything-goes",
	})
	require.NoError(t, err)
	assert.Empty(t, fieldErrors)
}

func TestBuildFormSchemaShape(t *testing.T) {
	t.Parallel()

	built := BuildFormSchema(expenseForm(), testCatalogs())

	assert.Equal(t, "object", built["type"])
	assert.Equal(t, true, built["additionalProperties"])

	properties, ok := built["properties"].(map[string]any)
	require.True(t, ok)
	require.Len(t, properties, 6)

	amount, ok := properties["amount"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []string{"number", "null"}, amount["type"])
	assert.Equal(t, 0, amount["minimum"])
	assert.Equal(t, 10000, amount["maximum"])
}
