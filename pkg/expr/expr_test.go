package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	t.Parallel()

	context := map[string]any{
		"amount":   float64(500),
		"status":   "approved",
		"tags":     []any{"red", "blue"},
		"active":   true,
		"count":    int64(3),
		"customer": map[string]any{"tier": "gold"},
		"role_ids": []any{"admin", "manager"},
	}

	tests := []struct {
		name       string
		expression string
		expected   bool
	}{
		{"empty expression is true", "", true},
		{"number comparison false", "amount > 1000", false},
		{"number comparison true", "amount > 100", true},
		{"number equality", "amount == 500", true},
		{"number inequality", "amount != 500", false},
		{"lte boundary", "amount <= 500", true},
		{"string equality", "status == 'approved'", true},
		{"string double quotes", `status == "approved"`, true},
		{"string ordering", "status < 'b'", true},
		{"membership in list literal", "status in ['approved', 'rejected']", true},
		{"membership in context list", "'red' in tags", true},
		{"membership miss", "'green' in tags", false},
		{"role membership", "'admin' in role_ids", true},
		{"boolean literal", "active == true", true},
		{"yes literal", "active == yes", true},
		{"and", "amount > 100 and status == 'approved'", true},
		{"and short", "amount > 1000 and status == 'approved'", false},
		{"or", "amount > 1000 or status == 'approved'", true},
		{"parentheses", "(amount > 1000 or amount < 600) and active", true},
		{"dotted reference", "customer.tier == 'gold'", true},
		{"unknown field fails safe", "missing > 10", false},
		{"unknown field equality with nil never true", "missing == 1", false},
		{"unknown dotted path", "customer.missing.deep == 'x'", false},
		{"int and float mix", "count >= 3", true},
		{"malformed expression is false", "amount > >", false},
		{"trailing garbage is false", "amount > 100 status", false},
		{"bare truthy number", "amount", true},
		{"bare truthy string", "status", true},
		{"bare unknown reference", "missing", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, Evaluate(tt.expression, context))
		})
	}
}

func TestEvaluateErr(t *testing.T) {
	t.Parallel()

	_, err := EvaluateErr("amount > ", map[string]any{"amount": 1})
	require.Error(t, err)

	result, err := EvaluateErr("amount > 0", map[string]any{"amount": 1})
	require.NoError(t, err)
	assert.True(t, result)
}

func TestEvaluateNilContextValues(t *testing.T) {
	t.Parallel()

	context := map[string]any{"amount": nil}

	// Absent or nil values never satisfy ordering comparisons.
	assert.False(t, Evaluate("amount > 0", context))
	assert.False(t, Evaluate("amount < 0", context))
	assert.True(t, Evaluate("amount == missing", context)) // nil == nil
}
