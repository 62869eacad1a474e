package access

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseflow-io/caseflow/pkg/log"
	"github.com/caseflow-io/caseflow/pkg/models"
	"github.com/caseflow-io/caseflow/pkg/sandbox"
)

func testForm() *models.FormDefinition {
	return &models.FormDefinition{
		ID:   "intake-form",
		Name: "Intake",
		Fields: []models.FieldSchema{
			{Name: "amount", Type: models.FieldTypeNumber},
			{
				Name: "internal_notes",
				Type: models.FieldTypeTextarea,
				AccessRules: []models.AccessRule{
					{RoleID: "admin", Permission: models.PermissionWrite},
					{Expression: "status == 'submitted'", Permission: models.PermissionRead},
				},
			},
			{
				Name: "total",
				Type: models.FieldTypeNumber,
				AccessRules: []models.AccessRule{
					{RoleID: "viewer", Permission: models.PermissionHidden},
				},
			},
		},
	}
}

func compileVisibility(t *testing.T, key, code string) *sandbox.Program {
	t.Helper()

	program, err := sandbox.Compile(models.ValidatorDefinition{
		Key:  key,
		Type: models.ValidatorTypeFieldVisibility,
		Code: code,
	})
	require.NoError(t, err)

	return program
}

func TestResolveStaticRules(t *testing.T) {
	t.Parallel()

	engine := NewEngine(sandbox.NewRunner(0), log.WithModule("test"))

	t.Run("no matching rule defaults to write", func(t *testing.T) {
		t.Parallel()

		resolution := engine.Resolve(context.Background(), testForm(), map[string]any{}, models.ActingUser{ID: "u1"}, nil)

		assert.Equal(t, models.PermissionWrite, resolution.PermissionFor("amount"))
		assert.Equal(t, models.PermissionWrite, resolution.PermissionFor("internal_notes"))
		assert.Equal(t, models.PermissionWrite, resolution.PermissionFor("total"))
		assert.Empty(t, resolution.Warnings)
	})

	t.Run("most restrictive matching rule wins", func(t *testing.T) {
		t.Parallel()

		// Both internal_notes rules match here: the admin write rule and the
		// expression read rule. Read is stricter, so read wins.
		resolution := engine.Resolve(
			context.Background(),
			testForm(),
			map[string]any{"status": "submitted"},
			models.ActingUser{ID: "u1", RoleIDs: []string{"admin"}},
			nil,
		)

		assert.Equal(t, models.PermissionRead, resolution.PermissionFor("internal_notes"))
	})

	t.Run("role rule matches by membership", func(t *testing.T) {
		t.Parallel()

		resolution := engine.Resolve(
			context.Background(),
			testForm(),
			map[string]any{},
			models.ActingUser{ID: "u1", RoleIDs: []string{"viewer"}},
			nil,
		)

		assert.Equal(t, models.PermissionHidden, resolution.PermissionFor("total"))
	})

	t.Run("unknown field defaults to write", func(t *testing.T) {
		t.Parallel()

		resolution := engine.Resolve(context.Background(), testForm(), map[string]any{}, models.ActingUser{}, nil)

		assert.Equal(t, models.PermissionWrite, resolution.PermissionFor("not_on_form"))
	})
}

func TestResolveRuleWithoutRoleOrExpression(t *testing.T) {
	t.Parallel()

	engine := NewEngine(sandbox.NewRunner(0), log.WithModule("test"))

	form := &models.FormDefinition{
		ID:   "f",
		Name: "F",
		Fields: []models.FieldSchema{
			{
				Name: "locked",
				Type: models.FieldTypeText,
				AccessRules: []models.AccessRule{
					{Permission: models.PermissionRead},
				},
			},
		},
	}

	resolution := engine.Resolve(context.Background(), form, map[string]any{}, models.ActingUser{ID: "u1"}, nil)

	assert.Equal(t, models.PermissionRead, resolution.PermissionFor("locked"))
}

func TestResolveVisibilityValidators(t *testing.T) {
	t.Parallel()

	engine := NewEngine(sandbox.NewRunner(0), log.WithModule("test"))

	t.Run("validator output merges most restrictive", func(t *testing.T) {
		t.Parallel()

		program := compileVisibility(t, "hide-large", `set amount = read when amount > 1000
set internal_notes = hidden`)

		resolution := engine.Resolve(
			context.Background(),
			testForm(),
			map[string]any{"amount": float64(5000)},
			models.ActingUser{ID: "u1", RoleIDs: []string{"admin"}},
			[]*sandbox.Program{program},
		)

		assert.Equal(t, models.PermissionRead, resolution.PermissionFor("amount"))
		assert.Equal(t, models.PermissionHidden, resolution.PermissionFor("internal_notes"))
	})

	t.Run("validator cannot relax a static rule", func(t *testing.T) {
		t.Parallel()

		program := compileVisibility(t, "relax", "set total = write")

		resolution := engine.Resolve(
			context.Background(),
			testForm(),
			map[string]any{},
			models.ActingUser{ID: "u1", RoleIDs: []string{"viewer"}},
			[]*sandbox.Program{program},
		)

		assert.Equal(t, models.PermissionHidden, resolution.PermissionFor("total"))
	})

	t.Run("validator output for unknown fields is ignored", func(t *testing.T) {
		t.Parallel()

		program := compileVisibility(t, "stray", "set not_on_form = hidden")

		resolution := engine.Resolve(context.Background(), testForm(), map[string]any{}, models.ActingUser{}, []*sandbox.Program{program})

		assert.Equal(t, models.PermissionWrite, resolution.PermissionFor("not_on_form"))
		assert.Empty(t, resolution.Warnings)
	})

	t.Run("failing validator warns and keeps other rules", func(t *testing.T) {
		t.Parallel()

		// A step_access program handed in as visibility fails its run; the
		// resolution must still carry the static rule outcome.
		wrongType, err := sandbox.Compile(models.ValidatorDefinition{
			Key:  "gate",
			Type: models.ValidatorTypeStepAccess,
			Code: "allow",
		})
		require.NoError(t, err)

		resolution := engine.Resolve(
			context.Background(),
			testForm(),
			map[string]any{},
			models.ActingUser{ID: "u1", RoleIDs: []string{"viewer"}},
			[]*sandbox.Program{wrongType},
		)

		require.Len(t, resolution.Warnings, 1)
		assert.Contains(t, resolution.Warnings[0], "gate")
		assert.Equal(t, models.PermissionHidden, resolution.PermissionFor("total"))
	})
}
