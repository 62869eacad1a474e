package sandbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseflow-io/caseflow/pkg/models"
)

func TestCompileFieldVisibility(t *testing.T) {
	t.Parallel()

	program, err := Compile(models.ValidatorDefinition{
		Key:  "hide-internal",
		Type: models.ValidatorTypeFieldVisibility,
		Code: `# comment line

set internal_notes = hidden when amount > 1000
set total = read`,
	})
	require.NoError(t, err)
	assert.Equal(t, "hide-internal", program.Key)
	assert.Len(t, program.rules, 2)
}

func TestCompileRejectsMalformedRules(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		vt   models.ValidatorType
		code string
	}{
		{"missing set keyword", models.ValidatorTypeFieldVisibility, "internal_notes = hidden"},
		{"missing equals", models.ValidatorTypeFieldVisibility, "set internal_notes hidden"},
		{"unknown permission", models.ValidatorTypeFieldVisibility, "set internal_notes = invisible"},
		{"unknown verb", models.ValidatorTypeStepAccess, "permit when amount > 0"},
		{"set in step access", models.ValidatorTypeStepAccess, "set total = read"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Compile(models.ValidatorDefinition{Key: "bad", Type: tt.vt, Code: tt.code})
			require.Error(t, err)

			var runErr *RunError
			require.ErrorAs(t, err, &runErr)
			assert.Equal(t, "bad", runErr.ValidatorKey)
			assert.Contains(t, runErr.Reason, "compile error")
		})
	}
}

func TestRunFieldVisibility(t *testing.T) {
	t.Parallel()

	program, err := Compile(models.ValidatorDefinition{
		Key:  "visibility",
		Type: models.ValidatorTypeFieldVisibility,
		Code: `set internal_notes = hidden when amount > 1000
set total = read
set total = write when status == 'draft'`,
	})
	require.NoError(t, err)

	runner := NewRunner(DefaultTimeout)

	verdict, err := runner.RunFieldVisibility(context.Background(), program, map[string]any{
		"amount": float64(2000),
		"status": "submitted",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]models.Permission{
		"internal_notes": models.PermissionHidden,
		"total":          models.PermissionRead,
	}, verdict)

	// Later lines overwrite earlier ones when their condition holds.
	verdict, err = runner.RunFieldVisibility(context.Background(), program, map[string]any{
		"amount": float64(100),
		"status": "draft",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]models.Permission{
		"total": models.PermissionWrite,
	}, verdict)
}

func TestRunStepAccess(t *testing.T) {
	t.Parallel()

	runner := NewRunner(DefaultTimeout)

	compile := func(t *testing.T, code string) *Program {
		t.Helper()

		program, err := Compile(models.ValidatorDefinition{
			Key:  "gate",
			Type: models.ValidatorTypeStepAccess,
			Code: code,
		})
		require.NoError(t, err)

		return program
	}

	t.Run("first matching rule decides", func(t *testing.T) {
		t.Parallel()

		program := compile(t, `deny when amount > 1000
allow`)

		ok, err := runner.RunStepAccess(context.Background(), program, map[string]any{"amount": float64(2000)}, "review")
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = runner.RunStepAccess(context.Background(), program, map[string]any{"amount": float64(10)}, "review")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("falling off the end allows", func(t *testing.T) {
		t.Parallel()

		program := compile(t, "deny when amount > 1000")

		ok, err := runner.RunStepAccess(context.Background(), program, map[string]any{}, "review")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("node id is visible to conditions", func(t *testing.T) {
		t.Parallel()

		program := compile(t, "deny when node_id == 'approval'")

		ok, err := runner.RunStepAccess(context.Background(), program, map[string]any{}, "approval")
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = runner.RunStepAccess(context.Background(), program, map[string]any{}, "intake")
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestRunRejectsTypeMismatch(t *testing.T) {
	t.Parallel()

	runner := NewRunner(DefaultTimeout)

	visibility, err := Compile(models.ValidatorDefinition{
		Key:  "visibility",
		Type: models.ValidatorTypeFieldVisibility,
		Code: "set total = read",
	})
	require.NoError(t, err)

	_, err = runner.RunStepAccess(context.Background(), visibility, map[string]any{}, "review")
	require.Error(t, err)

	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Contains(t, runErr.Reason, "not a step_access validator")

	gate, err := Compile(models.ValidatorDefinition{
		Key:  "gate",
		Type: models.ValidatorTypeStepAccess,
		Code: "allow",
	})
	require.NoError(t, err)

	_, err = runner.RunFieldVisibility(context.Background(), gate, map[string]any{})
	require.Error(t, err)
}

func TestRunIsolatedTimeout(t *testing.T) {
	t.Parallel()

	_, err := runIsolated(context.Background(), 20*time.Millisecond, "slow", func() (bool, error) {
		time.Sleep(time.Second)

		return true, nil
	})
	require.Error(t, err)

	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, "timed out", runErr.Reason)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunIsolatedPanicRecovery(t *testing.T) {
	t.Parallel()

	_, err := runIsolated(context.Background(), time.Second, "boom", func() (bool, error) {
		panic("scripted failure")
	})
	require.Error(t, err)

	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Contains(t, runErr.Reason, "panic")
}
