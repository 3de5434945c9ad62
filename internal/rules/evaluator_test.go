package rules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"herald/pkg/errors"
)

func newTestEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	evaluator, err := NewEvaluator()
	require.NoError(t, err)
	return evaluator
}

func TestEvaluateCondition_Deterministic(t *testing.T) {
	evaluator := newTestEvaluator(t)
	ctx := context.Background()

	event := map[string]interface{}{
		"notificationId": "n1",
		"type":           "email",
		"email":          "a@b.com",
	}
	expression := `event.type == "email" && has(event.email)`

	for i := 0; i < 10; i++ {
		result, err := evaluator.EvaluateCondition(ctx, expression, event)
		require.NoError(t, err)
		assert.True(t, result)
	}
}

func TestEvaluateCondition_False(t *testing.T) {
	evaluator := newTestEvaluator(t)

	result, err := evaluator.EvaluateCondition(context.Background(), `event.type == "sms"`, map[string]interface{}{
		"type": "email",
	})
	require.NoError(t, err)
	assert.False(t, result)
}

func TestEvaluateCondition_NonBooleanResult(t *testing.T) {
	evaluator := newTestEvaluator(t)

	_, err := evaluator.EvaluateCondition(context.Background(), `event.type`, map[string]interface{}{
		"type": "email",
	})
	require.Error(t, err)
	assert.True(t, errors.IsEvaluation(err))
}

func TestEvaluateCondition_MissingField(t *testing.T) {
	evaluator := newTestEvaluator(t)

	_, err := evaluator.EvaluateCondition(context.Background(), `event.missing == "x"`, map[string]interface{}{
		"type": "email",
	})
	require.Error(t, err)
	assert.True(t, errors.IsEvaluation(err))
}

func TestEvaluateExpression_StringMethod(t *testing.T) {
	evaluator := newTestEvaluator(t)

	result, err := evaluator.EvaluateExpression(context.Background(), `event.email.upperAscii()`, map[string]interface{}{
		"email": "a@b.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "A@B.COM", result)
}

func TestEvaluateExpression_MapResult(t *testing.T) {
	evaluator := newTestEvaluator(t)

	result, err := evaluator.EvaluateExpression(context.Background(), `{"location": "Updated Location", "priority": "high"}`, map[string]interface{}{})
	require.NoError(t, err)

	mapped, ok := result.(map[string]interface{})
	require.True(t, ok, "expected a native map, got %T", result)
	assert.Equal(t, "Updated Location", mapped["location"])
	assert.Equal(t, "high", mapped["priority"])
}

func TestValidateExpression(t *testing.T) {
	evaluator := newTestEvaluator(t)

	assert.NoError(t, evaluator.ValidateExpression(`event.type == "email"`))

	err := evaluator.ValidateExpression(`event.type ==`)
	require.Error(t, err)
	assert.True(t, errors.IsEvaluation(err))
}

func TestProgramCache_ReusesCompiledPrograms(t *testing.T) {
	evaluator := newTestEvaluator(t)
	expression := `event.type == "email"`

	_, err := evaluator.EvaluateCondition(context.Background(), expression, map[string]interface{}{"type": "email"})
	require.NoError(t, err)

	evaluator.mu.RLock()
	_, cached := evaluator.programs[expression]
	evaluator.mu.RUnlock()
	assert.True(t, cached)

	_, err = evaluator.EvaluateCondition(context.Background(), expression, map[string]interface{}{"type": "sms"})
	require.NoError(t, err)

	evaluator.mu.RLock()
	size := len(evaluator.programs)
	evaluator.mu.RUnlock()
	assert.Equal(t, 1, size)
}

func TestDefaultRules_Compile(t *testing.T) {
	evaluator := newTestEvaluator(t)

	for name, expression := range DefaultRules() {
		assert.NoError(t, evaluator.ValidateExpression(expression), "default rule %s must compile", name)
	}
}

func TestDefaultValidationRule(t *testing.T) {
	evaluator := newTestEvaluator(t)
	rule := DefaultRules()["validationRule"]
	ctx := context.Background()

	tests := []struct {
		name  string
		event map[string]interface{}
		want  bool
	}{
		{
			name:  "email with address",
			event: map[string]interface{}{"notificationId": "n1", "type": "email", "email": "a@b.com"},
			want:  true,
		},
		{
			name:  "email without address",
			event: map[string]interface{}{"notificationId": "n1", "type": "email"},
			want:  false,
		},
		{
			name:  "sms with number",
			event: map[string]interface{}{"notificationId": "n1", "type": "sms", "mobileNumber": "+15550001111"},
			want:  true,
		},
		{
			name:  "sms without number",
			event: map[string]interface{}{"notificationId": "n1", "type": "sms"},
			want:  false,
		},
		{
			name:  "missing id",
			event: map[string]interface{}{"type": "email", "email": "a@b.com"},
			want:  false,
		},
		{
			name:  "missing type",
			event: map[string]interface{}{"notificationId": "n1"},
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := evaluator.EvaluateCondition(ctx, rule, tt.event)
			require.NoError(t, err)
			assert.Equal(t, tt.want, result)
		})
	}
}
