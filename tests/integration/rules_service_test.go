package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"herald/internal/constants"
	"herald/internal/rules"
)

func newRulesService(t *testing.T, infra *TestInfra) *rules.Service {
	t.Helper()

	evaluator, err := rules.NewEvaluator()
	require.NoError(t, err)

	repo := rules.NewRepository(infra.RedisClient)
	audit := rules.NewAuditLog(infra.MongoDB)
	return rules.NewService(repo, evaluator, audit, createTestLogger())
}

func TestRulesService_SeedAndOverride(t *testing.T) {
	infra := SetupTestInfra(t)
	ctx := context.Background()
	svc := newRulesService(t, infra)

	require.NoError(t, svc.SeedDefaults(ctx))

	expr, err := svc.Get(ctx, constants.RuleRouting)
	require.NoError(t, err)
	assert.Equal(t, rules.DefaultRules()[constants.RuleRouting], expr)

	override := `event.type == "sms"`
	require.NoError(t, svc.Set(ctx, constants.RuleRouting, override, "integration-test"))

	require.NoError(t, svc.SeedDefaults(ctx), "re-seeding must not clobber the override")

	expr, err = svc.Get(ctx, constants.RuleRouting)
	require.NoError(t, err)
	assert.Equal(t, override, expr)
}

func TestRulesService_AuditTrailPersisted(t *testing.T) {
	infra := SetupTestInfra(t)
	ctx := context.Background()
	svc := newRulesService(t, infra)

	require.NoError(t, svc.Set(ctx, constants.RuleValidation, `has(event.notificationId)`, "alice"))
	require.NoError(t, svc.Set(ctx, constants.RuleValidation, `has(event.notificationId) && has(event.type)`, "bob"))
	require.NoError(t, svc.Delete(ctx, constants.RuleValidation, "carol"))

	entries, err := svc.AuditTrail(ctx, constants.RuleValidation, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	actions := make(map[string]int)
	changedBy := make(map[string]bool)
	for _, entry := range entries {
		actions[entry.Action]++
		changedBy[entry.ChangedBy] = true
	}
	assert.Equal(t, 2, actions[rules.AuditActionSet])
	assert.Equal(t, 1, actions[rules.AuditActionDelete])
	assert.True(t, changedBy["alice"] && changedBy["bob"] && changedBy["carol"])
}

func TestRulesService_RejectsBrokenExpression(t *testing.T) {
	infra := SetupTestInfra(t)
	ctx := context.Background()
	svc := newRulesService(t, infra)

	err := svc.Set(ctx, constants.RuleValidation, `has(event.`, "integration-test")
	require.Error(t, err)

	_, err = svc.Get(ctx, constants.RuleValidation)
	assert.Error(t, err, "a rejected expression must not be stored")
}
