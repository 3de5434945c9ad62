package integration

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"herald/internal/broker"
	"herald/internal/constants"
	"herald/internal/dispatch"
	"herald/internal/pipeline"
	"herald/internal/rules"
)

type capturedDispatch struct {
	messages []dispatch.Message
}

func (d *capturedDispatch) Dispatch(_ context.Context, msg dispatch.Message) error {
	d.messages = append(d.messages, msg)
	return nil
}

type capturedPublish struct {
	topic    string
	messages []broker.Message
}

func (p *capturedPublish) Publish(_ context.Context, topic string, msg broker.Message) error {
	p.topic = topic
	p.messages = append(p.messages, msg)
	return nil
}

func (p *capturedPublish) Close() error { return nil }

func newIntegrationPipeline(t *testing.T, infra *TestInfra) (*pipeline.Pipeline, *capturedPublish, *capturedDispatch) {
	t.Helper()

	repo := rules.NewRepository(infra.RedisClient)
	require.NoError(t, repo.Seed(context.Background(), rules.DefaultRules()))

	evaluator, err := rules.NewEvaluator()
	require.NoError(t, err)

	producer := &capturedPublish{}
	dispatcher := &capturedDispatch{}
	p := pipeline.New(repo, evaluator, producer, dispatcher, constants.TopicEnriched, createTestLogger())
	return p, producer, dispatcher
}

func TestPipeline_DefaultRulesAgainstLiveRuleStore(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)
	p, producer, dispatcher := newIntegrationPipeline(t, infra)

	raw := []byte(`{"notificationId":"n1","type":"email","email":"a@b.com","title":"hello","message":"hi"}`)
	outcome, err := p.Process(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, pipeline.OutcomeDispatched, outcome)
	require.Len(t, dispatcher.messages, 1)
	assert.Equal(t, "a@b.com", dispatcher.messages[0].Recipient)
	assert.Empty(t, producer.messages)
}

func TestPipeline_RuleSwapTakesEffectWithoutRestart(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)
	p, producer, dispatcher := newIntegrationPipeline(t, infra)
	ctx := context.Background()

	raw := []byte(`{"notificationId":"n1","type":"email","email":"a@b.com"}`)

	outcome, err := p.Process(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, pipeline.OutcomeDispatched, outcome)

	repo := rules.NewRepository(infra.RedisClient)
	require.NoError(t, repo.Set(ctx, constants.RuleRouting, "false"))

	outcome, err = p.Process(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, pipeline.OutcomeRequeued, outcome, "the swapped rule must apply to the very next event")

	assert.Len(t, dispatcher.messages, 1)
	require.Len(t, producer.messages, 1)
	assert.Equal(t, constants.TopicEnriched, producer.topic)
}

func TestPipeline_EnrichedEventCarriesRuleOutputs(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)
	p, producer, _ := newIntegrationPipeline(t, infra)
	ctx := context.Background()

	repo := rules.NewRepository(infra.RedisClient)
	require.NoError(t, repo.Set(ctx, constants.RuleRouting, "false"))

	raw := []byte(`{"notificationId":"n2","type":"email","email":"a@b.com"}`)
	outcome, err := p.Process(ctx, raw)
	require.NoError(t, err)
	require.Equal(t, pipeline.OutcomeRequeued, outcome)

	var event map[string]interface{}
	require.NoError(t, json.Unmarshal(producer.messages[0].Value, &event))
	assert.Equal(t, "A@B.COM", event[constants.EnrichmentField])
	assert.Equal(t, "Updated Location", event["location"])
}
