package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"herald/internal/broker"
	"herald/internal/dispatch"
	"herald/internal/logger"
	"herald/internal/rules"
	"herald/pkg/errors"
	"herald/pkg/logging"
	"herald/pkg/metrics"
)

// Pipeline runs one inbound event through validate, enrich, transform
// and route, then hands it to the dispatcher or re-publishes it on the
// enriched topic. A rejection or hard failure surfaces as a fatal error
// so the consumer forwards the original raw message to the dead-letter
// topic untouched.
type Pipeline struct {
	stages        stages
	producer      broker.Producer
	dispatcher    dispatch.Dispatcher
	enrichedTopic string
	logger        logger.Logger
}

func New(repo rules.Repository, evaluator *rules.Evaluator, producer broker.Producer, dispatcher dispatch.Dispatcher, enrichedTopic string, log logger.Logger) *Pipeline {
	return &Pipeline{
		stages: stages{
			repo:      repo,
			evaluator: evaluator,
			logger:    log,
		},
		producer:      producer,
		dispatcher:    dispatcher,
		enrichedTopic: enrichedTopic,
		logger:        log,
	}
}

// Handler adapts the pipeline to the broker's consumer callback.
func (p *Pipeline) Handler() broker.HandlerFunc {
	return func(ctx context.Context, msg broker.Message) error {
		_, err := p.Process(ctx, msg.Value)
		return err
	}
}

func (p *Pipeline) Process(ctx context.Context, raw []byte) (Outcome, error) {
	start := time.Now()

	outcome, err := p.process(ctx, raw)

	metrics.PipelineEventsTotal.WithLabelValues(string(outcome)).Inc()
	metrics.ObservePipelineDuration(time.Since(start), string(outcome))
	return outcome, err
}

func (p *Pipeline) process(ctx context.Context, raw []byte) (Outcome, error) {
	var event Event
	if err := json.Unmarshal(raw, &event); err != nil {
		p.logger.ErrorwCtx(ctx, "Failed to decode inbound event", "error", err)
		return OutcomeDeadLettered, errors.ErrValidation.WithCause(err).AsFatal()
	}

	if id := event.ID(); id != "" {
		ctx = logging.WithNotificationID(ctx, id)
	}

	res := p.stages.validate(ctx, event)
	switch res.status {
	case stageRejected:
		p.logger.WarnwCtx(ctx, "Event rejected by validation", "reason", res.reason)
		return OutcomeDeadLettered, errors.ErrValidation.WithDetail("message", res.reason).AsFatal()
	case stageErrored:
		return OutcomeDeadLettered, errors.ErrInternal.WithCause(res.err)
	}

	res = p.stages.enrich(ctx, res.event)
	res = p.stages.transform(ctx, res.event)
	event = res.event

	if p.stages.route(ctx, event) {
		msg := dispatch.Message{
			Channel:   event.Type(),
			Recipient: recipient(event),
			Subject:   event.String("title"),
			Body:      event.String("message"),
		}
		if err := p.dispatcher.Dispatch(ctx, msg); err != nil {
			p.logger.ErrorwCtx(ctx, "Dispatch failed", "channel", msg.Channel, "error", err)
			return OutcomeDeadLettered, errors.ErrInternal.WithCause(err)
		}
		p.logger.InfowCtx(ctx, "Event dispatched", "channel", msg.Channel)
		return OutcomeDispatched, nil
	}

	body, err := json.Marshal(event)
	if err != nil {
		return OutcomeDeadLettered, errors.ErrInternal.WithCause(err)
	}

	msg := broker.Message{Key: []byte(event.ID()), Value: body}
	if err := p.producer.Publish(ctx, p.enrichedTopic, msg); err != nil {
		p.logger.ErrorwCtx(ctx, "Failed to re-publish event", "topic", p.enrichedTopic, "error", err)
		return OutcomeDeadLettered, errors.ErrInternal.WithCause(err)
	}

	p.logger.InfowCtx(ctx, "Event re-queued", "topic", p.enrichedTopic)
	return OutcomeRequeued, nil
}

func recipient(event Event) string {
	switch event.Type() {
	case "sms":
		return event.String("mobileNumber")
	default:
		return event.String("email")
	}
}
