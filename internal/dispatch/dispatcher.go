package dispatch

import (
	"context"
	"fmt"

	"herald/internal/constants"
	"herald/pkg/circuitbreaker"
	"herald/pkg/metrics"
)

// Dispatcher routes a message to the sender for its channel.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg Message) error
}

type ChannelDispatcher struct {
	email Sender
	sms   Sender
}

func NewChannelDispatcher(email, sms Sender) *ChannelDispatcher {
	return &ChannelDispatcher{email: email, sms: sms}
}

func (d *ChannelDispatcher) Dispatch(ctx context.Context, msg Message) error {
	var sender Sender
	switch msg.Channel {
	case constants.NotificationTypeEmail:
		sender = d.email
	case constants.NotificationTypeSMS:
		sender = d.sms
	default:
		metrics.DispatchTotal.WithLabelValues(msg.Channel, "unsupported").Inc()
		return fmt.Errorf("unsupported notification channel %q", msg.Channel)
	}

	if sender == nil {
		metrics.DispatchTotal.WithLabelValues(msg.Channel, "unconfigured").Inc()
		return fmt.Errorf("no sender configured for channel %q", msg.Channel)
	}

	if err := sender.Send(ctx, msg); err != nil {
		metrics.DispatchTotal.WithLabelValues(msg.Channel, "error").Inc()
		return err
	}

	metrics.DispatchTotal.WithLabelValues(msg.Channel, "ok").Inc()
	return nil
}

// BreakerDispatcher guards the downstream transports: once email or SMS
// delivery starts failing consistently the breaker opens and dispatch
// fails fast instead of holding consumer slots.
type BreakerDispatcher struct {
	inner   Dispatcher
	breaker *circuitbreaker.Wrapper
}

func NewBreakerDispatcher(inner Dispatcher, cfg circuitbreaker.Config) *BreakerDispatcher {
	return &BreakerDispatcher{
		inner:   inner,
		breaker: circuitbreaker.NewWrapper(cfg),
	}
}

func (d *BreakerDispatcher) Dispatch(ctx context.Context, msg Message) error {
	_, err := d.breaker.ExecuteWithContext(ctx, func() (interface{}, error) {
		return nil, d.inner.Dispatch(ctx, msg)
	})
	return err
}
