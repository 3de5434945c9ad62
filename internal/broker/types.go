package broker

import (
	"context"
)

// Message is the raw unit consumed from and produced to a topic. The
// value is kept as received so a failing event can be dead-lettered
// byte-for-byte.
type Message struct {
	Key   []byte
	Value []byte
}

type Producer interface {
	Publish(ctx context.Context, topic string, msg Message) error
	Close() error
}

type Consumer interface {
	Consume(ctx context.Context, topic string, handler HandlerFunc) error
	Close() error
	SetServiceName(name string)
}

type HandlerFunc func(ctx context.Context, msg Message) error
