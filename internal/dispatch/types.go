package dispatch

import (
	"context"
)

// Message is a routed notification ready to leave the system.
type Message struct {
	Channel   string
	Recipient string
	Subject   string
	Body      string
}

// Sender delivers a message over one channel (email, SMS).
type Sender interface {
	Send(ctx context.Context, msg Message) error
}
