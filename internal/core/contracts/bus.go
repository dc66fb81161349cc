package contracts

import (
	"context"

	"assist/internal/core/domain"
)

// BusMessage carries a channel broadcast between server instances. An empty
// Channel means a global broadcast.
type BusMessage struct {
	Node     string          `json:"node"`
	Channel  string          `json:"channel,omitempty"`
	Except   string          `json:"except,omitempty"`
	Envelope domain.Envelope `json:"envelope"`
}

type EventBus interface {
	Publish(ctx context.Context, msg BusMessage) error
	// Subscribe calls handler for every message until ctx is done.
	Subscribe(ctx context.Context, handler func(ctx context.Context, msg BusMessage)) error
}
