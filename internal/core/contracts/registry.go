package contracts

import (
	"context"

	"assist/internal/core/domain"
)

// Registry routes realtime connections into per-tenant channels. A channel
// is named by the tenant's widget key and events never cross channels,
// except the global note events.
type Registry interface {
	// Register joins c to its channel and announces it online.
	Register(ctx context.Context, c Client)
	// Unregister removes c and announces it offline when it was the
	// participant's last connection.
	Unregister(ctx context.Context, c Client)
	// Broadcast delivers env to every connection of channel except the one
	// with id except.
	Broadcast(ctx context.Context, channel string, env domain.Envelope, except string)
	// BroadcastGlobal delivers env to every connection on every channel.
	BroadcastGlobal(ctx context.Context, env domain.Envelope, except string)
	// Send delivers env to a single local connection.
	Send(ctx context.Context, connID string, env domain.Envelope)
	Online(ctx context.Context, channel string, role domain.Role) ([]string, error)
	// ChannelContext is cancelled once the channel has no local connections.
	ChannelContext(channel string) context.Context
}

// Client represents the minimal interface required for the Registry to
// communicate with an individual WebSocket connection.
type Client interface {
	ID() string
	Channel() string
	Role() domain.Role
	ParticipantID() string
	Send(ctx context.Context, data []byte) error
	Close()
}
