package contracts

import (
	"context"

	"assist/internal/core/domain"
)

// PresenceStore keeps one connection counter per (channel, role, participant).
// There is no TTL: a participant is online while its counter is positive.
type PresenceStore interface {
	// MarkOnline records one more connection and returns the open count.
	MarkOnline(ctx context.Context, channel string, role domain.Role, participantID string) (int64, error)
	// MarkOffline drops one connection and returns what is left. The record
	// is deleted when nothing is left.
	MarkOffline(ctx context.Context, channel string, role domain.Role, participantID string) (int64, error)
	// Online lists participants of role currently connected to channel.
	Online(ctx context.Context, channel string, role domain.Role) ([]string, error)
}
