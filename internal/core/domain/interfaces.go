package domain

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TicketScope is the filter every ticket mutation goes through. A mutation
// whose scope matches nothing reports ErrTicketNotFound, which is also how
// cross-tenant access is refused.
type TicketScope struct {
	TicketID  primitive.ObjectID
	AppKey    string
	VisitorID string // empty for account-side access
}

type TicketQuery struct {
	AppKey    string
	VisitorID string       // restricts to one visitor's tickets when set
	ViewerID  string       // unread counts are computed for this participant
	Status    TicketStatus // optional
	Search    string       // case-insensitive substring of visitor.name
	Skip      int64
	Limit     int64
}

type MessageQuery struct {
	Search string // case-insensitive substring of the message text
	Skip   int64
	Limit  int64
}

// TicketRepository persists tickets with their embedded message log.
type TicketRepository interface {
	Create(ctx context.Context, t *Ticket) error
	Get(ctx context.Context, scope TicketScope) (*Ticket, error)
	// AppendMessage pushes msg atomically. With reopen the same update sets
	// the status to OPEN.
	AppendMessage(ctx context.Context, scope TicketScope, msg Message, reopen bool) (*Ticket, error)
	ToggleStatus(ctx context.Context, scope TicketScope, now time.Time) (*Ticket, error)
	// UpdateVisitor rewrites the visitor snapshot and the author name of the
	// visitor's non-bot messages.
	UpdateVisitor(ctx context.Context, scope TicketScope, name, email string, now time.Time) (*Ticket, error)
	// MarkSeen adds viewerID to seenBy of every message of the ticket.
	MarkSeen(ctx context.Context, scope TicketScope, viewerID string) error
	ClearReceivedMail(ctx context.Context, scope TicketScope) error
	List(ctx context.Context, q TicketQuery) ([]TicketSummary, int64, error)
	// Messages returns the thread newest first.
	Messages(ctx context.Context, scope TicketScope, q MessageQuery) ([]Message, int64, error)
	// PendingNotifications selects tickets whose visitor has unseen messages
	// and has not been mailed, joined with the tenant settings.
	PendingNotifications(ctx context.Context) ([]PendingNotification, error)
	MarkMailed(ctx context.Context, ids []primitive.ObjectID) error
}

type SettingsRepository interface {
	// Ensure returns the settings of defaults.AppKey, inserting defaults
	// when none exist yet.
	Ensure(ctx context.Context, defaults *Settings) (*Settings, error)
	GetByAppKey(ctx context.Context, appKey string) (*Settings, error)
	Update(ctx context.Context, appKey string, patch SettingsPatch, now time.Time) (*Settings, error)
}

// AccountRepository reads the platform users collection. It is owned by the
// account service; only assistKey is ever written from here.
type AccountRepository interface {
	GetByID(ctx context.Context, id string) (*Account, error)
	GetByAssistKey(ctx context.Context, key string) (*Account, error)
	// SetAssistKey fails with ErrKeyAlreadyExists if the account has a key.
	SetAssistKey(ctx context.Context, id, key string) error
	Profiles(ctx context.Context, ids []string) (map[string]Profile, error)
}
