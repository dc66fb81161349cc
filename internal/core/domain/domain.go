package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TicketStatus string

const (
	StatusOpen   TicketStatus = "OPEN"
	StatusClosed TicketStatus = "CLOSED"
)

func (s TicketStatus) Valid() bool {
	return s == StatusOpen || s == StatusClosed
}

type MessageType string

const (
	MessageText  MessageType = "TEXT"
	MessageImage MessageType = "IMAGE"
)

// AuthorKind tags the sentBy union of a Message.
type AuthorKind string

const (
	AuthorUser    AuthorKind = "user"
	AuthorVisitor AuthorKind = "visitor"
)

// Author is who appended a message. For AuthorUser only ID is stored and the
// profile is resolved at read time; for AuthorVisitor the name is a snapshot
// that follows visitor renames.
type Author struct {
	Kind AuthorKind `bson:"kind" json:"kind"`
	ID   string     `bson:"_id" json:"_id"`
	Name string     `bson:"name,omitempty" json:"name,omitempty"`
}

func UserAuthor(id string) Author { return Author{Kind: AuthorUser, ID: id} }

func VisitorAuthor(v Visitor) Author {
	return Author{Kind: AuthorVisitor, ID: v.ID, Name: v.Name}
}

// Visitor is an anonymous widget user. ID is generated by the client and is
// only unique inside one tenant.
type Visitor struct {
	ID           string `bson:"_id" json:"_id"`
	Name         string `bson:"name" json:"name"`
	Email        string `bson:"email,omitempty" json:"email,omitempty"`
	Language     string `bson:"language,omitempty" json:"language,omitempty"`
	Location     string `bson:"location,omitempty" json:"location,omitempty"`
	ReceivedMail bool   `bson:"receivedMail" json:"receivedMail"`
}

// Message is an entry of a ticket's append-only log. Only SeenBy (grow-only)
// and SentBy.Name change after the append.
type Message struct {
	ID        primitive.ObjectID `bson:"_id" json:"_id"`
	Message   string             `bson:"message,omitempty" json:"message,omitempty"`
	Images    []string           `bson:"images,omitempty" json:"images,omitempty"`
	Type      MessageType        `bson:"type" json:"type"`
	SentBy    Author             `bson:"sentBy" json:"sentBy"`
	SeenBy    []string           `bson:"seenBy" json:"seenBy"`
	IsBot     bool               `bson:"isBot" json:"isBot"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

func (m Message) SeenByParticipant(id string) bool {
	for _, s := range m.SeenBy {
		if s == id {
			return true
		}
	}
	return false
}

func NewTextMessage(author Author, text string, seenBy []string, now time.Time) Message {
	return Message{
		ID:        primitive.NewObjectID(),
		Message:   text,
		Type:      MessageText,
		SentBy:    author,
		SeenBy:    nonNil(seenBy),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func NewImageMessage(author Author, urls []string, seenBy []string, now time.Time) Message {
	return Message{
		ID:        primitive.NewObjectID(),
		Images:    urls,
		Type:      MessageImage,
		SentBy:    author,
		SeenBy:    nonNil(seenBy),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Ticket is one support conversation under a tenant key.
type Ticket struct {
	ID        primitive.ObjectID `bson:"_id" json:"_id"`
	AppKey    string             `bson:"appKey" json:"appKey"`
	Visitor   Visitor            `bson:"visitor" json:"visitor"`
	Status    TicketStatus       `bson:"status" json:"status"`
	Messages  []Message          `bson:"messages" json:"messages,omitempty"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// TicketSummary is the list projection of a ticket: no message bodies.
type TicketSummary struct {
	ID            primitive.ObjectID `bson:"_id" json:"_id"`
	AppKey        string             `bson:"appKey" json:"appKey"`
	Visitor       Visitor            `bson:"visitor" json:"visitor"`
	Status        TicketStatus       `bson:"status" json:"status"`
	UnreadCount   int                `bson:"unreadCount" json:"unreadCount"`
	MessageCount  int                `bson:"messageCount" json:"messageCount"`
	LastMessageAt time.Time          `bson:"lastMessageAt" json:"lastMessageAt"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Summarize projects t for viewerID. A ticket without messages sorts by its
// creation time.
func Summarize(t *Ticket, viewerID string) TicketSummary {
	s := TicketSummary{
		ID:            t.ID,
		AppKey:        t.AppKey,
		Visitor:       t.Visitor,
		Status:        t.Status,
		MessageCount:  len(t.Messages),
		LastMessageAt: t.CreatedAt,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
	for _, m := range t.Messages {
		if !m.SeenByParticipant(viewerID) {
			s.UnreadCount++
		}
		if m.CreatedAt.After(s.LastMessageAt) {
			s.LastMessageAt = m.CreatedAt
		}
	}
	return s
}

// Account is the slice of the external users collection this service reads.
type Account struct {
	ID        primitive.ObjectID `bson:"_id" json:"_id"`
	FirstName string             `bson:"firstName" json:"firstName"`
	LastName  string             `bson:"lastName" json:"lastName"`
	Email     string             `bson:"email" json:"email"`
	AssistKey string             `bson:"assistKey,omitempty" json:"assistKey,omitempty"`
}

func (a Account) DisplayName() string {
	switch {
	case a.FirstName != "" && a.LastName != "":
		return a.FirstName + " " + a.LastName
	case a.FirstName != "":
		return a.FirstName
	default:
		return a.LastName
	}
}

func (a Account) Profile() Profile {
	return Profile{ID: a.ID.Hex(), FirstName: a.FirstName, LastName: a.LastName}
}

// Profile is how an account author is rendered on a message.
type Profile struct {
	ID        string `json:"_id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

const (
	DefaultSettingsName  = "Assist"
	DefaultSettingsColor = "#2563eb"
)

// Settings is the per-tenant widget configuration.
type Settings struct {
	ID        primitive.ObjectID `bson:"_id" json:"_id"`
	AppKey    string             `bson:"appKey" json:"appKey"`
	Name      string             `bson:"name" json:"name"`
	Color     string             `bson:"color" json:"color"`
	URL       string             `bson:"url" json:"url"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

func DefaultSettings(appKey string, now time.Time) *Settings {
	return &Settings{
		ID:        primitive.NewObjectID(),
		AppKey:    appKey,
		Name:      DefaultSettingsName,
		Color:     DefaultSettingsColor,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SettingsPatch carries the fields an owner may change; nil means untouched.
type SettingsPatch struct {
	Name  *string `json:"name"`
	Color *string `json:"color"`
	URL   *string `json:"url"`
}

// PendingNotification is a ticket the sweep selected: its visitor has unseen
// messages and has not been mailed yet.
type PendingNotification struct {
	TicketID    primitive.ObjectID `bson:"_id"`
	AppKey      string             `bson:"appKey"`
	Visitor     Visitor            `bson:"visitor"`
	UnseenCount int                `bson:"unseenCount"`
	TenantName  string             `bson:"tenantName"`
	TenantURL   string             `bson:"tenantUrl"`
}
