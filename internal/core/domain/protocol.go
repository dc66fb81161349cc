package domain

import (
	"encoding/json"
	"strings"
)

// Role classifies a realtime connection.
type Role string

const (
	RoleUser    Role = "user"
	RoleVisitor Role = "visitor"
)

// Client -> server requests answered only to the requester.
const (
	EventGetOnlineUsers    = "getOnlineUsers"
	EventGetOnlineVisitors = "getOnlineVisitors"
	EventOnlineUsers       = "onlineUsers"
	EventOnlineVisitors    = "onlineVisitors"
)

// Server -> channel presence transitions.
const (
	EventOnlineUserReceived     = "onlineUserReceived"
	EventOfflineUserReceived    = "offlineUserReceived"
	EventOnlineVisitorReceived  = "onlineVisitorReceived"
	EventOfflineVisitorReceived = "offlineVisitorReceived"
)

const (
	EventNewTicket              = "newTicket"
	EventMessageReceivedFromBot = "messageReceivedFromBot"
	EventError                  = "error"
)

// Global note-editing events, not scoped to a tenant channel.
const (
	EventNoteUpdatedByOwner        = "note_data_updated_by_owner"
	EventNoteUpdatedByCollaborator = "note_data_updated_by_collaborator"
)

// RelayEvents maps client events to the name rebroadcast in the channel.
var RelayEvents = map[string]string{
	"sendMessage":             "messageReceived",
	"sendMessageInChat":       "messageReceivedInChat",
	"sendChangeStatus":        "changeStatusReceived",
	"sendSeenInChat":          "seenReceivedInChat",
	"typing":                  "typingReceived",
	"stopTyping":              "stopTypingReceived",
	"typingInChat":            "typingReceivedInChat",
	"stopTypingInChat":        "stopTypingReceivedInChat",
	EventNewTicket:            "newTicketReceived",
	"updateVisitorData":       "updateVisitorDataReceived",
	"updateVisitorDataInChat": "updateVisitorDataReceivedInChat",
}

// Envelope is the frame exchanged over the socket.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Empty reports whether the frame carries no usable payload.
func (e Envelope) Empty() bool {
	d := strings.TrimSpace(string(e.Data))
	return d == "" || d == "null" || d == "{}" || d == `""`
}

func NewEnvelope(event string, data any) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: event, Data: raw}, nil
}

// RelayPayload is the common {chatId, sender} shape of relayed events.
type RelayPayload struct {
	ChatID string          `json:"chatId"`
	Sender string          `json:"sender,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

type PresencePayload struct {
	Sender   string `json:"sender"`
	WidgetID string `json:"widgetId"`
}

type OnlineSnapshot struct {
	Data     []string `json:"data"`
	WidgetID string   `json:"widgetId"`
}

// ErrorMessage is a WS-safe error
type ErrorMessage struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func PresenceEvent(role Role, online bool) string {
	switch {
	case role == RoleUser && online:
		return EventOnlineUserReceived
	case role == RoleUser:
		return EventOfflineUserReceived
	case online:
		return EventOnlineVisitorReceived
	default:
		return EventOfflineVisitorReceived
	}
}
