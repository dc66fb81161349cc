package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"assist/internal/core/contracts"
	"assist/internal/core/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type IManagerService interface {
	// HandleConnect joins the connection to its tenant channel.
	HandleConnect(ctx context.Context, c contracts.Client)
	// HandleDisconnect leaves the channel.
	HandleDisconnect(ctx context.Context, c contracts.Client)
	// HandleMessage dispatches one inbound frame.
	HandleMessage(ctx context.Context, c contracts.Client, raw []byte) error
}

var tracer = otel.Tracer("assist-services")

var ErrMalformedFrame = errors.New("malformed frame")

// ManagerService turns socket frames and connection lifecycle into channel
// events.
type ManagerService struct {
	registry contracts.Registry
	bot      *BotReplier
	log      *slog.Logger
}

func NewManagerService(
	log *slog.Logger,
	registry contracts.Registry,
	bot *BotReplier,
) *ManagerService {
	return &ManagerService{
		log:      log,
		registry: registry,
		bot:      bot,
	}
}

func (m *ManagerService) HandleConnect(ctx context.Context, c contracts.Client) {
	ctx, span := tracer.Start(ctx, "ManagerService.HandleConnect", trace.WithAttributes(
		attribute.String("channel", c.Channel()),
		attribute.String("role", string(c.Role())),
	))
	defer span.End()
	m.registry.Register(ctx, c)
	m.log.InfoContext(ctx, "manager - handle connect - joined channel", "channel", c.Channel(), "role", c.Role(), "participant_id", c.ParticipantID(), "conn_id", c.ID())
}

func (m *ManagerService) HandleDisconnect(ctx context.Context, c contracts.Client) {
	ctx, span := tracer.Start(ctx, "ManagerService.HandleDisconnect", trace.WithAttributes(
		attribute.String("channel", c.Channel()),
		attribute.String("role", string(c.Role())),
	))
	defer span.End()
	m.registry.Unregister(ctx, c)
	m.log.InfoContext(ctx, "manager - handle disconnect - left channel", "channel", c.Channel(), "participant_id", c.ParticipantID(), "conn_id", c.ID())
}

func (m *ManagerService) HandleMessage(ctx context.Context, c contracts.Client, raw []byte) error {
	var env domain.Envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Event == "" {
		m.log.WarnContext(ctx, "manager - handle message - wrong format", "conn_id", c.ID(), "channel", c.Channel())
		return ErrMalformedFrame
	}
	ctx, span := tracer.Start(ctx, "ManagerService.HandleMessage", trace.WithAttributes(
		attribute.String("event", env.Event),
		attribute.String("channel", c.Channel()),
		attribute.Int("payload_size", len(env.Data)),
	))
	defer span.End()

	switch env.Event {
	case domain.EventGetOnlineUsers:
		m.sendSnapshot(ctx, c, domain.RoleUser, domain.EventOnlineUsers)
		return nil
	case domain.EventGetOnlineVisitors:
		m.sendSnapshot(ctx, c, domain.RoleVisitor, domain.EventOnlineVisitors)
		return nil
	case domain.EventNoteUpdatedByOwner, domain.EventNoteUpdatedByCollaborator:
		if env.Empty() {
			return nil
		}
		m.registry.BroadcastGlobal(ctx, env, c.ID())
		return nil
	}

	out, ok := domain.RelayEvents[env.Event]
	if !ok {
		m.log.DebugContext(ctx, "manager - handle message - unknown event", "event", env.Event, "conn_id", c.ID())
		return nil
	}
	if env.Empty() {
		return nil
	}
	m.registry.Broadcast(ctx, c.Channel(), domain.Envelope{Event: out, Data: env.Data}, c.ID())

	if env.Event == domain.EventNewTicket && m.bot != nil {
		var p domain.RelayPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.ChatID == "" {
			m.log.WarnContext(ctx, "manager - handle message - new ticket without chat id", "conn_id", c.ID())
			return nil
		}
		m.bot.Schedule(c.Channel(), p.ChatID)
	}
	return nil
}

func (m *ManagerService) sendSnapshot(ctx context.Context, c contracts.Client, role domain.Role, event string) {
	ids, err := m.registry.Online(ctx, c.Channel(), role)
	if err != nil {
		m.log.ErrorContext(ctx, "manager - online snapshot - presence read failed", "channel", c.Channel(), "role", role, "err", err)
		ids = []string{}
	}
	env, err := domain.NewEnvelope(event, domain.OnlineSnapshot{Data: ids, WidgetID: c.Channel()})
	if err != nil {
		return
	}
	m.registry.Send(ctx, c.ID(), env)
}
