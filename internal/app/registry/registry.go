package registry

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"assist/internal/core/contracts"
	"assist/internal/core/domain"
)

// Registry is the tenant channel router. Connections are grouped by
// channel (widget key); broadcasts never leave their channel except the
// global ones. When a bus is attached, broadcasts are mirrored to the other
// server instances.
type Registry struct {
	mu       sync.RWMutex
	clients  map[string]contracts.Client            // conn_id → client
	room_hub map[string]map[string]contracts.Client // channel → conn_id → client
	channels map[string]*channelState

	// connections the presence store never counted
	untracked map[string]struct{}

	presence contracts.PresenceStore
	bus      contracts.EventBus
	nodeID   string
	log      *slog.Logger
}

type channelState struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func NewRegistry(log *slog.Logger, presence contracts.PresenceStore, bus contracts.EventBus, nodeID string) *Registry {
	return &Registry{
		clients:   make(map[string]contracts.Client),
		room_hub:  make(map[string]map[string]contracts.Client),
		channels:  make(map[string]*channelState),
		untracked: make(map[string]struct{}),
		presence:  presence,
		bus:       bus,
		nodeID:    nodeID,
		log:       log,
	}
}

func (h *Registry) Register(ctx context.Context, c contracts.Client) {
	channel := c.Channel()
	h.mu.Lock()
	if h.room_hub[channel] == nil {
		h.room_hub[channel] = make(map[string]contracts.Client)
	}
	h.room_hub[channel][c.ID()] = c
	h.clients[c.ID()] = c
	h.mu.Unlock()

	n, err := h.presence.MarkOnline(ctx, channel, c.Role(), c.ParticipantID())
	if err != nil {
		h.log.ErrorContext(ctx, "registry - register - presence store failed", "channel", channel, "participant_id", c.ParticipantID(), "err", err)
		h.mu.Lock()
		h.untracked[c.ID()] = struct{}{}
		h.mu.Unlock()
		return
	}
	if n == 1 {
		h.announce(ctx, c, true)
	}
}

func (h *Registry) Unregister(ctx context.Context, c contracts.Client) {
	channel := c.Channel()
	h.mu.Lock()
	if _, ok := h.clients[c.ID()]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.room_hub[channel], c.ID())
	delete(h.clients, c.ID())
	_, untracked := h.untracked[c.ID()]
	delete(h.untracked, c.ID())
	if len(h.room_hub[channel]) == 0 {
		delete(h.room_hub, channel)
		if st := h.channels[channel]; st != nil {
			st.cancel()
			delete(h.channels, channel)
		}
	}
	h.mu.Unlock()
	if untracked {
		return
	}

	n, err := h.presence.MarkOffline(ctx, channel, c.Role(), c.ParticipantID())
	if err != nil {
		h.log.ErrorContext(ctx, "registry - unregister - presence store failed", "channel", channel, "participant_id", c.ParticipantID(), "err", err)
		return
	}
	if n == 0 {
		h.announce(ctx, c, false)
	}
}

func (h *Registry) announce(ctx context.Context, c contracts.Client, online bool) {
	env, err := domain.NewEnvelope(domain.PresenceEvent(c.Role(), online), domain.PresencePayload{
		Sender:   c.ParticipantID(),
		WidgetID: c.Channel(),
	})
	if err != nil {
		return
	}
	h.Broadcast(ctx, c.Channel(), env, c.ID())
}

func (h *Registry) Broadcast(ctx context.Context, channel string, env domain.Envelope, except string) {
	h.deliver(ctx, channel, env, except)
	h.publish(ctx, contracts.BusMessage{Channel: channel, Except: except, Envelope: env})
}

func (h *Registry) BroadcastGlobal(ctx context.Context, env domain.Envelope, except string) {
	h.deliver(ctx, "", env, except)
	h.publish(ctx, contracts.BusMessage{Except: except, Envelope: env})
}

func (h *Registry) Send(ctx context.Context, connID string, env domain.Envelope) {
	h.mu.RLock()
	c := h.clients[connID]
	h.mu.RUnlock()
	if c == nil {
		return
	}
	data, err := json.Marshal(env)
	if err != nil {
		return
	}
	if err := c.Send(ctx, data); err != nil {
		h.log.WarnContext(ctx, "registry - send - client send failed", "conn_id", connID, "err", err)
	}
}

func (h *Registry) Online(ctx context.Context, channel string, role domain.Role) ([]string, error) {
	return h.presence.Online(ctx, channel, role)
}

// ChannelContext returns the context bound to channel's lifetime on this
// node. A channel without local connections yields an already cancelled
// context.
func (h *Registry) ChannelContext(channel string) context.Context {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.room_hub[channel]) == 0 {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	st := h.channels[channel]
	if st == nil {
		ctx, cancel := context.WithCancel(context.Background())
		st = &channelState{ctx: ctx, cancel: cancel}
		h.channels[channel] = st
	}
	return st.ctx
}

// Run consumes broadcasts from other nodes until ctx is done. Without a bus
// it returns immediately.
func (h *Registry) Run(ctx context.Context) error {
	if h.bus == nil {
		return nil
	}
	return h.bus.Subscribe(ctx, func(ctx context.Context, msg contracts.BusMessage) {
		if msg.Node == h.nodeID {
			return
		}
		h.deliver(ctx, msg.Channel, msg.Envelope, msg.Except)
	})
}

// channelCount reports how many channels have local connections.
func (h *Registry) channelCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.room_hub)
}

func (h *Registry) publish(ctx context.Context, msg contracts.BusMessage) {
	if h.bus == nil {
		return
	}
	msg.Node = h.nodeID
	if err := h.bus.Publish(ctx, msg); err != nil {
		h.log.WarnContext(ctx, "registry - publish - bus unavailable", "channel", msg.Channel, "event", msg.Envelope.Event, "err", err)
	}
}

// deliver writes env to local connections. An empty channel means all of
// them.
func (h *Registry) deliver(ctx context.Context, channel string, env domain.Envelope, except string) {
	data, err := json.Marshal(env)
	if err != nil {
		h.log.ErrorContext(ctx, "registry - deliver - marshal failed", "event", env.Event, "err", err)
		return
	}
	h.mu.RLock()
	var targets []contracts.Client
	if channel == "" {
		targets = make([]contracts.Client, 0, len(h.clients))
		for id, c := range h.clients {
			if id != except {
				targets = append(targets, c)
			}
		}
	} else {
		targets = make([]contracts.Client, 0, len(h.room_hub[channel]))
		for id, c := range h.room_hub[channel] {
			if id != except {
				targets = append(targets, c)
			}
		}
	}
	h.mu.RUnlock()
	for _, c := range targets {
		if err := c.Send(ctx, data); err != nil {
			h.log.DebugContext(ctx, "registry - deliver - client send failed", "conn_id", c.ID(), "err", err)
		}
	}
}
