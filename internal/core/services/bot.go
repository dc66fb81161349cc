package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"assist/internal/core/contracts"
	"assist/internal/core/domain"

	"github.com/jonboulle/clockwork"
)

const BotGreeting = "You will be notified here and by email"

// BotReplier answers new tickets with the canned greeting after a delay.
// A pending reply is dropped when its channel is torn down.
type BotReplier struct {
	tickets  *TicketService
	registry contracts.Registry
	clock    clockwork.Clock
	delay    time.Duration
	text     string
	log      *slog.Logger

	mu      sync.Mutex
	pending map[string]*pendingReply // channel/chatId
}

type pendingReply struct {
	timer     clockwork.Timer
	stopWatch func() bool
}

func NewBotReplier(
	log *slog.Logger,
	tickets *TicketService,
	registry contracts.Registry,
	clk clockwork.Clock,
	delay time.Duration,
	text string,
) *BotReplier {
	if text == "" {
		text = BotGreeting
	}
	return &BotReplier{
		log:      log,
		tickets:  tickets,
		registry: registry,
		clock:    clk,
		delay:    delay,
		text:     text,
		pending:  make(map[string]*pendingReply),
	}
}

// Schedule queues one reply for chatID. It reports false when a reply for the
// same ticket is already pending.
func (b *BotReplier) Schedule(channel, chatID string) bool {
	key := channel + "/" + chatID
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.pending[key]; ok {
		return false
	}
	chCtx := b.registry.ChannelContext(channel)
	p := &pendingReply{}
	p.timer = b.clock.AfterFunc(b.delay, func() { b.fire(chCtx, key, channel, chatID) })
	p.stopWatch = context.AfterFunc(chCtx, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.pending[key] == p && p.timer.Stop() {
			delete(b.pending, key)
			b.log.Info("bot - schedule - cancelled by channel teardown", "channel", channel, "chat_id", chatID)
		}
	})
	b.pending[key] = p
	return true
}

// pendingCount reports how many replies are waiting to fire.
func (b *BotReplier) pendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

func (b *BotReplier) fire(chCtx context.Context, key, channel, chatID string) {
	b.mu.Lock()
	if p, ok := b.pending[key]; ok {
		p.stopWatch()
		delete(b.pending, key)
	}
	b.mu.Unlock()
	ctx := context.WithoutCancel(chCtx)
	if err := b.tickets.PostBotMessage(ctx, chatID, channel, b.text); err != nil {
		b.log.ErrorContext(ctx, "bot - fire - post bot message failed", "channel", channel, "chat_id", chatID, "err", err)
		return
	}
	env, err := domain.NewEnvelope(domain.EventMessageReceivedFromBot, domain.RelayPayload{ChatID: chatID})
	if err != nil {
		return
	}
	b.registry.Broadcast(ctx, channel, env, "")
	b.log.InfoContext(ctx, "bot - fire - greeting sent", "channel", channel, "chat_id", chatID)
}
