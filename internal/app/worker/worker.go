package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync/atomic"
	"time"

	"assist/internal/core/contracts"
	"assist/internal/core/domain"

	"github.com/jonboulle/clockwork"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	SweepLockKey = "assist:sweep:lock"
	// ResumeParam carries the ticket id on the tenant page so the widget
	// reopens the thread.
	ResumeParam = "assistTicket"
)

var tracer = otel.Tracer("assist-worker")

// NotificationSweep mails visitors who have unseen replies. Each ticket is
// mailed at most once until the visitor reads it again.
type NotificationSweep struct {
	log      *slog.Logger
	tickets  domain.TicketRepository
	notifier contracts.Notifier
	locker   contracts.Locker
	clock    clockwork.Clock
	interval time.Duration
	lockTTL  time.Duration

	running atomic.Bool
}

func NewNotificationSweep(
	log *slog.Logger,
	tickets domain.TicketRepository,
	notifier contracts.Notifier,
	locker contracts.Locker,
	clk clockwork.Clock,
	interval time.Duration,
	lockTTL time.Duration,
) contracts.PeriodicWorker {
	return &NotificationSweep{
		log:      log,
		tickets:  tickets,
		notifier: notifier,
		locker:   locker,
		clock:    clk,
		interval: interval,
		lockTTL:  lockTTL,
	}
}

func (w *NotificationSweep) Run(ctx context.Context) {
	ticker := w.clock.NewTicker(w.interval)
	defer ticker.Stop()
	w.log.InfoContext(ctx, "worker - sweep - started", "interval", w.interval)
	for {
		select {
		case <-ctx.Done():
			w.log.InfoContext(ctx, "worker - sweep - stopped")
			return
		case <-ticker.Chan():
			go w.tick(ctx)
		}
	}
}

// tick drops the run when the previous one is still in flight.
func (w *NotificationSweep) tick(ctx context.Context) {
	if err := w.RunOnce(ctx); err != nil && !errors.Is(err, errBusy) {
		w.log.ErrorContext(ctx, "worker - sweep - run failed", "err", err)
	}
}

var errBusy = errors.New("sweep already running")

func (w *NotificationSweep) RunOnce(ctx context.Context) error {
	if !w.running.CompareAndSwap(false, true) {
		w.log.DebugContext(ctx, "worker - sweep - previous run in flight, skipping")
		return errBusy
	}
	defer w.running.Store(false)

	if w.locker != nil {
		release, ok, err := w.locker.TryLock(ctx, SweepLockKey, w.lockTTL)
		if err != nil {
			return fmt.Errorf("sweep lock: %w", err)
		}
		if !ok {
			w.log.DebugContext(ctx, "worker - sweep - lock held by another instance")
			return nil
		}
		defer release()
	}

	ctx, span := tracer.Start(ctx, "NotificationSweep.RunOnce")
	defer span.End()

	pending, err := w.tickets.PendingNotifications(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "pending notifications")
		return fmt.Errorf("pending notifications: %w", err)
	}
	span.SetAttributes(attribute.Int("pending", len(pending)))
	if len(pending) == 0 {
		return nil
	}

	ids := make([]primitive.ObjectID, 0, len(pending))
	for _, p := range pending {
		ids = append(ids, p.TicketID)
	}
	if err := w.tickets.MarkMailed(ctx, ids); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "mark mailed")
		return fmt.Errorf("mark mailed: %w", err)
	}

	sent := 0
	for _, p := range pending {
		if w.notifier == nil || p.TenantURL == "" || p.Visitor.Email == "" {
			w.log.DebugContext(ctx, "worker - sweep - no url or email, skipped", "ticket_id", p.TicketID.Hex(), "app_key", p.AppKey)
			continue
		}
		n := contracts.VisitorNotification{
			TicketID:    p.TicketID.Hex(),
			To:          p.Visitor.Email,
			VisitorName: p.Visitor.Name,
			TenantName:  p.TenantName,
			ResumeURL:   ResumeURL(p.TenantURL, p.TicketID.Hex()),
		}
		if err := w.notifier.NotifyVisitor(ctx, n); err != nil {
			w.log.ErrorContext(ctx, "worker - sweep - notify visitor failed", "ticket_id", n.TicketID, "app_key", p.AppKey, "err", err)
			continue
		}
		sent++
	}
	w.log.InfoContext(ctx, "worker - sweep - batch done", "matched", len(pending), "sent", sent)
	return nil
}

// ResumeURL appends the ticket id to the tenant page URL, keeping any query
// the tenant configured.
func ResumeURL(base, ticketID string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set(ResumeParam, ticketID)
	u.RawQuery = q.Encode()
	return u.String()
}
