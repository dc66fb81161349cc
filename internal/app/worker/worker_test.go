package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"assist/internal/core/contracts"
	"assist/internal/core/domain"
	"assist/internal/plugins/memory"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []contracts.VisitorNotification
	fail map[string]bool // by recipient
}

func (n *recordingNotifier) NotifyVisitor(_ context.Context, v contracts.VisitorNotification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail[v.To] {
		return errors.New("smtp down")
	}
	n.sent = append(n.sent, v)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type heldLock struct{}

func (heldLock) TryLock(context.Context, string, time.Duration) (func(), bool, error) {
	return nil, false, nil
}

type fixture struct {
	clock    *clockwork.FakeClock
	settings *memory.SettingsStore
	tickets  *memory.TicketStore
	notifier *recordingNotifier
}

func newFixture() *fixture {
	f := &fixture{
		clock:    clockwork.NewFakeClockAt(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)),
		settings: memory.NewSettingsStore(),
		notifier: &recordingNotifier{fail: map[string]bool{}},
	}
	f.tickets = memory.NewTicketStore(f.settings)
	return f
}

func (f *fixture) tenant(t *testing.T, key, name, url string) {
	t.Helper()
	ctx := context.Background()
	_, err := f.settings.Ensure(ctx, domain.DefaultSettings(key, f.clock.Now()))
	require.NoError(t, err)
	_, err = f.settings.Update(ctx, key, domain.SettingsPatch{Name: &name, URL: &url}, f.clock.Now())
	require.NoError(t, err)
}

// answered creates a ticket whose last message the visitor has not seen.
func (f *fixture) answered(t *testing.T, key string, v domain.Visitor) primitive.ObjectID {
	t.Helper()
	now := f.clock.Now()
	tk := &domain.Ticket{
		ID:      primitive.NewObjectID(),
		AppKey:  key,
		Visitor: v,
		Status:  domain.StatusOpen,
		Messages: []domain.Message{
			domain.NewTextMessage(domain.VisitorAuthor(v), "help", []string{v.ID}, now),
			domain.NewTextMessage(domain.UserAuthor("agent"), "on it", []string{"agent"}, now),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, f.tickets.Create(context.Background(), tk))
	return tk.ID
}

func (f *fixture) sweep(locker contracts.Locker) *NotificationSweep {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewNotificationSweep(log, f.tickets, f.notifier, locker, f.clock, time.Minute, time.Minute).(*NotificationSweep)
}

func TestRunOnceNotifiesAndMarks(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.tenant(t, "K1", "Acme", "https://acme.example.com/help")
	f.tenant(t, "K2", "NoSite", "")

	mailed := f.answered(t, "K1", domain.Visitor{ID: "v1", Name: "Vic", Email: "vic@example.com"})
	f.answered(t, "K1", domain.Visitor{ID: "v2", Name: "Anon"})
	f.answered(t, "K2", domain.Visitor{ID: "v3", Name: "Val", Email: "val@example.com"})

	w := f.sweep(nil)
	require.NoError(t, w.RunOnce(ctx))

	require.Equal(t, 1, f.notifier.count())
	n := f.notifier.sent[0]
	assert.Equal(t, "vic@example.com", n.To)
	assert.Equal(t, "Vic", n.VisitorName)
	assert.Equal(t, "Acme", n.TenantName)
	assert.Equal(t, "https://acme.example.com/help?assistTicket="+mailed.Hex(), n.ResumeURL)

	pending, err := f.tickets.PendingNotifications(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending, "skipped tickets are marked too")

	require.NoError(t, w.RunOnce(ctx))
	assert.Equal(t, 1, f.notifier.count(), "second pass is a no-op")
}

func TestRunOnceMailsAgainAfterVisitorRead(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.tenant(t, "K1", "Acme", "https://acme.example.com")
	v := domain.Visitor{ID: "v1", Name: "Vic", Email: "vic@example.com"}
	id := f.answered(t, "K1", v)
	w := f.sweep(nil)

	require.NoError(t, w.RunOnce(ctx))
	require.Equal(t, 1, f.notifier.count())

	scope := domain.TicketScope{TicketID: id, AppKey: "K1", VisitorID: v.ID}
	require.NoError(t, f.tickets.MarkSeen(ctx, scope, v.ID))
	require.NoError(t, f.tickets.ClearReceivedMail(ctx, scope))
	require.NoError(t, w.RunOnce(ctx))
	assert.Equal(t, 1, f.notifier.count(), "nothing unseen after reading")

	_, err := f.tickets.AppendMessage(ctx, domain.TicketScope{TicketID: id, AppKey: "K1"},
		domain.NewTextMessage(domain.UserAuthor("agent"), "anything else?", []string{"agent"}, f.clock.Now()), true)
	require.NoError(t, err)
	require.NoError(t, w.RunOnce(ctx))
	assert.Equal(t, 2, f.notifier.count())
}

// readDuringSweep lets the visitor read the thread right after the sweep
// has selected it.
type readDuringSweep struct {
	domain.TicketRepository
	scope domain.TicketScope
	read  func(domain.TicketScope)
}

func (r *readDuringSweep) PendingNotifications(ctx context.Context) ([]domain.PendingNotification, error) {
	pending, err := r.TicketRepository.PendingNotifications(ctx)
	r.read(r.scope)
	return pending, err
}

func TestRunOnceKeepsResetWhenVisitorReadsMidSweep(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.tenant(t, "K1", "Acme", "https://acme.example.com")
	v := domain.Visitor{ID: "v1", Name: "Vic", Email: "vic@example.com"}
	id := f.answered(t, "K1", v)
	scope := domain.TicketScope{TicketID: id, AppKey: "K1", VisitorID: v.ID}

	repo := &readDuringSweep{TicketRepository: f.tickets, scope: scope, read: func(sc domain.TicketScope) {
		require.NoError(t, f.tickets.MarkSeen(ctx, sc, v.ID))
		require.NoError(t, f.tickets.ClearReceivedMail(ctx, sc))
	}}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	w := NewNotificationSweep(log, repo, f.notifier, nil, f.clock, time.Minute, time.Minute)
	require.NoError(t, w.RunOnce(ctx))

	stored, err := f.tickets.Get(ctx, scope)
	require.NoError(t, err)
	assert.False(t, stored.Visitor.ReceivedMail, "read after selection keeps the flag clear")

	_, err = f.tickets.AppendMessage(ctx, domain.TicketScope{TicketID: id, AppKey: "K1"},
		domain.NewTextMessage(domain.UserAuthor("agent"), "anything else?", []string{"agent"}, f.clock.Now()), true)
	require.NoError(t, err)
	require.NoError(t, f.sweep(nil).RunOnce(ctx))
	assert.Equal(t, 2, f.notifier.count(), "the new reply is mailed")
}

func TestRunOnceContinuesPastNotifierFailure(t *testing.T) {
	f := newFixture()
	f.tenant(t, "K1", "Acme", "https://acme.example.com")
	f.answered(t, "K1", domain.Visitor{ID: "v1", Name: "A", Email: "a@example.com"})
	f.answered(t, "K1", domain.Visitor{ID: "v2", Name: "B", Email: "b@example.com"})
	f.notifier.fail["a@example.com"] = true

	require.NoError(t, f.sweep(nil).RunOnce(context.Background()))
	require.Equal(t, 1, f.notifier.count())
	assert.Equal(t, "b@example.com", f.notifier.sent[0].To)

	pending, err := f.tickets.PendingNotifications(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending, "failed delivery is not retried")
}

func TestRunOnceSkipsWhenLockHeld(t *testing.T) {
	f := newFixture()
	f.tenant(t, "K1", "Acme", "https://acme.example.com")
	f.answered(t, "K1", domain.Visitor{ID: "v1", Name: "A", Email: "a@example.com"})

	require.NoError(t, f.sweep(heldLock{}).RunOnce(context.Background()))
	assert.Zero(t, f.notifier.count())

	pending, err := f.tickets.PendingNotifications(context.Background())
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestRunOnceSkipsWhileInFlight(t *testing.T) {
	f := newFixture()
	w := f.sweep(nil)
	w.running.Store(true)
	assert.ErrorIs(t, w.RunOnce(context.Background()), errBusy)
}

func TestRunTicksOnClock(t *testing.T) {
	f := newFixture()
	f.tenant(t, "K1", "Acme", "https://acme.example.com")
	f.answered(t, "K1", domain.Visitor{ID: "v1", Name: "A", Email: "a@example.com"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.sweep(nil).Run(ctx)
		close(done)
	}()
	waitCtx, waitCancel := context.WithTimeout(ctx, time.Second)
	defer waitCancel()
	require.NoError(t, f.clock.BlockUntilContext(waitCtx, 1))

	f.clock.Advance(time.Minute)
	require.Eventually(t, func() bool { return f.notifier.count() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestResumeURL(t *testing.T) {
	assert.Equal(t, "https://a.example.com/?assistTicket=T1", ResumeURL("https://a.example.com/", "T1"))
	assert.Equal(t, "https://a.example.com/p?assistTicket=T1&lang=en", ResumeURL("https://a.example.com/p?lang=en", "T1"))
}
