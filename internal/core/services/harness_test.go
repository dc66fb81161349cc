package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"assist/internal/app/registry"
	"assist/internal/core/contracts"
	"assist/internal/core/domain"
	"assist/internal/plugins/memory"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type harness struct {
	clock    *clockwork.FakeClock
	accounts *memory.AccountStore
	settings *memory.SettingsStore
	tickets  *memory.TicketStore
	uploader *stubUploader
	registry *registry.Registry
	ticketSv *TicketService
	tenantSv *TenantService
	owner    domain.Account
	appKey   string
}

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// newHarness wires the services over memory stores with one tenant owner
// who already has a widget key.
func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		clock:    clockwork.NewFakeClockAt(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)),
		accounts: memory.NewAccountStore(),
		settings: memory.NewSettingsStore(),
		uploader: &stubUploader{},
	}
	h.tickets = memory.NewTicketStore(h.settings)
	h.registry = registry.NewRegistry(discardLogger(), memory.NewPresenceStore(), nil, "test")
	h.ticketSv = NewTicketService(discardLogger(), h.tickets, h.accounts, h.uploader, h.clock)
	h.tenantSv = NewTenantService(discardLogger(), h.accounts, h.settings, h.clock)

	h.owner = domain.Account{ID: primitive.NewObjectID(), FirstName: "Uma", LastName: "Owner", Email: "uma@example.com"}
	h.accounts.Put(h.owner)
	key, err := h.tenantSv.GenerateKey(context.Background(), h.owner.ID.Hex())
	require.NoError(t, err)
	h.appKey = key
	h.owner.AssistKey = key
	return h
}

func (h *harness) ownerID() string { return h.owner.ID.Hex() }

func newID() primitive.ObjectID { return primitive.NewObjectID() }

// tick moves the fake clock so consecutive messages get distinct times.
func (h *harness) tick() { h.clock.Advance(time.Second) }

func (h *harness) newTicket(t *testing.T, visitorID, name, text string) *domain.Ticket {
	t.Helper()
	created, err := h.ticketSv.CreateVisitorTicket(context.Background(), h.appKey,
		domain.Visitor{ID: visitorID, Name: name, Email: visitorID + "@example.com"}, text)
	require.NoError(t, err)
	h.tick()
	return created.Ticket
}

type stubUploader struct {
	mu   sync.Mutex
	fail map[string]bool
}

func (u *stubUploader) Upload(_ context.Context, f contracts.File) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.fail[f.Name] {
		return "", errors.New("storage unavailable")
	}
	return "https://cdn.example.com/" + f.Name, nil
}

func file(name string) contracts.File {
	return contracts.File{
		Name:        name,
		ContentType: "image/png",
		Size:        4,
		Open:        func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader("data")), nil },
	}
}

// recorder is a contracts.Client that keeps every frame it receives.
type recorder struct {
	id, channel, participant string
	role                     domain.Role

	mu     sync.Mutex
	frames []domain.Envelope
}

func (r *recorder) ID() string            { return r.id }
func (r *recorder) Channel() string       { return r.channel }
func (r *recorder) Role() domain.Role     { return r.role }
func (r *recorder) ParticipantID() string { return r.participant }
func (r *recorder) Close()                {}

func (r *recorder) Send(_ context.Context, data []byte) error {
	var env domain.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	r.mu.Lock()
	r.frames = append(r.frames, env)
	r.mu.Unlock()
	return nil
}

func (r *recorder) received(event string) []domain.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Envelope
	for _, f := range r.frames {
		if f.Event == event {
			out = append(out, f)
		}
	}
	return out
}
