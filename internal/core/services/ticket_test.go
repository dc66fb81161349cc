package services

import (
	"context"
	"testing"

	"assist/internal/core/contracts"
	"assist/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCreateVisitorTicketUnknownTenant(t *testing.T) {
	h := newHarness(t)
	_, err := h.ticketSv.CreateVisitorTicket(context.Background(), "nope", domain.Visitor{ID: "v1", Name: "Vic"}, "Hello")
	assert.ErrorIs(t, err, domain.ErrTenantNotFound)
}

func TestVisitorOwnerConversation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	created, err := h.ticketSv.CreateVisitorTicket(ctx, h.appKey, domain.Visitor{ID: "V", Name: "Vic", Email: "vic@example.com"}, "Hello")
	require.NoError(t, err)
	assert.Equal(t, "Uma Owner", created.OwnerName)
	tk := created.Ticket
	assert.Equal(t, domain.StatusOpen, tk.Status)
	require.Len(t, tk.Messages, 1)
	assert.Equal(t, []string{"V"}, tk.Messages[0].SeenBy)
	h.tick()

	receipt, err := h.ticketSv.PostAccountMessage(ctx, tk.ID.Hex(), h.ownerID(), "Hi there")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, receipt.Ticket.Status)
	assert.Equal(t, []string{h.ownerID()}, receipt.Message.SeenBy)
	h.tick()

	mine, err := h.ticketSv.VisitorTicket(ctx, tk.ID.Hex(), "V", h.appKey)
	require.NoError(t, err)
	assert.Equal(t, 1, mine.UnreadCount)

	require.NoError(t, h.tickets.MarkMailed(ctx, []primitive.ObjectID{tk.ID}))
	page, err := h.ticketSv.VisitorMessages(ctx, tk.ID.Hex(), "V", h.appKey, ListParams{})
	require.NoError(t, err)
	require.EqualValues(t, 2, page.TotalCount)
	assert.Equal(t, "Hi there", page.Data[0].Message)
	assert.Contains(t, page.Data[0].SeenBy, "V")
	assert.Equal(t, domain.Profile{ID: h.ownerID(), FirstName: "Uma", LastName: "Owner"}, page.Data[0].SentBy)

	stored, err := h.tickets.Get(ctx, domain.TicketScope{TicketID: tk.ID, AppKey: h.appKey})
	require.NoError(t, err)
	assert.False(t, stored.Visitor.ReceivedMail)
}

func TestToggleThenVisitorReplyReopens(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	tk := h.newTicket(t, "V", "Vic", "Hello")

	sum, err := h.ticketSv.ToggleStatus(ctx, tk.ID.Hex(), h.ownerID())
	require.NoError(t, err)
	require.Equal(t, domain.StatusClosed, sum.Status)

	receipt, err := h.ticketSv.PostVisitorMessage(ctx, tk.ID.Hex(), "V", h.appKey, "still there?")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, receipt.Ticket.Status)

	sum, err = h.ticketSv.ToggleStatus(ctx, tk.ID.Hex(), h.ownerID())
	require.NoError(t, err)
	require.Equal(t, domain.StatusClosed, sum.Status)
	receipt, err = h.ticketSv.PostAccountMessage(ctx, tk.ID.Hex(), h.ownerID(), "yes")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, receipt.Ticket.Status)
}

func TestBotMessageKeepsStatusAndSeenBy(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	tk := h.newTicket(t, "V", "Vic", "Hello")
	_, err := h.ticketSv.ToggleStatus(ctx, tk.ID.Hex(), h.ownerID())
	require.NoError(t, err)

	require.NoError(t, h.ticketSv.PostBotMessage(ctx, tk.ID.Hex(), h.appKey, BotGreeting))

	stored, err := h.tickets.Get(ctx, domain.TicketScope{TicketID: tk.ID, AppKey: h.appKey})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusClosed, stored.Status)
	last := stored.Messages[len(stored.Messages)-1]
	assert.True(t, last.IsBot)
	assert.Empty(t, last.SeenBy)
	assert.Equal(t, domain.UserAuthor(h.ownerID()), last.SentBy)
}

func TestAccountCannotTouchOtherTenant(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	tk := h.newTicket(t, "V", "Vic", "Hello")

	intruder := domain.Account{ID: newID(), FirstName: "Eve"}
	h.accounts.Put(intruder)
	_, err := h.tenantSv.GenerateKey(ctx, intruder.ID.Hex())
	require.NoError(t, err)

	_, err = h.ticketSv.PostAccountMessage(ctx, tk.ID.Hex(), intruder.ID.Hex(), "hi")
	assert.ErrorIs(t, err, domain.ErrTicketNotFound)
	_, err = h.ticketSv.ToggleStatus(ctx, tk.ID.Hex(), intruder.ID.Hex())
	assert.ErrorIs(t, err, domain.ErrTicketNotFound)

	keyless := domain.Account{ID: newID()}
	h.accounts.Put(keyless)
	_, err = h.ticketSv.AccountMessages(ctx, tk.ID.Hex(), keyless.ID.Hex(), ListParams{})
	assert.ErrorIs(t, err, domain.ErrTicketNotFound)

	_, err = h.ticketSv.PostAccountMessage(ctx, tk.ID.Hex(), newID().Hex(), "hi")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestVisitorCannotTouchOtherVisitorsTicket(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	tk := h.newTicket(t, "V", "Vic", "Hello")

	_, err := h.ticketSv.PostVisitorMessage(ctx, tk.ID.Hex(), "W", h.appKey, "hi")
	assert.ErrorIs(t, err, domain.ErrTicketNotFound)
	_, err = h.ticketSv.PostVisitorMessage(ctx, "not-an-id", "V", h.appKey, "hi")
	assert.ErrorIs(t, err, domain.ErrInvalidTicketID)
	_, err = h.ticketSv.PostVisitorMessage(ctx, tk.ID.Hex(), "V", h.appKey, "   ")
	assert.ErrorIs(t, err, domain.ErrEmptyMessage)
}

func TestReadingClearsUnread(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	tk := h.newTicket(t, "V", "Vic", "Hello")
	_, err := h.ticketSv.PostVisitorMessage(ctx, tk.ID.Hex(), "V", h.appKey, "anyone?")
	require.NoError(t, err)

	list, err := h.ticketSv.AccountTickets(ctx, h.ownerID(), ListParams{})
	require.NoError(t, err)
	require.Len(t, list.Data, 1)
	assert.Equal(t, 2, list.Data[0].UnreadCount)

	_, err = h.ticketSv.AccountMessages(ctx, tk.ID.Hex(), h.ownerID(), ListParams{Limit: 1})
	require.NoError(t, err)

	list, err = h.ticketSv.AccountTickets(ctx, h.ownerID(), ListParams{})
	require.NoError(t, err)
	assert.Equal(t, 0, list.Data[0].UnreadCount)
}

func TestUpdateVisitorDataBackfillsNames(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	tk := h.newTicket(t, "V", "Vic", "Hello")
	_, err := h.ticketSv.PostAccountMessage(ctx, tk.ID.Hex(), h.ownerID(), "Hi")
	require.NoError(t, err)
	_, err = h.ticketSv.PostVisitorMessage(ctx, tk.ID.Hex(), "V", h.appKey, "thanks")
	require.NoError(t, err)

	updated, err := h.ticketSv.UpdateVisitorData(ctx, tk.ID.Hex(), "V", h.appKey, "Victoria", "")
	require.NoError(t, err)
	assert.Equal(t, "Victoria", updated.Visitor.Name)
	assert.Equal(t, "V@example.com", updated.Visitor.Email)

	page, err := h.ticketSv.VisitorMessages(ctx, tk.ID.Hex(), "V", h.appKey, ListParams{})
	require.NoError(t, err)
	for _, m := range page.Data {
		if author, ok := m.SentBy.(domain.Author); ok && author.Kind == domain.AuthorVisitor {
			assert.Equal(t, "Victoria", author.Name)
		}
	}
	// the text of every message is untouched
	assert.Equal(t, "thanks", page.Data[0].Message)
	assert.Equal(t, "Hi", page.Data[1].Message)
	assert.Equal(t, "Hello", page.Data[2].Message)
}

func TestImageMessagePartialAndTotalFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	tk := h.newTicket(t, "V", "Vic", "Hello")

	_, err := h.ticketSv.PostVisitorImages(ctx, tk.ID.Hex(), "V", h.appKey, nil)
	assert.ErrorIs(t, err, domain.ErrFilesNotFound)

	h.uploader.fail = map[string]bool{"b.png": true}
	receipt, err := h.ticketSv.PostVisitorImages(ctx, tk.ID.Hex(), "V", h.appKey, []contracts.File{file("a.png"), file("b.png"), file("c.png")})
	require.NoError(t, err)
	assert.Equal(t, domain.MessageImage, receipt.Message.Type)
	assert.Equal(t, []string{"https://cdn.example.com/a.png", "https://cdn.example.com/c.png"}, receipt.Message.Images)

	h.uploader.fail = map[string]bool{"x.png": true, "y.png": true}
	_, err = h.ticketSv.PostAccountImages(ctx, tk.ID.Hex(), h.ownerID(), []contracts.File{file("x.png"), file("y.png")})
	assert.ErrorIs(t, err, domain.ErrMessageCreationFailed)

	stored, err := h.tickets.Get(ctx, domain.TicketScope{TicketID: tk.ID, AppKey: h.appKey})
	require.NoError(t, err)
	assert.Len(t, stored.Messages, 2)
}

func TestSearchTicketsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.newTicket(t, "v1", "Alice", "one")
	want := h.newTicket(t, "v2", "Refund Request", "two")
	h.newTicket(t, "v3", "Bob", "three")

	page, err := h.ticketSv.AccountTickets(ctx, h.ownerID(), ListParams{Search: "refund"})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.EqualValues(t, 1, page.TotalCount)
	assert.Equal(t, want.ID, page.Data[0].ID)
}

func TestListFiltersStatusAndPaginates(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	first := h.newTicket(t, "v1", "A", "one")
	h.newTicket(t, "v2", "B", "two")
	h.newTicket(t, "v3", "C", "three")
	_, err := h.ticketSv.ToggleStatus(ctx, first.ID.Hex(), h.ownerID())
	require.NoError(t, err)

	closed, err := h.ticketSv.AccountTickets(ctx, h.ownerID(), ListParams{Status: "closed"})
	require.NoError(t, err)
	require.Len(t, closed.Data, 1)
	assert.Equal(t, first.ID, closed.Data[0].ID)

	_, err = h.ticketSv.AccountTickets(ctx, h.ownerID(), ListParams{Status: "pending"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	page, err := h.ticketSv.AccountTickets(ctx, h.ownerID(), ListParams{Skip: 1, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, page.Data, 1)
	assert.EqualValues(t, 3, page.TotalCount)

	mine, err := h.ticketSv.VisitorTickets(ctx, "v2", h.appKey, ListParams{})
	require.NoError(t, err)
	require.Len(t, mine.Data, 1)
	assert.Equal(t, "B", mine.Data[0].Visitor.Name)
}

func TestMessageSearchBeforePagination(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	tk := h.newTicket(t, "V", "Vic", "I want a Refund")
	for _, text := range []string{"hello", "refund please", "bye"} {
		_, err := h.ticketSv.PostVisitorMessage(ctx, tk.ID.Hex(), "V", h.appKey, text)
		require.NoError(t, err)
		h.tick()
	}

	page, err := h.ticketSv.AccountMessages(ctx, tk.ID.Hex(), h.ownerID(), ListParams{Search: "REFUND", Limit: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.TotalCount)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "refund please", page.Data[0].Message)
}

func TestPageBounds(t *testing.T) {
	skip, limit := pageBounds(ListParams{Skip: -3})
	assert.EqualValues(t, 0, skip)
	assert.EqualValues(t, defaultPageLimit, limit)
	_, limit = pageBounds(ListParams{Limit: 10_000})
	assert.EqualValues(t, maxPageLimit, limit)
}
