package mongo

import (
	"context"
	"os"
	"testing"
	"time"

	"assist/internal/config"
	"assist/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// liveDB connects to ASSIST_TEST_MONGO_URI and hands out a scratch database
// that is dropped when the test ends.
func liveDB(t *testing.T) *mongo.Database {
	t.Helper()
	uri := os.Getenv("ASSIST_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("ASSIST_TEST_MONGO_URI not set")
	}
	cfg := config.MongoConfig{
		URI:                uri,
		TicketsCollection:  "assists",
		SettingsCollection: "assistsSettings",
		ConnectTimeout:     5 * time.Second,
		PingTimeout:        2 * time.Second,
	}
	client, err := New(context.Background(), cfg)
	require.NoError(t, err)
	db := client.Database("assist_test_" + primitive.NewObjectID().Hex())
	require.NoError(t, EnsureIndexes(context.Background(), db, cfg))
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})
	return db
}

func liveTicket(t *testing.T, repo *TicketRepo, appKey string, v domain.Visitor, at time.Time, msgs ...domain.Message) *domain.Ticket {
	t.Helper()
	tk := &domain.Ticket{
		ID:        primitive.NewObjectID(),
		AppKey:    appKey,
		Visitor:   v,
		Status:    domain.StatusOpen,
		Messages:  msgs,
		CreatedAt: at,
		UpdatedAt: at,
	}
	require.NoError(t, repo.Create(context.Background(), tk))
	return tk
}

func TestLiveTicketList(t *testing.T) {
	db := liveDB(t)
	ctx := context.Background()
	repo := NewTicketRepo(db.Collection("assists"), "assistsSettings")

	annabel := liveTicket(t, repo, "K1", domain.Visitor{ID: "v1", Name: "Annabel"}, time.Unix(0, 0),
		domain.NewTextMessage(domain.UserAuthor("u"), "a", nil, time.Unix(10, 0)))
	newest := liveTicket(t, repo, "K1", domain.Visitor{ID: "v2", Name: "Bob"}, time.Unix(0, 0),
		domain.NewTextMessage(domain.UserAuthor("u"), "b", nil, time.Unix(20, 0)))
	liveTicket(t, repo, "K1", domain.Visitor{ID: "v3", Name: "JOANNA"}, time.Unix(0, 0),
		domain.NewTextMessage(domain.UserAuthor("u"), "c", []string{"u"}, time.Unix(10, 0)))
	liveTicket(t, repo, "K2", domain.Visitor{ID: "v4", Name: "Anna"}, time.Unix(0, 0))

	all, total, err := repo.List(ctx, domain.TicketQuery{AppKey: "K1", ViewerID: "u", Limit: 10})
	require.NoError(t, err)
	require.EqualValues(t, 3, total)
	require.Len(t, all, 3)
	assert.Equal(t, newest.ID, all[0].ID)
	// same last-message time, more unread first
	assert.Equal(t, annabel.ID, all[1].ID)
	assert.Equal(t, 1, all[1].UnreadCount)
	assert.Equal(t, 0, all[2].UnreadCount)

	found, total, err := repo.List(ctx, domain.TicketQuery{AppKey: "K1", ViewerID: "u", Search: "ann", Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, found, 2)
}

func TestLiveUpdateVisitorRenamesOwnMessages(t *testing.T) {
	db := liveDB(t)
	ctx := context.Background()
	repo := NewTicketRepo(db.Collection("assists"), "assistsSettings")
	v := domain.Visitor{ID: "v1", Name: "Ann"}
	tk := liveTicket(t, repo, "K1", v, time.Unix(0, 0),
		domain.NewTextMessage(domain.VisitorAuthor(v), "one", []string{"v1"}, time.Unix(1, 0)),
		domain.NewTextMessage(domain.UserAuthor("u"), "two", []string{"u"}, time.Unix(2, 0)),
		domain.NewTextMessage(domain.VisitorAuthor(v), "three", []string{"v1"}, time.Unix(3, 0)))

	scope := domain.TicketScope{TicketID: tk.ID, AppKey: "K1", VisitorID: "v1"}
	got, err := repo.UpdateVisitor(ctx, scope, "Anne", "anne@example.com", time.Unix(4, 0))
	require.NoError(t, err)
	assert.Equal(t, "Anne", got.Visitor.Name)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "Anne", got.Messages[0].SentBy.Name)
	assert.Equal(t, "", got.Messages[1].SentBy.Name)
	assert.Equal(t, "Anne", got.Messages[2].SentBy.Name)

	_, err = repo.UpdateVisitor(ctx, domain.TicketScope{TicketID: tk.ID, AppKey: "K1", VisitorID: "v2"}, "X", "", time.Unix(5, 0))
	assert.ErrorIs(t, err, domain.ErrTicketNotFound)
}

func TestLiveMarkMailedAfterRead(t *testing.T) {
	db := liveDB(t)
	ctx := context.Background()
	settings := NewSettingsRepo(db.Collection("assistsSettings"))
	repo := NewTicketRepo(db.Collection("assists"), "assistsSettings")
	url := "https://shop.example.com"
	_, err := settings.Ensure(ctx, domain.DefaultSettings("K1", time.Unix(0, 0)))
	require.NoError(t, err)
	_, err = settings.Update(ctx, "K1", domain.SettingsPatch{URL: &url}, time.Unix(0, 0))
	require.NoError(t, err)

	v := domain.Visitor{ID: "v1", Name: "Ann", Email: "ann@example.com"}
	tk := liveTicket(t, repo, "K1", v, time.Unix(0, 0),
		domain.NewTextMessage(domain.UserAuthor("u"), "answer", []string{"u"}, time.Unix(1, 0)))

	pending, err := repo.PendingNotifications(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, url, pending[0].TenantURL)

	scope := domain.TicketScope{TicketID: tk.ID, AppKey: "K1", VisitorID: "v1"}
	require.NoError(t, repo.MarkSeen(ctx, scope, "v1"))
	require.NoError(t, repo.ClearReceivedMail(ctx, scope))
	require.NoError(t, repo.MarkMailed(ctx, []primitive.ObjectID{tk.ID}))

	stored, err := repo.Get(ctx, scope)
	require.NoError(t, err)
	assert.False(t, stored.Visitor.ReceivedMail)

	_, err = repo.AppendMessage(ctx, domain.TicketScope{TicketID: tk.ID, AppKey: "K1"},
		domain.NewTextMessage(domain.UserAuthor("u"), "more", []string{"u"}, time.Unix(2, 0)), true)
	require.NoError(t, err)
	require.NoError(t, repo.MarkMailed(ctx, []primitive.ObjectID{tk.ID}))
	stored, err = repo.Get(ctx, scope)
	require.NoError(t, err)
	assert.True(t, stored.Visitor.ReceivedMail)

	pending, err = repo.PendingNotifications(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
