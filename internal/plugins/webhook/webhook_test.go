package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"assist/internal/config"
	"assist/internal/core/contracts"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifyVisitorPostsJSON(t *testing.T) {
	var got contracts.VisitorNotification
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(config.NotifierConfig{WebhookURL: srv.URL, Timeout: time.Second})
	want := contracts.VisitorNotification{
		TicketID:    "t1",
		To:          "vic@example.com",
		VisitorName: "Vic",
		TenantName:  "Acme",
		ResumeURL:   "https://acme.example.com?assistTicket=t1",
	}
	require.NoError(t, n.NotifyVisitor(context.Background(), want))
	assert.Equal(t, want, got)
}

func TestNotifyVisitorFailsOnErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(config.NotifierConfig{WebhookURL: srv.URL, Timeout: time.Second})
	assert.Error(t, n.NotifyVisitor(context.Background(), contracts.VisitorNotification{To: "x@example.com"}))
}
