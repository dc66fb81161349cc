package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strings"

	"assist/internal/app/server/ws"
	"assist/internal/core/domain"
	"assist/internal/core/services"
	"assist/pkg/logging"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type WSHandler struct {
	manager  services.IManagerService
	tenants  *services.TenantService
	tokens   *services.TokenService
	upgrader websocket.Upgrader
}

// NewWSHandler accepts sockets from allowedOrigins; "*" accepts any page,
// which is what an embeddable widget usually needs.
func NewWSHandler(
	manager services.IManagerService,
	tenants *services.TenantService,
	tokens *services.TokenService,
	allowedOrigins []string,
) *WSHandler {
	return &WSHandler{
		manager: manager,
		tenants: tenants,
		tokens:  tokens,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}

type identity struct {
	channel       string
	role          domain.Role
	participantID string
}

// identify classifies the connection. A valid account token makes it a user
// in the account's channel; otherwise a widget key and visitor id make it a
// visitor.
func (h *WSHandler) identify(c *gin.Context) (identity, error) {
	ctx := c.Request.Context()
	token := c.Query("token")
	if token == "" {
		if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			token = strings.TrimPrefix(auth, "Bearer ")
		}
	}
	if token != "" {
		accountID, err := h.tokens.ValidateToken(token)
		if err != nil {
			return identity{}, errUnauthorized
		}
		key, err := h.tenants.AccountKey(ctx, accountID)
		if err != nil {
			return identity{}, err
		}
		return identity{channel: key, role: domain.RoleUser, participantID: accountID}, nil
	}

	key, visitorID := c.Query("key"), c.Query("visitorId")
	if key == "" || visitorID == "" {
		return identity{}, errMissingIdentity
	}
	if err := h.tenants.CheckKey(ctx, key); err != nil {
		return identity{}, err
	}
	return identity{channel: key, role: domain.RoleVisitor, participantID: visitorID}, nil
}

var (
	errUnauthorized    = errors.New("invalid token")
	errMissingIdentity = errors.New("token, or key and visitorId, are required")
)

func (h *WSHandler) Handler(c *gin.Context) {
	log := logging.FromContext(c.Request.Context())
	span := trace.SpanFromContext(c.Request.Context())

	id, err := h.identify(c)
	switch {
	case errors.Is(err, errUnauthorized):
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "message": err.Error()})
		return
	case errors.Is(err, errMissingIdentity):
		badRequest(c, err)
		return
	case err != nil:
		respondError(c, err)
		return
	}
	span.SetAttributes(
		attribute.String("assist.channel", id.channel),
		attribute.String("assist.role", string(id.role)),
	)

	// the socket outlives the upgrade request
	sessionCtx := context.WithoutCancel(c.Request.Context())
	ctx, cancel := context.WithCancel(sessionCtx)
	defer cancel()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.ErrorContext(ctx, "ws handler - upgrade - ws upgrade failed", logging.Err(err))
		return
	}
	socket := ws.NewWebSocket(ctx, conn, log)
	client := ws.NewClient(ctx, socket, uuid.NewString(), id.channel, id.role, id.participantID)
	defer client.Close()
	ctx, log = logging.With(ctx, logging.Conn(client.ID()), logging.Tenant(id.channel), logging.Participant(id.participantID))

	h.manager.HandleConnect(ctx, client)
	defer h.manager.HandleDisconnect(ctx, client)

	socket.ReadLoop(func(data []byte) {
		err := h.manager.HandleMessage(ctx, client, data)
		if errors.Is(err, services.ErrMalformedFrame) {
			replyError(ctx, client, "MalformedFrame", err)
		}
	})
	log.InfoContext(ctx, "ws handler - read loop - connection closed")
}

func replyError(ctx context.Context, c *ws.RuntimeClient, code string, err error) {
	env, mErr := domain.NewEnvelope(domain.EventError, domain.ErrorMessage{Error: code, Message: err.Error()})
	if mErr != nil {
		return
	}
	data, mErr := json.Marshal(env)
	if mErr != nil {
		return
	}
	_ = c.Send(ctx, data)
}
