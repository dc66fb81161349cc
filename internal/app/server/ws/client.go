package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"assist/internal/core/domain"
)

var (
	ErrClientClosed = errors.New("client closed")
	ErrSlowConsumer = errors.New("client send buffer full")
)

const sendBuffer = 256

// RuntimeClient is one socket as seen by the registry. Writes go through a
// buffered queue drained by a single writer goroutine.
type RuntimeClient struct {
	ctx           context.Context
	cancel        context.CancelFunc
	ws            *WebSocket
	id            string
	channel       string
	role          domain.Role
	participantID string
	out           chan []byte
	once          sync.Once
}

func NewClient(
	parent context.Context,
	ws *WebSocket,
	id, channel string,
	role domain.Role,
	participantID string,
) *RuntimeClient {
	ctx, cancel := context.WithCancel(parent)
	c := &RuntimeClient{
		ctx:           ctx,
		cancel:        cancel,
		ws:            ws,
		id:            id,
		channel:       channel,
		role:          role,
		participantID: participantID,
		out:           make(chan []byte, sendBuffer),
	}
	go c.writeLoop()
	return c
}

func (c *RuntimeClient) ID() string            { return c.id }
func (c *RuntimeClient) Channel() string       { return c.channel }
func (c *RuntimeClient) Role() domain.Role     { return c.role }
func (c *RuntimeClient) ParticipantID() string { return c.participantID }

// Send queues data without blocking the broadcaster. A client that lets its
// queue fill up gets dropped.
func (c *RuntimeClient) Send(_ context.Context, data []byte) error {
	select {
	case <-c.ctx.Done():
		return ErrClientClosed
	default:
	}
	select {
	case c.out <- data:
		return nil
	default:
		c.Close()
		return ErrSlowConsumer
	}
}

func (c *RuntimeClient) Close() {
	c.once.Do(func() {
		c.cancel()
		c.ws.Close()
	})
}

func (c *RuntimeClient) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.ws.Done():
			return
		case data := <-c.out:
			if err := c.ws.WriteMessage(data); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.ws.Ping(); err != nil {
				return
			}
		}
	}
}
