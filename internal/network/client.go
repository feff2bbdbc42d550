// Package network carries world replication over websockets.
package network

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-world/internal/logger"
	"github.com/Faultbox/midgard-world/internal/network/packets"
)

// ErrNotConnected is returned by Send before Connect.
var ErrNotConnected = errors.New("not connected")

// Client receives replication frames from a server hub.
type Client struct {
	conn     *websocket.Conn
	mu       sync.Mutex
	handlers map[uint16]MessageHandler

	// Connection state
	connected bool
	url       string
}

// MessageHandler handles one decoded message.
type MessageHandler func(msg packets.Message) error

// NewClient creates a new network client.
func NewClient() *Client {
	return &Client{
		handlers: make(map[uint16]MessageHandler),
	}
}

// Connect dials the server's websocket endpoint.
func (c *Client) Connect(ctx context.Context, url string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return fmt.Errorf("already connected")
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", url, err)
	}

	c.conn = conn
	c.connected = true
	c.url = url

	logger.Named("network").Info("connected", zap.String("url", url))
	return nil
}

// Disconnect closes the connection.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connected = false
}

// IsConnected returns connection status.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// RegisterHandler registers a handler for a packet ID. Register handlers
// before Run.
func (c *Client) RegisterHandler(packetID uint16, handler MessageHandler) {
	c.handlers[packetID] = handler
}

// Forward routes every replication message into inbox.
func (c *Client) Forward(inbox *Inbox) {
	push := func(msg packets.Message) error {
		inbox.Push(msg)
		return nil
	}
	c.RegisterHandler(packets.ZC_ENTITY_SPAWN, push)
	c.RegisterHandler(packets.ZC_ENTITY_STATE, push)
	c.RegisterHandler(packets.ZC_ENTITY_DESPAWN, push)
}

// Send writes msgs to the server as one frame.
func (c *Client) Send(msgs ...packets.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return ErrNotConnected
	}
	return c.conn.WriteMessage(websocket.BinaryMessage, packets.EncodeAll(msgs...))
}

// Run reads frames and dispatches their messages until the connection closes
// or ctx is cancelled. Handler errors are logged and do not stop the loop.
func (c *Client) Run(ctx context.Context) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	stop := context.AfterFunc(ctx, c.Disconnect)
	defer stop()

	log := logger.Named("network")
	for {
		mtype, data, err := conn.ReadMessage()
		if err != nil {
			c.Disconnect()
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("reading frame: %w", err)
		}
		if mtype != websocket.BinaryMessage {
			log.Warn("ignoring non-binary frame", zap.Int("type", mtype))
			continue
		}

		msgs, err := packets.DecodeAll(data)
		if err != nil {
			log.Warn("malformed frame", zap.Error(err), zap.Int("decoded", len(msgs)))
		}
		countPackets("in", msgs, 1)
		c.dispatch(msgs)
	}
}

func (c *Client) dispatch(msgs []packets.Message) {
	for _, msg := range msgs {
		handler, ok := c.handlers[msg.ID()]
		if !ok {
			logger.Named("network").Debug("unhandled message",
				zap.String("type", packets.TypeName(msg.ID())))
			continue
		}
		if err := handler(msg); err != nil {
			logger.Named("network").Warn("message handler failed",
				zap.String("type", packets.TypeName(msg.ID())),
				zap.Error(err))
		}
	}
}
