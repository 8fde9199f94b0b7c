package websocket

import (
	"context"
	"time"

	ws "github.com/coder/websocket"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
	writeTimeout   = 10 * time.Second
)

// Client is one subscriber. The stream is server to client only; anything
// the client sends is discarded.
type Client struct {
	hub   *Hub
	conn  *ws.Conn
	scope Scope
	send  chan []byte
}

func NewClient(hub *Hub, conn *ws.Conn, scope Scope) *Client {
	return &Client{
		hub:   hub,
		conn:  conn,
		scope: scope,
		send:  make(chan []byte, sendBufferSize),
	}
}

// Run delivers published events until the peer disconnects, ctx ends, or
// the hub drops the client.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	// CloseRead cancels ctx once the peer closes the connection.
	ctx = c.conn.CloseRead(ctx)
	if err := c.deliver(ctx); err != nil {
		c.conn.Close(ws.StatusGoingAway, "")
		return
	}
	c.conn.Close(ws.StatusNormalClosure, "")
}

func (c *Client) deliver(ctx context.Context) error {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return nil
			}
			if err := c.write(ctx, func(ctx context.Context) error {
				return c.conn.Write(ctx, ws.MessageText, msg)
			}); err != nil {
				return err
			}
		case <-ticker.C:
			if err := c.write(ctx, c.conn.Ping); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Client) write(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return fn(ctx)
}
