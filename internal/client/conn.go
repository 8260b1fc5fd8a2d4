package client

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/lkmninja/aaflbot/internal/errors"
	"github.com/lkmninja/aaflbot/internal/gateway/wsgate"
)

// Transport carries frames to and from the gateway.
type Transport interface {
	Send(f wsgate.Frame) error
	Receive() (wsgate.Frame, error)
	Close() error
}

// Conn is a Transport over a websocket connection.
type Conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

// Dial connects to a gateway websocket endpoint with a bearer token.
func Dial(ctx context.Context, addr, token string) (*Conn, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, addr, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, errors.NewAuthorizationError("token holder", "a valid gateway token").WithCause(err)
		}
		return nil, errors.Wrapf(err, "failed to connect to %s", addr)
	}
	return &Conn{ws: ws}, nil
}

// Send writes one frame. It is safe for concurrent use.
func (c *Conn) Send(f wsgate.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(f)
}

// Receive blocks for the next frame.
func (c *Conn) Receive() (wsgate.Frame, error) {
	var f wsgate.Frame
	err := c.ws.ReadJSON(&f)
	return f, err
}

// Close sends a close frame and closes the connection.
func (c *Conn) Close() error {
	c.mu.Lock()
	_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.mu.Unlock()
	return c.ws.Close()
}
