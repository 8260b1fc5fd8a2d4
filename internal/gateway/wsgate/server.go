package wsgate

import (
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lkmninja/aaflbot/internal/errors"
	"github.com/lkmninja/aaflbot/internal/gateway"
	"github.com/lkmninja/aaflbot/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxFrameSize   = 16 * 1024
	sendBufferSize = 64
)

// Server upgrades authenticated HTTP requests to websocket connections
// attached to a hub.
type Server struct {
	hub      *gateway.Hub
	secret   string
	upgrader websocket.Upgrader
	logger   *logging.Logger

	mu    sync.Mutex
	conns map[*conn]struct{}
}

// NewServer creates a Server. An empty allowedOrigins keeps gorilla's
// same-origin check; "*" allows any origin.
func NewServer(hub *gateway.Hub, secret string, allowedOrigins []string, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.NopLogger()
	}
	s := &Server{
		hub:    hub,
		secret: secret,
		logger: logger.WithComponent("wsgate"),
		conns:  make(map[*conn]struct{}),
	}
	if len(allowedOrigins) > 0 {
		s.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin)
		}
	}
	return s
}

// ServeHTTP authenticates the request from the token query parameter or
// a bearer Authorization header, then serves the connection.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	claims, err := ParseToken(token, s.secret)
	if err != nil {
		s.logger.Info("rejected websocket connection", "remote", r.RemoteAddr, "error", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	member := claims.Member()
	s.hub.Join(member)
	if m, ok := s.hub.ResolveMember(r.Context(), member.ID); ok {
		member = m
	}
	c := &conn{
		ws:     ws,
		member: member,
		send:   make(chan Frame, sendBufferSize),
		done:   make(chan struct{}),
		logger: s.logger.WithUser(member.ID),
	}
	s.track(c, true)
	c.enqueue(Frame{Type: FrameHello, Member: &member})
	detach := s.hub.Attach(member.ID, gateway.SinkFunc(func(m gateway.Message) {
		c.enqueue(DeliveryFrame(m))
	}))
	c.logger.Info("member connected", "remote", r.RemoteAddr)

	go c.writePump()
	go func() {
		defer func() {
			detach()
			c.close()
			s.track(c, false)
			c.logger.Info("member disconnected")
		}()
		c.readPump(s.hub)
	}()
}

func (s *Server) track(c *conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[c] = struct{}{}
	} else {
		delete(s.conns, c)
	}
}

// Connections returns the number of open connections.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Close disconnects every client.
func (s *Server) Close() {
	s.mu.Lock()
	conns := make([]*conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		c.close()
	}
}

// conn is one connected member.
type conn struct {
	ws     *websocket.Conn
	member gateway.Member
	send   chan Frame
	done   chan struct{}
	once   sync.Once
	logger *logging.Logger
}

// enqueue never blocks; hub deliveries run on the poster's goroutine.
func (c *conn) enqueue(f Frame) {
	select {
	case <-c.done:
	case c.send <- f:
	default:
		c.logger.Warn("send buffer full; dropping frame", "type", f.Type)
	}
}

func (c *conn) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

func (c *conn) writePump() {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-c.done:
			return
		case f := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(f); err != nil {
				c.logger.Debug("websocket write failed", "error", err)
				c.close()
				return
			}
		case <-ping.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.close()
				return
			}
		}
	}
}

func (c *conn) readPump(hub *gateway.Hub) {
	c.ws.SetReadLimit(maxFrameSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		var f Frame
		if err := c.ws.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket read failed", "error", err)
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		if err := c.handle(hub, f); err != nil {
			c.enqueue(Frame{Type: FrameError, Error: describe(err)})
		}
	}
}

func (c *conn) handle(hub *gateway.Hub, f Frame) error {
	switch f.Type {
	case FrameMessage:
		_, err := hub.Post(c.member.ID, f.Channel, f.Text, f.Mentions...)
		return err
	case FrameReact:
		return hub.React(c.member.ID, f.MessageID, f.Emoji)
	case FrameUnreact:
		return hub.Unreact(c.member.ID, f.MessageID, f.Emoji)
	default:
		return errors.NewValidationError("unknown frame type").WithField("type").WithValue(f.Type)
	}
}

func describe(err error) string {
	if msg := errors.UserMessage(err); msg != "" {
		return msg
	}
	return "internal error"
}
