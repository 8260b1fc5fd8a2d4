package wsgate

import "github.com/lkmninja/aaflbot/internal/gateway"

// Frame types.
const (
	// Client to server.
	FrameMessage = "message"
	FrameReact   = "react"
	FrameUnreact = "unreact"

	// Server to client.
	FrameHello    = "hello"
	FrameDelivery = "delivery"
	FrameError    = "error"
)

// Frame is one JSON websocket message in either direction. Fields unused by
// a frame type are omitted.
type Frame struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Channel   string          `json:"channel,omitempty"`
	Author    string          `json:"author,omitempty"`
	Text      string          `json:"text,omitempty"`
	Mentions  []string        `json:"mentions,omitempty"`
	Allowed   []string        `json:"allowed,omitempty"`
	MessageID string          `json:"message_id,omitempty"`
	Emoji     string          `json:"emoji,omitempty"`
	Error     string          `json:"error,omitempty"`
	Member    *gateway.Member `json:"member,omitempty"`
}

// DeliveryFrame wraps a hub message for a client.
func DeliveryFrame(m gateway.Message) Frame {
	return Frame{
		Type:     FrameDelivery,
		ID:       m.ID,
		Channel:  m.Channel,
		Author:   m.Author,
		Text:     m.Text,
		Mentions: m.Mentions,
		Allowed:  m.Allowed,
	}
}
