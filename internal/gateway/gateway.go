package gateway

import (
	"context"
	"slices"
	"strings"
	"time"
)

// DirectPrefix marks a channel as a direct-message channel with one member.
const DirectPrefix = "dm:"

// DirectChannel returns the direct-message channel for a user.
func DirectChannel(userID string) string {
	return DirectPrefix + userID
}

// IsDirect reports whether channel is a direct-message channel.
func IsDirect(channel string) bool {
	return strings.HasPrefix(channel, DirectPrefix)
}

// DirectRecipient returns the user a direct-message channel belongs to.
func DirectRecipient(channel string) (string, bool) {
	if !IsDirect(channel) {
		return "", false
	}
	return strings.TrimPrefix(channel, DirectPrefix), true
}

// Reaction emoji used by the league workflows.
const (
	ThumbsUp   = "👍"
	ThumbsDown = "👎"
	Accept     = "✅"
	Decline    = "❌"
)

// Member is a chat participant.
type Member struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Roles []string `json:"roles,omitempty"`
	Bot   bool     `json:"bot,omitempty"`
}

// HasRole reports whether the member holds role exactly.
func (m Member) HasRole(role string) bool {
	return slices.Contains(m.Roles, role)
}

// DisplayName returns the member's name, falling back to the ID.
func (m Member) DisplayName() string {
	if m.Name != "" {
		return m.Name
	}
	return m.ID
}

// Message is a chat message as seen by transports and workflows.
// Allowed lists the reactions the author invites, if any.
type Message struct {
	ID        string    `json:"id"`
	Channel   string    `json:"channel"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	Mentions  []string  `json:"mentions,omitempty"`
	Allowed   []string  `json:"allowed,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Reaction is one member's emoji on one message.
type Reaction struct {
	MessageID string
	UserID    string
	Emoji     string
}

// Tally maps an emoji to its raw reaction count on a message, including
// the bot's own placeholder reaction.
type Tally map[string]int

// Predicate selects the inbound messages or reactions a wait is interested
// in. Empty fields match anything.
type Predicate struct {
	// Author is the user who must send the message or reaction.
	Author string
	// Channel is the channel the message must be posted in.
	Channel string
	// MessageID is the message a reaction must target.
	MessageID string
	// Allowed restricts reactions to these emoji.
	Allowed []string
}

// MatchMessage reports whether m satisfies the predicate.
func (p Predicate) MatchMessage(m Message) bool {
	if p.Author != "" && m.Author != p.Author {
		return false
	}
	if p.Channel != "" && m.Channel != p.Channel {
		return false
	}
	return true
}

// MatchReaction reports whether r satisfies the predicate.
func (p Predicate) MatchReaction(r Reaction) bool {
	if p.Author != "" && r.UserID != p.Author {
		return false
	}
	if p.MessageID != "" && r.MessageID != p.MessageID {
		return false
	}
	if len(p.Allowed) > 0 && !slices.Contains(p.Allowed, r.Emoji) {
		return false
	}
	return true
}

// TextRequest asks a user for a free-text reply in a channel.
type TextRequest struct {
	// Channel is where the prompt is posted and the reply is expected.
	Channel string
	// Author is the only user whose reply counts.
	Author string
	// Prompt is posted by the bot before waiting; empty posts nothing.
	Prompt  string
	Timeout time.Duration
}

// ReactionRequest asks one user to answer a direct message with one of
// the allowed reactions.
type ReactionRequest struct {
	Recipient string
	Prompt    string
	Allowed   []string
	Timeout   time.Duration
}

// PollRequest opens a public poll. The gateway posts the prompt, seeds one
// placeholder reaction per allowed emoji, waits for Window and then reads
// the reaction counts once.
type PollRequest struct {
	Channel string
	Prompt  string
	Allowed []string
	Window  time.Duration
}

// Gateway is everything the league workflows need from a chat platform.
// Blocking calls return an errors.TimeoutError when their deadline passes
// and an error wrapping errors.ErrCanceled when ctx is done first.
type Gateway interface {
	// Send posts text from the bot into a channel.
	Send(ctx context.Context, channel, text string) (Message, error)
	// RequestText posts a prompt and waits for a matching reply.
	RequestText(ctx context.Context, req TextRequest) (Message, error)
	// RequestReaction DMs a prompt and waits for the recipient's reaction.
	RequestReaction(ctx context.Context, req ReactionRequest) (string, error)
	// OpenPoll runs a fixed-window poll and returns the raw tally.
	OpenPoll(ctx context.Context, req PollRequest) (Tally, error)
	// GrantRole gives a member a role.
	GrantRole(ctx context.Context, userID, role string) error
	// RevokeRole removes a role from a member.
	RevokeRole(ctx context.Context, userID, role string) error
	// ResolveMember looks up a member by ID.
	ResolveMember(ctx context.Context, userID string) (Member, bool)
	// Members lists every known member.
	Members(ctx context.Context) []Member
}
