package gateway

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jaevor/go-nanoid"

	"github.com/lkmninja/aaflbot/internal/errors"
	"github.com/lkmninja/aaflbot/internal/logging"
)

const (
	// defaultRetention is the number of messages kept for reactions.
	defaultRetention = 2048
	messageIDLength  = 15
)

// Sink receives messages delivered to an attached member. Deliver must not
// block; transports queue the message and write it from their own goroutine.
type Sink interface {
	Deliver(Message)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Message)

// Deliver calls f(m).
func (f SinkFunc) Deliver(m Message) { f(m) }

// Listener is called for every message posted by a member.
type Listener func(Message)

type posted struct {
	msg       Message
	reactions map[string]map[string]struct{} // emoji -> user IDs
}

type textWaiter struct {
	pred Predicate
	ch   chan Message
}

type reactionWaiter struct {
	pred Predicate
	ch   chan Reaction
}

type attachment struct {
	userID string
	sink   Sink
}

// Hub is an in-process chat platform implementing Gateway. Transports
// attach members with Attach and feed their input through Post and React;
// the league workflows talk to the Hub through the Gateway interface.
type Hub struct {
	mu        sync.Mutex
	bot       Member
	members   map[string]*Member
	messages  map[string]*posted
	order     []string
	retention int

	nextWaiter      uint64
	textWaiters     map[uint64]*textWaiter
	reactionWaiters map[uint64]*reactionWaiter

	nextAttachment uint64
	attachments    map[uint64]attachment
	listeners      []Listener

	newID  func() string
	now    func() time.Time
	logger *logging.Logger
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the hub's logger.
func WithLogger(logger *logging.Logger) Option {
	return func(h *Hub) { h.logger = logger.WithComponent("gateway") }
}

// WithRetention sets how many recent messages accept reactions.
func WithRetention(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.retention = n
		}
	}
}

// NewHub creates a Hub whose own messages are authored by bot.
func NewHub(bot Member, opts ...Option) (*Hub, error) {
	gen, err := nanoid.Standard(messageIDLength)
	if err != nil {
		return nil, errors.Wrap(err, "create message id generator")
	}
	bot.Bot = true
	h := &Hub{
		bot:             bot,
		members:         map[string]*Member{bot.ID: &bot},
		messages:        make(map[string]*posted),
		retention:       defaultRetention,
		textWaiters:     make(map[uint64]*textWaiter),
		reactionWaiters: make(map[uint64]*reactionWaiter),
		attachments:     make(map[uint64]attachment),
		newID:           gen,
		now:             time.Now,
		logger:          logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Bot returns the bot member.
func (h *Hub) Bot() Member {
	return h.bot
}

// -----------------------------------------------------------------------------
// Membership and transports
// -----------------------------------------------------------------------------

// Join registers a member or updates an existing member's name. Roles given
// here replace the member's roles only when the member is new.
func (h *Hub) Join(m Member) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if existing, ok := h.members[m.ID]; ok {
		if m.Name != "" {
			existing.Name = m.Name
		}
		return
	}
	m.Roles = slices.Clone(m.Roles)
	h.members[m.ID] = &m
}

// Attach delivers every public message, and every direct message addressed
// to userID, to sink until the returned detach function is called.
func (h *Hub) Attach(userID string, sink Sink) (detach func()) {
	h.mu.Lock()
	h.nextAttachment++
	id := h.nextAttachment
	h.attachments[id] = attachment{userID: userID, sink: sink}
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.attachments, id)
			h.mu.Unlock()
		})
	}
}

// OnMessage registers a listener for member messages.
func (h *Hub) OnMessage(l Listener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, l)
}

// -----------------------------------------------------------------------------
// Inbound
// -----------------------------------------------------------------------------

// Post records a message from a member, wakes the oldest matching text
// wait, fans it out to attached sinks and then to listeners. Mentions are
// parsed from text and merged with any the transport already resolved.
func (h *Hub) Post(authorID, channel, text string, mentions ...string) (Message, error) {
	if channel == "" {
		return Message{}, errors.NewValidationError("channel must not be empty").WithField("channel")
	}

	h.mu.Lock()
	if _, ok := h.members[authorID]; !ok {
		h.mu.Unlock()
		return Message{}, errors.NewNotFoundError("member", authorID)
	}
	if recipient, ok := DirectRecipient(channel); ok && recipient != authorID {
		h.mu.Unlock()
		return Message{}, errors.NewAuthorizationError(authorID, "direct channel owner")
	}
	parsed := ParseMentions(text, h.resolveTokenLocked)
	for _, id := range mentions {
		if !slices.Contains(parsed, id) {
			parsed = append(parsed, id)
		}
	}
	msg := h.storeLocked(Message{Channel: channel, Author: authorID, Text: text, Mentions: parsed})

	// One reply answers one request: the oldest matching wait wins.
	var woken chan Message
	var oldest uint64
	for id, w := range h.textWaiters {
		if w.pred.MatchMessage(msg) && (woken == nil || id < oldest) {
			woken, oldest = w.ch, id
		}
	}
	if woken != nil {
		delete(h.textWaiters, oldest)
	}
	sinks := h.sinksLocked(channel)
	listeners := slices.Clone(h.listeners)
	h.mu.Unlock()

	if woken != nil {
		woken <- msg
	}
	deliver(sinks, msg)
	for _, l := range listeners {
		l(msg)
	}
	return msg, nil
}

// React adds userID's emoji to a message. Reacting twice with the same
// emoji is a no-op, matching native chat platforms.
func (h *Hub) React(userID, messageID, emoji string) error {
	h.mu.Lock()
	if _, ok := h.members[userID]; !ok {
		h.mu.Unlock()
		return errors.NewNotFoundError("member", userID)
	}
	p, ok := h.messages[messageID]
	if !ok {
		h.mu.Unlock()
		return errors.NewNotFoundError("message", messageID)
	}
	if recipient, direct := DirectRecipient(p.msg.Channel); direct && recipient != userID {
		h.mu.Unlock()
		return errors.NewAuthorizationError(userID, "direct channel owner")
	}
	users, ok := p.reactions[emoji]
	if !ok {
		users = make(map[string]struct{})
		p.reactions[emoji] = users
	}
	if _, dup := users[userID]; dup {
		h.mu.Unlock()
		return nil
	}
	users[userID] = struct{}{}

	r := Reaction{MessageID: messageID, UserID: userID, Emoji: emoji}
	var woken []chan Reaction
	for id, w := range h.reactionWaiters {
		if w.pred.MatchReaction(r) {
			woken = append(woken, w.ch)
			delete(h.reactionWaiters, id)
		}
	}
	h.mu.Unlock()

	for _, ch := range woken {
		ch <- r
	}
	return nil
}

// Unreact removes userID's emoji from a message.
func (h *Hub) Unreact(userID, messageID, emoji string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.messages[messageID]
	if !ok {
		return errors.NewNotFoundError("message", messageID)
	}
	delete(p.reactions[emoji], userID)
	return nil
}

// Tally returns the raw reaction counts on a message.
func (h *Hub) Tally(messageID string) (Tally, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.messages[messageID]
	if !ok {
		return nil, errors.NewNotFoundError("message", messageID)
	}
	t := make(Tally, len(p.reactions))
	for emoji, users := range p.reactions {
		t[emoji] = len(users)
	}
	return t, nil
}

// -----------------------------------------------------------------------------
// Gateway implementation
// -----------------------------------------------------------------------------

// Send implements Gateway.
func (h *Hub) Send(_ context.Context, channel, text string) (Message, error) {
	msg, sinks := h.postBot(channel, text, nil)
	deliver(sinks, msg)
	return msg, nil
}

// RequestText implements Gateway.
func (h *Hub) RequestText(ctx context.Context, req TextRequest) (Message, error) {
	pred := Predicate{Author: req.Author, Channel: req.Channel}
	ch := make(chan Message, 1)

	h.mu.Lock()
	h.nextWaiter++
	id := h.nextWaiter
	h.textWaiters[id] = &textWaiter{pred: pred, ch: ch}
	h.mu.Unlock()

	if req.Prompt != "" {
		msg, sinks := h.postBot(req.Channel, req.Prompt, nil)
		deliver(sinks, msg)
	}

	select {
	case msg := <-ch:
		return msg, nil
	case <-h.after(req.Timeout):
	case <-ctx.Done():
	}

	h.mu.Lock()
	_, pending := h.textWaiters[id]
	delete(h.textWaiters, id)
	h.mu.Unlock()
	if !pending {
		// Woken concurrently with the deadline; the reply is already queued.
		return <-ch, nil
	}
	return Message{}, waitError(ctx, "waiting for a reply from "+req.Author, req.Timeout)
}

// RequestReaction implements Gateway.
func (h *Hub) RequestReaction(ctx context.Context, req ReactionRequest) (string, error) {
	ch := make(chan Reaction, 1)
	channel := DirectChannel(req.Recipient)

	h.mu.Lock()
	if _, ok := h.members[req.Recipient]; !ok {
		h.mu.Unlock()
		return "", errors.NewNotFoundError("member", req.Recipient)
	}
	msg := h.storeLocked(Message{Channel: channel, Author: h.bot.ID, Text: req.Prompt, Allowed: slices.Clone(req.Allowed)})
	h.seedLocked(msg.ID, req.Allowed)
	h.nextWaiter++
	id := h.nextWaiter
	h.reactionWaiters[id] = &reactionWaiter{
		pred: Predicate{Author: req.Recipient, MessageID: msg.ID, Allowed: req.Allowed},
		ch:   ch,
	}
	sinks := h.sinksLocked(channel)
	h.mu.Unlock()

	deliver(sinks, msg)

	select {
	case r := <-ch:
		return r.Emoji, nil
	case <-h.after(req.Timeout):
	case <-ctx.Done():
	}

	h.mu.Lock()
	_, pending := h.reactionWaiters[id]
	delete(h.reactionWaiters, id)
	h.mu.Unlock()
	if !pending {
		return (<-ch).Emoji, nil
	}
	return "", waitError(ctx, "waiting for a reaction from "+req.Recipient, req.Timeout)
}

// OpenPoll implements Gateway.
func (h *Hub) OpenPoll(ctx context.Context, req PollRequest) (Tally, error) {
	msg, sinks := h.postBot(req.Channel, req.Prompt, req.Allowed)
	deliver(sinks, msg)

	select {
	case <-h.after(req.Window):
	case <-ctx.Done():
		return nil, errors.Wrap(errors.ErrCanceled, "poll "+msg.ID)
	}

	raw, err := h.Tally(msg.ID)
	if err != nil {
		return nil, err
	}
	out := make(Tally, len(req.Allowed))
	for _, emoji := range req.Allowed {
		out[emoji] = raw[emoji]
	}
	return out, nil
}

// GrantRole implements Gateway.
func (h *Hub) GrantRole(_ context.Context, userID, role string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.members[userID]
	if !ok {
		return errors.NewNotFoundError("member", userID)
	}
	if !slices.Contains(m.Roles, role) {
		m.Roles = append(m.Roles, role)
	}
	return nil
}

// RevokeRole implements Gateway.
func (h *Hub) RevokeRole(_ context.Context, userID, role string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.members[userID]
	if !ok {
		return errors.NewNotFoundError("member", userID)
	}
	m.Roles = slices.DeleteFunc(m.Roles, func(r string) bool { return r == role })
	return nil
}

// ResolveMember implements Gateway.
func (h *Hub) ResolveMember(_ context.Context, userID string) (Member, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.members[userID]
	if !ok {
		return Member{}, false
	}
	out := *m
	out.Roles = slices.Clone(m.Roles)
	return out, true
}

// Members implements Gateway. The bot is not included.
func (h *Hub) Members(_ context.Context) []Member {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Member, 0, len(h.members))
	for _, m := range h.members {
		if m.Bot {
			continue
		}
		c := *m
		c.Roles = slices.Clone(m.Roles)
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b Member) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// -----------------------------------------------------------------------------
// Internals
// -----------------------------------------------------------------------------

func (h *Hub) postBot(channel, text string, allowed []string) (Message, []Sink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	msg := h.storeLocked(Message{Channel: channel, Author: h.bot.ID, Text: text, Allowed: slices.Clone(allowed)})
	h.seedLocked(msg.ID, allowed)
	return msg, h.sinksLocked(channel)
}

// storeLocked assigns an ID and timestamp, records the message and evicts
// the oldest message beyond the retention limit.
func (h *Hub) storeLocked(msg Message) Message {
	msg.ID = h.newID()
	msg.Timestamp = h.now()
	h.messages[msg.ID] = &posted{msg: msg, reactions: make(map[string]map[string]struct{})}
	h.order = append(h.order, msg.ID)
	if len(h.order) > h.retention {
		delete(h.messages, h.order[0])
		h.order = h.order[1:]
	}
	h.logger.Debug("message stored", "message_id", msg.ID, "channel", msg.Channel, "author", msg.Author)
	return msg
}

// seedLocked adds the bot's placeholder reaction for each allowed emoji.
func (h *Hub) seedLocked(messageID string, allowed []string) {
	p := h.messages[messageID]
	for _, emoji := range allowed {
		p.reactions[emoji] = map[string]struct{}{h.bot.ID: {}}
	}
}

func (h *Hub) sinksLocked(channel string) []Sink {
	recipient, direct := DirectRecipient(channel)
	var sinks []Sink
	for _, a := range h.attachments {
		if direct && a.userID != recipient {
			continue
		}
		sinks = append(sinks, a.sink)
	}
	return sinks
}

func (h *Hub) resolveTokenLocked(token string) (string, bool) {
	if _, ok := h.members[token]; ok {
		return token, true
	}
	for id, m := range h.members {
		if strings.EqualFold(m.Name, token) {
			return id, true
		}
	}
	return "", false
}

func (h *Hub) after(d time.Duration) <-chan time.Time {
	if d <= 0 {
		return nil
	}
	return time.After(d)
}

func deliver(sinks []Sink, msg Message) {
	for _, s := range sinks {
		s.Deliver(msg)
	}
}

func waitError(ctx context.Context, op string, d time.Duration) error {
	if ctx.Err() != nil {
		return errors.Wrap(errors.ErrCanceled, op)
	}
	return errors.NewTimeoutError(op, d)
}
