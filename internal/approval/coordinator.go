package approval

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lkmninja/aaflbot/internal/errors"
	"github.com/lkmninja/aaflbot/internal/event"
	"github.com/lkmninja/aaflbot/internal/gateway"
	"github.com/lkmninja/aaflbot/internal/logging"
)

// Mode identifies how a decision is gathered.
type Mode string

const (
	ModeConsent Mode = "consent"
	ModeVote    Mode = "vote"
)

// Outcome is the result of a consent or vote.
type Outcome string

const (
	OutcomeApproved Outcome = "approved"
	OutcomeRejected Outcome = "rejected"
	OutcomeTimedOut Outcome = "timed_out"
)

// ConsentRequest asks one user to approve or reject by reaction.
type ConsentRequest struct {
	// Subject identifies what is being decided, e.g. a trade proposal ID.
	Subject   string
	Recipient string
	Prompt    string
	Approve   string
	Reject    string
	Timeout   time.Duration
}

// VoteRequest opens a public poll.
type VoteRequest struct {
	Subject string
	Channel string
	Prompt  string
	Approve string
	Reject  string
	Window  time.Duration
}

// Decision is the result of one Consent or Vote call.
type Decision struct {
	ID      string
	Mode    Mode
	Outcome Outcome
	// Responder is the user whose reaction decided a consent.
	Responder string
	// Up and Down are the vote counts after removing the bot's placeholder.
	Up     int
	Down   int
	Waited time.Duration
}

// Pending describes an in-flight consent or vote.
type Pending struct {
	ID       string
	Mode     Mode
	Subject  string
	Target   string
	Started  time.Time
	Deadline time.Time
}

// Coordinator runs consents and votes over a gateway and tracks the ones
// still waiting.
type Coordinator struct {
	mu      sync.Mutex
	gw      gateway.Gateway
	bus     *event.Bus
	logger  *logging.Logger
	pending map[string]Pending
	now     func() time.Time
}

// NewCoordinator creates a Coordinator. bus and logger may be nil.
func NewCoordinator(gw gateway.Gateway, bus *event.Bus, logger *logging.Logger) *Coordinator {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Coordinator{
		gw:      gw,
		bus:     bus,
		logger:  logger.WithComponent("approval"),
		pending: make(map[string]Pending),
		now:     time.Now,
	}
}

// Consent DMs req.Recipient and waits for the approve or reject reaction.
func (c *Coordinator) Consent(ctx context.Context, req ConsentRequest) (Decision, error) {
	if req.Recipient == "" {
		return Decision{}, errors.NewValidationError("consent requires a recipient").WithField("recipient")
	}
	if req.Approve == "" || req.Reject == "" || req.Approve == req.Reject {
		return Decision{}, errors.NewValidationError("consent requires distinct approve and reject emoji")
	}

	p := c.begin(ModeConsent, req.Subject, req.Recipient, req.Timeout)
	defer c.end(p.ID)

	emoji, err := c.gw.RequestReaction(ctx, gateway.ReactionRequest{
		Recipient: req.Recipient,
		Prompt:    req.Prompt,
		Allowed:   []string{req.Approve, req.Reject},
		Timeout:   req.Timeout,
	})

	d := Decision{ID: p.ID, Mode: ModeConsent, Waited: c.now().Sub(p.Started)}
	switch {
	case isWaitExpired(err):
		d.Outcome = OutcomeTimedOut
	case err != nil:
		c.logger.Warn("consent request failed", "approval_id", p.ID, "recipient", req.Recipient, "error", err)
		return Decision{}, errors.Wrap(err, "request consent")
	case emoji == req.Approve:
		d.Outcome = OutcomeApproved
		d.Responder = req.Recipient
	default:
		d.Outcome = OutcomeRejected
		d.Responder = req.Recipient
	}

	c.resolved(d, req.Subject)
	return d, nil
}

// Vote opens a poll on req.Channel, waits req.Window and tallies once.
// The bot's own reaction is not counted and a tie rejects.
func (c *Coordinator) Vote(ctx context.Context, req VoteRequest) (Decision, error) {
	if req.Channel == "" {
		return Decision{}, errors.NewValidationError("vote requires a channel").WithField("channel")
	}
	if req.Approve == "" || req.Reject == "" || req.Approve == req.Reject {
		return Decision{}, errors.NewValidationError("vote requires distinct approve and reject emoji")
	}

	p := c.begin(ModeVote, req.Subject, req.Channel, req.Window)
	defer c.end(p.ID)

	tally, err := c.gw.OpenPoll(ctx, gateway.PollRequest{
		Channel: req.Channel,
		Prompt:  req.Prompt,
		Allowed: []string{req.Approve, req.Reject},
		Window:  req.Window,
	})

	d := Decision{ID: p.ID, Mode: ModeVote, Waited: c.now().Sub(p.Started)}
	switch {
	case isWaitExpired(err):
		d.Outcome = OutcomeTimedOut
	case err != nil:
		c.logger.Warn("vote failed", "approval_id", p.ID, "channel", req.Channel, "error", err)
		return Decision{}, errors.Wrap(err, "open poll")
	default:
		d.Up, d.Down = Votes(tally, req.Approve), Votes(tally, req.Reject)
		d.Outcome = Decide(d.Up, d.Down)
	}

	c.resolved(d, req.Subject)
	return d, nil
}

// Votes returns the count for emoji with the bot's placeholder removed.
func Votes(t gateway.Tally, emoji string) int {
	return max(t[emoji]-1, 0)
}

// Decide approves only a strict majority of up over down.
func Decide(up, down int) Outcome {
	if up > down {
		return OutcomeApproved
	}
	return OutcomeRejected
}

// Pending returns the in-flight requests, oldest first.
func (c *Coordinator) Pending() []Pending {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Pending, 0, len(c.pending))
	for _, p := range c.pending {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b Pending) int { return a.Started.Compare(b.Started) })
	return out
}

// PendingCount returns the number of in-flight requests.
func (c *Coordinator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Coordinator) begin(mode Mode, subject, target string, wait time.Duration) Pending {
	now := c.now()
	p := Pending{
		ID:       uuid.NewString(),
		Mode:     mode,
		Subject:  subject,
		Target:   target,
		Started:  now,
		Deadline: now.Add(wait),
	}

	c.mu.Lock()
	c.pending[p.ID] = p
	c.mu.Unlock()

	c.logger.Info("approval requested", "approval_id", p.ID, "mode", string(mode), "subject", subject, "target", target)
	c.publish(event.NewApprovalRequestedEvent(p.ID, string(mode), target))
	return p
}

func (c *Coordinator) end(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Coordinator) resolved(d Decision, subject string) {
	c.logger.Info("approval resolved",
		"approval_id", d.ID,
		"mode", string(d.Mode),
		"subject", subject,
		"outcome", string(d.Outcome),
		"up", d.Up,
		"down", d.Down,
	)
	c.publish(event.NewApprovalResolvedEvent(d.ID, string(d.Mode), string(d.Outcome), d.Waited))
}

// publish sends outside the coordinator lock; callers must not hold c.mu.
func (c *Coordinator) publish(e event.Event) {
	if c.bus != nil {
		c.bus.Publish(e)
	}
}

func isWaitExpired(err error) bool {
	return errors.Is(err, errors.ErrTimeout) || errors.Is(err, errors.ErrCanceled)
}
