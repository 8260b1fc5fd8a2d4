package trade

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lkmninja/aaflbot/internal/approval"
	"github.com/lkmninja/aaflbot/internal/errors"
	"github.com/lkmninja/aaflbot/internal/event"
	"github.com/lkmninja/aaflbot/internal/gateway"
	"github.com/lkmninja/aaflbot/internal/logging"
	"github.com/lkmninja/aaflbot/internal/roster"
)

// Chat messages posted by the engine.
const (
	msgGroupAPrompt   = "Please mention the players for the first group:"
	msgGroupBPrompt   = "Please mention the players for the second group:"
	msgVotePrompt     = "Vote to approve or reject the trade. React with 👍 to approve, 👎 to reject."
	msgTimedOut       = "Trade timed out. Please run the command again."
	msgNotCaptain     = "You must be the captain of the team to trade those players."
	msgNoGroupBTeam   = "Could not determine the team of players in the second group."
	msgDeclined       = "Trade canceled. The team captain (Franchise Owner) did not confirm."
	msgVoteRejected   = "Trade rejected. Not enough approval votes."
	msgCompleted      = "Trade completed."
	msgEmptyGroup     = "No players were mentioned. Please run the command again."
	msgCommitFailedFm = "An error occurred during the trade: %v"
)

// Roster is the part of the roster store the engine reads and commits to.
type Roster interface {
	IsCaptain(userID string) bool
	Captain(team string) (string, error)
	GroupTeam(group []string) (string, error)
	Player(id string) (roster.Player, error)
	ApplyTrade(req roster.TradeRequest) (roster.TradeResult, error)
}

// Engine runs trade negotiations. Each Negotiate call drives one proposal
// on the caller's goroutine; any number may run concurrently.
type Engine struct {
	roster   Roster
	gw       gateway.Gateway
	coord    *approval.Coordinator
	bus      *event.Bus
	logger   *logging.Logger
	settings func() Settings
	now      func() time.Time

	mu     sync.Mutex
	active map[string]*Proposal
}

// Option configures an Engine.
type Option func(*Engine)

// WithBus publishes proposal events to bus.
func WithBus(bus *event.Bus) Option {
	return func(e *Engine) { e.bus = bus }
}

// WithLogger sets the engine's logger.
func WithLogger(logger *logging.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithSettings supplies the settings read at the start of each negotiation.
func WithSettings(fn func() Settings) Option {
	return func(e *Engine) { e.settings = fn }
}

// NewEngine creates an Engine.
func NewEngine(r Roster, gw gateway.Gateway, coord *approval.Coordinator, opts ...Option) *Engine {
	e := &Engine{
		roster:   r,
		gw:       gw,
		coord:    coord,
		logger:   logging.NopLogger(),
		settings: DefaultSettings,
		now:      time.Now,
		active:   make(map[string]*Proposal),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Active returns snapshots of the proposals still in progress.
func (e *Engine) Active() []Proposal {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Proposal, 0, len(e.active))
	for _, p := range e.active {
		out = append(out, p.clone())
	}
	slices.SortFunc(out, func(a, b Proposal) int { return a.Started().Compare(b.Started()) })
	return out
}

// Negotiate runs a trade from the requester's first prompt to a terminal
// state and returns the final proposal. Only team captains may start a
// trade. The returned error is non-nil only when the trade could not start
// or when an approved trade failed to commit.
func (e *Engine) Negotiate(ctx context.Context, req Request) (Proposal, error) {
	if !e.roster.IsCaptain(req.RequesterID) {
		return Proposal{}, errors.NewAuthorizationError(req.RequesterID, "team captain").WithCause(errors.ErrNotCaptain)
	}
	if req.Channel == "" {
		return Proposal{}, errors.NewValidationError("trade requires a channel").WithField("channel")
	}

	n := &negotiation{
		e:        e,
		settings: e.settings(),
		p: &Proposal{
			ID:        uuid.NewString(),
			Requester: req.RequesterID,
			Channel:   req.Channel,
			State:     StateCollectingGroupA,
			Entered:   map[State]time.Time{StateCollectingGroupA: e.now()},
		},
	}
	n.log = e.logger.WithWorkflow("trade", n.p.ID).WithUser(req.RequesterID)

	e.mu.Lock()
	e.active[n.p.ID] = n.p
	e.mu.Unlock()

	n.log.Info("trade started", "channel", req.Channel)
	e.publish(event.NewTradeStateChangedEvent(n.p.ID, "", string(StateCollectingGroupA)))

	n.run(ctx)

	e.mu.Lock()
	delete(e.active, n.p.ID)
	final := n.p.clone()
	e.mu.Unlock()

	e.publishFinished(final)
	return final, final.Err
}

func (e *Engine) publish(ev event.Event) {
	if e.bus != nil {
		e.bus.Publish(ev)
	}
}

func (e *Engine) publishFinished(p Proposal) {
	fin := event.NewTradeFinishedEvent(p.ID, p.Requester, string(p.State))
	fin.TeamA, fin.TeamB = p.TeamA, p.TeamB
	fin.GroupA, fin.GroupB = p.GroupA, p.GroupB
	fin.Reason = p.Reason
	if p.Vote != nil {
		fin.VotesUp, fin.VotesDown = p.Vote.Up, p.Vote.Down
	}
	fin.Duration = p.Finished().Sub(p.Started())
	e.publish(fin)
}

// negotiation is the state of one running Negotiate call. Proposal fields
// are written under e.mu so Active can read them.
type negotiation struct {
	e        *Engine
	p        *Proposal
	settings Settings
	log      *logging.Logger
}

func (n *negotiation) run(ctx context.Context) {
	groupA, ok := n.collectGroupA(ctx)
	if !ok {
		return
	}
	groupB, ok := n.collectGroupB(ctx, groupA)
	if !ok {
		return
	}
	if !n.awaitConsent(ctx, groupA, groupB) {
		return
	}
	n.vote(ctx, groupA, groupB)
}

// collectGroupA asks for the requester's players and checks that the
// requester captains their team.
func (n *negotiation) collectGroupA(ctx context.Context) ([]string, bool) {
	msg, ok := n.requestGroup(ctx, msgGroupAPrompt)
	if !ok {
		return nil, false
	}
	group := msg.Mentions
	if len(group) == 0 {
		n.finish(ctx, StateRejected, ReasonEmptyGroup, msgEmptyGroup)
		return nil, false
	}

	team, err := n.e.roster.GroupTeam(group)
	if err != nil {
		n.log.Warn("group A rejected", "group", group, "error", err)
		n.finish(ctx, StateRejected, ReasonInvalidGroup, "Could not determine the team of players in the first group: "+err.Error())
		return nil, false
	}
	if captain, err := n.e.roster.Captain(team); err != nil || captain != n.p.Requester {
		n.update(func(p *Proposal) { p.GroupA, p.TeamA = group, team })
		n.finish(ctx, StateRejected, ReasonNotCaptain, msgNotCaptain)
		return nil, false
	}

	n.update(func(p *Proposal) { p.GroupA, p.TeamA = group, team })
	n.send(ctx, n.names(ctx, group)+" added to the first group.")
	n.transition(StateCollectingGroupB)
	return group, true
}

// collectGroupB asks for the players wanted in return.
func (n *negotiation) collectGroupB(ctx context.Context, groupA []string) ([]string, bool) {
	msg, ok := n.requestGroup(ctx, msgGroupBPrompt)
	if !ok {
		return nil, false
	}
	group := msg.Mentions
	if len(group) == 0 {
		n.finish(ctx, StateRejected, ReasonEmptyGroup, msgEmptyGroup)
		return nil, false
	}

	team, err := n.e.roster.GroupTeam(group)
	if err != nil {
		n.log.Warn("group B rejected", "group", group, "error", err)
		reason := ReasonInvalidGroup
		if errors.Is(err, errors.ErrNoGroupTeam) {
			reason = ReasonNoGroupTeam
		}
		n.finish(ctx, StateRejected, reason, msgNoGroupBTeam)
		return nil, false
	}
	n.update(func(p *Proposal) { p.GroupB, p.TeamB = group, team })

	if team == n.p.TeamA {
		n.finish(ctx, StateRejected, ReasonSameTeam, fmt.Sprintf("Both groups play for %s. Trades must be between two teams.", team))
		return nil, false
	}
	if n.settings.RevalidateCaptaincy && !n.stillCaptain(ctx) {
		return nil, false
	}

	n.send(ctx, n.names(ctx, group)+" added to the second group.")
	n.transition(StateAwaitingCaptainConsent)
	return group, true
}

// awaitConsent DMs the captain of group B's team.
func (n *negotiation) awaitConsent(ctx context.Context, groupA, groupB []string) bool {
	captainID, err := n.e.roster.Captain(n.p.TeamB)
	if err != nil {
		n.finish(ctx, StateRejected, ReasonNoCaptain, n.p.TeamB+" has no captain to confirm the trade.")
		return false
	}
	captain, ok := n.e.gw.ResolveMember(ctx, captainID)
	if !ok {
		n.finish(ctx, StateRejected, ReasonNoCaptain, "Could not reach the captain of "+n.p.TeamB+".")
		return false
	}

	prompt := fmt.Sprintf("Trade Proposal:\n\nGroup 1: %s\nGroup 2: %s\n\nPlease confirm the trade by reacting with %s or reject with %s.",
		n.names(ctx, groupA), n.names(ctx, groupB), gateway.ThumbsUp, gateway.ThumbsDown)

	n.log.Info("awaiting captain consent", "captain", captainID, "team", n.p.TeamB)
	d, err := n.e.coord.Consent(ctx, approval.ConsentRequest{
		Subject:   n.p.ID,
		Recipient: captain.ID,
		Prompt:    prompt,
		Approve:   gateway.ThumbsUp,
		Reject:    gateway.ThumbsDown,
		Timeout:   n.settings.ConsentTimeout,
	})
	if err != nil {
		n.fail(ctx, err)
		return false
	}
	n.update(func(p *Proposal) { p.Consent = &d })

	switch d.Outcome {
	case approval.OutcomeApproved:
		n.transition(StateVoting)
		return true
	case approval.OutcomeRejected:
		n.finish(ctx, StateRejected, ReasonCaptainDeclined, msgDeclined)
	default:
		n.finish(ctx, StateTimedOut, n.timeoutReason(ctx, ReasonConsentTimeout), msgTimedOut)
	}
	return false
}

// vote runs the public poll and commits on approval.
func (n *negotiation) vote(ctx context.Context, groupA, groupB []string) {
	d, err := n.e.coord.Vote(ctx, approval.VoteRequest{
		Subject: n.p.ID,
		Channel: n.p.Channel,
		Prompt:  msgVotePrompt,
		Approve: gateway.ThumbsUp,
		Reject:  gateway.ThumbsDown,
		Window:  n.settings.VoteWindow,
	})
	if err != nil {
		n.fail(ctx, err)
		return
	}
	n.update(func(p *Proposal) { p.Vote = &d })
	n.log.Info("vote closed", "up", d.Up, "down", d.Down, "outcome", string(d.Outcome))

	switch d.Outcome {
	case approval.OutcomeTimedOut:
		n.finish(ctx, StateTimedOut, n.timeoutReason(ctx, ReasonCanceled), msgTimedOut)
		return
	case approval.OutcomeRejected:
		n.finish(ctx, StateRejected, ReasonVoteFailed, msgVoteRejected)
		return
	}

	if n.settings.RevalidateCaptaincy && !n.stillCaptain(ctx) {
		return
	}

	// Either group may have moved while consent or the vote was pending.
	result, err := n.e.roster.ApplyTrade(roster.TradeRequest{
		GroupA: groupA,
		GroupB: groupB,
		FromA:  n.p.TeamA,
		FromB:  n.p.TeamB,
	})
	if err != nil {
		n.fail(ctx, err)
		return
	}
	n.finish(ctx, StateCompleted, "", msgCompleted)
	for _, over := range result.Exceeded() {
		n.send(ctx, errors.UserMessage(over.Err()))
	}
	for _, team := range result.ClearedCaptains {
		n.send(ctx, team+" no longer has a captain.")
	}
}

// requestGroup prompts the requester and waits for their reply.
func (n *negotiation) requestGroup(ctx context.Context, prompt string) (gateway.Message, bool) {
	msg, err := n.e.gw.RequestText(ctx, gateway.TextRequest{
		Channel: n.p.Channel,
		Author:  n.p.Requester,
		Prompt:  prompt,
		Timeout: n.settings.GroupTimeout,
	})
	switch {
	case err == nil:
		return msg, true
	case errors.Is(err, errors.ErrTimeout), errors.Is(err, errors.ErrCanceled):
		n.finish(ctx, StateTimedOut, n.timeoutReason(ctx, ReasonGroupTimeout), msgTimedOut)
	default:
		n.fail(ctx, err)
	}
	return gateway.Message{}, false
}

// stillCaptain re-checks that the requester captains group A's team.
func (n *negotiation) stillCaptain(ctx context.Context) bool {
	captain, err := n.e.roster.Captain(n.p.TeamA)
	if err == nil && captain == n.p.Requester {
		return true
	}
	n.log.Warn("requester lost captaincy", "team", n.p.TeamA)
	n.finish(ctx, StateRejected, ReasonNotCaptain, msgNotCaptain)
	return false
}

func (n *negotiation) timeoutReason(ctx context.Context, deadline string) string {
	if ctx.Err() != nil {
		return ReasonCanceled
	}
	return deadline
}

func (n *negotiation) update(fn func(*Proposal)) {
	n.e.mu.Lock()
	fn(n.p)
	n.e.mu.Unlock()
}

func (n *negotiation) transition(to State) {
	var from State
	n.update(func(p *Proposal) {
		from = p.State
		p.State = to
		p.Entered[to] = n.e.now()
	})
	n.log.Info("trade state changed", "from", string(from), "to", string(to))
	n.e.publish(event.NewTradeStateChangedEvent(n.p.ID, string(from), string(to)))
}

// finish moves the proposal to a terminal state and tells the channel.
func (n *negotiation) finish(ctx context.Context, to State, reason, notice string) {
	n.update(func(p *Proposal) { p.Reason = reason })
	n.transition(to)
	if to == StateCompleted {
		n.log.Info("trade completed", "team_a", n.p.TeamA, "team_b", n.p.TeamB)
	} else {
		n.log.Info("trade ended", "state", string(to), "reason", reason)
	}
	n.send(ctx, notice)
}

// fail ends the proposal in StateFailed. The error is surfaced verbatim and
// never retried.
func (n *negotiation) fail(ctx context.Context, err error) {
	n.log.Error("trade failed", "state", string(n.p.State), "error", err)
	werr := errors.NewWorkflowError("trade failed", err).WithWorkflow("trade", n.p.ID).WithState(string(n.p.State))
	n.update(func(p *Proposal) { p.Err = werr })
	n.finish(ctx, StateFailed, ReasonCommitFailed, fmt.Sprintf(msgCommitFailedFm, err))
}

// send posts a notice to the proposal's channel. Shutdown must not stop
// the final notice, so it ignores ctx cancellation.
func (n *negotiation) send(ctx context.Context, text string) {
	if _, err := n.e.gw.Send(context.WithoutCancel(ctx), n.p.Channel, text); err != nil {
		n.log.Warn("failed to post trade notice", "error", err)
	}
}

// names renders player IDs as display names for chat.
func (n *negotiation) names(ctx context.Context, ids []string) string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if m, ok := n.e.gw.ResolveMember(ctx, id); ok {
			out = append(out, m.DisplayName())
			continue
		}
		if p, err := n.e.roster.Player(id); err == nil {
			out = append(out, p.DisplayName())
			continue
		}
		out = append(out, id)
	}
	return strings.Join(out, ", ")
}
