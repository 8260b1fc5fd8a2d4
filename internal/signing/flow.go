package signing

import (
	"context"
	"fmt"
	"slices"
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

// DefaultConsentTimeout is how long a player has to answer an offer.
const DefaultConsentTimeout = 24 * time.Hour

// Roster is the part of the roster store the signing flow needs.
type Roster interface {
	CaptainOf(userID string) (string, bool)
	Player(id string) (roster.Player, error)
	RegisterPlayer(id, name string) bool
	AddPlayer(playerID, team string) (roster.CapStatus, error)
}

// Flow runs signings.
type Flow struct {
	roster  Roster
	gw      gateway.Gateway
	coord   *approval.Coordinator
	bus     *event.Bus
	logger  *logging.Logger
	timeout func() time.Duration
	now     func() time.Time

	mu     sync.Mutex
	active map[string]*Signing
}

// Option configures a Flow.
type Option func(*Flow)

// WithBus publishes signing events to bus.
func WithBus(bus *event.Bus) Option {
	return func(f *Flow) { f.bus = bus }
}

// WithLogger sets the flow's logger.
func WithLogger(logger *logging.Logger) Option {
	return func(f *Flow) { f.logger = logger }
}

// WithConsentTimeout supplies the consent timeout read at the start of
// each signing.
func WithConsentTimeout(fn func() time.Duration) Option {
	return func(f *Flow) { f.timeout = fn }
}

// NewFlow creates a Flow.
func NewFlow(r Roster, gw gateway.Gateway, coord *approval.Coordinator, opts ...Option) *Flow {
	f := &Flow{
		roster:  r,
		gw:      gw,
		coord:   coord,
		logger:  logging.NopLogger(),
		timeout: func() time.Duration { return DefaultConsentTimeout },
		now:     time.Now,
		active:  make(map[string]*Signing),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Active returns snapshots of the signings awaiting a player's answer.
func (f *Flow) Active() []Signing {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Signing, 0, len(f.active))
	for _, s := range f.active {
		out = append(out, s.clone())
	}
	slices.SortFunc(out, func(a, b Signing) int { return a.Started().Compare(b.Started()) })
	return out
}

// TeamFor returns the team a captain signs players to: the team they
// captain, or failing that the team they play for.
func (f *Flow) TeamFor(captainID string) (string, error) {
	if team, ok := f.roster.CaptainOf(captainID); ok {
		return team, nil
	}
	if p, err := f.roster.Player(captainID); err == nil && p.Team != "" {
		return p.Team, nil
	}
	return "", errors.NewStateError("you don't belong to a team; create or join a team first").
		WithCause(errors.ErrPlayerNotInTeam)
}

// Sign offers the player a place on the captain's team and waits for the
// answer. Offers that cannot be made return an error and no signing; once
// the offer is sent the returned error is non-nil only for a failed commit.
func (f *Flow) Sign(ctx context.Context, req Request) (Signing, error) {
	team, err := f.TeamFor(req.CaptainID)
	if err != nil {
		return Signing{}, err
	}
	player, ok := f.gw.ResolveMember(ctx, req.PlayerID)
	if !ok {
		return Signing{}, errors.NewNotFoundError("member", req.PlayerID)
	}
	if p, err := f.roster.Player(req.PlayerID); err == nil && p.Team != "" {
		if p.Team == team {
			return Signing{}, errors.NewAlreadyExistsError("player on "+team, player.DisplayName()).
				WithCause(errors.ErrPlayerOnTeam)
		}
		return Signing{}, errors.NewStateError(player.DisplayName() + " already plays for " + p.Team).
			WithCause(errors.ErrPlayerOnTeam)
	}
	captainName := req.CaptainID
	if c, ok := f.gw.ResolveMember(ctx, req.CaptainID); ok {
		captainName = c.DisplayName()
	}

	s := &Signing{
		ID:      uuid.NewString(),
		Captain: req.CaptainID,
		Player:  req.PlayerID,
		Team:    team,
		Channel: req.Channel,
		State:   StateIdle,
		Entered: map[State]time.Time{StateIdle: f.now()},
	}
	log := f.logger.WithWorkflow("signing", s.ID).WithUser(req.CaptainID).WithTeam(team)

	f.mu.Lock()
	f.active[s.ID] = s
	f.mu.Unlock()

	f.transition(s, StateAwaitingPlayerConsent)
	log.Info("signing offered", "player", req.PlayerID)

	d, err := f.coord.Consent(ctx, approval.ConsentRequest{
		Subject:   s.ID,
		Recipient: req.PlayerID,
		Prompt: fmt.Sprintf("%s is trying to sign you to their team (%s). Do you accept? (yes/no)",
			captainName, team),
		Approve: gateway.Accept,
		Reject:  gateway.Decline,
		Timeout: f.timeout(),
	})

	switch {
	case err != nil:
		f.fail(ctx, s, log, err)
	case d.Outcome == approval.OutcomeApproved:
		f.update(s, func(s *Signing) { s.Consent = &d })
		f.commit(ctx, s, log, player)
	case d.Outcome == approval.OutcomeRejected:
		f.update(s, func(s *Signing) { s.Consent = &d; s.Reason = ReasonPlayerDeclined })
		f.transition(s, StateDeclined)
		f.notify(ctx, s, log, player.DisplayName()+" declined the signing.")
	default:
		reason := ReasonConsentTimeout
		if ctx.Err() != nil {
			reason = ReasonCanceled
		}
		f.update(s, func(s *Signing) { s.Consent = &d; s.Reason = reason })
		f.transition(s, StateTimedOut)
		f.notify(ctx, s, log, player.DisplayName()+" did not answer the signing offer in time.")
	}

	f.mu.Lock()
	delete(f.active, s.ID)
	final := s.clone()
	f.mu.Unlock()

	log.Info("signing finished", "state", string(final.State), "reason", final.Reason)
	fin := event.NewSigningFinishedEvent(final.ID, final.Captain, final.Player, final.Team, string(final.State))
	fin.Reason = final.Reason
	fin.Duration = final.Finished().Sub(final.Started())
	f.publish(fin)

	return final, final.Err
}

// commit adds the player to the roster and grants the team role.
func (f *Flow) commit(ctx context.Context, s *Signing, log *logging.Logger, player gateway.Member) {
	f.roster.RegisterPlayer(player.ID, player.DisplayName())
	status, err := f.roster.AddPlayer(player.ID, s.Team)
	if err != nil {
		f.fail(ctx, s, log, err)
		return
	}

	granted := true
	if err := f.gw.GrantRole(ctx, player.ID, s.Team); err != nil {
		granted = false
		log.Warn("failed to grant team role", "player", player.ID, "error", err)
	}
	f.update(s, func(s *Signing) { s.Cap = status; s.RoleGranted = granted })
	f.transition(s, StateSigned)

	f.notify(ctx, s, log, fmt.Sprintf("%s has been signed to %s!", player.DisplayName(), s.Team))
	if err := status.Err(); err != nil {
		f.notify(ctx, s, log, errors.UserMessage(err))
	}
}

func (f *Flow) fail(ctx context.Context, s *Signing, log *logging.Logger, err error) {
	log.Error("signing failed", "state", string(s.State), "error", err)
	werr := errors.NewWorkflowError("signing failed", err).WithWorkflow("signing", s.ID).WithState(string(s.State))
	f.update(s, func(s *Signing) { s.Err = werr; s.Reason = ReasonCommitFailed })
	f.transition(s, StateFailed)
	f.notify(ctx, s, log, "An error occurred during the signing: "+err.Error())
}

func (f *Flow) update(s *Signing, fn func(*Signing)) {
	f.mu.Lock()
	fn(s)
	f.mu.Unlock()
}

func (f *Flow) transition(s *Signing, to State) {
	f.update(s, func(s *Signing) {
		s.State = to
		s.Entered[to] = f.now()
	})
}

func (f *Flow) notify(ctx context.Context, s *Signing, log *logging.Logger, text string) {
	if s.Channel == "" {
		return
	}
	if _, err := f.gw.Send(context.WithoutCancel(ctx), s.Channel, text); err != nil {
		log.Warn("failed to post signing notice", "error", err)
	}
}

func (f *Flow) publish(e event.Event) {
	if f.bus != nil {
		f.bus.Publish(e)
	}
}
