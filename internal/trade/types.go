package trade

import (
	"maps"
	"slices"
	"time"

	"github.com/lkmninja/aaflbot/internal/approval"
)

// State is a trade proposal's lifecycle state.
type State string

const (
	// StateCollectingGroupA waits for the requester to mention their players.
	StateCollectingGroupA State = "collecting_group_a"

	// StateCollectingGroupB waits for the requester to mention the players wanted in return.
	StateCollectingGroupB State = "collecting_group_b"

	// StateAwaitingCaptainConsent waits for the other team's captain to react.
	StateAwaitingCaptainConsent State = "awaiting_captain_consent"

	// StateVoting holds the public poll open.
	StateVoting State = "voting"

	StateCompleted State = "completed"
	StateRejected  State = "rejected"
	StateTimedOut  State = "timed_out"

	// StateFailed means the approved trade could not be applied.
	StateFailed State = "failed"
)

// IsTerminal reports whether no further transition can happen.
func (s State) IsTerminal() bool {
	switch s {
	case StateCompleted, StateRejected, StateTimedOut, StateFailed:
		return true
	}
	return false
}

// Reasons recorded on terminal proposals.
const (
	ReasonNotCaptain      = "not_captain"
	ReasonEmptyGroup      = "empty_group"
	ReasonInvalidGroup    = "invalid_group"
	ReasonNoGroupTeam     = "no_group_team"
	ReasonSameTeam        = "same_team"
	ReasonNoCaptain       = "no_captain"
	ReasonCaptainDeclined = "captain_declined"
	ReasonVoteFailed      = "vote_failed"
	ReasonGroupTimeout    = "group_timeout"
	ReasonConsentTimeout  = "consent_timeout"
	ReasonCanceled        = "canceled"
	ReasonCommitFailed    = "commit_failed"
)

// Proposal is one trade request from start to terminal state.
type Proposal struct {
	ID        string
	Requester string
	Channel   string
	GroupA    []string
	GroupB    []string
	TeamA     string
	TeamB     string
	State     State
	Reason    string
	// Entered records when the proposal entered each state.
	Entered map[State]time.Time
	Consent *approval.Decision
	Vote    *approval.Decision
	// Err is set for failed proposals.
	Err error
}

// Started returns when the proposal was created.
func (p *Proposal) Started() time.Time {
	return p.Entered[StateCollectingGroupA]
}

// Finished returns when the proposal reached its terminal state, or the
// zero time while it is still running.
func (p *Proposal) Finished() time.Time {
	if !p.State.IsTerminal() {
		return time.Time{}
	}
	return p.Entered[p.State]
}

// clone returns a deep copy safe to hand to other goroutines.
func (p *Proposal) clone() Proposal {
	c := *p
	c.GroupA = slices.Clone(p.GroupA)
	c.GroupB = slices.Clone(p.GroupB)
	c.Entered = maps.Clone(p.Entered)
	if p.Consent != nil {
		d := *p.Consent
		c.Consent = &d
	}
	if p.Vote != nil {
		d := *p.Vote
		c.Vote = &d
	}
	return c
}

// Settings are the timeouts and policy for one negotiation.
type Settings struct {
	GroupTimeout   time.Duration
	ConsentTimeout time.Duration
	VoteWindow     time.Duration
	// RevalidateCaptaincy re-checks the requester's captaincy after group B
	// is collected and again right before the trade is applied.
	RevalidateCaptaincy bool
}

// DefaultSettings returns the league's standard timeouts.
func DefaultSettings() Settings {
	return Settings{
		GroupTimeout:   60 * time.Second,
		ConsentTimeout: 24 * time.Hour,
		VoteWindow:     20 * time.Second,
	}
}

// Request starts a negotiation.
type Request struct {
	RequesterID string
	// Channel is where prompts and outcome notices are posted.
	Channel string
}
