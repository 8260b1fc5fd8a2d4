package signing

import (
	"maps"
	"time"

	"github.com/lkmninja/aaflbot/internal/approval"
	"github.com/lkmninja/aaflbot/internal/roster"
)

// State is a signing's lifecycle state.
type State string

const (
	StateIdle                  State = "idle"
	StateAwaitingPlayerConsent State = "awaiting_player_consent"
	StateSigned                State = "signed"
	StateDeclined              State = "declined"
	StateTimedOut              State = "timed_out"
	StateFailed                State = "failed"
)

// IsTerminal reports whether no further transition can happen.
func (s State) IsTerminal() bool {
	switch s {
	case StateSigned, StateDeclined, StateTimedOut, StateFailed:
		return true
	}
	return false
}

// Reasons recorded on terminal signings.
const (
	ReasonPlayerDeclined = "player_declined"
	ReasonConsentTimeout = "consent_timeout"
	ReasonCanceled       = "canceled"
	ReasonCommitFailed   = "commit_failed"
)

// Signing is one offer from a captain to a player.
type Signing struct {
	ID      string
	Captain string
	Player  string
	Team    string
	Channel string
	State   State
	Reason  string
	Entered map[State]time.Time
	Consent *approval.Decision
	// Cap is the team's cap status after a successful signing.
	Cap roster.CapStatus
	// RoleGranted is false when the team role could not be granted.
	RoleGranted bool
	Err         error
}

// Started returns when the offer was made.
func (s *Signing) Started() time.Time {
	return s.Entered[StateIdle]
}

// Finished returns when the signing reached its terminal state.
func (s *Signing) Finished() time.Time {
	if !s.State.IsTerminal() {
		return time.Time{}
	}
	return s.Entered[s.State]
}

func (s *Signing) clone() Signing {
	c := *s
	c.Entered = maps.Clone(s.Entered)
	if s.Consent != nil {
		d := *s.Consent
		c.Consent = &d
	}
	return c
}

// Request starts a signing.
type Request struct {
	CaptainID string
	PlayerID  string
	// Channel receives the outcome notice.
	Channel string
}
