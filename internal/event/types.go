package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "trade.finished", "roster.changed")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type identifiers.
const (
	TypeTeamCreated       = "roster.team_created"
	TypeRosterChanged     = "roster.changed"
	TypeCapExceeded       = "roster.cap_exceeded"
	TypeTradeStateChanged = "trade.state_changed"
	TypeTradeFinished     = "trade.finished"
	TypeSigningFinished   = "signing.finished"
	TypeApprovalRequested = "approval.requested"
	TypeApprovalResolved  = "approval.resolved"
	TypeCommandExecuted   = "command.executed"
)

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Roster Events
// -----------------------------------------------------------------------------

// Roster change actions carried by RosterChangedEvent.
const (
	ActionPlayerAdded   = "player_added"
	ActionPlayerRemoved = "player_removed"
	ActionTraded        = "traded"
	ActionCaptainSet    = "captain_set"
	ActionStarsSet      = "stars_set"
	ActionCapSet        = "cap_set"
)

// TeamCreatedEvent is emitted when a team is created.
type TeamCreatedEvent struct {
	baseEvent
	Team string `json:"team"`
	Cap  int    `json:"cap"`
}

// NewTeamCreatedEvent creates a TeamCreatedEvent.
func NewTeamCreatedEvent(team string, limit int) TeamCreatedEvent {
	return TeamCreatedEvent{
		baseEvent: newBaseEvent(TypeTeamCreated),
		Team:      team,
		Cap:       limit,
	}
}

// RosterChangedEvent is emitted after every committed roster mutation.
// Players lists the player IDs the mutation touched.
type RosterChangedEvent struct {
	baseEvent
	Team    string   `json:"team"`
	Action  string   `json:"action"`
	Players []string `json:"players,omitempty"`
}

// NewRosterChangedEvent creates a RosterChangedEvent.
func NewRosterChangedEvent(team, action string, players ...string) RosterChangedEvent {
	return RosterChangedEvent{
		baseEvent: newBaseEvent(TypeRosterChanged),
		Team:      team,
		Action:    action,
		Players:   players,
	}
}

// CapExceededEvent is emitted when a committed mutation leaves a team's
// star total above its cap.
type CapExceededEvent struct {
	baseEvent
	Team  string `json:"team"`
	Total int    `json:"total"`
	Cap   int    `json:"cap"`
}

// NewCapExceededEvent creates a CapExceededEvent.
func NewCapExceededEvent(team string, total, limit int) CapExceededEvent {
	return CapExceededEvent{
		baseEvent: newBaseEvent(TypeCapExceeded),
		Team:      team,
		Total:     total,
		Cap:       limit,
	}
}

// -----------------------------------------------------------------------------
// Workflow Events
// -----------------------------------------------------------------------------

// TradeStateChangedEvent is emitted on every trade state transition.
type TradeStateChangedEvent struct {
	baseEvent
	ProposalID string `json:"proposal_id"`
	From       string `json:"from"`
	To         string `json:"to"`
}

// NewTradeStateChangedEvent creates a TradeStateChangedEvent.
func NewTradeStateChangedEvent(proposalID, from, to string) TradeStateChangedEvent {
	return TradeStateChangedEvent{
		baseEvent:  newBaseEvent(TypeTradeStateChanged),
		ProposalID: proposalID,
		From:       from,
		To:         to,
	}
}

// TradeFinishedEvent is emitted once per trade proposal when it reaches a
// terminal state.
type TradeFinishedEvent struct {
	baseEvent
	ProposalID string        `json:"proposal_id"`
	Requester  string        `json:"requester"`
	TeamA      string        `json:"team_a,omitempty"`
	TeamB      string        `json:"team_b,omitempty"`
	GroupA     []string      `json:"group_a,omitempty"`
	GroupB     []string      `json:"group_b,omitempty"`
	State      string        `json:"state"`
	Reason     string        `json:"reason,omitempty"`
	VotesUp    int           `json:"votes_up"`
	VotesDown  int           `json:"votes_down"`
	Duration   time.Duration `json:"duration_ns"`
}

// NewTradeFinishedEvent creates a TradeFinishedEvent. Callers fill in the
// remaining fields directly.
func NewTradeFinishedEvent(proposalID, requester, state string) TradeFinishedEvent {
	return TradeFinishedEvent{
		baseEvent:  newBaseEvent(TypeTradeFinished),
		ProposalID: proposalID,
		Requester:  requester,
		State:      state,
	}
}

// SigningFinishedEvent is emitted when a signing reaches a terminal state.
type SigningFinishedEvent struct {
	baseEvent
	ProposalID string        `json:"proposal_id"`
	Captain    string        `json:"captain"`
	Player     string        `json:"player"`
	Team       string        `json:"team"`
	State      string        `json:"state"`
	Reason     string        `json:"reason,omitempty"`
	Duration   time.Duration `json:"duration_ns"`
}

// NewSigningFinishedEvent creates a SigningFinishedEvent.
func NewSigningFinishedEvent(proposalID, captain, player, team, state string) SigningFinishedEvent {
	return SigningFinishedEvent{
		baseEvent:  newBaseEvent(TypeSigningFinished),
		ProposalID: proposalID,
		Captain:    captain,
		Player:     player,
		Team:       team,
		State:      state,
	}
}

// -----------------------------------------------------------------------------
// Approval Events
// -----------------------------------------------------------------------------

// ApprovalRequestedEvent is emitted when the coordinator starts waiting on
// a consent or a vote.
type ApprovalRequestedEvent struct {
	baseEvent
	ApprovalID string `json:"approval_id"`
	Mode       string `json:"mode"`
	Target     string `json:"target"`
}

// NewApprovalRequestedEvent creates an ApprovalRequestedEvent.
func NewApprovalRequestedEvent(approvalID, mode, target string) ApprovalRequestedEvent {
	return ApprovalRequestedEvent{
		baseEvent:  newBaseEvent(TypeApprovalRequested),
		ApprovalID: approvalID,
		Mode:       mode,
		Target:     target,
	}
}

// ApprovalResolvedEvent is emitted when a consent or vote produces an outcome.
type ApprovalResolvedEvent struct {
	baseEvent
	ApprovalID string        `json:"approval_id"`
	Mode       string        `json:"mode"`
	Outcome    string        `json:"outcome"`
	Waited     time.Duration `json:"waited_ns"`
}

// NewApprovalResolvedEvent creates an ApprovalResolvedEvent.
func NewApprovalResolvedEvent(approvalID, mode, outcome string, waited time.Duration) ApprovalResolvedEvent {
	return ApprovalResolvedEvent{
		baseEvent:  newBaseEvent(TypeApprovalResolved),
		ApprovalID: approvalID,
		Mode:       mode,
		Outcome:    outcome,
		Waited:     waited,
	}
}

// -----------------------------------------------------------------------------
// Command Events
// -----------------------------------------------------------------------------

// CommandExecutedEvent is emitted when a chat command finishes. ErrorKind is
// empty on success.
type CommandExecutedEvent struct {
	baseEvent
	Command   string `json:"command"`
	UserID    string `json:"user_id"`
	ErrorKind string `json:"error_kind,omitempty"`
}

// NewCommandExecutedEvent creates a CommandExecutedEvent.
func NewCommandExecutedEvent(command, userID, errorKind string) CommandExecutedEvent {
	return CommandExecutedEvent{
		baseEvent: newBaseEvent(TypeCommandExecuted),
		Command:   command,
		UserID:    userID,
		ErrorKind: errorKind,
	}
}
