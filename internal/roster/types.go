package roster

import (
	"github.com/lkmninja/aaflbot/internal/errors"
)

// Player is a snapshot of a registered player.
type Player struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Team  string `json:"team,omitempty"`
	Stars int    `json:"stars"`
}

// DisplayName returns the player's name, falling back to the ID.
func (p Player) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}

// Team is a snapshot of a team and its members, in join order.
type Team struct {
	Name    string   `json:"name"`
	Captain string   `json:"captain,omitempty"`
	Cap     int      `json:"cap"`
	Total   int      `json:"total"`
	Members []Player `json:"members"`
}

// CapStatus reports a team's star total against its cap after a mutation.
// The zero value describes no team.
type CapStatus struct {
	Team  string
	Total int
	Cap   int
}

// Exceeded reports whether the total is above the cap.
func (c CapStatus) Exceeded() bool {
	return c.Team != "" && c.Total > c.Cap
}

// Err returns a CapExceededError when the cap is exceeded, nil otherwise.
func (c CapStatus) Err() error {
	if !c.Exceeded() {
		return nil
	}
	return errors.NewCapExceededError(c.Team, c.Total, c.Cap)
}

// TradeRequest names the groups to swap and, optionally, the teams they
// were collected from.
type TradeRequest struct {
	GroupA []string
	GroupB []string
	// FromA and FromB are the expected source teams. Empty skips the check.
	FromA string
	FromB string
}

// TradeResult describes a committed trade.
type TradeResult struct {
	// TeamA is the source team of group A, which now holds group B.
	TeamA string
	// TeamB is the source team of group B, which now holds group A.
	TeamB string
	// Caps holds the post-trade status of TeamA then TeamB.
	Caps [2]CapStatus
	// ClearedCaptains lists teams whose captain was traded away.
	ClearedCaptains []string
}

// Exceeded returns the cap statuses that are over their cap.
func (r TradeResult) Exceeded() []CapStatus {
	var over []CapStatus
	for _, c := range r.Caps {
		if c.Exceeded() {
			over = append(over, c)
		}
	}
	return over
}
