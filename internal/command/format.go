package command

import (
	"fmt"
	"io"
	"time"

	"github.com/lkmninja/aaflbot/internal/approval"
	"github.com/lkmninja/aaflbot/internal/roster"
	"github.com/lkmninja/aaflbot/internal/signing"
	"github.com/lkmninja/aaflbot/internal/trade"
)

func writeTeamList(w io.Writer, teams []roster.Team) {
	if len(teams) == 0 {
		fmt.Fprintln(w, "No teams found.")
		return
	}
	fmt.Fprintln(w, "Teams:")
	for _, t := range teams {
		pct := 0.0
		if t.Cap > 0 {
			pct = float64(t.Total) / float64(t.Cap) * 100
		}
		fmt.Fprintf(w, "%s (Total Stars: %d/%d) - %.2f%% of Roster Cap\n", t.Name, t.Total, t.Cap, pct)
	}
}

func writeRoster(w io.Writer, t roster.Team, name func(id string) string) {
	if len(t.Members) == 0 {
		fmt.Fprintf(w, "Team %s has no players.\n", t.Name)
		return
	}
	fmt.Fprintf(w, "Roster for %s:\n", t.Name)
	for _, p := range t.Members {
		marker := ""
		if p.ID == t.Captain {
			marker = " (C)"
		}
		fmt.Fprintf(w, "- %s%s: %d stars\n", name(p.ID), marker, p.Stars)
	}
	fmt.Fprintf(w, "Star Cap: %d/%d\n", t.Total, t.Cap)
}

func writePlayer(w io.Writer, name string, p roster.Player) {
	team := p.Team
	if team == "" {
		team = "Free agent"
	}
	fmt.Fprintf(w, "Player Information: %s\nTeam: %s\nStars: %d\n", name, team, p.Stars)
}

func writePending(w io.Writer, trades []trade.Proposal, signings []signing.Signing, approvals []approval.Pending, now time.Time) {
	if len(trades)+len(signings)+len(approvals) == 0 {
		fmt.Fprintln(w, "No workflows in progress.")
		return
	}
	for _, p := range trades {
		fmt.Fprintf(w, "Trade %s: %s for %s\n", shortID(p.ID), p.State, age(now, p.Started()))
	}
	for _, s := range signings {
		fmt.Fprintf(w, "Signing %s: %s to %s, %s for %s\n", shortID(s.ID), s.Player, s.Team, s.State, age(now, s.Started()))
	}
	for _, a := range approvals {
		fmt.Fprintf(w, "Approval %s: %s on %s, %s left\n", shortID(a.ID), a.Mode, a.Target, remaining(now, a.Deadline))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func age(now, since time.Time) time.Duration {
	return now.Sub(since).Round(time.Second)
}

func remaining(now, deadline time.Time) time.Duration {
	d := deadline.Sub(now).Round(time.Second)
	if d < 0 {
		return 0
	}
	return d
}
