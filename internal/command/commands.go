package command

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lkmninja/aaflbot/internal/config"
	"github.com/lkmninja/aaflbot/internal/errors"
	"github.com/lkmninja/aaflbot/internal/gateway"
	"github.com/lkmninja/aaflbot/internal/logging"
	"github.com/lkmninja/aaflbot/internal/roster"
	"github.com/lkmninja/aaflbot/internal/signing"
	"github.com/lkmninja/aaflbot/internal/trade"
)

// invocation is one command message being executed.
type invocation struct {
	r      *Router
	ctx    context.Context
	cfg    *config.Config
	msg    gateway.Message
	member gateway.Member
	log    *logging.Logger
}

// newCmd builds a leaf command. Flag parsing is off so arguments such as
// "-1" reach the handler.
func (inv *invocation) newCmd(use, short, perm string, args cobra.PositionalArgs, run func(cmd *cobra.Command, args []string) error) *cobra.Command {
	return &cobra.Command{
		Use:                use,
		Short:              short,
		Args:               args,
		DisableFlagParsing: true,
		Annotations:        map[string]string{annotationPermission: perm},
		RunE:               run,
	}
}

// exactArgs rejects the wrong number of arguments with a usage message.
func (inv *invocation) exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return errors.NewValidationError("usage: " + inv.cfg.League.CommandPrefix + cmd.Use)
		}
		return nil
	}
}

func (inv *invocation) authorize(cmd *cobra.Command) error {
	admin := inv.r.isAdmin(inv.cfg, inv.member)
	switch cmd.Annotations[annotationPermission] {
	case permAdmin:
		if !admin {
			return errors.NewAuthorizationError(inv.member.ID, "an administrator role")
		}
	case permSigner:
		if !admin && !inv.member.HasRole(inv.cfg.League.CaptainRole) {
			return errors.NewAuthorizationError(inv.member.ID, "the "+inv.cfg.League.CaptainRole+" role")
		}
	case permCaptain:
		if !inv.r.store.IsCaptain(inv.member.ID) {
			return errors.NewAuthorizationError(inv.member.ID, "team captaincy").WithCause(errors.ErrNotCaptain)
		}
	}
	return nil
}

// memberArg resolves a mention, user ID or display name to a member.
func (inv *invocation) memberArg(arg string) (gateway.Member, error) {
	resolve := func(token string) (string, bool) {
		if m, ok := inv.r.gw.ResolveMember(inv.ctx, token); ok {
			return m.ID, true
		}
		for _, m := range inv.r.gw.Members(inv.ctx) {
			if strings.EqualFold(m.Name, token) {
				return m.ID, true
			}
		}
		return "", false
	}

	var id string
	if ids := gateway.ParseMentions(arg, resolve); len(ids) > 0 {
		id = ids[0]
	} else if resolved, ok := resolve(arg); ok {
		id = resolved
	}
	if m, ok := inv.r.gw.ResolveMember(inv.ctx, id); ok && id != "" {
		return m, nil
	}
	return gateway.Member{}, errors.NewNotFoundError("member", arg)
}

func intArg(name, arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return 0, errors.NewValidationError(name + " must be a whole number").WithField(name).WithValue(arg)
	}
	return n, nil
}

// grantTeamRole keeps chat roles in step with roster changes. Failures are
// logged; the periodic role sync repairs them.
func (inv *invocation) grantTeamRole(userID, team string) {
	if err := inv.r.gw.GrantRole(inv.ctx, userID, team); err != nil {
		inv.log.Warn("failed to grant team role", "user", userID, "team", team, "error", err)
	}
}

func (inv *invocation) revokeTeamRole(userID, team string) {
	if err := inv.r.gw.RevokeRole(inv.ctx, userID, team); err != nil {
		inv.log.Warn("failed to revoke team role", "user", userID, "team", team, "error", err)
	}
}

// -----------------------------------------------------------------------------
// Administrative commands
// -----------------------------------------------------------------------------

func (inv *invocation) createTeamCmd() *cobra.Command {
	return inv.newCmd("createteam <team>", "Create a team and its role", permAdmin, inv.exactArgs(1),
		func(cmd *cobra.Command, args []string) error {
			team := args[0]
			if err := inv.r.store.CreateTeam(team); err != nil {
				return err
			}
			inv.grantTeamRole(inv.member.ID, team)
			fmt.Fprintf(cmd.OutOrStdout(), "Team %s created!\n", team)
			return nil
		})
}

func (inv *invocation) setCaptainCmd() *cobra.Command {
	return inv.newCmd("setcaptain <team> <@member>", "Set a team captain", permAdmin, inv.exactArgs(2),
		func(cmd *cobra.Command, args []string) error {
			team := args[0]
			m, err := inv.memberArg(args[1])
			if err != nil {
				return err
			}
			if err := inv.r.store.SetCaptain(team, m.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now the captain of %s.\n", m.DisplayName(), team)
			return nil
		})
}

func (inv *invocation) addPlayerCmd() *cobra.Command {
	return inv.newCmd("addplayer <@member> <team>", "Add a player to a team", permAdmin, inv.exactArgs(2),
		func(cmd *cobra.Command, args []string) error {
			m, err := inv.memberArg(args[0])
			if err != nil {
				return err
			}
			team := args[1]
			inv.r.store.RegisterPlayer(m.ID, m.DisplayName())
			status, err := inv.r.store.AddPlayer(m.ID, team)
			if err != nil {
				return err
			}
			inv.grantTeamRole(m.ID, team)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s added to %s\n", m.DisplayName(), team)
			writeCapWarning(out, status)
			return nil
		})
}

func (inv *invocation) removePlayerCmd() *cobra.Command {
	return inv.newCmd("removeplayer <@member> <team>", "Remove a player from a team", permAdmin, inv.exactArgs(2),
		func(cmd *cobra.Command, args []string) error {
			m, err := inv.memberArg(args[0])
			if err != nil {
				return err
			}
			team := args[1]
			if err := inv.r.store.RemovePlayer(m.ID, team); err != nil {
				return err
			}
			inv.revokeTeamRole(m.ID, team)
			fmt.Fprintf(cmd.OutOrStdout(), "%s removed from %s\n", m.DisplayName(), team)
			return nil
		})
}

func (inv *invocation) editStarsCmd() *cobra.Command {
	return inv.newCmd("editstars <@member> <stars>", "Set a player's star rating", permAdmin, inv.exactArgs(2),
		func(cmd *cobra.Command, args []string) error {
			m, err := inv.memberArg(args[0])
			if err != nil {
				return err
			}
			stars, err := intArg("stars", args[1])
			if err != nil {
				return err
			}
			status, err := inv.r.store.SetStars(m.ID, stars)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Stars for %s updated to %d.\n", m.DisplayName(), stars)
			writeCapWarning(out, status)
			return nil
		})
}

func (inv *invocation) rosterCapCmd() *cobra.Command {
	return inv.newCmd("rostercap <team> <cap>", "Set the maximum star cap for a team", permAdmin, inv.exactArgs(2),
		func(cmd *cobra.Command, args []string) error {
			team := args[0]
			limit, err := intArg("cap", args[1])
			if err != nil {
				return err
			}
			status, err := inv.r.store.SetRosterCap(team, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Roster cap for %s set to %d stars.\n", team, limit)
			writeCapWarning(out, status)
			return nil
		})
}

func (inv *invocation) updatePlayersCmd() *cobra.Command {
	return inv.newCmd("updateplayers", "Register every server member as a player", permAdmin, inv.exactArgs(0),
		func(cmd *cobra.Command, _ []string) error {
			added := 0
			for _, m := range inv.r.gw.Members(inv.ctx) {
				if m.Bot {
					continue
				}
				if inv.r.store.RegisterPlayer(m.ID, m.DisplayName()) {
					added++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Players updated with all members from the server (%d new).\n", added)
			return nil
		})
}

// -----------------------------------------------------------------------------
// Workflows
// -----------------------------------------------------------------------------

func (inv *invocation) signCmd() *cobra.Command {
	return inv.newCmd("sign <@member>", "Sign a player to your team", permSigner, inv.exactArgs(1),
		func(_ *cobra.Command, args []string) error {
			m, err := inv.memberArg(args[0])
			if err != nil {
				return err
			}
			s, err := inv.r.signings.Sign(inv.ctx, signing.Request{
				CaptainID: inv.member.ID,
				PlayerID:  m.ID,
				Channel:   inv.msg.Channel,
			})
			if err != nil && s.ID != "" {
				return &reportedError{err: err}
			}
			return err
		})
}

func (inv *invocation) tradeCmd() *cobra.Command {
	return inv.newCmd("trade", "Propose a trade with another team", permCaptain, inv.exactArgs(0),
		func(_ *cobra.Command, _ []string) error {
			p, err := inv.r.trades.Negotiate(inv.ctx, trade.Request{
				RequesterID: inv.member.ID,
				Channel:     inv.msg.Channel,
			})
			if err != nil && p.ID != "" {
				return &reportedError{err: err}
			}
			return err
		})
}

// -----------------------------------------------------------------------------
// Read-only commands
// -----------------------------------------------------------------------------

func (inv *invocation) teamListCmd() *cobra.Command {
	return inv.newCmd("teamlist", "List teams with their stars against the roster cap", permOpen, inv.exactArgs(0),
		func(cmd *cobra.Command, _ []string) error {
			writeTeamList(cmd.OutOrStdout(), inv.r.store.Teams())
			return nil
		})
}

func (inv *invocation) rosterCmd() *cobra.Command {
	return inv.newCmd("roster <team>", "Show a team's roster", permOpen, inv.exactArgs(1),
		func(cmd *cobra.Command, args []string) error {
			team, err := inv.r.store.Team(args[0])
			if err != nil {
				return err
			}
			writeRoster(cmd.OutOrStdout(), team, inv.displayName)
			return nil
		})
}

func (inv *invocation) playerCmd() *cobra.Command {
	return inv.newCmd("player <@member>", "Show a player's team and stars", permOpen, inv.exactArgs(1),
		func(cmd *cobra.Command, args []string) error {
			m, err := inv.memberArg(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			p, err := inv.r.store.Player(m.ID)
			if err != nil {
				fmt.Fprintf(out, "Player %s not found.\n", m.DisplayName())
				return nil
			}
			writePlayer(out, m.DisplayName(), p)
			return nil
		})
}

func (inv *invocation) pendingCmd() *cobra.Command {
	return inv.newCmd("pending", "List trades, signings and approvals in progress", permOpen, inv.exactArgs(0),
		func(cmd *cobra.Command, _ []string) error {
			writePending(cmd.OutOrStdout(), inv.r.trades.Active(), inv.r.signings.Active(), inv.r.coord.Pending(), inv.r.now())
			return nil
		})
}

func (inv *invocation) helpCmd() *cobra.Command {
	return &cobra.Command{
		Use:                "help",
		Short:              "List commands",
		DisableFlagParsing: true,
		Annotations:        map[string]string{annotationPermission: permOpen},
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Commands:")
			for _, c := range cmd.Root().Commands() {
				if c.Name() == "help" {
					continue
				}
				fmt.Fprintf(out, "%s%s - %s\n", inv.cfg.League.CommandPrefix, c.Use, c.Short)
			}
			return nil
		},
	}
}

func (inv *invocation) displayName(id string) string {
	if m, ok := inv.r.gw.ResolveMember(inv.ctx, id); ok {
		return m.DisplayName()
	}
	if p, err := inv.r.store.Player(id); err == nil {
		return p.DisplayName()
	}
	return id
}

// writeCapWarning writes the cap warning when status is over its cap.
func writeCapWarning(w io.Writer, status roster.CapStatus) {
	if msg := errors.UserMessage(status.Err()); msg != "" {
		fmt.Fprintln(w, msg)
	}
}
