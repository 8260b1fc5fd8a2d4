// Package rolesync keeps members' team roles in step with the roster.
//
// Each pass reads a roster snapshot and, for every registered player who is
// a member, grants the role named after their current team and revokes any
// other team-name role they hold. Roles that are not team names are left
// alone. Exempt members, such as league admins who create teams, keep
// their extra team roles. The roster is never modified.
package rolesync

import (
	"context"
	"time"

	"github.com/lkmninja/aaflbot/internal/gateway"
	"github.com/lkmninja/aaflbot/internal/logging"
	"github.com/lkmninja/aaflbot/internal/roster"
)

// DefaultInterval is used when no interval source is configured.
const DefaultInterval = 60 * time.Second

// Roster is the read side of the roster store.
type Roster interface {
	Teams() []roster.Team
	Players() []roster.Player
}

// Result counts the role changes made by one pass.
type Result struct {
	Granted int
	Revoked int
	Failed  int
}

// Syncer reconciles team roles on a ticker.
type Syncer struct {
	roster   Roster
	gw       gateway.Gateway
	logger   *logging.Logger
	interval func() time.Duration
	exempt   func(gateway.Member) bool
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithExempt skips revocation for members fn reports true for. They are
// still granted their own team's role.
func WithExempt(fn func(gateway.Member) bool) Option {
	return func(s *Syncer) { s.exempt = fn }
}

// New creates a Syncer. interval is read before every wait so configuration
// reloads take effect on the next tick; nil means DefaultInterval.
func New(r Roster, gw gateway.Gateway, interval func() time.Duration, logger *logging.Logger, opts ...Option) *Syncer {
	if interval == nil {
		interval = func() time.Duration { return DefaultInterval }
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	s := &Syncer{
		roster:   r,
		gw:       gw,
		logger:   logger.WithComponent("rolesync"),
		interval: interval,
		exempt:   func(gateway.Member) bool { return false },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run syncs once per interval until ctx is done.
func (s *Syncer) Run(ctx context.Context) {
	for {
		d := s.interval()
		if d <= 0 {
			d = DefaultInterval
		}
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			res := s.Sync(ctx)
			if res.Granted+res.Revoked+res.Failed > 0 {
				s.logger.Info("team roles synced", "granted", res.Granted, "revoked", res.Revoked, "failed", res.Failed)
			}
		}
	}
}

// Sync runs one reconciliation pass.
func (s *Syncer) Sync(ctx context.Context) Result {
	teams := make(map[string]bool)
	for _, t := range s.roster.Teams() {
		teams[t.Name] = true
	}
	players := make(map[string]roster.Player)
	for _, p := range s.roster.Players() {
		players[p.ID] = p
	}

	var res Result
	for _, m := range s.gw.Members(ctx) {
		p, ok := players[m.ID]
		if !ok {
			continue
		}
		exempt := s.exempt(m)
		for _, role := range m.Roles {
			if exempt || !teams[role] || role == p.Team {
				continue
			}
			if err := s.gw.RevokeRole(ctx, m.ID, role); err != nil {
				s.logger.Warn("failed to revoke team role", "user", m.ID, "role", role, "error", err)
				res.Failed++
				continue
			}
			res.Revoked++
		}
		if p.Team == "" || m.HasRole(p.Team) {
			continue
		}
		if err := s.gw.GrantRole(ctx, m.ID, p.Team); err != nil {
			s.logger.Warn("failed to grant team role", "user", m.ID, "role", p.Team, "error", err)
			res.Failed++
			continue
		}
		res.Granted++
	}
	return res
}
