package roster

import (
	"slices"
	"strings"
	"sync"

	"github.com/lkmninja/aaflbot/internal/errors"
	"github.com/lkmninja/aaflbot/internal/event"
	"github.com/lkmninja/aaflbot/internal/logging"
)

type team struct {
	name    string
	members []string
	captain string
	cap     int
}

// Store is the in-memory roster. It is safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	teams      map[string]*team
	order      []string
	players    map[string]*Player
	defaultCap int

	bus    *event.Bus
	logger *logging.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithBus publishes roster events to bus.
func WithBus(bus *event.Bus) Option {
	return func(s *Store) { s.bus = bus }
}

// WithLogger sets the store's logger.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Store) { s.logger = logger.WithComponent("roster") }
}

// NewStore creates an empty Store whose new teams get defaultCap.
func NewStore(defaultCap int, opts ...Option) *Store {
	s := &Store{
		teams:      make(map[string]*team),
		players:    make(map[string]*Player),
		defaultCap: defaultCap,
		logger:     logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetDefaultCap changes the cap given to teams created from now on.
func (s *Store) SetDefaultCap(limit int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaultCap = limit
}

func (s *Store) publish(events ...event.Event) {
	if s.bus == nil {
		return
	}
	for _, e := range events {
		s.bus.Publish(e)
	}
}

// capEvents returns the events to publish for statuses over their cap.
func capEvents(statuses ...CapStatus) []event.Event {
	var out []event.Event
	for _, c := range statuses {
		if c.Exceeded() {
			out = append(out, event.NewCapExceededEvent(c.Team, c.Total, c.Cap))
		}
	}
	return out
}

// -----------------------------------------------------------------------------
// Lookups (caller holds mu)
// -----------------------------------------------------------------------------

func (s *Store) teamLocked(name string) (*team, error) {
	t, ok := s.teams[name]
	if !ok {
		return nil, errors.NewNotFoundError("team", name).WithCause(errors.ErrTeamNotFound)
	}
	return t, nil
}

func (s *Store) statusLocked(t *team) CapStatus {
	total := 0
	for _, id := range t.members {
		if p, ok := s.players[id]; ok {
			total += p.Stars
		}
	}
	return CapStatus{Team: t.name, Total: total, Cap: t.cap}
}

func (s *Store) ensurePlayerLocked(id string) *Player {
	p, ok := s.players[id]
	if !ok {
		p = &Player{ID: id}
		s.players[id] = p
	}
	return p
}

func removeMember(members []string, id string) []string {
	return slices.DeleteFunc(members, func(m string) bool { return m == id })
}

// -----------------------------------------------------------------------------
// Mutations
// -----------------------------------------------------------------------------

// CreateTeam creates an empty team with the default cap.
func (s *Store) CreateTeam(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.NewValidationError("team name must not be empty").WithField("team")
	}

	s.mu.Lock()
	if _, exists := s.teams[name]; exists {
		s.mu.Unlock()
		return errors.NewAlreadyExistsError("team", name).WithCause(errors.ErrTeamExists)
	}
	t := &team{name: name, cap: s.defaultCap}
	s.teams[name] = t
	s.order = append(s.order, name)
	s.mu.Unlock()

	s.logger.Info("team created", "team", name, "cap", t.cap)
	s.publish(event.NewTeamCreatedEvent(name, t.cap))
	return nil
}

// RegisterPlayer records a player and their display name. An existing
// player keeps their team and stars; only a non-empty name is updated.
// It reports whether the player was newly created.
func (s *Store) RegisterPlayer(id, name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, existed := s.players[id]
	if !existed {
		p = &Player{ID: id}
		s.players[id] = p
	}
	if name != "" {
		p.Name = name
	}
	return !existed
}

// AddPlayer puts a player on a team, registering the player with zero stars
// if unknown. A player already on another team is rejected; stars are kept,
// so the returned CapStatus may report an exceeded cap.
func (s *Store) AddPlayer(playerID, teamName string) (CapStatus, error) {
	s.mu.Lock()
	t, err := s.teamLocked(teamName)
	if err != nil {
		s.mu.Unlock()
		return CapStatus{}, err
	}
	p := s.ensurePlayerLocked(playerID)
	switch {
	case p.Team == teamName:
		s.mu.Unlock()
		return CapStatus{}, errors.NewAlreadyExistsError("player in team "+teamName, playerID).
			WithCause(errors.ErrPlayerOnTeam)
	case p.Team != "":
		current := p.Team
		s.mu.Unlock()
		return CapStatus{}, errors.NewStateError("player "+playerID+" already plays for "+current).
			WithCause(errors.ErrPlayerOnTeam)
	}
	p.Team = teamName
	t.members = append(t.members, playerID)
	status := s.statusLocked(t)
	s.mu.Unlock()

	s.logger.Info("player added", "team", teamName, "player_id", playerID, "total", status.Total, "cap", status.Cap)
	s.publish(event.NewRosterChangedEvent(teamName, event.ActionPlayerAdded, playerID))
	s.publish(capEvents(status)...)
	return status, nil
}

// RemovePlayer takes a player off a team and forgets the player record,
// including their stars. Removing the captain clears the captaincy.
func (s *Store) RemovePlayer(playerID, teamName string) error {
	s.mu.Lock()
	t, err := s.teamLocked(teamName)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if !slices.Contains(t.members, playerID) {
		s.mu.Unlock()
		return errors.NewNotFoundError("player in team "+teamName, playerID).WithCause(errors.ErrPlayerNotInTeam)
	}
	t.members = removeMember(t.members, playerID)
	if t.captain == playerID {
		t.captain = ""
	}
	delete(s.players, playerID)
	s.mu.Unlock()

	s.logger.Info("player removed", "team", teamName, "player_id", playerID)
	s.publish(event.NewRosterChangedEvent(teamName, event.ActionPlayerRemoved, playerID))
	return nil
}

// SetCaptain makes a current member the team's captain.
func (s *Store) SetCaptain(teamName, playerID string) error {
	s.mu.Lock()
	t, err := s.teamLocked(teamName)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if !slices.Contains(t.members, playerID) {
		s.mu.Unlock()
		return errors.NewStateError("player "+playerID+" is not a member of "+teamName).
			WithCause(errors.ErrNotMember)
	}
	t.captain = playerID
	s.mu.Unlock()

	s.logger.Info("captain set", "team", teamName, "player_id", playerID)
	s.publish(event.NewRosterChangedEvent(teamName, event.ActionCaptainSet, playerID))
	return nil
}

// SetStars sets a registered player's rating and returns the status of their
// team. The new rating is kept even when it pushes the team over its cap.
func (s *Store) SetStars(playerID string, stars int) (CapStatus, error) {
	if stars < 0 {
		return CapStatus{}, errors.NewValidationError("stars must not be negative").
			WithField("stars").WithValue(stars).WithCause(errors.ErrNegativeStars)
	}

	s.mu.Lock()
	p, ok := s.players[playerID]
	if !ok {
		s.mu.Unlock()
		return CapStatus{}, errors.NewNotFoundError("player", playerID).WithCause(errors.ErrPlayerNotFound)
	}
	p.Stars = stars
	var status CapStatus
	if t, ok := s.teams[p.Team]; ok {
		status = s.statusLocked(t)
	}
	s.mu.Unlock()

	s.logger.Info("stars set", "player_id", playerID, "stars", stars, "team", status.Team)
	if status.Team != "" {
		s.publish(event.NewRosterChangedEvent(status.Team, event.ActionStarsSet, playerID))
	}
	s.publish(capEvents(status)...)
	return status, nil
}

// SetRosterCap changes a team's star cap.
func (s *Store) SetRosterCap(teamName string, limit int) (CapStatus, error) {
	if limit < 0 {
		return CapStatus{}, errors.NewValidationError("roster cap must not be negative").
			WithField("cap").WithValue(limit)
	}

	s.mu.Lock()
	t, err := s.teamLocked(teamName)
	if err != nil {
		s.mu.Unlock()
		return CapStatus{}, err
	}
	t.cap = limit
	status := s.statusLocked(t)
	s.mu.Unlock()

	s.logger.Info("roster cap set", "team", teamName, "cap", limit)
	s.publish(event.NewRosterChangedEvent(teamName, event.ActionCapSet))
	s.publish(capEvents(status)...)
	return status, nil
}

// groupTeamLocked returns the single team every player in group plays for.
func (s *Store) groupTeamLocked(group []string) (string, error) {
	if len(group) == 0 {
		return "", errors.NewStateError("trade group is empty").WithCause(errors.ErrInconsistentGroup)
	}
	var name string
	for i, id := range group {
		p, ok := s.players[id]
		if !ok || p.Team == "" {
			return "", errors.NewStateError("player "+id+" is not on a team").WithCause(errors.ErrNoGroupTeam)
		}
		if i == 0 {
			name = p.Team
			continue
		}
		if p.Team != name {
			return "", errors.NewStateError("trade group spans teams "+name+" and "+p.Team).
				WithCause(errors.ErrInconsistentGroup)
		}
	}
	if hasDuplicates(group) {
		return "", errors.NewStateError("trade group lists a player twice").WithCause(errors.ErrInconsistentGroup)
	}
	return name, nil
}

func checkSource(label, got, want string) error {
	if want == "" || got == want {
		return nil
	}
	return errors.NewStateError("group " + label + " moved from " + want + " to " + got).
		WithCause(errors.ErrInconsistentGroup)
}

func hasDuplicates(ids []string) bool {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return true
		}
		seen[id] = struct{}{}
	}
	return false
}

// ApplyTrade moves group A to group B's team and group B to group A's team
// in one critical section. Both groups must be non-empty, drawn from a
// single team each, and from different teams. When FromA or FromB is set,
// the group must still play for that team. Otherwise nothing changes.
func (s *Store) ApplyTrade(req TradeRequest) (TradeResult, error) {
	groupA, groupB := req.GroupA, req.GroupB

	s.mu.Lock()
	teamA, err := s.groupTeamLocked(groupA)
	if err != nil {
		s.mu.Unlock()
		return TradeResult{}, errors.NewRosterError("apply trade: group A", err)
	}
	teamB, err := s.groupTeamLocked(groupB)
	if err != nil {
		s.mu.Unlock()
		return TradeResult{}, errors.NewRosterError("apply trade: group B", err)
	}
	if err := checkSource("A", teamA, req.FromA); err != nil {
		s.mu.Unlock()
		return TradeResult{}, errors.NewRosterError("apply trade: group A", err).WithTeam(req.FromA)
	}
	if err := checkSource("B", teamB, req.FromB); err != nil {
		s.mu.Unlock()
		return TradeResult{}, errors.NewRosterError("apply trade: group B", err).WithTeam(req.FromB)
	}
	if teamA == teamB {
		s.mu.Unlock()
		return TradeResult{}, errors.NewRosterError("apply trade",
			errors.NewStateError("both groups come from "+teamA).WithCause(errors.ErrInconsistentGroup)).
			WithTeam(teamA)
	}

	tA, tB := s.teams[teamA], s.teams[teamB]
	result := TradeResult{TeamA: teamA, TeamB: teamB}

	for _, id := range groupA {
		tA.members = removeMember(tA.members, id)
		if tA.captain == id {
			tA.captain = ""
			result.ClearedCaptains = append(result.ClearedCaptains, teamA)
		}
	}
	for _, id := range groupB {
		tB.members = removeMember(tB.members, id)
		if tB.captain == id {
			tB.captain = ""
			result.ClearedCaptains = append(result.ClearedCaptains, teamB)
		}
	}
	for _, id := range groupA {
		tB.members = append(tB.members, id)
		s.players[id].Team = teamB
	}
	for _, id := range groupB {
		tA.members = append(tA.members, id)
		s.players[id].Team = teamA
	}

	result.Caps = [2]CapStatus{s.statusLocked(tA), s.statusLocked(tB)}
	s.mu.Unlock()

	s.logger.Info("trade applied",
		"team_a", teamA, "team_b", teamB,
		"group_a", groupA, "group_b", groupB,
		"cleared_captains", result.ClearedCaptains)
	s.publish(
		event.NewRosterChangedEvent(teamA, event.ActionTraded, groupB...),
		event.NewRosterChangedEvent(teamB, event.ActionTraded, groupA...),
	)
	s.publish(capEvents(result.Caps[:]...)...)
	return result, nil
}

// -----------------------------------------------------------------------------
// Queries
// -----------------------------------------------------------------------------

// IsCaptain reports whether userID captains any team.
func (s *Store) IsCaptain(userID string) bool {
	_, ok := s.CaptainOf(userID)
	return ok
}

// CaptainOf returns the team userID captains.
func (s *Store) CaptainOf(userID string) (string, bool) {
	if userID == "" {
		return "", false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, name := range s.order {
		if s.teams[name].captain == userID {
			return name, true
		}
	}
	return "", false
}

// Captain returns the captain of a team.
func (s *Store) Captain(teamName string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, err := s.teamLocked(teamName)
	if err != nil {
		return "", err
	}
	if t.captain == "" {
		return "", errors.NewNotFoundError("captain of team", teamName).WithCause(errors.ErrNoCaptain)
	}
	return t.captain, nil
}

// GroupTeam returns the team all players in group belong to, failing when
// the group is empty, spans teams, or includes a teamless player.
func (s *Store) GroupTeam(group []string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.groupTeamLocked(group)
}

// Player returns a registered player.
func (s *Store) Player(id string) (Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[id]
	if !ok {
		return Player{}, errors.NewNotFoundError("player", id).WithCause(errors.ErrPlayerNotFound)
	}
	return *p, nil
}

// Players returns all registered players sorted by ID.
func (s *Store) Players() []Player {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Player, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, *p)
	}
	slices.SortFunc(out, func(a, b Player) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// Team returns a snapshot of one team.
func (s *Store) Team(name string) (Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, err := s.teamLocked(name)
	if err != nil {
		return Team{}, err
	}
	return s.snapshotLocked(t), nil
}

// Teams returns snapshots of all teams in creation order.
func (s *Store) Teams() []Team {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Team, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.snapshotLocked(s.teams[name]))
	}
	return out
}

func (s *Store) snapshotLocked(t *team) Team {
	snap := Team{
		Name:    t.name,
		Captain: t.captain,
		Cap:     t.cap,
		Members: make([]Player, 0, len(t.members)),
	}
	for _, id := range t.members {
		p := s.players[id]
		snap.Members = append(snap.Members, *p)
		snap.Total += p.Stars
	}
	return snap
}
