package roster

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lkmninja/aaflbot/internal/errors"
	"github.com/lkmninja/aaflbot/internal/event"
)

// hawksAndOwls builds Hawks={P1,P2} (captain P1) and Owls={P3,P4}
// (captain P3), all players at 2 stars, caps 10.
func hawksAndOwls(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s := NewStore(10, opts...)
	require.NoError(t, s.CreateTeam("Hawks"))
	require.NoError(t, s.CreateTeam("Owls"))
	for _, m := range []struct{ id, team string }{{"P1", "Hawks"}, {"P2", "Hawks"}, {"P3", "Owls"}, {"P4", "Owls"}} {
		_, err := s.AddPlayer(m.id, m.team)
		require.NoError(t, err)
		_, err = s.SetStars(m.id, 2)
		require.NoError(t, err)
	}
	require.NoError(t, s.SetCaptain("Hawks", "P1"))
	require.NoError(t, s.SetCaptain("Owls", "P3"))
	return s
}

func memberIDs(team Team) []string {
	ids := make([]string, 0, len(team.Members))
	for _, m := range team.Members {
		ids = append(ids, m.ID)
	}
	return ids
}

func TestCreateTeam(t *testing.T) {
	s := NewStore(10)

	require.NoError(t, s.CreateTeam("Hawks"))

	err := s.CreateTeam("Hawks")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrAlreadyExists)
	assert.ErrorIs(t, err, errors.ErrTeamExists)

	err = s.CreateTeam("   ")
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	team, err := s.Team("Hawks")
	require.NoError(t, err)
	assert.Equal(t, 10, team.Cap)
	assert.Empty(t, team.Members)
}

func TestTeamsPreserveCreationOrder(t *testing.T) {
	s := NewStore(10)
	for _, name := range []string{"Owls", "Hawks", "Bears"} {
		require.NoError(t, s.CreateTeam(name))
	}

	var names []string
	for _, team := range s.Teams() {
		names = append(names, team.Name)
	}
	assert.Equal(t, []string{"Owls", "Hawks", "Bears"}, names)
}

func TestAddPlayer(t *testing.T) {
	t.Run("unknown team", func(t *testing.T) {
		s := NewStore(10)
		_, err := s.AddPlayer("P1", "Nowhere")
		assert.ErrorIs(t, err, errors.ErrNotFound)
		assert.ErrorIs(t, err, errors.ErrTeamNotFound)
		_, err = s.Player("P1")
		assert.ErrorIs(t, err, errors.ErrPlayerNotFound, "failed add must not register the player")
	})

	t.Run("registers unknown player with zero stars", func(t *testing.T) {
		s := NewStore(10)
		require.NoError(t, s.CreateTeam("Hawks"))

		status, err := s.AddPlayer("P1", "Hawks")
		require.NoError(t, err)
		assert.Equal(t, CapStatus{Team: "Hawks", Total: 0, Cap: 10}, status)

		p, err := s.Player("P1")
		require.NoError(t, err)
		assert.Equal(t, "Hawks", p.Team)
		assert.Equal(t, 0, p.Stars)
	})

	t.Run("same team twice", func(t *testing.T) {
		s := hawksAndOwls(t)
		_, err := s.AddPlayer("P1", "Hawks")
		assert.ErrorIs(t, err, errors.ErrAlreadyExists)
	})

	t.Run("player on another team keeps single-team invariant", func(t *testing.T) {
		s := hawksAndOwls(t)
		_, err := s.AddPlayer("P1", "Owls")
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrInvalidState)
		assert.ErrorIs(t, err, errors.ErrPlayerOnTeam)

		owls, _ := s.Team("Owls")
		assert.NotContains(t, memberIDs(owls), "P1")
		p, _ := s.Player("P1")
		assert.Equal(t, "Hawks", p.Team)
	})

	t.Run("cap exceeded is reported but committed", func(t *testing.T) {
		s := NewStore(10)
		require.NoError(t, s.CreateTeam("Hawks"))
		for id, stars := range map[string]int{"P1": 4, "P2": 4} {
			_, err := s.AddPlayer(id, "Hawks")
			require.NoError(t, err)
			_, err = s.SetStars(id, stars)
			require.NoError(t, err)
		}
		s.RegisterPlayer("P4", "Four")
		_, err := s.SetStars("P4", 3)
		require.NoError(t, err)

		status, err := s.AddPlayer("P4", "Hawks")
		require.NoError(t, err)
		assert.True(t, status.Exceeded())
		assert.Equal(t, 11, status.Total)
		assert.ErrorIs(t, status.Err(), errors.ErrCapExceeded)

		hawks, _ := s.Team("Hawks")
		assert.Contains(t, memberIDs(hawks), "P4")
		assert.Equal(t, 11, hawks.Total)
	})
}

func TestRegisterPlayer(t *testing.T) {
	s := hawksAndOwls(t)

	assert.False(t, s.RegisterPlayer("P1", "Player One"))
	p, _ := s.Player("P1")
	assert.Equal(t, "Hawks", p.Team, "registering must not move a player")
	assert.Equal(t, 2, p.Stars)
	assert.Equal(t, "Player One", p.DisplayName())

	assert.True(t, s.RegisterPlayer("P9", ""))
	p, _ = s.Player("P9")
	assert.Equal(t, "P9", p.DisplayName())
	assert.Empty(t, p.Team)
}

func TestRemovePlayer(t *testing.T) {
	s := hawksAndOwls(t)

	err := s.RemovePlayer("P3", "Hawks")
	assert.ErrorIs(t, err, errors.ErrPlayerNotInTeam)
	assert.ErrorIs(t, err, errors.ErrNotFound)

	err = s.RemovePlayer("P1", "Nowhere")
	assert.ErrorIs(t, err, errors.ErrTeamNotFound)

	require.NoError(t, s.RemovePlayer("P1", "Hawks"))
	hawks, _ := s.Team("Hawks")
	assert.Equal(t, []string{"P2"}, memberIDs(hawks))
	assert.Empty(t, hawks.Captain, "removing the captain clears captaincy")
	assert.False(t, s.IsCaptain("P1"))

	_, err = s.Player("P1")
	assert.ErrorIs(t, err, errors.ErrPlayerNotFound)
}

func TestSetCaptain(t *testing.T) {
	s := hawksAndOwls(t)

	err := s.SetCaptain("Hawks", "P3")
	assert.ErrorIs(t, err, errors.ErrNotMember)
	assert.ErrorIs(t, err, errors.ErrInvalidState)

	require.NoError(t, s.SetCaptain("Hawks", "P2"))
	captain, err := s.Captain("Hawks")
	require.NoError(t, err)
	assert.Equal(t, "P2", captain)
	assert.False(t, s.IsCaptain("P1"))
	assert.True(t, s.IsCaptain("P2"))

	team, ok := s.CaptainOf("P3")
	assert.True(t, ok)
	assert.Equal(t, "Owls", team)

	_, ok = s.CaptainOf("")
	assert.False(t, ok)
}

func TestCaptainMissing(t *testing.T) {
	s := NewStore(10)
	require.NoError(t, s.CreateTeam("Hawks"))

	_, err := s.Captain("Hawks")
	assert.ErrorIs(t, err, errors.ErrNoCaptain)

	_, err = s.Captain("Owls")
	assert.ErrorIs(t, err, errors.ErrTeamNotFound)
}

func TestSetStars(t *testing.T) {
	s := hawksAndOwls(t)

	_, err := s.SetStars("P1", -1)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	_, err = s.SetStars("ghost", 3)
	assert.ErrorIs(t, err, errors.ErrPlayerNotFound)

	status, err := s.SetStars("P1", 9)
	require.NoError(t, err)
	assert.Equal(t, CapStatus{Team: "Hawks", Total: 11, Cap: 10}, status)
	assert.True(t, status.Exceeded())

	p, _ := s.Player("P1")
	assert.Equal(t, 9, p.Stars, "stars persist even when the cap is exceeded")

	s.RegisterPlayer("free", "")
	status, err = s.SetStars("free", 5)
	require.NoError(t, err)
	assert.False(t, status.Exceeded())
	assert.NoError(t, status.Err())
}

func TestSetRosterCap(t *testing.T) {
	s := hawksAndOwls(t)

	_, err := s.SetRosterCap("Hawks", -1)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	status, err := s.SetRosterCap("Hawks", 3)
	require.NoError(t, err)
	assert.True(t, status.Exceeded())

	hawks, _ := s.Team("Hawks")
	assert.Equal(t, 3, hawks.Cap)

	s.SetDefaultCap(15)
	require.NoError(t, s.CreateTeam("Bears"))
	bears, _ := s.Team("Bears")
	assert.Equal(t, 15, bears.Cap)
}

func TestGroupTeam(t *testing.T) {
	s := hawksAndOwls(t)
	s.RegisterPlayer("free", "")

	tests := []struct {
		name    string
		group   []string
		want    string
		wantErr error
	}{
		{"single team", []string{"P1", "P2"}, "Hawks", nil},
		{"empty", nil, "", errors.ErrInconsistentGroup},
		{"spans teams", []string{"P1", "P3"}, "", errors.ErrInconsistentGroup},
		{"teamless player", []string{"free"}, "", errors.ErrNoGroupTeam},
		{"unknown player", []string{"ghost"}, "", errors.ErrNoGroupTeam},
		{"duplicate", []string{"P1", "P1"}, "", errors.ErrInconsistentGroup},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.GroupTeam(tt.group)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, err, errors.ErrInvalidState)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplyTrade(t *testing.T) {
	t.Run("swaps both groups", func(t *testing.T) {
		s := hawksAndOwls(t)

		result, err := s.ApplyTrade(TradeRequest{GroupA: []string{"P1"}, GroupB: []string{"P3"}})
		require.NoError(t, err)
		assert.Equal(t, "Hawks", result.TeamA)
		assert.Equal(t, "Owls", result.TeamB)
		assert.ElementsMatch(t, []string{"Hawks", "Owls"}, result.ClearedCaptains)
		assert.Empty(t, result.Exceeded())

		hawks, _ := s.Team("Hawks")
		owls, _ := s.Team("Owls")
		assert.ElementsMatch(t, []string{"P2", "P3"}, memberIDs(hawks))
		assert.ElementsMatch(t, []string{"P1", "P4"}, memberIDs(owls))
		assert.Empty(t, hawks.Captain)
		assert.Empty(t, owls.Captain)

		p1, _ := s.Player("P1")
		assert.Equal(t, "Owls", p1.Team)
	})

	t.Run("uneven groups", func(t *testing.T) {
		s := hawksAndOwls(t)

		result, err := s.ApplyTrade(TradeRequest{GroupA: []string{"P2"}, GroupB: []string{"P3", "P4"}})
		require.NoError(t, err)
		assert.Equal(t, CapStatus{Team: "Hawks", Total: 6, Cap: 10}, result.Caps[0])
		assert.Equal(t, CapStatus{Team: "Owls", Total: 2, Cap: 10}, result.Caps[1])
	})

	invalid := []struct {
		name string
		req  TradeRequest
	}{
		{"empty A", TradeRequest{GroupB: []string{"P3"}}},
		{"empty B", TradeRequest{GroupA: []string{"P1"}}},
		{"A spans teams", TradeRequest{GroupA: []string{"P1", "P3"}, GroupB: []string{"P4"}}},
		{"same source team", TradeRequest{GroupA: []string{"P1"}, GroupB: []string{"P2"}}},
		{"overlapping groups", TradeRequest{GroupA: []string{"P1"}, GroupB: []string{"P1"}}},
		{"A left its source team", TradeRequest{GroupA: []string{"P1"}, GroupB: []string{"P3"}, FromA: "Eagles", FromB: "Owls"}},
		{"B left its source team", TradeRequest{GroupA: []string{"P1"}, GroupB: []string{"P3"}, FromA: "Hawks", FromB: "Eagles"}},
	}

	for _, tt := range invalid {
		t.Run("atomic on "+tt.name, func(t *testing.T) {
			s := hawksAndOwls(t)
			before := s.Teams()

			_, err := s.ApplyTrade(tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrInconsistentGroup)

			var rosterErr *errors.RosterError
			assert.ErrorAs(t, err, &rosterErr)
			assert.Equal(t, before, s.Teams(), "failed trade must leave the store unchanged")
		})
	}

	t.Run("matching source teams", func(t *testing.T) {
		s := hawksAndOwls(t)

		result, err := s.ApplyTrade(TradeRequest{GroupA: []string{"P1"}, GroupB: []string{"P3"}, FromA: "Hawks", FromB: "Owls"})
		require.NoError(t, err)
		assert.Equal(t, "Hawks", result.TeamA)
		assert.Equal(t, "Owls", result.TeamB)
	})

	t.Run("reports cap overflow", func(t *testing.T) {
		s := hawksAndOwls(t)
		_, err := s.SetStars("P3", 9)
		require.NoError(t, err)

		result, err := s.ApplyTrade(TradeRequest{GroupA: []string{"P1"}, GroupB: []string{"P3"}})
		require.NoError(t, err)
		over := result.Exceeded()
		require.Len(t, over, 1)
		assert.Equal(t, CapStatus{Team: "Hawks", Total: 11, Cap: 10}, over[0])
	})
}

func TestApplyTradeConcurrentKeepsSingleTeamInvariant(t *testing.T) {
	s := hawksAndOwls(t)

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Go(func() {
			if i%2 == 0 {
				_, _ = s.ApplyTrade(TradeRequest{GroupA: []string{"P1"}, GroupB: []string{"P3"}})
			} else {
				_, _ = s.ApplyTrade(TradeRequest{GroupA: []string{"P3"}, GroupB: []string{"P1"}})
			}
		})
	}
	wg.Wait()

	seen := make(map[string]string)
	for _, team := range s.Teams() {
		for _, m := range team.Members {
			if other, dup := seen[m.ID]; dup {
				t.Fatalf("player %s on both %s and %s", m.ID, other, team.Name)
			}
			seen[m.ID] = team.Name
			assert.Equal(t, team.Name, m.Team)
		}
	}
	assert.Len(t, seen, 4)
}

func TestStorePublishesEvents(t *testing.T) {
	bus := event.NewBus(nil)
	var mu sync.Mutex
	var got []string
	bus.SubscribeAll(func(e event.Event) {
		mu.Lock()
		defer mu.Unlock()
		switch ev := e.(type) {
		case event.RosterChangedEvent:
			got = append(got, fmt.Sprintf("%s:%s", ev.Action, ev.Team))
		case event.CapExceededEvent:
			got = append(got, fmt.Sprintf("cap:%s:%d/%d", ev.Team, ev.Total, ev.Cap))
		case event.TeamCreatedEvent:
			got = append(got, "created:"+ev.Team)
		}
	})

	s := NewStore(1, WithBus(bus))
	require.NoError(t, s.CreateTeam("Hawks"))
	_, err := s.AddPlayer("P1", "Hawks")
	require.NoError(t, err)
	_, err = s.SetStars("P1", 2)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"created:Hawks",
		"player_added:Hawks",
		"stars_set:Hawks",
		"cap:Hawks:2/1",
	}, got)
}
