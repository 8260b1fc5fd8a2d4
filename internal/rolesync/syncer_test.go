package rolesync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lkmninja/aaflbot/internal/errors"
	"github.com/lkmninja/aaflbot/internal/gateway"
	"github.com/lkmninja/aaflbot/internal/roster"
	"github.com/lkmninja/aaflbot/internal/testutil"
)

// newLeague builds Hawks={P1}, Owls={P2}, a teamless registered player FA
// and an unregistered member GUEST.
func newLeague(t *testing.T) (*roster.Store, *gateway.Hub) {
	t.Helper()

	store := roster.NewStore(10)
	require.NoError(t, store.CreateTeam("Hawks"))
	require.NoError(t, store.CreateTeam("Owls"))
	_, err := store.AddPlayer("P1", "Hawks")
	require.NoError(t, err)
	_, err = store.AddPlayer("P2", "Owls")
	require.NoError(t, err)
	store.RegisterPlayer("FA", "Free Agent")

	hub := testutil.NewHub(t,
		gateway.Member{ID: "P1", Roles: []string{"Owls", "Franchise Owner"}},
		gateway.Member{ID: "P2", Roles: []string{"Owls"}},
		gateway.Member{ID: "FA", Roles: []string{"Hawks"}},
		gateway.Member{ID: "GUEST", Roles: []string{"Hawks"}},
	)
	return store, hub
}

func roles(t *testing.T, hub *gateway.Hub, id string) []string {
	t.Helper()
	m, ok := hub.ResolveMember(context.Background(), id)
	require.True(t, ok)
	return m.Roles
}

func TestSync(t *testing.T) {
	store, hub := newLeague(t)
	s := New(store, hub, nil, nil)

	res := s.Sync(context.Background())

	assert.Equal(t, Result{Granted: 1, Revoked: 2}, res)
	assert.ElementsMatch(t, []string{"Franchise Owner", "Hawks"}, roles(t, hub, "P1"))
	assert.Equal(t, []string{"Owls"}, roles(t, hub, "P2"))
	assert.Empty(t, roles(t, hub, "FA"))
	// Unregistered members are not touched.
	assert.Equal(t, []string{"Hawks"}, roles(t, hub, "GUEST"))

	assert.Equal(t, Result{}, s.Sync(context.Background()))
}

func TestSync_ExemptMembersKeepTeamRoles(t *testing.T) {
	store, hub := newLeague(t)
	s := New(store, hub, nil, nil, WithExempt(func(m gateway.Member) bool {
		return m.HasRole("Franchise Owner")
	}))

	res := s.Sync(context.Background())

	assert.Equal(t, Result{Granted: 1, Revoked: 1}, res)
	assert.ElementsMatch(t, []string{"Owls", "Franchise Owner", "Hawks"}, roles(t, hub, "P1"))
	assert.Empty(t, roles(t, hub, "FA"))
}

func TestSync_FollowsTrades(t *testing.T) {
	store, hub := newLeague(t)
	s := New(store, hub, nil, nil)
	s.Sync(context.Background())

	_, err := store.ApplyTrade(roster.TradeRequest{GroupA: []string{"P1"}, GroupB: []string{"P2"}})
	require.NoError(t, err)
	res := s.Sync(context.Background())

	assert.Equal(t, Result{Granted: 2, Revoked: 2}, res)
	assert.Contains(t, roles(t, hub, "P1"), "Owls")
	assert.Contains(t, roles(t, hub, "P2"), "Hawks")
	assert.NotContains(t, roles(t, hub, "P2"), "Owls")
}

// grantFailing rejects every grant.
type grantFailing struct {
	*gateway.Hub
}

func (grantFailing) GrantRole(context.Context, string, string) error {
	return errors.New("chat unavailable")
}

func TestSync_CountsFailures(t *testing.T) {
	store, hub := newLeague(t)
	s := New(store, grantFailing{hub}, nil, nil)

	res := s.Sync(context.Background())

	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 0, res.Granted)
	assert.Equal(t, 2, res.Revoked)
}

func TestRun_StopsOnCancel(t *testing.T) {
	store, hub := newLeague(t)
	s := New(store, hub, func() time.Duration { return 10 * time.Millisecond }, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	testutil.WaitFor(t, time.Second, func() bool {
		m, _ := hub.ResolveMember(context.Background(), "P1")
		return m.HasRole("Hawks")
	})
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
