// Package internal contains integration tests that verify the league
// packages work together: chat commands drive the workflows, the roster
// publishes events, and metrics and the outcome publisher observe them on
// the shared bus.
package internal

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"

	"github.com/lkmninja/aaflbot/internal/approval"
	"github.com/lkmninja/aaflbot/internal/command"
	"github.com/lkmninja/aaflbot/internal/config"
	"github.com/lkmninja/aaflbot/internal/event"
	"github.com/lkmninja/aaflbot/internal/gateway"
	"github.com/lkmninja/aaflbot/internal/metrics"
	"github.com/lkmninja/aaflbot/internal/publish"
	"github.com/lkmninja/aaflbot/internal/roster"
	"github.com/lkmninja/aaflbot/internal/signing"
	"github.com/lkmninja/aaflbot/internal/testutil"
	"github.com/lkmninja/aaflbot/internal/trade"
)

type memoryWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
}

func (w *memoryWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *memoryWriter) Close() error { return nil }

// keys returns "type@partition key" for every written record.
func (w *memoryWriter) keys(t *testing.T) map[string]bool {
	t.Helper()
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[string]bool)
	for _, m := range w.msgs {
		var rec struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(m.Value, &rec); err != nil {
			t.Fatalf("invalid record %s: %v", m.Value, err)
		}
		out[rec.Type+"@"+string(m.Key)] = true
	}
	return out
}

// TestSigningThroughChat runs a signing and a star edit from chat commands
// and checks what reaches the roster, metrics and the outcome stream.
func TestSigningThroughChat(t *testing.T) {
	bus := event.NewBus(nil)

	store := roster.NewStore(10, roster.WithBus(bus))
	if err := store.CreateTeam("Hawks"); err != nil {
		t.Fatalf("CreateTeam: %v", err)
	}
	if _, err := store.AddPlayer("CAP", "Hawks"); err != nil {
		t.Fatalf("AddPlayer: %v", err)
	}
	if _, err := store.SetStars("CAP", 2); err != nil {
		t.Fatalf("SetStars: %v", err)
	}
	if err := store.SetCaptain("Hawks", "CAP"); err != nil {
		t.Fatalf("SetCaptain: %v", err)
	}

	hub := testutil.NewHub(t,
		gateway.Member{ID: "CAP", Name: "Coach", Roles: []string{"Franchise Owner"}},
		gateway.Member{ID: "ADM", Name: "Commissioner", Roles: []string{"Admin"}},
		gateway.Member{ID: "NEW", Name: "Rookie"},
	)
	testutil.Script(t, hub, "NEW").React("is trying to sign you", gateway.Accept)
	league := testutil.Record(t, hub, "ADM")

	m, err := metrics.New(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("metrics.New: %v", err)
	}
	m.Attach(bus)

	w := &memoryWriter{}
	pub := publish.New(w, nil)
	pub.Attach(bus)
	ctx, cancel := context.WithCancel(context.Background())
	published := make(chan struct{})
	go func() {
		pub.Run(ctx)
		close(published)
	}()

	coord := approval.NewCoordinator(hub, bus, nil)
	router := command.NewRouter(command.Deps{
		Gateway:     hub,
		Store:       store,
		Trades:      trade.NewEngine(store, hub, coord, trade.WithBus(bus)),
		Signings:    signing.NewFlow(store, hub, coord, signing.WithBus(bus), signing.WithConsentTimeout(func() time.Duration { return time.Second })),
		Coordinator: coord,
		Config:      config.Default,
		Bus:         bus,
	})

	run := func(author, text string) {
		t.Helper()
		msg, err := hub.Post(author, "league", text)
		if err != nil {
			t.Fatalf("Post(%q): %v", text, err)
		}
		_ = router.Execute(context.Background(), msg)
	}

	run("CAP", "/sign <@NEW>")
	p, err := store.Player("NEW")
	if err != nil || p.Team != "Hawks" {
		t.Fatalf("NEW after signing = %+v, %v; want on Hawks", p, err)
	}

	run("ADM", "/editstars <@NEW> 9")
	if !league.Contains("Warning: Team Hawks exceeds the roster cap of 10 stars (11/10). They cannot play anymore.") {
		t.Errorf("league channel missing cap warning; got %q", league.Texts("league"))
	}

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	for _, series := range []string{
		`aaflbot_workflows_total{kind="signing",outcome="signed"} 1`,
		`aaflbot_roster_cap_exceeded_total{team="Hawks"} 1`,
		`aaflbot_commands_total{command="sign",error_kind="none"} 1`,
		`aaflbot_approvals_pending 0`,
	} {
		if !strings.Contains(string(body), series) {
			t.Errorf("metrics missing %s", series)
		}
	}

	cancel()
	<-published
	got := w.keys(t)
	for _, key := range []string{
		event.TypeSigningFinished + "@Hawks",
		event.TypeRosterChanged + "@Hawks",
		event.TypeCapExceeded + "@Hawks",
	} {
		if !got[key] {
			t.Errorf("published records missing %s; got %v", key, got)
		}
	}
}
