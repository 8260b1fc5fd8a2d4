// Package testutil provides testing utilities for aaflbot tests: an
// in-process chat hub with scripted members that answer the bot's prompts.
package testutil

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lkmninja/aaflbot/internal/gateway"
)

// BotID is the author ID of the bot in hubs created by NewHub.
const BotID = "bot"

// NewHub creates a hub with the given members joined. Members are given
// their ID as display name when Name is empty.
func NewHub(t testing.TB, members ...gateway.Member) *gateway.Hub {
	t.Helper()

	hub, err := gateway.NewHub(gateway.Member{ID: BotID, Name: "AAFL Bot"})
	if err != nil {
		t.Fatalf("failed to create hub: %v", err)
	}
	for _, m := range members {
		if m.Name == "" {
			m.Name = m.ID
		}
		hub.Join(m)
	}
	return hub
}

// rule is one scripted answer. The first rule whose fragment appears in a
// bot message fires.
type rule struct {
	fragment string
	reply    string
	emoji    string
}

// Responder answers the bot on behalf of one member. Replies are posted in
// the channel the prompt arrived in; reactions go on the prompt itself.
type Responder struct {
	hub    *gateway.Hub
	userID string

	mu     sync.Mutex
	rules  []rule
	detach func()
}

// Script attaches a responder for userID to hub. It is detached when the
// test ends.
func Script(t testing.TB, hub *gateway.Hub, userID string) *Responder {
	t.Helper()

	r := &Responder{hub: hub, userID: userID}
	r.detach = hub.Attach(userID, gateway.SinkFunc(r.deliver))
	t.Cleanup(r.detach)
	return r
}

// Reply makes the member post text whenever a bot message contains fragment.
func (r *Responder) Reply(fragment, text string) *Responder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = append(r.rules, rule{fragment: fragment, reply: text})
	return r
}

// React makes the member react with emoji whenever a bot message containing
// fragment invites reactions.
func (r *Responder) React(fragment, emoji string) *Responder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = append(r.rules, rule{fragment: fragment, emoji: emoji})
	return r
}

func (r *Responder) deliver(m gateway.Message) {
	if m.Author != BotID {
		return
	}
	r.mu.Lock()
	var match *rule
	for i := range r.rules {
		if strings.Contains(m.Text, r.rules[i].fragment) {
			if r.rules[i].emoji != "" && len(m.Allowed) == 0 {
				continue
			}
			match = &r.rules[i]
			break
		}
	}
	r.mu.Unlock()
	if match == nil {
		return
	}

	if match.emoji != "" {
		_ = r.hub.React(r.userID, m.ID, match.emoji)
		return
	}
	_, _ = r.hub.Post(r.userID, m.Channel, match.reply)
}

// Recorder captures every message delivered to one member, public and
// direct.
type Recorder struct {
	mu       sync.Mutex
	messages []gateway.Message
}

// Record attaches a recorder for userID to hub.
func Record(t testing.TB, hub *gateway.Hub, userID string) *Recorder {
	t.Helper()

	rec := &Recorder{}
	detach := hub.Attach(userID, gateway.SinkFunc(func(m gateway.Message) {
		rec.mu.Lock()
		rec.messages = append(rec.messages, m)
		rec.mu.Unlock()
	}))
	t.Cleanup(detach)
	return rec
}

// Messages returns a copy of the recorded messages.
func (rec *Recorder) Messages() []gateway.Message {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	out := make([]gateway.Message, len(rec.messages))
	copy(out, rec.messages)
	return out
}

// Texts returns the text of every message recorded in channel.
func (rec *Recorder) Texts(channel string) []string {
	var out []string
	for _, m := range rec.Messages() {
		if m.Channel == channel {
			out = append(out, m.Text)
		}
	}
	return out
}

// Contains reports whether any recorded message contains fragment.
func (rec *Recorder) Contains(fragment string) bool {
	for _, m := range rec.Messages() {
		if strings.Contains(m.Text, fragment) {
			return true
		}
	}
	return false
}

// WaitFor polls until cond holds or fails the test after timeout.
func WaitFor(t testing.TB, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}
