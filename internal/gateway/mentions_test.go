package gateway

import (
	"slices"
	"testing"
)

func TestParseMentions(t *testing.T) {
	names := map[string]string{"alice": "u1", "u2": "u2"}
	resolve := func(token string) (string, bool) {
		id, ok := names[token]
		return id, ok
	}

	tests := []struct {
		name string
		text string
		want []string
	}{
		{"bracketed", "<@u7> <@!u8>", []string{"u7", "u8"}},
		{"bare resolved", "@alice and @u2", []string{"u1", "u2"}},
		{"trailing punctuation", "trade @alice.", []string{"u1"}},
		{"unknown bare token", "@nobody", nil},
		{"duplicates collapse", "<@u1> @alice <@u1>", []string{"u1"}},
		{"email is not a mention", "mail me at x@alice.com", nil},
		{"comma separated", "<@u1>,<@u2>", []string{"u1", "u2"}},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseMentions(tt.text, resolve)
			if !slices.Equal(got, tt.want) {
				t.Errorf("ParseMentions(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestParseMentions_NilResolver(t *testing.T) {
	got := ParseMentions("<@u1> @alice", nil)
	if !slices.Equal(got, []string{"u1"}) {
		t.Errorf("got %v, want [u1]", got)
	}
}

func TestMention(t *testing.T) {
	if got := Mention("u1"); got != "<@u1>" {
		t.Errorf("Mention() = %q, want %q", got, "<@u1>")
	}
	if got := ParseMentions(Mention("u9"), nil); !slices.Equal(got, []string{"u9"}) {
		t.Errorf("round trip = %v", got)
	}
}

func TestDirectChannel(t *testing.T) {
	ch := DirectChannel("u1")
	if !IsDirect(ch) {
		t.Fatalf("IsDirect(%q) = false", ch)
	}
	if id, ok := DirectRecipient(ch); !ok || id != "u1" {
		t.Errorf("DirectRecipient(%q) = %q, %v", ch, id, ok)
	}
	if _, ok := DirectRecipient("general"); ok {
		t.Error("general should not be direct")
	}
}

func TestPredicate(t *testing.T) {
	p := Predicate{Author: "u1", MessageID: "m1", Allowed: []string{ThumbsUp}}
	if !p.MatchReaction(Reaction{MessageID: "m1", UserID: "u1", Emoji: ThumbsUp}) {
		t.Error("expected match")
	}
	if p.MatchReaction(Reaction{MessageID: "m2", UserID: "u1", Emoji: ThumbsUp}) {
		t.Error("wrong message matched")
	}
	if p.MatchReaction(Reaction{MessageID: "m1", UserID: "u1", Emoji: ThumbsDown}) {
		t.Error("disallowed emoji matched")
	}
	if !(Predicate{}).MatchMessage(Message{Author: "anyone", Channel: "x"}) {
		t.Error("empty predicate should match")
	}
	if (Predicate{Channel: "general"}).MatchMessage(Message{Channel: "random"}) {
		t.Error("channel mismatch matched")
	}
}
