package gateway

import (
	"regexp"
	"strings"
)

// mentionPattern matches <@id>, <@!id> and bare @token mentions.
var mentionPattern = regexp.MustCompile(`<@!?([^>\s]+)>|(?:^|\s)@([^\s@<>,]+)`)

// ParseMentions extracts mentioned user IDs from text, in order of first
// appearance and without duplicates. Bracketed mentions are taken as IDs;
// bare @tokens are passed to resolve, which maps an ID or display name to
// an ID and reports whether it matched anyone.
func ParseMentions(text string, resolve func(token string) (string, bool)) []string {
	var ids []string
	seen := make(map[string]bool)
	for _, m := range mentionPattern.FindAllStringSubmatch(text, -1) {
		id := m[1]
		if id == "" {
			token := strings.TrimRight(m[2], ".!?;:")
			if resolve == nil {
				continue
			}
			var ok bool
			if id, ok = resolve(token); !ok {
				continue
			}
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

// Mention formats a user ID as a mention token.
func Mention(userID string) string {
	return "<@" + userID + ">"
}
