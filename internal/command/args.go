package command

import (
	"strings"
	"unicode"

	"github.com/lkmninja/aaflbot/internal/errors"
)

// SplitArgs splits a command line on whitespace. Double quotes group words,
// so team names may contain spaces: /createteam "Blue Jays".
func SplitArgs(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		quoted  bool
		started bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
			started = true
		case unicode.IsSpace(r) && !quoted:
			if started {
				args = append(args, cur.String())
				cur.Reset()
				started = false
			}
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	if quoted {
		return nil, errors.NewValidationError("unterminated quote")
	}
	if started {
		args = append(args, cur.String())
	}
	return args, nil
}
