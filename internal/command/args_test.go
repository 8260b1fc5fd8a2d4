package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lkmninja/aaflbot/internal/errors"
)

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{"createteam Hawks", []string{"createteam", "Hawks"}},
		{`createteam "Blue Jays"`, []string{"createteam", "Blue Jays"}},
		{"  roster   Hawks  ", []string{"roster", "Hawks"}},
		{`addplayer <@u1> "New York"`, []string{"addplayer", "<@u1>", "New York"}},
		{`roster ""`, []string{"roster", ""}},
		{"", nil},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := SplitArgs(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitArgs_UnterminatedQuote(t *testing.T) {
	_, err := SplitArgs(`createteam "Blue Jays`)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}
