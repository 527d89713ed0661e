package commands

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestTruncateKeepsRunesIntact(t *testing.T) {
	for _, tt := range []struct {
		name  string
		input string
		n     int
		want  string
	}{
		{"short ascii", "hello", 10, "hello"},
		{"exact length", "hello", 5, "hello"},
		{"ascii cut", "hello world", 5, "hello"},
		{"multibyte cut mid rune", "héllo", 2, "h"},
		{"multibyte cut on boundary", "héllo", 3, "hé"},
		{"emoji cut mid rune", "a\U0001F600b", 3, "a"},
		{"empty", "", 4, ""},
	} {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.input, tt.n)
			require.Equal(t, tt.want, got)
			require.True(t, utf8.ValidString(got))
		})
	}
}

func TestTruncateLongContent(t *testing.T) {
	content := strings.Repeat("é", 300)
	got := truncate(content, 400)
	require.True(t, utf8.ValidString(got))
	require.Equal(t, strings.Repeat("é", 200), got)
}
