package text

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitize(t *testing.T) {
	require.Equal(t, "approximately", Sanitize("\n\nap\n\npro\nximately\n\r\n"))
	require.Equal(t, "ab", Sanitize("a\u2028b"))
	require.Equal(t, "a\tb", Sanitize("a\tb"))
	require.Equal(t, "", Sanitize("\r\n"))
}

func TestTokenize(t *testing.T) {
	t.Run("Splits on single spaces", func(t *testing.T) {
		require.Equal(t, []string{"the", "Fox", "jumped"}, Tokenize("the Fox jumped"))
	})

	t.Run("Keeps empty tokens", func(t *testing.T) {
		require.Equal(t, []string{"a", "", "b"}, Tokenize("a  b"))
	})

	t.Run("Strips embedded line breaks", func(t *testing.T) {
		words := Tokenize("Test that first and second are \n\nap\n\npro\nximately\n\r\n")
		require.Equal(t, []string{"Test", "that", "first", "and", "second", "are", "approximately"}, words)
	})

	t.Run("Trims the line", func(t *testing.T) {
		require.Equal(t, []string{"hi", "there"}, Tokenize("  hi there\n"))
	})

	t.Run("Empty line", func(t *testing.T) {
		require.Equal(t, []string{""}, Tokenize(""))
	})
}

func TestFields(t *testing.T) {
	require.Equal(t, []string{"hello", "there", "bot"}, Fields(" hello\tthere\n bot "))
	require.Empty(t, Fields("   "))
}
