package flatfile

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zeusync/markov/internal/core/brain"
)

func TestParseLine(t *testing.T) {
	t.Run("Pair with followers", func(t *testing.T) {
		line, err := ParseLine("I have a 1 the 2 smores 3 potatoes 1\n")
		require.NoError(t, err)
		require.Equal(t, brain.Pair("I", "have"), line.Pair)
		require.Equal(t, []Follower{{"a", 1}, {"the", 2}, {"smores", 3}, {"potatoes", 1}}, line.Followers)
	})

	t.Run("Pair without followers", func(t *testing.T) {
		line, err := ParseLine("What the")
		require.NoError(t, err)
		require.Equal(t, brain.Pair("What", "the"), line.Pair)
		require.Empty(t, line.Followers)
	})

	t.Run("Empty words survive", func(t *testing.T) {
		line, err := ParseLine(" b  2\r\n")
		require.NoError(t, err)
		require.Equal(t, brain.Pair("", "b"), line.Pair)
		require.Equal(t, []Follower{{"", 2}}, line.Followers)
	})

	for name, raw := range map[string]string{
		"single word":      "lonely",
		"dangling word":    "a b c",
		"not a number":     "a b c x",
		"zero count":       "a b c 0",
		"negative count":   "a b c -4",
		"count then extra": "a b c 1 d",
	} {
		t.Run("Rejects "+name, func(t *testing.T) {
			_, err := ParseLine(raw)
			require.Error(t, err)
		})
	}
}

func TestFormatLine(t *testing.T) {
	line := Line{Pair: brain.Pair("the", "fox"), Followers: []Follower{{"jumped", 2}, {"ran", 3}}}
	require.Equal(t, "the fox jumped 2 ran 3", FormatLine(line))

	parsed, err := ParseLine(FormatLine(line))
	require.NoError(t, err)
	require.Equal(t, line, parsed)
}

func TestDecode(t *testing.T) {
	t.Run("Skips blank lines", func(t *testing.T) {
		var lines []Line
		err := Decode(strings.NewReader("a b c 1\n\nd e f 2"), "test", func(l Line) error {
			lines = append(lines, l)
			return nil
		})
		require.NoError(t, err)
		require.Len(t, lines, 2)
		require.Equal(t, brain.Pair("d", "e"), lines[1].Pair)
	})

	t.Run("Malformed line fails the whole decode", func(t *testing.T) {
		err := Decode(strings.NewReader("a b c 1\na b c\n"), "brain.txt", func(Line) error { return nil })
		require.ErrorIs(t, err, brain.ErrMalformedData)

		var malformed *brain.MalformedDataError
		require.True(t, errors.As(err, &malformed))
		require.Equal(t, 2, malformed.Line)
		require.Equal(t, "brain.txt", malformed.Source)
	})

	t.Run("Callback error is returned", func(t *testing.T) {
		stop := errors.New("stop")
		err := Decode(strings.NewReader("a b c 1\n"), "test", func(Line) error { return stop })
		require.ErrorIs(t, err, stop)
	})
}

func TestEncode(t *testing.T) {
	lines := []Line{
		{Pair: brain.Pair("a", "b"), Followers: []Follower{{"c", 1}}},
		{Pair: brain.Pair("b", "c"), Followers: []Follower{{"d", 4}, {"e", 1}}},
	}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, slices.Values(lines)))
	require.Equal(t, "a b c 1\nb c d 4 e 1\n", buf.String())

	t.Run("Rejects words with separators", func(t *testing.T) {
		bad := []Line{{Pair: brain.Pair("a b", "c"), Followers: []Follower{{"d", 1}}}}
		require.Error(t, Encode(io.Discard, slices.Values(bad)))
	})
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	t.Run("Missing file is empty", func(t *testing.T) {
		called := false
		found, err := Load(filepath.Join(dir, "missing.txt"), func(Line) error {
			called = true
			return nil
		})
		require.NoError(t, err)
		require.False(t, found)
		require.False(t, called)
	})

	t.Run("Existing file", func(t *testing.T) {
		path := filepath.Join(dir, "brain.txt")
		require.NoError(t, os.WriteFile(path, []byte("the fox jumped 2 ran 3 ate 1\n"), 0o644))

		var got []Line
		found, err := Load(path, func(l Line) error {
			got = append(got, l)
			return nil
		})
		require.NoError(t, err)
		require.True(t, found)
		require.Len(t, got, 1)
		require.Len(t, got[0].Followers, 3)
	})
}

func TestWriteAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "brain.txt")

	require.NoError(t, WriteAtomic(path, func(w io.Writer) error {
		_, err := io.WriteString(w, "first\n")
		return err
	}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "first\n", string(data))

	t.Run("Failed write keeps the old file", func(t *testing.T) {
		boom := errors.New("boom")
		err := WriteAtomic(path, func(w io.Writer) error {
			_, _ = io.WriteString(w, "partial")
			return boom
		})
		require.ErrorIs(t, err, brain.ErrPersistence)
		require.ErrorIs(t, err, boom)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		require.Equal(t, "first\n", string(data))

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Len(t, entries, 1, "temporary file must be removed")
	})

	t.Run("Missing directory", func(t *testing.T) {
		err := WriteAtomic(filepath.Join(dir, "nope", "brain.txt"), func(io.Writer) error { return nil })
		require.ErrorIs(t, err, brain.ErrPersistence)
	})
}
