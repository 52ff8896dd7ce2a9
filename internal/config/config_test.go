package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	require.Equal(t, "markov", cfg.Backend)
	require.Equal(t, 10*time.Minute, cfg.SaveInterval)
	require.Equal(t, "Markov", cfg.DisplayName)
	require.True(t, cfg.Learning)
	require.Equal(t, 0.10, cfg.DefaultResponseRate)
	require.Equal(t, 100, cfg.MaxReplyWords)
	require.Equal(t, DefaultPath, cfg.Path())
}

func TestLoad(t *testing.T) {
	t.Run("Missing file uses defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "markov.yaml")
		cfg, found, err := Load(path)
		require.NoError(t, err)
		require.False(t, found)
		require.Equal(t, "brain.txt", cfg.BrainPath)
		require.Equal(t, path, cfg.Path())
	})

	t.Run("Reads the file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "markov.yaml")
		data := `
backend: markov-sql
brain_path: /var/lib/markov/brain.db
save_interval: 90s
learning: false
display_name: Parrot
default_response_rate: 0.25
response_rates:
  - room: "!RoomA:example.org"
    rate: 0.5
log:
  level: debug
  encoding: json
`
		require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

		cfg, found, err := Load(path)
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, "markov-sql", cfg.Backend)
		require.Equal(t, "/var/lib/markov/brain.db", cfg.BrainPath)
		require.Equal(t, 90*time.Second, cfg.SaveInterval)
		require.False(t, cfg.Learning)
		require.Equal(t, "Parrot", cfg.DisplayName)
		require.Equal(t, "debug", cfg.Log.Level)
		require.Equal(t, "json", cfg.Log.Encoding)
		require.Equal(t, 4, cfg.TrainWorkers, "unset keys keep their default")

		require.Equal(t, 0.5, cfg.ResponseRate("!RoomA:example.org"))
		require.Equal(t, 0.25, cfg.ResponseRate("!rooma:example.org"), "room ids are case-sensitive")
	})

	t.Run("Environment overrides the file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "markov.yaml")
		require.NoError(t, os.WriteFile(path, []byte("backend: markov\n"), 0o644))

		t.Setenv("MARKOV_BACKEND", "echo")
		t.Setenv("MARKOV_LOG_LEVEL", "warn")
		t.Setenv("MARKOV_LEARNING", "false")

		cfg, _, err := Load(path)
		require.NoError(t, err)
		require.Equal(t, "echo", cfg.Backend)
		require.Equal(t, "warn", cfg.Log.Level)
		require.False(t, cfg.Learning)
	})

	t.Run("Invalid values are rejected", func(t *testing.T) {
		cases := map[string]string{
			"unknown backend":  "backend: hal9000\n",
			"rate above one":   "default_response_rate: 1.5\n",
			"negative room":    "response_rates:\n  - room: a\n    rate: -0.1\n",
			"no interval":      "save_interval: 0s\n",
			"bad log level":    "log:\n  level: loud\n",
			"bad log encoding": "log:\n  encoding: xml\n",
			"tiny replies":     "max_reply_words: 2\n",
		}
		for name, data := range cases {
			t.Run(name, func(t *testing.T) {
				path := filepath.Join(t.TempDir(), "markov.yaml")
				require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

				_, _, err := Load(path)
				require.ErrorIs(t, err, ErrInvalidConfig)
			})
		}
	})

	t.Run("Unparsable file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "markov.yaml")
		require.NoError(t, os.WriteFile(path, []byte("backend: [unterminated\n"), 0o644))

		_, _, err := Load(path)
		require.Error(t, err)
		require.NotErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestResponseRates(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, 0.10, cfg.ResponseRate("!a:b"))

	require.NoError(t, cfg.SetResponseRate("!a:b", 0.5))
	require.NoError(t, cfg.SetResponseRate("!a:b", 0.75))
	require.Equal(t, 0.75, cfg.ResponseRate("!a:b"))
	require.Len(t, cfg.ResponseRates, 1)

	require.ErrorIs(t, cfg.SetResponseRate("!a:b", 2), ErrInvalidConfig)
	require.Equal(t, 0.75, cfg.ResponseRate("!a:b"))
}

func TestWrite(t *testing.T) {
	t.Run("Round trip", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "conf", "markov.yaml")

		cfg := DefaultConfig()
		cfg.DisplayName = "Parrot"
		cfg.SaveInterval = 3 * time.Minute
		require.NoError(t, cfg.SetResponseRate("!MixedCase:example.org", 0.3))
		require.NoError(t, cfg.Write(path))

		loaded, found, err := Load(path)
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, "Parrot", loaded.DisplayName)
		require.Equal(t, 3*time.Minute, loaded.SaveInterval)
		require.Equal(t, []RoomRate{{Room: "!MixedCase:example.org", Rate: 0.3}}, loaded.ResponseRates)
	})

	t.Run("Writes back to where it was loaded from", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "markov.yaml")
		require.NoError(t, WriteDefault(path))

		cfg, found, err := Load(path)
		require.NoError(t, err)
		require.True(t, found)

		require.NoError(t, cfg.SetResponseRate("!room", 1))
		require.NoError(t, cfg.Write(""))

		again, _, err := Load(path)
		require.NoError(t, err)
		require.Equal(t, 1.0, again.ResponseRate("!room"))
	})
}
