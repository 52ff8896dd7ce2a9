package log

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"":        LevelInfo,
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"warning": LevelWarn,
		" error ": LevelError,
		"fatal":   LevelFatal,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	require.Error(t, err)
}

func TestLogger_FieldsAndLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core), LevelInfo)

	child := l.With(String("component", "brain"))
	child.Info("saved",
		Int("entries", 3),
		Int64("version", 7),
		Bool("dirty", false),
		Duration("took", time.Millisecond),
		Float64("rate", 0.5),
		Error(errors.New("boom")),
		Any("pair", []string{"a", "b"}),
	)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	require.Equal(t, "saved", entry.Message)
	ctx := entry.ContextMap()
	require.Equal(t, "brain", ctx["component"])
	require.EqualValues(t, 3, ctx["entries"])
	require.Equal(t, "boom", ctx["error"])

	t.Run("Log honours the atomic level", func(t *testing.T) {
		l.Log(LevelDebug, "hidden")
		require.Equal(t, 1, logs.Len())

		l.SetLevel(LevelDebug)
		require.Equal(t, LevelDebug, child.GetLevel())
		child.Log(LevelDebug, "visible")
		require.Equal(t, 2, logs.Len())
	})
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Info("nothing", String("k", "v"))
	require.Equal(t, LevelFatal, l.GetLevel())
}
