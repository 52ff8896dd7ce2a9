package brain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFollowers(t *testing.T) {
	f := Followers{"a": 1, "b": 3}
	require.Equal(t, 4, f.Total())
	require.Zero(t, Followers{}.Total())

	c := f.Clone()
	c["a"] = 10
	require.Equal(t, 1, f["a"])
}

func TestTripleWords(t *testing.T) {
	tr := Triple{Pair: Pair("a", "b"), Follower: "c"}
	require.Equal(t, []string{"a", "b", "c"}, tr.Words())
}

func TestErrors(t *testing.T) {
	err := &MalformedDataError{Source: "brain.txt", Line: 3, Reason: "follower without a count"}
	require.ErrorIs(t, err, ErrMalformedData)
	require.Contains(t, err.Error(), "line 3")

	noLine := &MalformedDataError{Source: "markov", Reason: "negative count"}
	require.NotContains(t, noLine.Error(), "line")

	cause := errors.New("disk full")
	perr := PersistenceError("rename", cause)
	require.ErrorIs(t, perr, ErrPersistence)
	require.ErrorIs(t, perr, cause)
}
