// Package braintest holds the behaviour every brain.Store backend must share.
package braintest

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zeusync/markov/internal/core/brain"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) brain.Store

// Run exercises the brain.Store contract against stores produced by open.
func Run(t *testing.T, open Factory) {
	t.Run("Fresh store is empty", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		empty, err := s.IsEmpty()
		require.NoError(t, err)
		require.True(t, empty)

		_, err = s.RandomTriple()
		require.ErrorIs(t, err, brain.ErrEmptyStore)

		followers, err := s.Followers(brain.Pair("a", "b"))
		require.NoError(t, err)
		require.Empty(t, followers)

		ok, err := s.ContainsPair(brain.Pair("a", "b"))
		require.NoError(t, err)
		require.False(t, ok)

		pairs, err := s.PairsContainingWord("a")
		require.NoError(t, err)
		require.Zero(t, pairs.Count())

		require.NoError(t, s.Save(), "saving with nothing pending is a no-op")
	})

	t.Run("Add creates and increments", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		pair := brain.Pair("the", "fox")
		require.NoError(t, s.Add(pair, "jumped", 1))

		empty, err := s.IsEmpty()
		require.NoError(t, err)
		require.False(t, empty)

		require.NoError(t, s.Add(pair, "jumped", 2))
		require.NoError(t, s.Add(pair, "ran", 1))
		require.ErrorIs(t, s.Add(pair, "ran", 0), brain.ErrInvalidAdd)

		followers, err := s.Followers(pair)
		require.NoError(t, err)
		require.Equal(t, brain.Followers{"jumped": 3, "ran": 1}, followers)

		ok, err := s.ContainsPair(pair)
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = s.ContainsPair(brain.Pair("The", "fox"))
		require.NoError(t, err)
		require.False(t, ok, "pair lookup is case-sensitive")
	})

	t.Run("Followers is a snapshot", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		pair := brain.Pair("a", "b")
		require.NoError(t, s.Add(pair, "c", 1))

		followers, err := s.Followers(pair)
		require.NoError(t, err)
		followers["c"] = 100
		followers["d"] = 1

		again, err := s.Followers(pair)
		require.NoError(t, err)
		require.Equal(t, brain.Followers{"c": 1}, again)
	})

	t.Run("PairsContainingWord ignores case", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		require.NoError(t, s.Add(brain.Pair("ALL", "CAPS"), "IS", 1))
		require.NoError(t, s.Add(brain.Pair("CAPS", "IS"), "GREAT", 1))
		require.NoError(t, s.Add(brain.Pair("CAPS", "IS"), "FINE", 1))

		pairs, err := s.PairsContainingWord("all")
		require.NoError(t, err)
		require.Equal(t, []brain.WordPair{brain.Pair("ALL", "CAPS")}, pairs.Collect())

		pairs, err = s.PairsContainingWord("Caps")
		require.NoError(t, err)
		require.ElementsMatch(t, []brain.WordPair{brain.Pair("ALL", "CAPS"), brain.Pair("CAPS", "IS")}, pairs.Collect())
		require.Equal(t, 2, pairs.Count(), "sequence can be enumerated again")

		pairs, err = s.PairsContainingWord("great")
		require.NoError(t, err)
		require.Zero(t, pairs.Count(), "followers are not part of the pair")
	})

	t.Run("RandomTriple returns a stored row", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		stored := map[brain.Triple]bool{
			{Pair: brain.Pair("1", "2"), Follower: "3"}: true,
			{Pair: brain.Pair("2", "3"), Follower: "4"}: true,
			{Pair: brain.Pair("2", "3"), Follower: "5"}: true,
		}
		for tr := range stored {
			require.NoError(t, s.Add(tr.Pair, tr.Follower, 1))
		}

		for range 50 {
			tr, err := s.RandomTriple()
			require.NoError(t, err)
			require.True(t, stored[tr], "unexpected triple %v", tr)
		}
	})

	t.Run("Entries lists every row with its count", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		require.NoError(t, s.Add(brain.Pair("a", "b"), "c", 2))
		require.NoError(t, s.Add(brain.Pair("a", "b"), "d", 1))
		require.NoError(t, s.Add(brain.Pair("b", "c"), "a", 5))

		entries, err := s.Entries()
		require.NoError(t, err)
		require.ElementsMatch(t, []brain.Entry{
			{Triple: brain.Triple{Pair: brain.Pair("a", "b"), Follower: "c"}, Count: 2},
			{Triple: brain.Triple{Pair: brain.Pair("a", "b"), Follower: "d"}, Count: 1},
			{Triple: brain.Triple{Pair: brain.Pair("b", "c"), Follower: "a"}, Count: 5},
		}, entries.Collect())
	})

	t.Run("Concurrent adds are not lost", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		const (
			workers = 8
			adds    = 200
		)
		pair := brain.Pair("hot", "key")

		var wg sync.WaitGroup
		for w := range workers {
			wg.Add(1)
			go func(amount int) {
				defer wg.Done()
				for range adds {
					if err := s.Add(pair, "x", amount); err != nil {
						t.Error(err)
						return
					}
				}
			}(w + 1)
		}

		// readers run alongside the writers
		var readers sync.WaitGroup
		readers.Add(1)
		go func() {
			defer readers.Done()
			for range adds {
				if _, err := s.Followers(pair); err != nil {
					t.Error(err)
					return
				}
			}
		}()

		wg.Wait()
		readers.Wait()

		followers, err := s.Followers(pair)
		require.NoError(t, err)
		// amounts 1..8, each added `adds` times
		require.Equal(t, adds*workers*(workers+1)/2, followers["x"])
	})
}
