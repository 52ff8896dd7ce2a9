// Package brain defines the frequency store behind the markov chain: for every
// ordered pair of words it records which words followed the pair and how often.
//
// Two backends implement Store: memory (a mutex guarded map persisted to a flat
// text file) and sqlstore (a sqlite table persisted by committing its session).
package brain

import (
	"github.com/zeusync/markov/pkg/sequence"
)

// WordPair is the two word context a follower is chosen from.
// Equality is exact, case-sensitive string equality.
type WordPair struct {
	First  string
	Second string
}

func Pair(first, second string) WordPair {
	return WordPair{First: first, Second: second}
}

// Followers maps a following word to the number of times it was observed.
// Every count is at least 1.
type Followers map[string]int

// Total returns the sum of all counts.
func (f Followers) Total() int {
	total := 0
	for _, c := range f {
		total += c
	}
	return total
}

// Clone returns an independent copy.
func (f Followers) Clone() Followers {
	out := make(Followers, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Triple is a single observed (word1, word2, follower) sequence.
type Triple struct {
	Pair     WordPair
	Follower string
}

// Words returns the triple as three words in order.
func (t Triple) Words() []string {
	return []string{t.Pair.First, t.Pair.Second, t.Follower}
}

// Entry is the persisted unit: a triple and its count.
type Entry struct {
	Triple
	Count int
}

// Store is the contract both backends satisfy.
//
// Reads never hand out live references: Followers returns a copy and
// PairsContainingWord returns a snapshot that may be enumerated repeatedly.
type Store interface {
	// Add increments the count of follower after pair by amount, creating the
	// entry when it does not exist yet. Concurrent adds on the same key are not lost.
	Add(pair WordPair, follower string, amount int) error

	// Followers returns the distribution for pair, empty when the pair is unknown.
	Followers(pair WordPair) (Followers, error)

	ContainsPair(pair WordPair) (bool, error)

	// PairsContainingWord returns every distinct pair whose first or second word
	// equals word ignoring case.
	PairsContainingWord(word string) (*sequence.Iterator[WordPair], error)

	IsEmpty() (bool, error)

	// RandomTriple picks a stored row at offset floor(rand*rows) in the store's
	// natural row order. The pick is uniform over rows, not weighted by count, and
	// a concurrent Add between counting and fetching may shift the offset.
	// It fails with ErrEmptyStore when there are no rows.
	RandomTriple() (Triple, error)

	// Entries enumerates a snapshot of every stored entry.
	Entries() (*sequence.Iterator[Entry], error)

	// Save makes all changes so far durable. Calling it with nothing pending is a no-op.
	Save() error

	Close() error
}
