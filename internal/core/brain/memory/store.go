// Package memory is the in-process brain backend: a plain map guarded by one
// mutex, persisted to a flat text file.
package memory

import (
	"io"
	"iter"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/zeusync/markov/internal/core/brain"
	"github.com/zeusync/markov/internal/core/brain/flatfile"
	"github.com/zeusync/markov/internal/core/observability/log"
	"github.com/zeusync/markov/pkg/sequence"
)

var _ brain.Store = (*Store)(nil)

// Store keeps the whole chain in memory. Every operation takes the single
// store-wide lock, so readers never observe a half applied Add. Enumerations
// copy what they need while holding the lock and return the copy.
type Store struct {
	mu sync.Mutex

	chain map[brain.WordPair]brain.Followers
	// rows lists every (pair, follower) in the order it was first seen and is
	// the natural row order RandomTriple offsets into.
	rows []brain.Triple
	// folded indexes pairs by the hash of each lower-cased word.
	folded map[uint64][]brain.WordPair

	version      uint64
	savedVersion uint64
	closed       bool

	// saveMu serializes Save so two flushes never race on the temp file rename.
	saveMu sync.Mutex
	path   string

	random func() float64
	logger log.Log
}

type Option func(*Store)

// WithLogger sets the logger used for load and save reporting.
func WithLogger(logger log.Log) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithRandom replaces the uniform [0,1) source used by RandomTriple.
func WithRandom(random func() float64) Option {
	return func(s *Store) {
		s.random = random
	}
}

// New returns an empty store that is never persisted; Save is a no-op.
func New(opts ...Option) *Store {
	s := &Store{
		chain:  make(map[brain.WordPair]brain.Followers),
		folded: make(map[uint64][]brain.WordPair),
		random: rand.Float64,
		logger: log.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(log.String("component", "brain.memory"))
	return s
}

// Open loads the brain file at path and returns a store that saves back to it.
// A missing or unreadable file yields an empty store. A malformed file is an
// error matching brain.ErrMalformedData.
func Open(path string, opts ...Option) (*Store, error) {
	s := New(opts...)
	s.path = path

	start := time.Now()
	found, err := flatfile.Load(path, func(line flatfile.Line) error {
		for _, f := range line.Followers {
			s.add(line.Pair, f.Word, f.Count)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.savedVersion = s.version
	if !found {
		s.logger.Info("No brain file, starting empty", log.String("path", path))
		return s, nil
	}

	s.logger.Info("Brain loaded",
		log.String("path", path),
		log.Int("pairs", len(s.chain)),
		log.Int("entries", len(s.rows)),
		log.Duration("took", time.Since(start)),
	)
	return s, nil
}

func (s *Store) Add(pair brain.WordPair, follower string, amount int) error {
	if amount < 1 {
		return brain.ErrInvalidAdd
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return brain.ErrClosed
	}
	s.add(pair, follower, amount)
	return nil
}

// add must be called with mu held, or before the store is shared.
func (s *Store) add(pair brain.WordPair, follower string, amount int) {
	followers, ok := s.chain[pair]
	if !ok {
		followers = make(brain.Followers, 1)
		s.chain[pair] = followers
		s.index(pair)
	}
	if _, seen := followers[follower]; !seen {
		s.rows = append(s.rows, brain.Triple{Pair: pair, Follower: follower})
	}
	followers[follower] += amount
	s.version++
}

func (s *Store) index(pair brain.WordPair) {
	first := foldKey(pair.First)
	s.folded[first] = append(s.folded[first], pair)
	if second := foldKey(pair.Second); second != first {
		s.folded[second] = append(s.folded[second], pair)
	}
}

func foldKey(word string) uint64 {
	return xxhash.Sum64String(strings.ToLower(word))
}

func (s *Store) Followers(pair brain.WordPair) (brain.Followers, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	followers, ok := s.chain[pair]
	if !ok {
		return brain.Followers{}, nil
	}
	return followers.Clone(), nil
}

func (s *Store) ContainsPair(pair brain.WordPair) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.chain[pair]
	return ok, nil
}

// PairsContainingWord looks the word up in the case-folded index and confirms
// every candidate, since distinct words may share a hash.
func (s *Store) PairsContainingWord(word string) (*sequence.Iterator[brain.WordPair], error) {
	lower := strings.ToLower(word)

	s.mu.Lock()
	candidates := s.folded[foldKey(word)]
	pairs := make([]brain.WordPair, 0, len(candidates))
	for _, p := range candidates {
		if strings.ToLower(p.First) == lower || strings.ToLower(p.Second) == lower {
			pairs = append(pairs, p)
		}
	}
	s.mu.Unlock()

	return sequence.From(pairs), nil
}

func (s *Store) IsEmpty() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows) == 0, nil
}

func (s *Store) RandomTriple() (brain.Triple, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.rows)
	if n == 0 {
		return brain.Triple{}, brain.ErrEmptyStore
	}
	offset := int(s.random() * float64(n))
	if offset >= n {
		offset = n - 1
	}
	return s.rows[offset], nil
}

func (s *Store) Entries() (*sequence.Iterator[brain.Entry], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]brain.Entry, len(s.rows))
	for i, row := range s.rows {
		entries[i] = brain.Entry{Triple: row, Count: s.chain[row.Pair][row.Follower]}
	}
	return sequence.From(entries), nil
}

// Len returns the number of distinct pairs.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chain)
}

// IsDirty reports whether there are changes that have not been saved yet.
func (s *Store) IsDirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version != s.savedVersion
}

// Save writes the brain to its file when anything changed since the last save.
// The chain is copied under the lock and written without it, so learning
// continues while the file is written. Failures match brain.ErrPersistence and
// leave the store dirty for the next attempt.
func (s *Store) Save() error {
	if s.path == "" {
		return nil
	}

	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	lines, version, dirty := s.snapshot()
	if !dirty {
		s.logger.Debug("Brain unchanged, skipping save")
		return nil
	}

	start := time.Now()
	err := flatfile.WriteAtomic(s.path, func(w io.Writer) error {
		return flatfile.Encode(w, lines)
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	if version > s.savedVersion {
		s.savedVersion = version
	}
	s.mu.Unlock()

	s.logger.Info("Brain saved",
		log.String("path", s.path),
		log.Duration("took", time.Since(start)),
	)
	return nil
}

// snapshot copies the chain into file lines, pairs ordered by first appearance
// and followers by row order.
func (s *Store) snapshot() (iter.Seq[flatfile.Line], uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.version == s.savedVersion {
		return nil, s.version, false
	}

	lines := make([]flatfile.Line, 0, len(s.chain))
	at := make(map[brain.WordPair]int, len(s.chain))
	for _, row := range s.rows {
		i, ok := at[row.Pair]
		if !ok {
			i = len(lines)
			at[row.Pair] = i
			lines = append(lines, flatfile.Line{Pair: row.Pair})
		}
		lines[i].Followers = append(lines[i].Followers, flatfile.Follower{
			Word:  row.Follower,
			Count: s.chain[row.Pair][row.Follower],
		})
	}

	return slices.Values(lines), s.version, true
}

// Close saves pending changes and rejects further writes.
func (s *Store) Close() error {
	err := s.Save()

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return err
}
