// Package sqlstore keeps the brain in a sqlite table, one row per
// (word1, word2, follower) with its count.
//
// All statements run inside one long-lived transaction, the session. Save
// commits the session and opens the next one, so a crash loses whatever was
// learned since the previous Save.
package sqlstore

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"

	"github.com/zeusync/markov/internal/core/brain"
	"github.com/zeusync/markov/internal/core/observability/log"
	"github.com/zeusync/markov/pkg/sequence"
)

var _ brain.Store = (*Store)(nil)

// foldFunc is a sqlite scalar function lower-casing with the same rules as
// strings.ToLower, so both backends agree on case-insensitive matches.
const foldFunc = "fold"

var registerFold sync.Once

func registerFoldFunc() (err error) {
	registerFold.Do(func() {
		err = sqlite.RegisterDeterministicScalarFunction(foldFunc, 1,
			func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
				switch v := args[0].(type) {
				case string:
					return strings.ToLower(v), nil
				case []byte:
					return strings.ToLower(string(v)), nil
				case nil:
					return nil, nil
				default:
					return nil, fmt.Errorf("%s: unsupported argument %T", foldFunc, v)
				}
			})
	})
	return err
}

const schema = `
	CREATE TABLE IF NOT EXISTS markov (
		id       INTEGER PRIMARY KEY AUTOINCREMENT,
		word1    VARCHAR(255) NOT NULL,
		word2    VARCHAR(255) NOT NULL,
		follower VARCHAR(255) NOT NULL,
		count    INTEGER      NOT NULL
	);

	CREATE INDEX IF NOT EXISTS word_pair ON markov(word1, word2);
`

// Store is single-session: every call goes through one transaction. A mutex
// serializes callers so the session is never used from two goroutines at once.
type Store struct {
	mu sync.Mutex

	db      *sql.DB
	tx      *sql.Tx
	session string
	pending int
	closed  bool

	random func() float64
	logger log.Log
}

type Option func(*Store)

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

// Open opens or creates the sqlite database at path, creates the table when it
// is missing and starts the first session.
func Open(path string, opts ...Option) (*Store, error) {
	if err := registerFoldFunc(); err != nil {
		return nil, fmt.Errorf("sqlstore: register %s: %w", foldFunc, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open database: %w", err)
	}
	// the session transaction owns the only connection
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlstore: pragma %q: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlstore: migration: %w", err)
	}

	s := &Store{
		db:     db,
		random: rand.Float64,
		logger: log.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(log.String("component", "brain.sqlstore"), log.String("path", path))

	if err := s.begin(); err != nil {
		_ = db.Close()
		return nil, err
	}

	var rows int
	if err := s.tx.QueryRow(`SELECT COUNT(*) FROM markov`).Scan(&rows); err != nil {
		_ = s.tx.Rollback()
		_ = db.Close()
		return nil, fmt.Errorf("sqlstore: count rows: %w", err)
	}
	s.logger.Info("Brain opened", log.Int("entries", rows))

	return s, nil
}

func (s *Store) begin() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("sqlstore: begin session: %w", err)
	}
	s.tx = tx
	s.session = uuid.NewString()
	s.pending = 0
	return nil
}

// Add finds the row for the full triple and increments it, or inserts it.
func (s *Store) Add(pair brain.WordPair, follower string, amount int) error {
	if amount < 1 {
		return brain.ErrInvalidAdd
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return brain.ErrClosed
	}

	var id int64
	err := s.tx.QueryRow(
		`SELECT id FROM markov WHERE word1 = ? AND word2 = ? AND follower = ? LIMIT 1`,
		pair.First, pair.Second, follower,
	).Scan(&id)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = s.tx.Exec(
			`INSERT INTO markov (word1, word2, follower, count) VALUES (?, ?, ?, ?)`,
			pair.First, pair.Second, follower, amount,
		)
	case err == nil:
		_, err = s.tx.Exec(`UPDATE markov SET count = count + ? WHERE id = ?`, amount, id)
	}
	if err != nil {
		return fmt.Errorf("sqlstore: add: %w", err)
	}

	s.pending++
	return nil
}

func (s *Store) Followers(pair brain.WordPair) (brain.Followers, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, brain.ErrClosed
	}

	rows, err := s.tx.Query(
		`SELECT follower, count FROM markov WHERE word1 = ? AND word2 = ?`,
		pair.First, pair.Second,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: followers: %w", err)
	}
	defer rows.Close()

	followers := brain.Followers{}
	for rows.Next() {
		var (
			follower string
			count    int
		)
		if err := rows.Scan(&follower, &count); err != nil {
			return nil, fmt.Errorf("sqlstore: followers: %w", err)
		}
		if count < 1 {
			return nil, badCount(pair, follower, count)
		}
		followers[follower] += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: followers: %w", err)
	}
	return followers, nil
}

func (s *Store) ContainsPair(pair brain.WordPair) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, brain.ErrClosed
	}

	var one int
	err := s.tx.QueryRow(
		`SELECT 1 FROM markov WHERE word1 = ? AND word2 = ? LIMIT 1`,
		pair.First, pair.Second,
	).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("sqlstore: contains pair: %w", err)
	}
	return true, nil
}

// PairsContainingWord scans both word columns with a case-folded predicate.
// Pairs come back in the order they were first stored.
func (s *Store) PairsContainingWord(word string) (*sequence.Iterator[brain.WordPair], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, brain.ErrClosed
	}

	folded := strings.ToLower(word)
	rows, err := s.tx.Query(
		`SELECT word1, word2 FROM markov
		 WHERE fold(word1) = ? OR fold(word2) = ?
		 GROUP BY word1, word2
		 ORDER BY MIN(id)`,
		folded, folded,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: pairs containing word: %w", err)
	}
	defer rows.Close()

	var pairs []brain.WordPair
	for rows.Next() {
		var p brain.WordPair
		if err := rows.Scan(&p.First, &p.Second); err != nil {
			return nil, fmt.Errorf("sqlstore: pairs containing word: %w", err)
		}
		pairs = append(pairs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: pairs containing word: %w", err)
	}
	return sequence.From(pairs), nil
}

func (s *Store) IsEmpty() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, brain.ErrClosed
	}

	var one int
	err := s.tx.QueryRow(`SELECT 1 FROM markov LIMIT 1`).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return true, nil
	case err != nil:
		return false, fmt.Errorf("sqlstore: is empty: %w", err)
	}
	return false, nil
}

// RandomTriple counts the rows and fetches the one at floor(rand*count) in id order.
func (s *Store) RandomTriple() (brain.Triple, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return brain.Triple{}, brain.ErrClosed
	}

	var count int
	if err := s.tx.QueryRow(`SELECT COUNT(*) FROM markov`).Scan(&count); err != nil {
		return brain.Triple{}, fmt.Errorf("sqlstore: random triple: %w", err)
	}
	if count == 0 {
		return brain.Triple{}, brain.ErrEmptyStore
	}

	offset := int(s.random() * float64(count))
	if offset >= count {
		offset = count - 1
	}

	var t brain.Triple
	err := s.tx.QueryRow(
		`SELECT word1, word2, follower FROM markov ORDER BY id LIMIT 1 OFFSET ?`,
		offset,
	).Scan(&t.Pair.First, &t.Pair.Second, &t.Follower)
	if err != nil {
		return brain.Triple{}, fmt.Errorf("sqlstore: random triple: %w", err)
	}
	return t, nil
}

func (s *Store) Entries() (*sequence.Iterator[brain.Entry], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, brain.ErrClosed
	}

	rows, err := s.tx.Query(`SELECT word1, word2, follower, count FROM markov ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: entries: %w", err)
	}
	defer rows.Close()

	var entries []brain.Entry
	for rows.Next() {
		var e brain.Entry
		if err := rows.Scan(&e.Pair.First, &e.Pair.Second, &e.Follower, &e.Count); err != nil {
			return nil, fmt.Errorf("sqlstore: entries: %w", err)
		}
		if e.Count < 1 {
			return nil, badCount(e.Pair, e.Follower, e.Count)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: entries: %w", err)
	}
	return sequence.From(entries), nil
}

// Save commits the current session and starts a new one. With nothing pending
// it does nothing. A failed commit discards the session's changes, as a crash
// would; the error matches brain.ErrPersistence.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return brain.ErrClosed
	}
	return s.commit()
}

func (s *Store) commit() error {
	if s.pending == 0 {
		s.logger.Debug("Session unchanged, skipping commit", log.String("session", s.session))
		return nil
	}

	start := time.Now()
	session, pending := s.session, s.pending
	commitErr := s.tx.Commit()
	if err := s.begin(); err != nil {
		return brain.PersistenceError("begin session", errors.Join(commitErr, err))
	}
	if commitErr != nil {
		return brain.PersistenceError("commit session", commitErr)
	}

	s.logger.Info("Session committed",
		log.String("session", session),
		log.Int("changes", pending),
		log.Duration("took", time.Since(start)),
	)
	return nil
}

// Close commits pending changes and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if s.pending > 0 {
		if err := s.tx.Commit(); err != nil {
			errs = append(errs, brain.PersistenceError("commit session", err))
		}
	} else {
		_ = s.tx.Rollback()
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("sqlstore: close database: %w", err))
	}
	return errors.Join(errs...)
}

func badCount(pair brain.WordPair, follower string, count int) error {
	return &brain.MalformedDataError{
		Source: "markov",
		Reason: fmt.Sprintf("row (%q, %q, %q) has count %d", pair.First, pair.Second, follower, count),
	}
}
