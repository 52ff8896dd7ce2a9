package markov

import (
	"errors"
	"slices"
	"strings"

	"github.com/zeusync/markov/internal/core/brain"
	"github.com/zeusync/markov/internal/core/observability/log"
	"github.com/zeusync/markov/internal/core/text"
)

var _ Backend = (*Chain)(nil)

// Chain is the markov backend. It owns its store: Save and Close go through to it.
type Chain struct {
	store    brain.Store
	rng      Source
	maxWords int
	logger   log.Log
}

// NewChain returns a chain learning into and replying from store.
func NewChain(store brain.Store, opts ...Option) *Chain {
	return newChain(store, newOptions(opts))
}

func newChain(store brain.Store, o *options) *Chain {
	return &Chain{
		store:    store,
		rng:      o.source,
		maxWords: o.maxWords,
		logger:   o.logger.With(log.String("component", "markov")),
	}
}

// Store returns the underlying frequency store.
func (c *Chain) Store() brain.Store {
	return c.store
}

// Learn records every three word window of line. Lines with fewer than three
// tokens teach nothing.
func (c *Chain) Learn(line string) error {
	words := text.Tokenize(line)
	for i := 0; i+2 < len(words); i++ {
		if err := c.store.Add(brain.Pair(words[i], words[i+1]), words[i+2], 1); err != nil {
			return err
		}
	}
	return nil
}

// Reply seeds a sentence from a word of message and extends it along the chain
// until the last two words were never followed by anything or the sentence is
// maxWords long. An empty store answers with an empty string.
func (c *Chain) Reply(message string) (string, error) {
	empty, err := c.store.IsEmpty()
	if err != nil {
		return "", err
	}
	if empty {
		return "", nil
	}

	words, err := c.seed(message)
	if errors.Is(err, brain.ErrEmptyStore) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	for len(words) < c.maxWords {
		followers, err := c.store.Followers(brain.Pair(words[len(words)-2], words[len(words)-1]))
		if err != nil {
			return "", err
		}
		// a pair the store contains always has at least one follower
		next, ok := WeightedChoice(followers, c.rng)
		if !ok {
			break
		}
		words = append(words, next)
	}

	return strings.Join(words, " "), nil
}

// seed returns the opening words of a reply: a stored pair containing a random
// word of message, or a random stored triple when no word of message is known.
func (c *Chain) seed(message string) ([]string, error) {
	candidates := text.Fields(message)
	for len(candidates) > 0 {
		i := c.rng.IntN(len(candidates))
		pairs, err := c.store.PairsContainingWord(candidates[i])
		if err != nil {
			return nil, err
		}

		if seeds := pairs.Collect(); len(seeds) > 0 {
			pair := seeds[c.rng.IntN(len(seeds))]
			return []string{pair.First, pair.Second}, nil
		}
		candidates = slices.Delete(candidates, i, i+1)
	}

	triple, err := c.store.RandomTriple()
	if err != nil {
		return nil, err
	}
	c.logger.Debug("No seed in message, starting from a random triple")
	return triple.Words(), nil
}

func (c *Chain) Save() error {
	return c.store.Save()
}

func (c *Chain) IsEmpty() (bool, error) {
	return c.store.IsEmpty()
}

func (c *Chain) Close() error {
	return c.store.Close()
}
