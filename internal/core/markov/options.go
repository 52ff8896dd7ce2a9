package markov

import (
	"math/rand/v2"
	"sync"

	"github.com/zeusync/markov/internal/core/observability/log"
)

// DefaultMaxWords caps the length of a generated reply.
const DefaultMaxWords = 100

// Source is the randomness a chain draws from. *rand.Rand satisfies it.
type Source interface {
	IntN(n int) int
	Float64() float64
}

type globalSource struct{}

func (globalSource) IntN(n int) int { return rand.IntN(n) }
func (globalSource) Float64() float64 { return rand.Float64() }

// lockedSource lets a non thread-safe Source be shared by concurrent replies.
type lockedSource struct {
	mu  sync.Mutex
	src Source
}

func (l *lockedSource) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.src.IntN(n)
}

func (l *lockedSource) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.src.Float64()
}

type options struct {
	logger   log.Log
	source   Source
	maxWords int
}

type Option func(*options)

func WithLogger(logger log.Log) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithSource replaces the global random source, mostly so tests can seed it.
func WithSource(src Source) Option {
	return func(o *options) {
		o.source = &lockedSource{src: src}
	}
}

// WithMaxWords caps replies at n words. Values below 3 are ignored.
func WithMaxWords(n int) Option {
	return func(o *options) {
		if n >= 3 {
			o.maxWords = n
		}
	}
}

func newOptions(opts []Option) *options {
	o := &options{
		logger:   log.Nop(),
		source:   globalSource{},
		maxWords: DefaultMaxWords,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
