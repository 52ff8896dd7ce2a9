// Package markov generates chat replies from a second order markov chain and
// learns the chain from the lines it is shown.
package markov

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zeusync/markov/internal/core/brain"
	"github.com/zeusync/markov/internal/core/brain/memory"
	"github.com/zeusync/markov/internal/core/brain/sqlstore"
	"github.com/zeusync/markov/internal/core/observability/log"
)

// Backend is what a chat front end talks to. Implementations are chosen by name
// at startup, see Open.
type Backend interface {
	// Learn feeds one line of chat into the backend.
	Learn(line string) error
	// Reply answers message. The reply may be empty.
	Reply(message string) (string, error)
	// Save flushes learned state. It is safe to call with nothing pending.
	Save() error
	// IsEmpty reports whether the backend has learned anything yet.
	IsEmpty() (bool, error)
	Close() error
}

const (
	BackendMarkov    = "markov"
	BackendMarkovSQL = "markov-sql"
	BackendEcho      = "echo"
)

type opener func(brainPath string, o *options) (Backend, error)

var backends = map[string]opener{
	BackendMarkov:    openChain(BackendMarkov),
	BackendMarkovSQL: openChain(BackendMarkovSQL),
	BackendEcho: func(string, *options) (Backend, error) {
		return Echo{}, nil
	},
}

func openChain(name string) opener {
	return func(brainPath string, o *options) (Backend, error) {
		store, err := OpenStore(name, brainPath, o.logger)
		if err != nil {
			return nil, err
		}
		return newChain(store, o), nil
	}
}

// Backends lists the names Open accepts, sorted.
func Backends() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open builds the backend registered under name, keeping its brain at brainPath.
func Open(name, brainPath string, opts ...Option) (Backend, error) {
	open, ok := backends[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownBackend, name, strings.Join(Backends(), ", "))
	}

	o := newOptions(opts)
	o.logger.Info("Opening backend", log.String("backend", name), log.String("brain", brainPath))
	return open(brainPath, o)
}

// OpenStore opens just the frequency store a chain backend would use.
func OpenStore(name, brainPath string, logger log.Log) (brain.Store, error) {
	switch name {
	case BackendMarkov:
		return memory.Open(brainPath, memory.WithLogger(logger))
	case BackendMarkovSQL:
		return sqlstore.Open(brainPath, sqlstore.WithLogger(logger))
	default:
		return nil, fmt.Errorf("%w: %q has no store", ErrUnknownBackend, name)
	}
}

// DummyReply is what Echo answers with.
const DummyReply = "(dummy response)"

// Echo ignores what it is taught and always answers DummyReply.
type Echo struct{}

func (Echo) Learn(string) error { return nil }
func (Echo) Reply(string) (string, error) { return DummyReply, nil }
func (Echo) Save() error { return nil }
func (Echo) IsEmpty() (bool, error) { return false, nil }
func (Echo) Close() error { return nil }
