package markov

import "errors"

var (
	ErrUnknownBackend = errors.New("unknown backend")
	ErrMissingBrain   = errors.New("brain file does not exist")
)
