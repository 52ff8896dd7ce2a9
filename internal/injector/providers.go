// Package injector assembles the bot from its configuration.
package injector

import (
	"github.com/google/wire"

	"github.com/zeusync/markov/internal/config"
	"github.com/zeusync/markov/internal/core/markov"
	"github.com/zeusync/markov/internal/core/observability/log"
	"github.com/zeusync/markov/internal/server"
)

// Core is what the offline commands need: a logger and an open backend.
type Core struct {
	Config  *config.Config
	Logger  log.Log
	Backend markov.Backend
}

// App is a fully wired bot with its chat gateway.
type App struct {
	*Core
	Server *server.Server
}

var CoreSet = wire.NewSet(
	ProvideLogger,
	wire.Bind(new(log.Log), new(*log.Logger)),
	ProvideBackend,
	wire.Struct(new(Core), "*"),
)

var ServerSet = wire.NewSet(
	ProvideServerConfig,
	ProvideBot,
	server.NewServer,
)

func ProvideLogger(cfg *config.Config) (*log.Logger, func(), error) {
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}

	logger, err := log.New(log.Config{Level: level, Encoding: cfg.Log.Encoding})
	if err != nil {
		return nil, nil, err
	}
	return logger, func() { _ = logger.Sync() }, nil
}

// ProvideBackend opens the configured backend. The cleanup closes it, which
// saves anything still pending.
func ProvideBackend(cfg *config.Config, logger log.Log) (markov.Backend, func(), error) {
	backend, err := markov.Open(cfg.Backend, cfg.BrainPath,
		markov.WithLogger(logger),
		markov.WithMaxWords(cfg.MaxReplyWords),
	)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		if err := backend.Close(); err != nil {
			logger.Error("Failed to close backend", log.Error(err))
		}
	}
	return backend, cleanup, nil
}

func ProvideServerConfig(cfg *config.Config) server.Config {
	sc := server.DefaultServerConfig()
	sc.ListenAddr = cfg.Server.ListenAddr
	sc.Token = cfg.Server.Token
	return sc
}

func ProvideBot(backend markov.Backend, cfg *config.Config, logger log.Log) *server.Bot {
	return server.NewBot(backend, cfg, logger)
}
