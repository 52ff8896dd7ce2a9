//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"

	"github.com/zeusync/markov/internal/config"
)

func InitializeCore(cfg *config.Config) (*Core, func(), error) {
	wire.Build(CoreSet)
	return nil, nil, nil
}

func InitializeApp(cfg *config.Config) (*App, func(), error) {
	wire.Build(CoreSet, ServerSet, wire.Struct(new(App), "*"))
	return nil, nil, nil
}
