package markov

import (
	"context"
	"time"

	"github.com/zeusync/markov/internal/core/observability/log"
)

// DefaultSaveInterval is how often a running bot flushes its brain.
const DefaultSaveInterval = 10 * time.Minute

type saver interface {
	Save() error
}

// SaveEvery saves s every interval until ctx is done, then saves one last time
// and returns that result. Failed periodic saves are logged and retried on the
// next tick.
func SaveEvery(ctx context.Context, s saver, interval time.Duration, logger log.Log) error {
	if interval <= 0 {
		interval = DefaultSaveInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Saving brain before shutdown")
			return s.Save()
		case <-ticker.C:
			if err := s.Save(); err != nil {
				logger.Warn("Periodic save failed, retrying next interval",
					log.Error(err),
					log.Duration("interval", interval),
				)
			}
		}
	}
}
