package markov

import (
	"fmt"
	"os"
	"time"

	"github.com/zeusync/markov/internal/core/brain"
	"github.com/zeusync/markov/internal/core/brain/flatfile"
	"github.com/zeusync/markov/internal/core/observability/log"
)

// Migrate copies the text brain at textPath into dst and saves dst. dst must be
// empty so that counts are never merged into an existing brain. It returns the
// number of entries copied.
func Migrate(textPath string, dst brain.Store, logger log.Log) (int, error) {
	empty, err := dst.IsEmpty()
	if err != nil {
		return 0, err
	}
	if !empty {
		return 0, brain.ErrNotEmpty
	}

	if _, err := os.Stat(textPath); err != nil {
		return 0, fmt.Errorf("%w: %s", ErrMissingBrain, textPath)
	}

	start := time.Now()
	entries := 0
	found, err := flatfile.Load(textPath, func(line flatfile.Line) error {
		for _, f := range line.Followers {
			if err := dst.Add(line.Pair, f.Word, f.Count); err != nil {
				return err
			}
			entries++
		}
		return nil
	})
	if err != nil {
		return entries, err
	}
	if !found {
		return 0, fmt.Errorf("%w: %s", ErrMissingBrain, textPath)
	}

	if err := dst.Save(); err != nil {
		return entries, err
	}

	logger.Info("Brain migrated",
		log.String("from", textPath),
		log.Int("entries", entries),
		log.Duration("took", time.Since(start)),
	)
	return entries, nil
}
