package markov

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/zeusync/markov/internal/core/observability/log"
	"github.com/zeusync/markov/pkg/concurrent"
	"github.com/zeusync/markov/pkg/sequence"
)

// TrainFile teaches b every line of the UTF-8 text file at path and saves it.
func TrainFile(ctx context.Context, b Backend, path string, workers int, logger log.Log) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open training file: %w", err)
	}
	defer f.Close()

	return TrainReader(ctx, b, f, workers, logger.With(log.String("file", path)))
}

// TrainReader teaches b every line read from r, then saves b. Learning is
// commutative, so lines are learned by up to workers goroutines at once.
// It returns the number of lines learned.
func TrainReader(ctx context.Context, b Backend, r io.Reader, workers int, logger log.Log) (int, error) {
	start := time.Now()
	var (
		readErr error
		learned atomic.Int64
	)

	reader := bufio.NewReader(r)
	lines := sequence.FromSeq(func(yield func(string) bool) {
		for {
			line, err := reader.ReadString('\n')
			if line != "" && !yield(line) {
				return
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					readErr = err
				}
				return
			}
		}
	})

	err := concurrent.ForEach(ctx, lines, workers, func(_ context.Context, line string) error {
		if err := b.Learn(line); err != nil {
			return err
		}
		learned.Add(1)
		return nil
	})
	n := int(learned.Load())
	if err != nil {
		return n, fmt.Errorf("train: %w", err)
	}
	if readErr != nil {
		return n, fmt.Errorf("train: read: %w", readErr)
	}

	if err := b.Save(); err != nil {
		return n, err
	}

	logger.Info("Training complete",
		log.Int("lines", n),
		log.Int("workers", workers),
		log.Duration("took", time.Since(start)),
	)
	return n, nil
}
