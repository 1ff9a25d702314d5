package analysis

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/thebtf/ticketsim/pkg/models"
)

const (
	// DefaultBatchSize is the number of references analyzed concurrently.
	DefaultBatchSize = 5
	// DefaultBatchDelay is the pause between chunks.
	DefaultBatchDelay = time.Second
)

// BatchItem is the outcome for one reference key of a batch.
type BatchItem struct {
	Err     error               `json:"-"`
	Run     *models.AnalysisRun `json:"run,omitempty"`
	Key     string              `json:"key"`
	Error   string              `json:"error,omitempty"`
	Skipped bool                `json:"skipped,omitempty"`
}

// AnalyzeBatch analyzes the keys in fixed-size chunks with a pause between
// chunks. Members of a chunk run concurrently; items are returned in input
// order.
//
// Cancellation is observed between chunks: a chunk already started runs to
// completion, and every later item is marked skipped.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, keys []string, opts Options) []BatchItem {
	logger := zerolog.Ctx(ctx)
	atomic.AddInt64(&a.stats.BatchRuns, 1)

	items := make([]BatchItem, len(keys))
	for i, k := range keys {
		items[i].Key = k
	}

	size := a.cfg.BatchSize
	for start := 0; start < len(keys); start += size {
		if start > 0 && !a.pause(ctx) {
			skipFrom(items, start, ctx.Err())
			logger.Info().Int("skipped", len(keys)-start).Msg("Batch cancelled, remaining items skipped")
			return items
		}
		if err := ctx.Err(); err != nil {
			skipFrom(items, start, err)
			return items
		}

		end := min(start+size, len(keys))
		// In-flight members are not aborted by batch cancellation
		memberCtx := context.WithoutCancel(ctx)

		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				run, err := a.Analyze(memberCtx, keys[i], opts)
				items[i].Run = run
				if err != nil {
					items[i].Err = err
					items[i].Error = err.Error()
				}
				return nil
			})
		}
		_ = g.Wait()

		logger.Debug().Int("chunk_start", start).Int("chunk_end", end).Msg("Batch chunk complete")
	}
	return items
}

// pause waits for the inter-chunk delay. It reports false when ctx is
// cancelled first.
func (a *Analyzer) pause(ctx context.Context) bool {
	if a.cfg.BatchDelay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(a.cfg.BatchDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func skipFrom(items []BatchItem, start int, err error) {
	for i := start; i < len(items); i++ {
		items[i].Skipped = true
		items[i].Err = err
		if err != nil {
			items[i].Error = err.Error()
		}
	}
}
