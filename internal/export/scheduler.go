package export

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"gallery/internal/domain"
)

// AppendFunc receives one finished asset for archiving. Calls may arrive
// from concurrent pipelines in completion order.
type AppendFunc func(name string, data []byte) error

// Result is the settled outcome of a batch run.
type Result struct {
	SuccessCount int
	Failures     []domain.AssetFailure
}

// Scheduler drives asset pipelines (fetch, transform, append) with a fixed
// concurrency ceiling. A slow asset only ever occupies one slot; the
// remaining slots keep refilling from the worklist.
type Scheduler struct {
	fetcher AssetFetcher
	stage   *Stage
	limit   int
	logger  zerolog.Logger
}

// NewScheduler builds a scheduler with the given concurrency ceiling.
func NewScheduler(fetcher AssetFetcher, stage *Stage, limit int, logger zerolog.Logger) *Scheduler {
	if limit <= 0 {
		limit = 5
	}
	return &Scheduler{fetcher: fetcher, stage: stage, limit: limit, logger: logger}
}

// Run processes every ref and reports the aggregate outcome. Fetch failures
// are recorded per asset and never abort the batch; a sink error is fatal
// (the outbound stream is broken) and cancels the remaining work. On
// cancellation the error is returned and no further pipelines start.
func (s *Scheduler) Run(ctx context.Context, refs []domain.AssetRef, wm *domain.WatermarkSpec, profile *domain.OutputProfile, sink AppendFunc) (Result, error) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.limit)

	var mu sync.Mutex
	var res Result

	for _, ref := range refs {
		ref := ref
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			data, err := s.fetcher.Fetch(ctx, ref)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.logger.Warn().Err(err).Str("asset", ref.ID).Str("filename", ref.Filename).Msg("asset fetch failed")
				mu.Lock()
				res.Failures = append(res.Failures, domain.AssetFailure{Filename: ref.Filename, Reason: err.Error()})
				mu.Unlock()
				return nil
			}

			data, name := s.stage.Apply(data, ref.Filename, wm, profile)
			if err := sink(name, data); err != nil {
				return fmt.Errorf("append %q: %w", name, err)
			}

			mu.Lock()
			res.SuccessCount++
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return res, err
	}
	return res, nil
}
