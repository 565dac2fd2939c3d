package pipeline

import (
	"context"
	"math"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/cnpj-finder/internal/model"
)

// newLimiter derives the shared search limiter for parallel mode. An explicit
// RateLimitRPS wins; otherwise the sequential delay is turned into a rate.
func newLimiter(cfg Config) *rate.Limiter {
	rps := cfg.RateLimitRPS
	if rps <= 0 && cfg.Delay > 0 {
		rps = 1 / cfg.Delay.Seconds()
	}
	if rps <= 0 || math.IsInf(rps, 1) {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

// runParallel enriches up to cfg.Workers records at once. Results are stored
// by index so output order matches input order.
func (p *Pipeline) runParallel(ctx context.Context, log *zap.Logger, records []model.InputRecord, obs Observer) ([]recordResult, error) {
	results := make([]recordResult, len(records))
	gate := &progressGate{obs: obs}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)

	for i, rec := range records {
		if gCtx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			results[i] = p.enrich(gCtx, log, rec)
			gate.tick(len(records))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "pipeline: cancelled")
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "pipeline: cancelled")
	}
	return results, nil
}

// progressGate serializes observer calls so observers need not be safe for
// concurrent use.
type progressGate struct {
	mu   sync.Mutex
	done int
	obs  Observer
}

func (g *progressGate) tick(total int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.done++
	g.obs.Progress(g.done, total)
}
