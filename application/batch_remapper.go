package application

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"spmigrate/domain/principal"
)

// DefaultRemapWorkers bounds concurrent directory lookups when the caller does not.
const DefaultRemapWorkers = 4

// RemapAll remaps every principal with at most workers lookups in flight. Results are returned in
// input order. The first error cancels the remaining work and is returned.
func (r *PrincipalRemapper) RemapAll(ctx context.Context, principals []string, workers int) ([]principal.ResolutionResult, error) {
	if workers <= 0 {
		workers = DefaultRemapWorkers
	}

	start := time.Now()
	results := make([]principal.ResolutionResult, len(principals))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, raw := range principals {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result, err := r.Remap(gctx, raw)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	r.logger.WithContext(ctx).Performance("remap_batch", time.Since(start))
	return results, nil
}
