// Package hydrate turns discovery skeletons into fully populated pool
// records via the protocol's view-call hydrator, fanning out across
// skeletons with bounded concurrency while keeping per-skeleton calls
// sequential and output order stable.
package hydrate

import (
	"context"
	"math/big"

	lru "github.com/hashicorp/golang-lru"
	"github.com/luxfi/geth/log"
	"golang.org/x/sync/errgroup"

	"github.com/luxfi/poolsync/errs"
	"github.com/luxfi/poolsync/metrics"
	"github.com/luxfi/poolsync/pool"
	"github.com/luxfi/poolsync/protocol"
	"github.com/luxfi/poolsync/rpcgateway"
)

// DefaultParallelism is the bounded fan-out width across skeletons (H in
// the design notes). The rate limiter remains the ultimate throttle even
// at this width.
const DefaultParallelism = 8

// tokenCacheSize bounds the per-run token-metadata memoization cache; a
// handful of tokens (WETH, USDC, ...) recur across hundreds of pools, so
// memoizing avoids redundant symbol/name/decimals calls within one run.
const tokenCacheSize = 4096

// Hydrate resolves every skeleton to a full Pool, preserving input order. A
// skeleton that fails permanently (BadRequest, or Transient exhausted) is
// dropped with a warning rather than failing the whole batch; the returned
// slice is shorter than skeletons in that case.
func Hydrate(ctx context.Context, gw rpcgateway.ChainReader, role rpcgateway.Role, atBlock *big.Int, f protocol.Fetcher, skeletons []protocol.Skeleton, parallelism int) ([]pool.Pool, error) {
	if parallelism <= 0 {
		parallelism = DefaultParallelism
	}

	tokenCache, err := lru.New(tokenCacheSize)
	if err != nil {
		return nil, errs.Fatal("hydrate", err)
	}
	cachedGW := &tokenMemoizingReader{ChainReader: gw, cache: tokenCache}

	results := make([]pool.Pool, len(skeletons))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)

	for i, skel := range skeletons {
		i, skel := i, skel
		g.Go(func() error {
			p, err := f.Hydrate(gctx, cachedGW, role, atBlock, skel)
			if err != nil {
				log.Warn("hydrate: dropping skeleton", "protocol", f.PoolType(), "pool", skel.Address, "err", err)
				metrics.SkeletonsDropped.WithLabelValues(f.PoolType().String(), "hydrate_error").Inc()
				return nil
			}
			results[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	hydrated := make([]pool.Pool, 0, len(results))
	for _, p := range results {
		if p != nil {
			hydrated = append(hydrated, p)
		}
	}
	return hydrated, nil
}
