// Package poolsync is the top-level driver: it wires rate limiting, the RPC
// gateway, protocol fetchers, the discovery scanner, the hydration stage and
// the cache store into one incremental sync operation per configured chain.
package poolsync

import (
	"context"
	"time"

	"github.com/luxfi/poolsync/chain"
	"github.com/luxfi/poolsync/errs"
	"github.com/luxfi/poolsync/pool"
	"github.com/luxfi/poolsync/protocol"
	"github.com/luxfi/poolsync/rpcgateway"
)

// DefaultRateLimit is the minimum spacing between outbound RPC calls when
// the builder isn't given an explicit rate_limit(ms).
const DefaultRateLimit = 200 * time.Millisecond

// Builder assembles a Handle. Fields are set via its chained methods in any
// order; Build validates the result.
type Builder struct {
	chain        *chain.Chain
	protocols    []pool.Type
	rateLimit    time.Duration
	rateLimitSet bool
	hasRange     bool
	lo, hi       uint64
	cacheDir     string
	archiveURL   string
	fullURL      string
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{cacheDir: "cache"}
}

// Chain sets the target network. Required.
func (b *Builder) Chain(c chain.Chain) *Builder {
	b.chain = &c
	return b
}

// AddPool registers one protocol to sync. May be called multiple times;
// at least one call is required before Build.
func (b *Builder) AddPool(t pool.Type) *Builder {
	b.protocols = append(b.protocols, t)
	return b
}

// RateLimit overrides the minimum spacing between RPC calls. Optional;
// defaults to DefaultRateLimit.
func (b *Builder) RateLimit(d time.Duration) *Builder {
	b.rateLimit = d
	b.rateLimitSet = true
	return b
}

// BlockRange pins an explicit [lo, hi] range instead of syncing to the
// current chain head. Optional.
func (b *Builder) BlockRange(lo, hi uint64) *Builder {
	b.lo, b.hi = lo, hi
	b.hasRange = true
	return b
}

// CacheDir overrides the directory cache files are read from and written
// to. Optional; defaults to "cache".
func (b *Builder) CacheDir(dir string) *Builder {
	b.cacheDir = dir
	return b
}

// Endpoints sets the full and archive RPC endpoint URLs. Full is required;
// archive may be left empty. Discovery sends every get_logs window to the
// archive endpoint, however close it is to the head, so without an archive
// URL each protocol that has blocks left to scan fails with
// errs.InvalidConfig and keeps its cache untouched; a protocol whose cache
// already covers the range still succeeds.
func (b *Builder) Endpoints(fullURL, archiveURL string) *Builder {
	b.fullURL, b.archiveURL = fullURL, archiveURL
	return b
}

// Build validates the accumulated configuration and dials the RPC
// endpoints, returning a Handle ready for SyncPools.
func (b *Builder) Build(ctx context.Context) (*Handle, error) {
	if len(b.protocols) == 0 {
		return nil, errs.InvalidConfig("at least one pool type must be added via AddPool")
	}
	if b.chain == nil {
		return nil, errs.InvalidConfig("a chain must be set via Chain")
	}
	if b.fullURL == "" {
		return nil, errs.InvalidConfig("a full RPC endpoint must be set via Endpoints")
	}

	fetchers := make([]protocol.Fetcher, 0, len(b.protocols))
	for _, t := range b.protocols {
		f, err := fetcherFor(t)
		if err != nil {
			return nil, err
		}
		if _, err := f.FactoryAddress(*b.chain); err != nil {
			return nil, err
		}
		fetchers = append(fetchers, f)
	}

	rateLimit := b.rateLimit
	if !b.rateLimitSet {
		rateLimit = DefaultRateLimit
	}

	gw, err := rpcgateway.Dial(ctx, b.archiveURL, b.fullURL, rateLimit)
	if err != nil {
		return nil, err
	}

	return &Handle{
		chain:    *b.chain,
		fetchers: fetchers,
		gw:       gw,
		hasRange: b.hasRange,
		lo:       b.lo,
		hi:       b.hi,
		cacheDir: b.cacheDir,
	}, nil
}

func fetcherFor(t pool.Type) (protocol.Fetcher, error) {
	switch t {
	case pool.UniswapV3:
		return protocol.NewUniswapV3(), nil
	case pool.Agni:
		return protocol.NewAgni(), nil
	case pool.MerchantMoe:
		return protocol.NewMerchantMoe(), nil
	default:
		return nil, errs.InvalidConfig("unknown pool type in AddPool: " + t.String())
	}
}
