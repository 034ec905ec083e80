package poolsync

import (
	"context"
	"time"

	"github.com/luxfi/geth/log"

	"github.com/luxfi/poolsync/cache"
	"github.com/luxfi/poolsync/chain"
	"github.com/luxfi/poolsync/discovery"
	"github.com/luxfi/poolsync/errs"
	"github.com/luxfi/poolsync/hydrate"
	"github.com/luxfi/poolsync/metrics"
	"github.com/luxfi/poolsync/pool"
	"github.com/luxfi/poolsync/protocol"
	"github.com/luxfi/poolsync/rpcgateway"
)

// Handle is the result of Builder.Build: a configured, ready-to-run sync
// operation for one chain across one or more protocols.
type Handle struct {
	chain    chain.Chain
	fetchers []protocol.Fetcher
	gw       rpcgateway.ChainReader
	hasRange bool
	lo, hi   uint64
	cacheDir string
}

// protocolResult is the outcome of syncing one protocol, used internally to
// compute the aggregate return value.
type protocolResult struct {
	fetcher   protocol.Fetcher
	pools     []pool.Pool
	watermark uint64
	succeeded bool
}

// SyncPools runs discovery and hydration for every configured protocol and
// returns the union of all pools plus the minimum watermark across all
// configured protocols. A protocol whose run fails does not abort the
// others: its cache is left untouched and its prior (cached) watermark is
// what it contributes to the minimum.
func (h *Handle) SyncPools(ctx context.Context) ([]pool.Pool, uint64, error) {
	hi := h.hi
	if !h.hasRange {
		head, err := h.gw.HeadBlock(ctx)
		if err != nil {
			return nil, 0, err
		}
		hi = head
	}

	results := make([]protocolResult, 0, len(h.fetchers))
	for _, f := range h.fetchers {
		result := h.syncOneProtocol(ctx, f, hi)
		results = append(results, result)
	}

	var allPools []pool.Pool
	var minWatermark uint64
	first := true
	for _, r := range results {
		allPools = append(allPools, r.pools...)
		if first || r.watermark < minWatermark {
			minWatermark = r.watermark
			first = false
		}
	}

	return allPools, minWatermark, nil
}

func (h *Handle) syncOneProtocol(ctx context.Context, f protocol.Fetcher, hi uint64) protocolResult {
	start := time.Now()
	label := f.PoolType().String()
	defer func() {
		metrics.SyncDurationSeconds.WithLabelValues(label).Observe(time.Since(start).Seconds())
	}()

	entry := cache.Load(h.cacheDir, h.chain, f.PoolType())

	lo := h.effectiveLo(entry.LastSyncedBlock)
	if lo > hi {
		// Nothing new to discover this run; cached pools are already
		// complete for [0, hi].
		metrics.Watermark.WithLabelValues(label).Set(float64(entry.LastSyncedBlock))
		return protocolResult{fetcher: f, pools: entry.Pools, watermark: entry.LastSyncedBlock, succeeded: true}
	}

	skeletons, err := discovery.Scan(ctx, h.gw, h.chain, f, lo, hi, discovery.DefaultWindowSize)
	if err != nil {
		return h.failProtocol(f, entry, err)
	}
	metrics.SkeletonsDiscovered.WithLabelValues(label).Add(float64(len(skeletons)))

	hydrated, err := hydrate.Hydrate(ctx, h.gw, rpcgateway.Full, nil, f, skeletons, hydrate.DefaultParallelism)
	if err != nil {
		return h.failProtocol(f, entry, err)
	}
	metrics.PoolsHydrated.WithLabelValues(label).Add(float64(len(hydrated)))

	merged := mergePools(hydrated, entry.Pools)

	newEntry := cache.Entry{LastSyncedBlock: hi, Pools: merged}
	if err := cache.Store(h.cacheDir, h.chain, f.PoolType(), newEntry); err != nil {
		log.Warn("poolsync: cache commit failed, watermark not advanced", "protocol", label, "err", err)
		metrics.CacheWriteFailures.WithLabelValues(label).Inc()
		return protocolResult{fetcher: f, pools: entry.Pools, watermark: entry.LastSyncedBlock, succeeded: false}
	}

	metrics.Watermark.WithLabelValues(label).Set(float64(hi))
	return protocolResult{fetcher: f, pools: merged, watermark: hi, succeeded: true}
}

func (h *Handle) failProtocol(f protocol.Fetcher, entry cache.Entry, err error) protocolResult {
	label := f.PoolType().String()
	log.Warn("poolsync: protocol sync failed, leaving cache untouched", "protocol", label, "err", err)
	if errs.IsFatal(err) {
		metrics.ProtocolFailures.WithLabelValues(label).Inc()
	}
	return protocolResult{fetcher: f, pools: entry.Pools, watermark: entry.LastSyncedBlock, succeeded: false}
}

func (h *Handle) effectiveLo(cacheWatermark uint64) uint64 {
	userStart := uint64(0)
	if h.hasRange {
		userStart = h.lo
	}
	if cacheWatermark == 0 {
		return userStart
	}
	next := cacheWatermark + 1
	if next > userStart {
		return next
	}
	return userStart
}

// mergePools unions freshly hydrated pools with the prior cache contents,
// new pools first, deduplicated by address with the new entry winning on
// conflict — this is also where the monotone-superset cache invariant is
// enforced: nothing from the prior cache is ever dropped.
func mergePools(fresh, cached []pool.Pool) []pool.Pool {
	seen := make(map[string]struct{}, len(fresh)+len(cached))
	merged := make([]pool.Pool, 0, len(fresh)+len(cached))

	for _, p := range fresh {
		addr := p.PoolAddress().String()
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		merged = append(merged, p)
	}
	for _, p := range cached {
		addr := p.PoolAddress().String()
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		merged = append(merged, p)
	}
	return merged
}
