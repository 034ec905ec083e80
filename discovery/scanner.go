// Package discovery partitions a block range into windows, scans each for a
// protocol's creation events via the archive endpoint, and emits deduplicated
// skeletons in block/log-index order.
package discovery

import (
	"context"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/log"

	"github.com/luxfi/poolsync/chain"
	"github.com/luxfi/poolsync/errs"
	"github.com/luxfi/poolsync/metrics"
	"github.com/luxfi/poolsync/protocol"
	"github.com/luxfi/poolsync/rpcgateway"
)

// DefaultWindowSize is the number of blocks scanned per get_logs call.
const DefaultWindowSize = 10_000

// dedupKey identifies one creation event for the purposes of collapsing
// duplicate PoolCreated emissions within a run.
type dedupKey struct {
	block    uint64
	logIndex uint
}

// Scan partitions [lo, hi] into fixed windows and streams back skeletons for
// fetcher f's creation event, in block-number then log-index order. lo > hi
// is a no-op: it returns an empty, non-nil slice.
//
// On a Transient failure the current window is halved and retried; a
// single-block window that still fails transiently propagates the error
// to the caller, since there is nothing smaller left to try.
func Scan(ctx context.Context, gw rpcgateway.ChainReader, c chain.Chain, f protocol.Fetcher, lo, hi uint64, windowSize uint64) ([]protocol.Skeleton, error) {
	if lo > hi {
		return []protocol.Skeleton{}, nil
	}
	if windowSize == 0 {
		windowSize = DefaultWindowSize
	}

	factory, err := f.FactoryAddress(c)
	if err != nil {
		return nil, err
	}
	topic := f.CreationEventTopic()

	seenEvents := mapset.NewThreadUnsafeSet[dedupKey]()
	seenPools := mapset.NewThreadUnsafeSet[string]()
	var skeletons []protocol.Skeleton

	for from := lo; from <= hi; {
		to := from + windowSize - 1
		if to > hi {
			to = hi
		}

		windowSkeletons, err := scanWindow(ctx, gw, f, factory, topic, from, to)
		if err != nil {
			return nil, err
		}

		for _, skel := range windowSkeletons {
			key := dedupKey{block: skel.BlockNumber, logIndex: skel.LogIndex}
			if seenEvents.Contains(key) {
				continue
			}
			seenEvents.Add(key)

			addr := skel.Address.String()
			if seenPools.Contains(addr) {
				// Same pool rediscovered by a different event within this
				// run (shouldn't happen in practice, but first wins).
				continue
			}
			seenPools.Add(addr)

			skeletons = append(skeletons, skel)
		}

		from = to + 1
	}

	if skeletons == nil {
		skeletons = []protocol.Skeleton{}
	}
	return skeletons, nil
}

// scanWindow scans [from, to] for one window's worth of creation logs. On a
// Transient error it halves the window and retries each half in turn; a
// single-block window that still fails transiently is propagated rather
// than retried further.
func scanWindow(ctx context.Context, gw rpcgateway.ChainReader, f protocol.Fetcher, factory common.Address, topic common.Hash, from, to uint64) ([]protocol.Skeleton, error) {
	logs, err := gw.GetLogs(ctx, rpcgateway.Archive, from, to, factory, topic)
	metrics.WindowsScanned.WithLabelValues(f.PoolType().String()).Inc()
	if err == nil {
		skeletons := make([]protocol.Skeleton, 0, len(logs))
		for _, l := range logs {
			skel, err := f.DecodeCreationLog(l)
			if err != nil {
				log.Warn("discovery: dropping undecodable creation log", "protocol", f.PoolType(), "block", l.BlockNumber, "logIndex", l.Index, "err", err)
				continue
			}
			skeletons = append(skeletons, skel)
		}
		return skeletons, nil
	}

	if !errs.IsTransient(err) {
		return nil, err
	}
	if from == to {
		log.Warn("discovery: single-block window failed transiently, propagating", "protocol", f.PoolType(), "block", from, "err", err)
		return nil, err
	}

	mid := from + (to-from)/2
	log.Warn("discovery: window scan transient failure, halving", "protocol", f.PoolType(), "from", from, "to", to, "err", err)

	first, err := scanWindow(ctx, gw, f, factory, topic, from, mid)
	if err != nil {
		return nil, err
	}
	second, err := scanWindow(ctx, gw, f, factory, topic, mid+1, to)
	if err != nil {
		return nil, err
	}
	return append(first, second...), nil
}
