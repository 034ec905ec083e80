// Package metrics exposes the handful of Prometheus series the orchestrator
// updates as it runs: how many windows and skeletons it processed, how many
// were dropped, and how the watermark moved.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// WindowsScanned counts get_logs windows issued, labeled by protocol.
	WindowsScanned = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "poolsync",
		Name:      "windows_scanned_total",
		Help:      "Number of discovery windows scanned.",
	}, []string{"protocol"})

	// SkeletonsDiscovered counts deduplicated skeletons emitted by the
	// scanner, labeled by protocol.
	SkeletonsDiscovered = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "poolsync",
		Name:      "skeletons_discovered_total",
		Help:      "Number of deduplicated skeletons emitted by the scanner.",
	}, []string{"protocol"})

	// PoolsHydrated counts successfully hydrated pools, labeled by protocol.
	PoolsHydrated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "poolsync",
		Name:      "pools_hydrated_total",
		Help:      "Number of pools successfully hydrated.",
	}, []string{"protocol"})

	// SkeletonsDropped counts skeletons dropped during hydration, labeled by
	// protocol and reason.
	SkeletonsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "poolsync",
		Name:      "skeletons_dropped_total",
		Help:      "Number of skeletons dropped during hydration.",
	}, []string{"protocol", "reason"})

	// ProtocolFailures counts protocol runs that aborted with Fatal,
	// labeled by protocol.
	ProtocolFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "poolsync",
		Name:      "protocol_failures_total",
		Help:      "Number of protocol sync passes that aborted fatally.",
	}, []string{"protocol"})

	// Watermark is the last committed synced block per protocol.
	Watermark = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "poolsync",
		Name:      "watermark_block",
		Help:      "Last synced block committed to cache, by protocol.",
	}, []string{"protocol"})

	// RPCRetries counts retried RPC calls, labeled by method.
	RPCRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "poolsync",
		Name:      "rpc_retries_total",
		Help:      "Number of RPC calls retried after a transient error.",
	}, []string{"method"})

	// CacheWriteFailures counts failed cache commits, labeled by protocol.
	CacheWriteFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "poolsync",
		Name:      "cache_write_failures_total",
		Help:      "Number of cache commits that failed.",
	}, []string{"protocol"})

	// SyncDurationSeconds observes wall-clock time of one protocol's sync
	// pass.
	SyncDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "poolsync",
		Name:      "sync_duration_seconds",
		Help:      "Wall-clock duration of one protocol's discovery+hydration pass.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"protocol"})
)

// MustRegister registers every poolsync metric with reg. Safe to call once
// per process; registering a second time against the same registry panics,
// matching client_golang's own contract.
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		WindowsScanned,
		SkeletonsDiscovered,
		PoolsHydrated,
		SkeletonsDropped,
		ProtocolFailures,
		Watermark,
		RPCRetries,
		CacheWriteFailures,
		SyncDurationSeconds,
	)
}
