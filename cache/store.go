// Package cache persists each (chain, protocol) pool set to a single JSON
// file, atomically, so the orchestrator can resync incrementally from the
// last watermark instead of re-scanning from genesis every run.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/luxfi/geth/log"

	"github.com/luxfi/poolsync/chain"
	"github.com/luxfi/poolsync/pool"
)

// Entry is the full on-disk state for one (chain, protocol) pair.
type Entry struct {
	LastSyncedBlock uint64      `json:"last_synced_block"`
	Pools           []pool.Pool `json:"-"`
}

// wireEntry is Entry's JSON shape: pools are stored as raw envelopes so
// MarshalPool/UnmarshalPool control the wire format, not encoding/json's
// interface handling.
type wireEntry struct {
	LastSyncedBlock uint64            `json:"last_synced_block"`
	Pools           []json.RawMessage `json:"pools"`
}

// Empty is the zero-value Entry returned when no cache exists yet or the
// existing file cannot be read/parsed.
var Empty = Entry{}

// Path returns the on-disk location for one (chain, protocol) cache file.
func Path(dir string, c chain.Chain, t pool.Type) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s_cache.json", c.CacheFileStem(), t))
}

// Load reads the cache for (chain, poolType). Any I/O or parse error is
// treated as an empty cache: there is no schema versioning to reject, so an
// unreadable file can only mean "nothing synced yet" or corruption, and
// either way the safe fallback is to resync from scratch.
func Load(dir string, c chain.Chain, t pool.Type) Entry {
	path := Path(dir, c, t)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("cache: failed to read cache file, treating as empty", "path", path, "err", err)
		}
		return Empty
	}

	var wire wireEntry
	if err := json.Unmarshal(data, &wire); err != nil {
		log.Warn("cache: failed to parse cache file, treating as empty", "path", path, "err", err)
		return Empty
	}

	pools := make([]pool.Pool, 0, len(wire.Pools))
	for i, raw := range wire.Pools {
		p, err := pool.UnmarshalPool(raw)
		if err != nil {
			log.Warn("cache: failed to parse pool entry, treating as empty", "path", path, "index", i, "err", err)
			return Empty
		}
		pools = append(pools, p)
	}

	return Entry{LastSyncedBlock: wire.LastSyncedBlock, Pools: pools}
}

// Store writes entry to a temp file in dir and atomically renames it over
// the target, so a crash mid-write leaves either the prior cache or the new
// one, never a truncated file.
func Store(dir string, c chain.Chain, t pool.Type, entry Entry) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cache: create cache dir %s: %w", dir, err)
	}

	rawPools := make([]json.RawMessage, 0, len(entry.Pools))
	for _, p := range entry.Pools {
		raw, err := pool.MarshalPool(p)
		if err != nil {
			return fmt.Errorf("cache: marshal pool %s: %w", p.PoolAddress(), err)
		}
		rawPools = append(rawPools, raw)
	}

	wire := wireEntry{LastSyncedBlock: entry.LastSyncedBlock, Pools: rawPools}
	data, err := json.MarshalIndent(wire, "", "  ")
	if err != nil {
		return fmt.Errorf("cache: marshal cache entry: %w", err)
	}

	target := Path(dir, c, t)
	tmp, err := os.CreateTemp(dir, filepath.Base(target)+".tmp-*")
	if err != nil {
		return fmt.Errorf("cache: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("cache: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("cache: close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, target); err != nil {
		return fmt.Errorf("cache: rename temp file over %s: %w", target, err)
	}
	return nil
}
