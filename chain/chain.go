// Package chain identifies the blockchain networks poolsync knows how to
// talk to. It is deliberately tiny: a chain is just an id and a name, used
// for cache-file naming and for routing factory addresses to the right
// protocol fetcher.
package chain

import "fmt"

// ID is an EVM chain id, as returned by eth_chainId / net_version.
type ID uint64

// Chain is a value identifying a target network.
type Chain struct {
	ID   ID
	Name string
}

// Mantle is the Mantle mainnet chain descriptor.
var Mantle = Chain{ID: 5000, Name: "Mantle"}

// MantleSepolia is Mantle's public testnet. No protocol registers a factory
// for it, so tests use it to exercise the unsupported-chain path.
var MantleSepolia = Chain{ID: 5003, Name: "MantleSepolia"}

func (c Chain) String() string {
	return c.Name
}

// CacheFileStem returns the chain-name component used in cache file names
// (see cache.Path).
func (c Chain) CacheFileStem() string {
	if c.Name != "" {
		return c.Name
	}
	return fmt.Sprintf("chain-%d", c.ID)
}
