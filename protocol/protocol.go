// Package protocol defines the per-AMM-family capability that lets the
// discovery scanner and hydration stage stay ignorant of which DEX they are
// talking to. Each protocol is a stateless value satisfying Fetcher; new
// protocols are added by constructing a new value, never by touching the
// scanner or hydrator.
package protocol

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/luxfi/geth/accounts/abi"
	"github.com/luxfi/geth/accounts/abi/bind"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"

	"github.com/luxfi/poolsync/chain"
	"github.com/luxfi/poolsync/errs"
	"github.com/luxfi/poolsync/pool"
	"github.com/luxfi/poolsync/rpcgateway"
)

// Skeleton is the partially populated record the scanner emits: everything
// the creation log itself carries, nothing that requires a further RPC call.
type Skeleton struct {
	PoolType pool.Type
	Address  pool.Address
	Token0   pool.Address
	Token1   pool.Address
	Fee      uint32
	// TickSpacing is meaningful for V3-style protocols only.
	TickSpacing int32
	// Stable is meaningful for V2-style protocols only.
	Stable bool

	// BlockNumber and LogIndex place this skeleton in the scanner's
	// ordering and feed the dedup key; they do not survive into the
	// hydrated Pool.
	BlockNumber uint64
	LogIndex    uint
}

// Fetcher is the capability one AMM family implements. A single instance is
// shared across every call the pipeline makes for that protocol.
type Fetcher interface {
	// PoolType identifies which tagged pool variant this fetcher produces.
	PoolType() pool.Type

	// FactoryAddress returns the per-chain factory contract address, or
	// errs.ErrUnsupportedChain if the protocol is not deployed there.
	FactoryAddress(c chain.Chain) (common.Address, error)

	// CreationEventTopic is the Keccak-256 hash of the factory's pool
	// creation event signature.
	CreationEventTopic() common.Hash

	// DecodeCreationLog turns one factory log into a Skeleton. Every field
	// the protocol needs beyond the two token addresses (fee, tick
	// spacing, stable flag) must be recoverable from the log alone — the
	// pipeline never issues a separate view call for pool-level fields.
	DecodeCreationLog(log types.Log) (Skeleton, error)

	// Hydrate completes token metadata via view calls and returns the
	// full Pool. It must not reorder token0/token1 relative to the
	// skeleton: whatever the contract/log reported is canonical.
	Hydrate(ctx context.Context, gw rpcgateway.ChainReader, role rpcgateway.Role, atBlock *big.Int, skel Skeleton) (pool.Pool, error)
}

const erc20ABIJSON = `[
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"name","outputs":[{"name":"","type":"string"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"type":"function"}
]`

var erc20ABI = mustParseABI(erc20ABIJSON)

func mustParseABI(rawJSON string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(rawJSON))
	if err != nil {
		panic(fmt.Sprintf("protocol: invalid embedded ABI: %v", err))
	}
	return parsed
}

// hydrateToken resolves symbol/name/decimals for one token address. A token
// whose symbol()/name() returns bytes that cannot decode as valid UTF-8 (or
// whose calls themselves fail as BadRequest, e.g. no such method) is
// resolved with empty strings rather than failing the whole hydration —
// some tokens on Mantle simply don't implement the optional ERC-20 fields.
func hydrateToken(ctx context.Context, gw rpcgateway.ChainReader, role rpcgateway.Role, atBlock *big.Int, addr pool.Address) pool.TokenMeta {
	caller := gw.Caller(role)
	contract := bind.NewBoundContract(addr.Common(), erc20ABI, caller, nil, nil)
	opts := &bind.CallOpts{Context: ctx, BlockNumber: atBlock}

	meta := pool.TokenMeta{Address: addr}
	meta.Symbol = callString(contract, opts, "symbol")
	meta.Name = callString(contract, opts, "name")
	meta.Decimals = callUint8(contract, opts, "decimals")
	return meta
}

func callString(contract *bind.BoundContract, opts *bind.CallOpts, method string) string {
	var out []interface{}
	if err := contract.Call(opts, &out, method); err != nil {
		return ""
	}
	if len(out) != 1 {
		return ""
	}
	s, ok := out[0].(string)
	if !ok || !isValidUTF8(s) {
		return ""
	}
	return s
}

func callUint8(contract *bind.BoundContract, opts *bind.CallOpts, method string) uint8 {
	var out []interface{}
	if err := contract.Call(opts, &out, method); err != nil {
		return 0
	}
	if len(out) != 1 {
		return 0
	}
	d, ok := out[0].(uint8)
	if !ok {
		return 0
	}
	return d
}

func isValidUTF8(s string) bool {
	for _, r := range s {
		if r == '�' {
			return false
		}
	}
	return true
}

// decodeAddressPair reads two 32-byte left-padded addresses from a log's
// indexed topics (topic1, topic2), the layout every PoolCreated/PairCreated
// event in this pack shares for its token pair.
func decodeAddressPair(log types.Log) (token0, token1 common.Address, err error) {
	if len(log.Topics) < 3 {
		return common.Address{}, common.Address{}, errs.BadRequest("decode_creation_log", fmt.Errorf("expected >= 3 topics, got %d", len(log.Topics)))
	}
	return common.BytesToAddress(log.Topics[1].Bytes()), common.BytesToAddress(log.Topics[2].Bytes()), nil
}

// factoryAddresses maps a protocol's per-chain deployment. Shared helper so
// every Fetcher's FactoryAddress implementation looks the same.
type factoryAddresses map[chain.ID]common.Address

func (f factoryAddresses) lookup(c chain.Chain) (common.Address, error) {
	addr, ok := f[c.ID]
	if !ok {
		return common.Address{}, errs.UnsupportedChain(fmt.Sprintf("factory not registered for chain %s", c))
	}
	return addr, nil
}
