package protocol

import (
	"context"
	"fmt"
	"math/big"

	"github.com/luxfi/geth/accounts/abi"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"
	"github.com/luxfi/geth/crypto"

	"github.com/luxfi/poolsync/chain"
	"github.com/luxfi/poolsync/errs"
	"github.com/luxfi/poolsync/pool"
	"github.com/luxfi/poolsync/rpcgateway"
)

// v3CreationEventSignature is the canonical concentrated-liquidity factory
// event every V3-style protocol in this pipeline shares:
//
//	PoolCreated(address indexed token0, address indexed token1,
//	            uint24 indexed fee, int24 tickSpacing, address pool)
const v3CreationEventSignature = "PoolCreated(address,address,uint24,int24,address)"

var v3CreationEventTopic = crypto.Keccak256Hash([]byte(v3CreationEventSignature))

// v3NonIndexedArgs decodes the non-indexed tail of a PoolCreated log: tick
// spacing and the deployed pool address.
var v3NonIndexedArgs = abi.Arguments{
	{Type: mustType("int24")},
	{Type: mustType("address")},
}

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(fmt.Sprintf("protocol: invalid abi type %q: %v", t, err))
	}
	return typ
}

// v3Fetcher implements Fetcher for any concentrated-liquidity protocol whose
// factory emits v3CreationEventSignature. UniswapV3 and Agni on Mantle share
// this exact event shape, so one implementation serves both — they differ
// only in pool-type tag and factory address.
type v3Fetcher struct {
	poolType  pool.Type
	factories factoryAddresses
}

// NewUniswapV3 returns the Fetcher for the UniswapV3-style deployment.
func NewUniswapV3() Fetcher {
	return &v3Fetcher{poolType: pool.UniswapV3, factories: uniswapV3Factories}
}

// NewAgni returns the Fetcher for Agni, a concentrated-liquidity fork
// sharing UniswapV3's PoolCreated layout.
func NewAgni() Fetcher {
	return &v3Fetcher{poolType: pool.Agni, factories: agniFactories}
}

func (f *v3Fetcher) PoolType() pool.Type { return f.poolType }

func (f *v3Fetcher) FactoryAddress(c chain.Chain) (common.Address, error) {
	return f.factories.lookup(c)
}

func (f *v3Fetcher) CreationEventTopic() common.Hash { return v3CreationEventTopic }

func (f *v3Fetcher) DecodeCreationLog(log types.Log) (Skeleton, error) {
	if len(log.Topics) < 4 {
		return Skeleton{}, errs.BadRequest("decode_creation_log", fmt.Errorf("expected 4 topics for %s, got %d", v3CreationEventSignature, len(log.Topics)))
	}
	token0, token1, err := decodeAddressPair(log)
	if err != nil {
		return Skeleton{}, err
	}

	// fee is uint24, indexed, so it arrives as a left-padded 32-byte topic.
	fee := new(big.Int).SetBytes(log.Topics[3].Bytes())

	values, err := v3NonIndexedArgs.Unpack(log.Data)
	if err != nil {
		return Skeleton{}, errs.BadRequest("decode_creation_log", fmt.Errorf("unpack %s data: %w", v3CreationEventSignature, err))
	}
	if len(values) != 2 {
		return Skeleton{}, errs.BadRequest("decode_creation_log", fmt.Errorf("expected 2 decoded values, got %d", len(values)))
	}
	// int24 has no native Go width, so the abi package decodes it as *big.Int.
	tickSpacingBig, ok := values[0].(*big.Int)
	if !ok {
		return Skeleton{}, errs.BadRequest("decode_creation_log", fmt.Errorf("tickSpacing: unexpected decoded type %T", values[0]))
	}
	tickSpacing := int32(tickSpacingBig.Int64())
	poolAddr, ok := values[1].(common.Address)
	if !ok {
		return Skeleton{}, errs.BadRequest("decode_creation_log", fmt.Errorf("pool address: unexpected decoded type %T", values[1]))
	}

	return Skeleton{
		PoolType:    f.poolType,
		Address:     pool.Address(poolAddr),
		Token0:      pool.Address(token0),
		Token1:      pool.Address(token1),
		Fee:         uint32(fee.Uint64()),
		TickSpacing: tickSpacing,
		BlockNumber: log.BlockNumber,
		LogIndex:    log.Index,
	}, nil
}

func (f *v3Fetcher) Hydrate(ctx context.Context, gw rpcgateway.ChainReader, role rpcgateway.Role, atBlock *big.Int, skel Skeleton) (pool.Pool, error) {
	if skel.Token0 == skel.Token1 {
		return nil, errs.BadRequest("hydrate", fmt.Errorf("pool %s: token0 == token1", skel.Address))
	}

	token0 := hydrateToken(ctx, gw, role, atBlock, skel.Token0)
	token1 := hydrateToken(ctx, gw, role, atBlock, skel.Token1)

	return &pool.V3Pool{
		PType: f.poolType,
		Body: pool.V3Body{
			Address:     skel.Address,
			Token0:      token0,
			Token1:      token1,
			Fee:         skel.Fee,
			TickSpacing: skel.TickSpacing,
		},
	}, nil
}
