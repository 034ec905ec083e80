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

// v2CreationEventSignature is the constant-product factory event
// MerchantMoe emits:
//
//	PairCreated(address indexed token0, address indexed token1,
//	            address pair, uint256 pairIndex, uint24 fee, bool stable)
const v2CreationEventSignature = "PairCreated(address,address,address,uint256,uint24,bool)"

var v2CreationEventTopic = crypto.Keccak256Hash([]byte(v2CreationEventSignature))

var v2NonIndexedArgs = abi.Arguments{
	{Type: mustType("address")},
	{Type: mustType("uint256")},
	{Type: mustType("uint24")},
	{Type: mustType("bool")},
}

// v2Fetcher implements Fetcher for constant-product protocols whose factory
// emits v2CreationEventSignature. MerchantMoe is the only deployment of this
// shape on Mantle today; a future V2-shaped protocol reuses this type.
type v2Fetcher struct {
	poolType  pool.Type
	factories factoryAddresses
}

// NewMerchantMoe returns the Fetcher for MerchantMoe's constant-product
// pairs.
func NewMerchantMoe() Fetcher {
	return &v2Fetcher{poolType: pool.MerchantMoe, factories: merchantMoeFactories}
}

func (f *v2Fetcher) PoolType() pool.Type { return f.poolType }

func (f *v2Fetcher) FactoryAddress(c chain.Chain) (common.Address, error) {
	return f.factories.lookup(c)
}

func (f *v2Fetcher) CreationEventTopic() common.Hash { return v2CreationEventTopic }

func (f *v2Fetcher) DecodeCreationLog(log types.Log) (Skeleton, error) {
	token0, token1, err := decodeAddressPair(log)
	if err != nil {
		return Skeleton{}, err
	}

	values, err := v2NonIndexedArgs.Unpack(log.Data)
	if err != nil {
		return Skeleton{}, errs.BadRequest("decode_creation_log", fmt.Errorf("unpack %s data: %w", v2CreationEventSignature, err))
	}
	if len(values) != 4 {
		return Skeleton{}, errs.BadRequest("decode_creation_log", fmt.Errorf("expected 4 decoded values, got %d", len(values)))
	}
	poolAddr, ok := values[0].(common.Address)
	if !ok {
		return Skeleton{}, errs.BadRequest("decode_creation_log", fmt.Errorf("pair address: unexpected decoded type %T", values[0]))
	}
	// uint24 has no native Go width, so the abi package decodes it as *big.Int.
	feeBig, ok := values[2].(*big.Int)
	if !ok {
		return Skeleton{}, errs.BadRequest("decode_creation_log", fmt.Errorf("fee: unexpected decoded type %T", values[2]))
	}
	fee := uint32(feeBig.Uint64())
	stable, ok := values[3].(bool)
	if !ok {
		return Skeleton{}, errs.BadRequest("decode_creation_log", fmt.Errorf("stable: unexpected decoded type %T", values[3]))
	}

	return Skeleton{
		PoolType:    f.poolType,
		Address:     pool.Address(poolAddr),
		Token0:      pool.Address(token0),
		Token1:      pool.Address(token1),
		Fee:         fee,
		Stable:      stable,
		BlockNumber: log.BlockNumber,
		LogIndex:    log.Index,
	}, nil
}

func (f *v2Fetcher) Hydrate(ctx context.Context, gw rpcgateway.ChainReader, role rpcgateway.Role, atBlock *big.Int, skel Skeleton) (pool.Pool, error) {
	if skel.Token0 == skel.Token1 {
		return nil, errs.BadRequest("hydrate", fmt.Errorf("pool %s: token0 == token1", skel.Address))
	}

	token0 := hydrateToken(ctx, gw, role, atBlock, skel.Token0)
	token1 := hydrateToken(ctx, gw, role, atBlock, skel.Token1)

	return &pool.V2Pool{
		PType: f.poolType,
		Body: pool.V2Body{
			Address: skel.Address,
			Token0:  token0,
			Token1:  token1,
			Fee:     skel.Fee,
			Stable:  skel.Stable,
		},
	}, nil
}
