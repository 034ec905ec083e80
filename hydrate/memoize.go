package hydrate

import (
	"context"
	"encoding/hex"
	"math/big"

	"github.com/luxfi/geth"
	"github.com/luxfi/geth/accounts/abi/bind"
	"github.com/luxfi/geth/common"

	lru "github.com/hashicorp/golang-lru"

	"github.com/luxfi/poolsync/rpcgateway"
)

// tokenMemoizingReader wraps a ChainReader and memoizes eth_call results
// within one run: the same token contract's symbol()/name()/decimals() is
// called once no matter how many pools reference it, since token metadata
// is embedded per-pool rather than interned across the whole sync.
type tokenMemoizingReader struct {
	rpcgateway.ChainReader
	cache *lru.Cache
}

type callKey string

func makeCallKey(role rpcgateway.Role, address common.Address, calldata []byte, atBlock *big.Int) callKey {
	block := "latest"
	if atBlock != nil {
		block = atBlock.String()
	}
	return callKey(role.String() + ":" + address.Hex() + ":" + hex.EncodeToString(calldata) + ":" + block)
}

func (r *tokenMemoizingReader) CallContract(ctx context.Context, role rpcgateway.Role, address common.Address, calldata []byte, atBlock *big.Int) ([]byte, error) {
	key := makeCallKey(role, address, calldata, atBlock)
	if cached, ok := r.cache.Get(key); ok {
		return cached.([]byte), nil
	}

	out, err := r.ChainReader.CallContract(ctx, role, address, calldata, atBlock)
	if err != nil {
		return nil, err
	}
	r.cache.Add(key, out)
	return out, nil
}

func (r *tokenMemoizingReader) Caller(role rpcgateway.Role) bind.ContractCaller {
	return &memoizingCaller{reader: r, role: role, inner: r.ChainReader.Caller(role)}
}

// memoizingCaller adapts tokenMemoizingReader.CallContract to
// bind.ContractCaller, routing CodeAt straight through (it's only used by
// bind for existence checks poolsync doesn't rely on) and CallContract
// through the memoized path.
type memoizingCaller struct {
	reader *tokenMemoizingReader
	role   rpcgateway.Role
	inner  bind.ContractCaller
}

func (c *memoizingCaller) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	return c.inner.CodeAt(ctx, contract, blockNumber)
}

func (c *memoizingCaller) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	var to common.Address
	if call.To != nil {
		to = *call.To
	}
	return c.reader.CallContract(ctx, c.role, to, call.Data, blockNumber)
}
