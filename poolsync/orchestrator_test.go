package poolsync

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/luxfi/geth"
	"github.com/luxfi/geth/accounts/abi"
	"github.com/luxfi/geth/accounts/abi/bind"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"
	"github.com/luxfi/geth/crypto"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/poolsync/cache"
	"github.com/luxfi/poolsync/chain"
	"github.com/luxfi/poolsync/errs"
	"github.com/luxfi/poolsync/pool"
	"github.com/luxfi/poolsync/protocol"
	"github.com/luxfi/poolsync/rpcgateway"
)

// fakeChain is a scripted rpcgateway.ChainReader used by every scenario
// test below: get_logs responses are keyed by the exact window requested,
// token metadata keyed by address, matching how a real node would respond.
type fakeChain struct {
	logsByWin    map[[2]uint64][]types.Log
	failByWin    map[[2]uint64]error
	tokens       map[common.Address]tokenFixture
	getLogsCalls int
	head         uint64
}

type tokenFixture struct {
	symbol, name string
	decimals     uint8
}

func newFakeChain() *fakeChain {
	return &fakeChain{logsByWin: map[[2]uint64][]types.Log{}, failByWin: map[[2]uint64]error{}, tokens: map[common.Address]tokenFixture{}}
}

func (f *fakeChain) GetLogs(ctx context.Context, role rpcgateway.Role, from, to uint64, address common.Address, topic0 common.Hash) ([]types.Log, error) {
	f.getLogsCalls++
	key := [2]uint64{from, to}
	if err, ok := f.failByWin[key]; ok {
		return nil, err
	}
	return f.logsByWin[key], nil
}

func (f *fakeChain) CallContract(ctx context.Context, role rpcgateway.Role, address common.Address, calldata []byte, atBlock *big.Int) ([]byte, error) {
	return f.Caller(role).CallContract(ctx, ethereum.CallMsg{To: &address, Data: calldata}, atBlock)
}

func (f *fakeChain) HeadBlock(ctx context.Context) (uint64, error) { return f.head, nil }

func (f *fakeChain) Caller(role rpcgateway.Role) bind.ContractCaller { return &fakeCaller{chain: f} }

type fakeCaller struct{ chain *fakeChain }

func selectorFor(sig string) string {
	hash := crypto.Keccak256([]byte(sig))
	return string(hash[:4])
}

var symbolSel, nameSel, decimalsSel = selectorFor("symbol()"), selectorFor("name()"), selectorFor("decimals()")

func (c *fakeCaller) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	return []byte{0x1}, nil
}

func (c *fakeCaller) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	to := *call.To
	fixture, ok := c.chain.tokens[to]
	if !ok {
		return nil, errors.New("no fixture for token")
	}
	sel := string(call.Data[:4])
	switch sel {
	case symbolSel:
		return packStr(fixture.symbol), nil
	case nameSel:
		return packStr(fixture.name), nil
	case decimalsSel:
		return packU8(fixture.decimals), nil
	default:
		return nil, errors.New("unknown selector")
	}
}

func packStr(s string) []byte {
	typ, _ := abi.NewType("string", "", nil)
	out, _ := abi.Arguments{{Type: typ}}.Pack(s)
	return out
}

func packU8(v uint8) []byte {
	typ, _ := abi.NewType("uint8", "", nil)
	out, _ := abi.Arguments{{Type: typ}}.Pack(v)
	return out
}

func v3Log(block uint64, idx uint, poolAddr, token0, token1 common.Address, fee uint64, tickSpacing int32) types.Log {
	tickType, _ := abi.NewType("int24", "", nil)
	addrType, _ := abi.NewType("address", "", nil)
	data, _ := abi.Arguments{{Type: tickType}, {Type: addrType}}.Pack(big.NewInt(int64(tickSpacing)), poolAddr)
	return types.Log{
		Topics: []common.Hash{
			protocol.NewUniswapV3().CreationEventTopic(),
			common.BytesToHash(token0.Bytes()),
			common.BytesToHash(token1.Bytes()),
			common.BigToHash(new(big.Int).SetUint64(fee)),
		},
		Data:        data,
		BlockNumber: block,
		Index:       idx,
	}
}

func v2Log(block uint64, idx uint, pairAddr, token0, token1 common.Address, fee uint32, stable bool) types.Log {
	addrType, _ := abi.NewType("address", "", nil)
	uintType, _ := abi.NewType("uint256", "", nil)
	feeType, _ := abi.NewType("uint24", "", nil)
	boolType, _ := abi.NewType("bool", "", nil)
	data, _ := abi.Arguments{{Type: addrType}, {Type: uintType}, {Type: feeType}, {Type: boolType}}.Pack(pairAddr, big.NewInt(0), new(big.Int).SetUint64(uint64(fee)), stable)
	return types.Log{
		Topics: []common.Hash{
			protocol.NewMerchantMoe().CreationEventTopic(),
			common.BytesToHash(token0.Bytes()),
			common.BytesToHash(token1.Bytes()),
		},
		Data:        data,
		BlockNumber: block,
		Index:       idx,
	}
}

func testHandle(t *testing.T, chn chain.Chain, fetchers []protocol.Fetcher, gw rpcgateway.ChainReader, cacheDir string, lo, hi uint64, hasRange bool) *Handle {
	t.Helper()
	return &Handle{chain: chn, fetchers: fetchers, gw: gw, cacheDir: cacheDir, lo: lo, hi: hi, hasRange: hasRange}
}

func TestS1FreshDiscoveryYieldsExactPool(t *testing.T) {
	dir := t.TempDir()
	poolAddr := common.HexToAddress("0xaaa0000000000000000000000000000000aaa1")
	weth := common.HexToAddress("0xbbb0000000000000000000000000000000bbb2")
	usdc := common.HexToAddress("0xccc0000000000000000000000000000000ccc3")

	fc := newFakeChain()
	fc.logsByWin[[2]uint64{100, 200}] = []types.Log{v3Log(150, 0, poolAddr, weth, usdc, 3000, 60)}
	fc.tokens[weth] = tokenFixture{"WETH", "Wrapped Ether", 18}
	fc.tokens[usdc] = tokenFixture{"USDC", "USD Coin", 6}

	h := testHandle(t, chain.Mantle, []protocol.Fetcher{protocol.NewUniswapV3()}, fc, dir, 100, 200, true)
	pools, watermark, err := h.SyncPools(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 200, watermark)
	require.Len(t, pools, 1)

	v3, ok := pools[0].(*pool.V3Pool)
	require.True(t, ok)
	require.Equal(t, pool.Address(poolAddr), v3.Body.Address)
	require.EqualValues(t, 3000, v3.Body.Fee)
	require.EqualValues(t, 60, v3.Body.TickSpacing)
	require.Equal(t, "WETH", v3.Body.Token0.Symbol)
	require.Equal(t, "USDC", v3.Body.Token1.Symbol)
}

func TestS2RerunIsIdempotentAndScansNoExtraWindows(t *testing.T) {
	dir := t.TempDir()
	poolAddr := common.HexToAddress("0xaaa0000000000000000000000000000000aaa1")
	weth := common.HexToAddress("0xbbb0000000000000000000000000000000bbb2")
	usdc := common.HexToAddress("0xccc0000000000000000000000000000000ccc3")

	fc := newFakeChain()
	fc.logsByWin[[2]uint64{100, 200}] = []types.Log{v3Log(150, 0, poolAddr, weth, usdc, 3000, 60)}
	fc.tokens[weth] = tokenFixture{"WETH", "Wrapped Ether", 18}
	fc.tokens[usdc] = tokenFixture{"USDC", "USD Coin", 6}

	h := testHandle(t, chain.Mantle, []protocol.Fetcher{protocol.NewUniswapV3()}, fc, dir, 100, 200, true)
	pools1, watermark1, err := h.SyncPools(context.Background())
	require.NoError(t, err)

	// Second run: same range, cache watermark is already 200 so lo=201 >
	// hi=200 — no new windows should be scanned at all.
	callsBefore := fc.getLogsCalls
	h2 := testHandle(t, chain.Mantle, []protocol.Fetcher{protocol.NewUniswapV3()}, fc, dir, 100, 200, true)
	pools2, watermark2, err := h2.SyncPools(context.Background())
	require.NoError(t, err)

	require.Equal(t, watermark1, watermark2)
	require.Len(t, pools2, len(pools1))
	require.Equal(t, callsBefore, fc.getLogsCalls)
}

func TestS3MerchantMoeStablePool(t *testing.T) {
	dir := t.TempDir()
	pairAddr := common.HexToAddress("0x3330000000000000000000000000000000ccc3")
	t0 := common.HexToAddress("0x1110000000000000000000000000000000aaa1")
	t1 := common.HexToAddress("0x2220000000000000000000000000000000bbb2")

	fc := newFakeChain()
	fc.logsByWin[[2]uint64{1000, 1000}] = []types.Log{v2Log(1000, 0, pairAddr, t0, t1, 25, true)}
	fc.tokens[t0] = tokenFixture{}
	fc.tokens[t1] = tokenFixture{}

	h := testHandle(t, chain.Mantle, []protocol.Fetcher{protocol.NewMerchantMoe()}, fc, dir, 1000, 1000, true)
	pools, watermark, err := h.SyncPools(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1000, watermark)
	require.Len(t, pools, 1)

	v2, ok := pools[0].(*pool.V2Pool)
	require.True(t, ok)
	require.True(t, v2.Body.Stable)
	require.EqualValues(t, 25, v2.Body.Fee)
}

// failingAgniChain routes Agni's factory address to a GetLogs call that
// always returns Fatal, while UniswapV3 still reaches the underlying
// fakeChain normally — exercising partial-failure isolation across
// protocols sharing one gateway.
type failingAgniChain struct {
	*fakeChain
}

func (w *failingAgniChain) GetLogs(ctx context.Context, role rpcgateway.Role, from, to uint64, address common.Address, topic0 common.Hash) ([]types.Log, error) {
	agniFactory, _ := protocol.NewAgni().FactoryAddress(chain.Mantle)
	if address == agniFactory {
		return nil, errs.Fatal("get_logs", errors.New("tls handshake failure"))
	}
	return w.fakeChain.GetLogs(ctx, role, from, to, address, topic0)
}

func TestS4PartialFailureIsolatesProtocols(t *testing.T) {
	dir := t.TempDir()
	poolAddr := common.HexToAddress("0xaaa0000000000000000000000000000000aaa1")
	weth := common.HexToAddress("0xbbb0000000000000000000000000000000bbb2")
	usdc := common.HexToAddress("0xccc0000000000000000000000000000000ccc3")

	fc := newFakeChain()
	fc.logsByWin[[2]uint64{100, 200}] = []types.Log{v3Log(150, 0, poolAddr, weth, usdc, 3000, 60)}
	fc.tokens[weth] = tokenFixture{"WETH", "Wrapped Ether", 18}
	fc.tokens[usdc] = tokenFixture{"USDC", "USD Coin", 6}

	agniFail := &failingAgniChain{fakeChain: fc}

	h := testHandle(t, chain.Mantle, []protocol.Fetcher{protocol.NewUniswapV3(), protocol.NewAgni()}, agniFail, dir, 100, 200, true)
	pools, watermark, err := h.SyncPools(context.Background())
	require.NoError(t, err)

	foundUniswap := false
	for _, p := range pools {
		if p.Type() == pool.UniswapV3 {
			foundUniswap = true
		}
		require.NotEqual(t, pool.Agni, p.Type())
	}
	require.True(t, foundUniswap)
	// Agni never synced before, so its prior watermark is 0 and the global
	// minimum across protocols must be 0.
	require.EqualValues(t, 0, watermark)

	agniEntry := cache.Load(dir, chain.Mantle, pool.Agni)
	require.Equal(t, cache.Empty, agniEntry)
}

func TestS6SameTokenPoolIsDroppedButWatermarkAdvances(t *testing.T) {
	dir := t.TempDir()
	poolAddr := common.HexToAddress("0xaaa0000000000000000000000000000000aaa1")
	goodWeth := common.HexToAddress("0xbbb0000000000000000000000000000000bbb2")
	goodUsdc := common.HexToAddress("0xccc0000000000000000000000000000000ccc3")
	badPool := common.HexToAddress("0xaaa0000000000000000000000000000000aaa9")
	sameToken := common.HexToAddress("0xddd0000000000000000000000000000000ddd4")

	fc := newFakeChain()
	fc.logsByWin[[2]uint64{100, 200}] = []types.Log{
		v3Log(150, 0, poolAddr, goodWeth, goodUsdc, 3000, 60),
		v3Log(160, 0, badPool, sameToken, sameToken, 500, 10),
	}
	fc.tokens[goodWeth] = tokenFixture{"WETH", "Wrapped Ether", 18}
	fc.tokens[goodUsdc] = tokenFixture{"USDC", "USD Coin", 6}

	h := testHandle(t, chain.Mantle, []protocol.Fetcher{protocol.NewUniswapV3()}, fc, dir, 100, 200, true)
	pools, watermark, err := h.SyncPools(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 200, watermark)
	require.Len(t, pools, 1)
	require.Equal(t, pool.Address(poolAddr), pools[0].PoolAddress())
}

func TestDedupPoolAddressesAcrossRuns(t *testing.T) {
	dir := t.TempDir()
	poolAddr := common.HexToAddress("0xaaa0000000000000000000000000000000aaa1")
	weth := common.HexToAddress("0xbbb0000000000000000000000000000000bbb2")
	usdc := common.HexToAddress("0xccc0000000000000000000000000000000ccc3")

	fc := newFakeChain()
	fc.logsByWin[[2]uint64{100, 150}] = []types.Log{v3Log(120, 0, poolAddr, weth, usdc, 3000, 60)}
	fc.logsByWin[[2]uint64{151, 200}] = nil
	fc.tokens[weth] = tokenFixture{"WETH", "Wrapped Ether", 18}
	fc.tokens[usdc] = tokenFixture{"USDC", "USD Coin", 6}

	h1 := testHandle(t, chain.Mantle, []protocol.Fetcher{protocol.NewUniswapV3()}, fc, dir, 100, 150, true)
	_, _, err := h1.SyncPools(context.Background())
	require.NoError(t, err)

	h2 := testHandle(t, chain.Mantle, []protocol.Fetcher{protocol.NewUniswapV3()}, fc, dir, 100, 200, true)
	pools, watermark, err := h2.SyncPools(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 200, watermark)
	require.Len(t, pools, 1)
}
