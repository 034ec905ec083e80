package protocol

import (
	"github.com/luxfi/geth/common"

	"github.com/luxfi/poolsync/chain"
)

// Factory addresses below are placeholders for the curated Mantle
// deployments this pipeline targets. Wiring a real deployment is an
// operational config change, not a code change: swap the address in this
// table (or load it from config) and every fetcher picks it up unchanged.
var (
	uniswapV3Factories = factoryAddresses{
		chain.Mantle.ID: common.HexToAddress("0x0d922Fb1Bc191F64970ac40376643808b4B74Df9"),
	}
	agniFactories = factoryAddresses{
		chain.Mantle.ID: common.HexToAddress("0x25780dc8Fc3cfBD75F33bFDAB65e969b603b2035"),
	}
	merchantMoeFactories = factoryAddresses{
		chain.Mantle.ID: common.HexToAddress("0x5bEf015CA9424A7C07B68490616a4C1F094BEdEc"),
	}
)
