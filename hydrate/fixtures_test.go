package hydrate

import (
	"github.com/luxfi/geth/accounts/abi"
	"github.com/luxfi/geth/crypto"

	"github.com/luxfi/poolsync/pool"
)

func addrVal(hex string) pool.Address { return pool.HexToAddress(hex) }

func selector(signature string) []byte {
	return crypto.Keccak256([]byte(signature))[:4]
}

var (
	symbolSelector   = selector("symbol()")
	nameSelector     = selector("name()")
	decimalsSelector = selector("decimals()")
)

var stringOutArgs = mustArgs("string")
var uint8OutArgs = mustArgs("uint8")

func mustArgs(t string) abi.Arguments {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return abi.Arguments{{Type: typ}}
}

func packString(s string) []byte {
	out, err := stringOutArgs.Pack(s)
	if err != nil {
		panic(err)
	}
	return out
}

func packUint8(v uint8) []byte {
	out, err := uint8OutArgs.Pack(v)
	if err != nil {
		panic(err)
	}
	return out
}
