package pool

import (
	"encoding/json"
	"strings"

	"github.com/luxfi/geth/common"
)

// Address is a 20-byte pool or token identity. It is a defined type over
// go-ethereum's common.Address (reusing its byte layout and comparisons)
// but renders as lowercase 0x-prefixed hex rather than common.Address's
// EIP-55 checksummed mixed case: cache files and logs here want a
// byte-stable, case-insensitive representation, not a checksum.
type Address common.Address

// BytesToAddress left-pads or truncates b to 20 bytes.
func BytesToAddress(b []byte) Address { return Address(common.BytesToAddress(b)) }

// HexToAddress parses a 0x-prefixed (or bare) hex string.
func HexToAddress(s string) Address { return Address(common.HexToAddress(s)) }

// Bytes returns the 20-byte big-endian representation.
func (a Address) Bytes() []byte { return common.Address(a).Bytes() }

// Common converts back to go-ethereum's common.Address, for passing to
// ethclient/abi calls.
func (a Address) Common() common.Address { return common.Address(a) }

// IsZero reports whether a is the zero address.
func (a Address) IsZero() bool { return a == Address{} }

// String renders a as lowercase 0x-prefixed hex.
func (a Address) String() string {
	return strings.ToLower(common.Address(a).Hex())
}

// Less reports whether a byte-lexicographically precedes b, the ordering
// pool token pairs use on-chain.
func (a Address) Less(b Address) bool {
	ab, bb := a.Bytes(), b.Bytes()
	for i := range ab {
		if ab[i] != bb[i] {
			return ab[i] < bb[i]
		}
	}
	return false
}

func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Address) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*a = HexToAddress(s)
	return nil
}
