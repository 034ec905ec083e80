package pool

import (
	"encoding/json"
	"fmt"
)

// Type is the closed enumeration of supported AMM protocols. Equality and
// the zero value are well defined since it is backed by a plain integer;
// String is what gets serialized into cache file names and JSON bodies.
type Type uint8

const (
	UniswapV3 Type = iota
	Agni
	MerchantMoe
)

// AllTypes lists every supported protocol in a fixed, reproducible order.
var AllTypes = []Type{UniswapV3, Agni, MerchantMoe}

func (t Type) String() string {
	switch t {
	case UniswapV3:
		return "UniswapV3"
	case Agni:
		return "Agni"
	case MerchantMoe:
		return "MerchantMoe"
	default:
		return fmt.Sprintf("PoolType(%d)", uint8(t))
	}
}

func (t Type) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Type) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseType parses the serialized form produced by Type.String.
func ParseType(s string) (Type, error) {
	switch s {
	case "UniswapV3":
		return UniswapV3, nil
	case "Agni":
		return Agni, nil
	case "MerchantMoe":
		return MerchantMoe, nil
	default:
		return 0, fmt.Errorf("pool: unknown pool type %q", s)
	}
}
