package pool

import (
	"encoding/json"
	"fmt"
)

// TokenMeta bundles the identity and display metadata of one side of a pool.
// Symbol and Name are empty strings, never absent, when the token contract
// doesn't implement ERC-20's optional metadata functions or returns
// non-UTF-8 bytes for them.
type TokenMeta struct {
	Address  Address `json:"address"`
	Symbol   string  `json:"symbol"`
	Name     string  `json:"name"`
	Decimals uint8   `json:"decimals"`
}

// Pool is the common capability surface every pool variant exposes,
// regardless of its underlying AMM family. Consumers dispatch on Type when
// they need variant-specific fields (TickSpacing, Stable) via a type switch
// on the concrete *V2Pool / *V3Pool.
type Pool interface {
	Type() Type
	PoolAddress() Address
	Token0() TokenMeta
	Token1() TokenMeta
	Fee() uint32
	Stable() bool
}

// V2Body is the concrete field set of a constant-product pool, optionally
// StableSwap-like (Stable == true).
type V2Body struct {
	Address Address   `json:"address"`
	Token0  TokenMeta `json:"token0"`
	Token1  TokenMeta `json:"token1"`
	Fee     uint32    `json:"fee"`
	Stable  bool      `json:"stable"`
}

// V3Body is the concrete field set of a concentrated-liquidity pool.
type V3Body struct {
	Address     Address   `json:"address"`
	Token0      TokenMeta `json:"token0"`
	Token1      TokenMeta `json:"token1"`
	Fee         uint32    `json:"fee"`
	TickSpacing int32     `json:"tick_spacing"`
}

// V2Pool is a V2-style pool tagged with the protocol that produced it
// (MerchantMoe today; any future V2-shaped protocol reuses this body).
type V2Pool struct {
	PType Type
	Body  V2Body
}

func (p *V2Pool) Type() Type           { return p.PType }
func (p *V2Pool) PoolAddress() Address { return p.Body.Address }
func (p *V2Pool) Token0() TokenMeta    { return p.Body.Token0 }
func (p *V2Pool) Token1() TokenMeta    { return p.Body.Token1 }
func (p *V2Pool) Fee() uint32          { return p.Body.Fee }
func (p *V2Pool) Stable() bool         { return p.Body.Stable }

// V3Pool is a V3-style pool tagged with the protocol that produced it
// (UniswapV3 or Agni today).
type V3Pool struct {
	PType Type
	Body  V3Body
}

func (p *V3Pool) Type() Type           { return p.PType }
func (p *V3Pool) PoolAddress() Address { return p.Body.Address }
func (p *V3Pool) Token0() TokenMeta     { return p.Body.Token0 }
func (p *V3Pool) Token1() TokenMeta     { return p.Body.Token1 }
func (p *V3Pool) Fee() uint32          { return p.Body.Fee }
func (p *V3Pool) Stable() bool         { return false }
func (p *V3Pool) TickSpacing() int32   { return p.Body.TickSpacing }

// envelope is the on-the-wire shape of a single Pool: a discriminator plus
// an opaque body decoded according to that discriminator.
type envelope struct {
	PoolType Type            `json:"pool_type"`
	Body     json.RawMessage `json:"body"`
}

// MarshalPool encodes p into the {"pool_type","body"} envelope cache files
// use.
func MarshalPool(p Pool) ([]byte, error) {
	var body interface{}
	switch v := p.(type) {
	case *V2Pool:
		body = v.Body
	case *V3Pool:
		body = v.Body
	default:
		return nil, fmt.Errorf("pool: unknown concrete pool type %T", p)
	}
	rawBody, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{PoolType: p.Type(), Body: rawBody})
}

// UnmarshalPool decodes a single {"pool_type","body"} envelope.
func UnmarshalPool(data []byte) (Pool, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	switch env.PoolType {
	case UniswapV3, Agni:
		var body V3Body
		if err := json.Unmarshal(env.Body, &body); err != nil {
			return nil, fmt.Errorf("pool: decode %s body: %w", env.PoolType, err)
		}
		return &V3Pool{PType: env.PoolType, Body: body}, nil
	case MerchantMoe:
		var body V2Body
		if err := json.Unmarshal(env.Body, &body); err != nil {
			return nil, fmt.Errorf("pool: decode %s body: %w", env.PoolType, err)
		}
		return &V2Pool{PType: env.PoolType, Body: body}, nil
	default:
		return nil, fmt.Errorf("pool: unsupported pool_type %s", env.PoolType)
	}
}
