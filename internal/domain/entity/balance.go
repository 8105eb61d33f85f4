package entity

import (
	"fmt"
	"math/big"
)

// Status describes how fresh a BalanceRecord is.
type Status string

const (
	// StatusCache marks a record hydrated from the durable cache and not yet confirmed.
	StatusCache Status = "cache"
	// StatusInitialising marks a record reported while its module was still warming up.
	StatusInitialising Status = "initialising"
	// StatusLive marks a record confirmed by a live subscription.
	StatusLive Status = "live"
	// StatusStale marks a record whose network is currently unreachable.
	StatusStale Status = "stale"
)

// Amounts are the components of a balance in the token's smallest unit.
// Frozen is a lock over Free, so it does not add to the total.
type Amounts struct {
	Free     *big.Int `json:"free"`
	Reserved *big.Int `json:"reserved,omitempty"`
	Frozen   *big.Int `json:"frozen,omitempty"`
}

// FreeAmount is a shorthand for balances that only have a free component.
func FreeAmount(v *big.Int) Amounts {
	return Amounts{Free: v}
}

// Total returns free + reserved.
func (a Amounts) Total() *big.Int {
	total := new(big.Int)
	if a.Free != nil {
		total.Add(total, a.Free)
	}
	if a.Reserved != nil {
		total.Add(total, a.Reserved)
	}
	return total
}

// Transferable returns free - frozen, floored at zero.
func (a Amounts) Transferable() *big.Int {
	out := new(big.Int)
	if a.Free != nil {
		out.Set(a.Free)
	}
	if a.Frozen != nil {
		out.Sub(out, a.Frozen)
	}
	if out.Sign() < 0 {
		out.SetInt64(0)
	}
	return out
}

// IsZero reports whether the total is zero.
func (a Amounts) IsZero() bool {
	return a.Total().Sign() == 0
}

// Equal compares amounts by value; nil and zero are equal.
func (a Amounts) Equal(b Amounts) bool {
	return cmpNil(a.Free, b.Free) == 0 &&
		cmpNil(a.Reserved, b.Reserved) == 0 &&
		cmpNil(a.Frozen, b.Frozen) == 0
}

// Clone returns a copy that shares no memory with a.
func (a Amounts) Clone() Amounts {
	return Amounts{Free: cloneInt(a.Free), Reserved: cloneInt(a.Reserved), Frozen: cloneInt(a.Frozen)}
}

func cmpNil(a, b *big.Int) int {
	if a == nil {
		a = new(big.Int)
	}
	if b == nil {
		b = new(big.Int)
	}
	return a.Cmp(b)
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}

// BalanceRecord is one observed balance of a token held by an address on one network.
type BalanceRecord struct {
	Source  string     `json:"source"`
	Network NetworkRef `json:"network"`
	TokenID string     `json:"tokenId"`
	Address string     `json:"address"`
	Amounts Amounts    `json:"amounts"`
	Status  Status     `json:"status"`
}

// BalanceID builds the identity of a balance from its identity tuple.
func BalanceID(source string, network NetworkRef, tokenID, address string) string {
	return fmt.Sprintf("%s-%s-%s-%s", source, network, tokenID, NormalizeAddress(address))
}

// ID returns the deterministic identity of the record.
func (b BalanceRecord) ID() string {
	return BalanceID(b.Source, b.Network, b.TokenID, b.Address)
}

// Total is a shorthand for b.Amounts.Total().
func (b BalanceRecord) Total() *big.Int {
	return b.Amounts.Total()
}

// IsZero reports whether the record holds nothing.
func (b BalanceRecord) IsZero() bool {
	return b.Amounts.IsZero()
}

// Equal is a deep value comparison, status included.
func (b BalanceRecord) Equal(o BalanceRecord) bool {
	return b.Source == o.Source &&
		b.Network == o.Network &&
		b.TokenID == o.TokenID &&
		NormalizeAddress(b.Address) == NormalizeAddress(o.Address) &&
		b.Status == o.Status &&
		b.Amounts.Equal(o.Amounts)
}

// WithStatus returns a copy of b carrying status s.
func (b BalanceRecord) WithStatus(s Status) BalanceRecord {
	b.Status = s
	return b
}
