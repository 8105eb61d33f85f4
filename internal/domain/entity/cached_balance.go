package entity

import (
	"fmt"
	"math/big"
)

// CachedBalance is the durable form of a BalanceRecord: components only, no status.
// Amounts are base-10 strings so every backend can store them losslessly.
type CachedBalance struct {
	Source   string `json:"source"`
	Network  string `json:"network"`
	TokenID  string `json:"tokenId"`
	Address  string `json:"address"`
	Free     string `json:"free"`
	Reserved string `json:"reserved,omitempty"`
	Frozen   string `json:"frozen,omitempty"`
}

// NewCachedBalance strips r down to its durable components.
func NewCachedBalance(r BalanceRecord) CachedBalance {
	return CachedBalance{
		Source:   r.Source,
		Network:  r.Network.String(),
		TokenID:  r.TokenID,
		Address:  r.Address,
		Free:     intString(r.Amounts.Free),
		Reserved: intString(r.Amounts.Reserved),
		Frozen:   intString(r.Amounts.Frozen),
	}
}

// Record rebuilds a BalanceRecord stamped with status.
func (c CachedBalance) Record(status Status) (BalanceRecord, error) {
	network, err := ParseNetworkRef(c.Network)
	if err != nil {
		return BalanceRecord{}, err
	}
	free, err := parseInt(c.Free)
	if err != nil {
		return BalanceRecord{}, fmt.Errorf("free amount of %s: %w", c.TokenID, err)
	}
	reserved, err := parseInt(c.Reserved)
	if err != nil {
		return BalanceRecord{}, fmt.Errorf("reserved amount of %s: %w", c.TokenID, err)
	}
	frozen, err := parseInt(c.Frozen)
	if err != nil {
		return BalanceRecord{}, fmt.Errorf("frozen amount of %s: %w", c.TokenID, err)
	}
	return BalanceRecord{
		Source:  c.Source,
		Network: network,
		TokenID: c.TokenID,
		Address: c.Address,
		Amounts: Amounts{Free: free, Reserved: reserved, Frozen: frozen},
		Status:  status,
	}, nil
}

func intString(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}

func parseInt(s string) (*big.Int, error) {
	if s == "" {
		return nil, nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	return v, nil
}
