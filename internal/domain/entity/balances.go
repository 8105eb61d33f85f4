package entity

import (
	"math/big"
	"sort"

	"github.com/shopspring/decimal"
)

// Balances is an immutable, id-ordered collection of balance records.
type Balances struct {
	byID map[string]BalanceRecord
	ids  []string
}

// NewBalances builds a collection. Later records replace earlier ones with the same id.
func NewBalances(records ...BalanceRecord) Balances {
	byID := make(map[string]BalanceRecord, len(records))
	for _, r := range records {
		byID[r.ID()] = r
	}
	return newBalancesFromMap(byID)
}

// BalancesFromMap builds a collection from an id → record mapping. The map is copied.
func BalancesFromMap(m map[string]BalanceRecord) Balances {
	byID := make(map[string]BalanceRecord, len(m))
	for id, r := range m {
		byID[id] = r
	}
	return newBalancesFromMap(byID)
}

func newBalancesFromMap(byID map[string]BalanceRecord) Balances {
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return Balances{byID: byID, ids: ids}
}

// Len returns the number of records.
func (b Balances) Len() int { return len(b.ids) }

// IsEmpty reports whether the collection holds no records.
func (b Balances) IsEmpty() bool { return len(b.ids) == 0 }

// Get returns the record with the given id.
func (b Balances) Get(id string) (BalanceRecord, bool) {
	r, ok := b.byID[id]
	return r, ok
}

// Records returns the records ordered by id.
func (b Balances) Records() []BalanceRecord {
	out := make([]BalanceRecord, 0, len(b.ids))
	for _, id := range b.ids {
		out = append(out, b.byID[id])
	}
	return out
}

// Map returns a copy of the id → record mapping.
func (b Balances) Map() map[string]BalanceRecord {
	out := make(map[string]BalanceRecord, len(b.byID))
	for id, r := range b.byID {
		out[id] = r
	}
	return out
}

// Filter returns the records matching pred.
func (b Balances) Filter(pred func(BalanceRecord) bool) Balances {
	byID := make(map[string]BalanceRecord)
	ids := make([]string, 0)
	for _, id := range b.ids {
		if r := b.byID[id]; pred(r) {
			byID[id] = r
			ids = append(ids, id)
		}
	}
	return Balances{byID: byID, ids: ids}
}

// Find returns the first record (in id order) matching pred.
func (b Balances) Find(pred func(BalanceRecord) bool) (BalanceRecord, bool) {
	for _, id := range b.ids {
		if r := b.byID[id]; pred(r) {
			return r, true
		}
	}
	return BalanceRecord{}, false
}

func (b Balances) ByToken(tokenID string) Balances {
	return b.Filter(func(r BalanceRecord) bool { return r.TokenID == tokenID })
}

func (b Balances) ByAddress(address string) Balances {
	normalized := NormalizeAddress(address)
	return b.Filter(func(r BalanceRecord) bool { return NormalizeAddress(r.Address) == normalized })
}

func (b Balances) ByNetwork(ref NetworkRef) Balances {
	return b.Filter(func(r BalanceRecord) bool { return r.Network == ref })
}

func (b Balances) ByChain(chainID string) Balances {
	return b.ByNetwork(ChainRef(chainID))
}

func (b Balances) ByEvmNetwork(networkID string) Balances {
	return b.ByNetwork(EvmNetworkRef(networkID))
}

func (b Balances) BySource(source string) Balances {
	return b.Filter(func(r BalanceRecord) bool { return r.Source == source })
}

// TokenRate carries the decimals of a token and its price in one or more currencies.
type TokenRate struct {
	Decimals uint8
	Prices   map[string]decimal.Decimal
}

// TokenRates maps token ids to their rates.
type TokenRates map[string]TokenRate

// BalanceSum is the value of a set of balances in one display currency.
type BalanceSum struct {
	Currency     string          `json:"currency"`
	Total        decimal.Decimal `json:"total"`
	Free         decimal.Decimal `json:"free"`
	Reserved     decimal.Decimal `json:"reserved"`
	Frozen       decimal.Decimal `json:"frozen"`
	Transferable decimal.Decimal `json:"transferable"`
}

// Sum converts every record into currency and adds them up. Records whose
// token has no rate for currency are skipped.
func (b Balances) Sum(currency string, rates TokenRates) BalanceSum {
	sum := BalanceSum{
		Currency:     currency,
		Total:        decimal.Zero,
		Free:         decimal.Zero,
		Reserved:     decimal.Zero,
		Frozen:       decimal.Zero,
		Transferable: decimal.Zero,
	}
	for _, id := range b.ids {
		r := b.byID[id]
		rate, ok := rates[r.TokenID]
		if !ok {
			continue
		}
		price, ok := rate.Prices[currency]
		if !ok {
			continue
		}
		value := func(v *big.Int) decimal.Decimal {
			if v == nil {
				return decimal.Zero
			}
			return decimal.NewFromBigInt(v, -int32(rate.Decimals)).Mul(price)
		}
		sum.Total = sum.Total.Add(value(r.Amounts.Total()))
		sum.Free = sum.Free.Add(value(r.Amounts.Free))
		sum.Reserved = sum.Reserved.Add(value(r.Amounts.Reserved))
		sum.Frozen = sum.Frozen.Add(value(r.Amounts.Frozen))
		sum.Transferable = sum.Transferable.Add(value(r.Amounts.Transferable()))
	}
	return sum
}
