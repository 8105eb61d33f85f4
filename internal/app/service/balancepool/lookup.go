package balancepool

import (
	"context"
	"fmt"
	"math/big"

	"balance_pool/internal/app/port"
	"balance_pool/internal/domain/entity"
)

type lookupResult struct {
	record *entity.BalanceRecord
	token  entity.Token
	module port.BalanceModule
	err    error
}

// GetBalance returns one balance. The in-memory map is consulted first;
// otherwise the owning module performs a one-shot fetch that is not merged
// into the pool. A zero NetworkRef means the token's own network.
func (p *Pool) GetBalance(ctx context.Context, network entity.NetworkRef, tokenID, address string) (entity.BalanceRecord, error) {
	resCh := make(chan lookupResult, 1)
	if !p.post(func() { resCh <- p.lookupLocal(network, tokenID, address) }) {
		return entity.BalanceRecord{}, ErrPoolClosed
	}

	var res lookupResult
	select {
	case res = <-resCh:
	case <-p.stopped:
		return entity.BalanceRecord{}, ErrPoolClosed
	case <-ctx.Done():
		return entity.BalanceRecord{}, ctx.Err()
	}
	if res.err != nil {
		return entity.BalanceRecord{}, res.err
	}
	if res.record != nil {
		return *res.record, nil
	}

	source := res.module.Type()
	fetched, err := res.module.FetchBalances(ctx, entity.AddressesByToken{tokenID: {address}})
	if err != nil {
		return entity.BalanceRecord{}, fmt.Errorf("fetch %s balance of %s: %w", tokenID, address, err)
	}
	id := entity.BalanceID(source, res.token.Network, tokenID, address)
	if r, ok := fetched.Get(id); ok {
		if r.Status == "" {
			r.Status = entity.StatusLive
		}
		return r, nil
	}
	return entity.BalanceRecord{
		Source:  source,
		Network: res.token.Network,
		TokenID: tokenID,
		Address: address,
		Amounts: entity.FreeAmount(big.NewInt(0)),
		Status:  entity.StatusLive,
	}, nil
}

func (p *Pool) lookupLocal(network entity.NetworkRef, tokenID, address string) lookupResult {
	normalized := entity.NormalizeAddress(address)
	for _, r := range p.balances {
		if r.TokenID != tokenID || entity.NormalizeAddress(r.Address) != normalized {
			continue
		}
		if !network.IsZero() && r.Network != network {
			continue
		}
		found := r
		return lookupResult{record: &found}
	}

	if p.chainData == nil {
		return lookupResult{err: fmt.Errorf("%w: %s", ErrUnknownToken, tokenID)}
	}
	token, ok := p.chainData.Tokens[tokenID]
	if !ok || (!network.IsZero() && token.Network != network) {
		return lookupResult{err: fmt.Errorf("%w: %s", ErrUnknownToken, tokenID)}
	}
	module, ok := p.modules[token.Type]
	if !ok {
		return lookupResult{err: fmt.Errorf("%w: %s", ErrNoModule, token.Type)}
	}
	return lookupResult{token: token, module: module}
}
