package port

import (
	"context"

	"balance_pool/internal/domain/entity"
)

// ModuleUpdate is one push from a balance module subscription. Exactly one of
// Err and Balances is meaningful. Initialising tags a batch reported while the
// module is still warming up.
type ModuleUpdate struct {
	Err          error
	Balances     []entity.BalanceRecord
	Initialising bool
}

// ModuleCallback receives subscription updates. It may be called from any goroutine.
type ModuleCallback func(ModuleUpdate)

// CloseFunc stops a module subscription.
type CloseFunc func()

// BalanceModule knows how to fetch and subscribe to balances for one token type.
type BalanceModule interface {
	// Type is the token type tag this module handles; it is also the Source of
	// every record the module produces.
	Type() string

	// FetchBalances is a one-shot lookup.
	FetchBalances(ctx context.Context, addressesByToken entity.AddressesByToken) (entity.Balances, error)

	// SubscribeBalances starts a continuous subscription. initial holds the
	// balances already known for this module so it can report only changes.
	SubscribeBalances(ctx context.Context, addressesByToken entity.AddressesByToken, initial entity.Balances, callback ModuleCallback) (CloseFunc, error)
}
