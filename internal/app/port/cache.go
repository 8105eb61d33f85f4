package port

import (
	"context"

	"balance_pool/internal/domain/entity"
)

// BalanceCache is the durable store used for cold-start hydration.
// Persist replaces the whole snapshot.
type BalanceCache interface {
	Persist(ctx context.Context, balances []entity.CachedBalance) error
	Retrieve(ctx context.Context) ([]entity.CachedBalance, error)
}
