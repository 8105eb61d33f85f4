package port

import (
	"context"

	"balance_pool/internal/domain/entity"
)

// TokenProvider defines the interface for fetching token definitions.
type TokenProvider interface {
	// GetTokensByNetwork returns network identifier -> tokens for the given networks.
	GetTokensByNetwork(networks []entity.EvmNetwork) (map[string][]entity.TokenInfo, error)
}

// RateProvider supplies the rate table used to value balances.
type RateProvider interface {
	Rates(ctx context.Context, tokens []entity.Token) entity.TokenRates
}
