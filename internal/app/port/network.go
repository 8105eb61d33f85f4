package port

import (
	"context"

	"balance_pool/internal/domain/entity"
)

// BlockchainClient fetches raw balances from one EVM network.
type BlockchainClient interface {
	// GetBalances resolves a batch of native and token balance requests.
	GetBalances(ctx context.Context, requests []entity.BalanceRequestItem) ([]entity.BalanceResultItem, error)

	// Definition returns the network definition associated with this client.
	Definition() entity.EvmNetwork
}

// BlockchainClientProvider hands out clients, one per network.
type BlockchainClientProvider interface {
	GetClient(network entity.EvmNetwork) (BlockchainClient, error)
}

// NetworkDefinitionProvider defines the interface for providing network definitions.
type NetworkDefinitionProvider interface {
	// GetAllNetworkDefinitions returns all available network definitions as a slice.
	GetAllNetworkDefinitions() []entity.EvmNetwork

	// GetNetworkDefinitionByName returns a specific network definition by its identifier.
	GetNetworkDefinitionByName(nameOrIdentifier string) (entity.EvmNetwork, bool)
}
