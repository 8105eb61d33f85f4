package client

import (
	"fmt"
	"reflect"
	"sync"

	"balance_pool/internal/app/port"
	"balance_pool/internal/domain/entity"
)

// evmClientProvider implements the port.BlockchainClientProvider interface.
type evmClientProvider struct {
	mu      sync.Mutex
	clients map[string]*EVMClient // by network id
	logger  port.Logger
	opts    Options
}

// NewEVMClientProvider creates a provider that caches one client per network.
func NewEVMClientProvider(opts Options, logger port.Logger) *evmClientProvider {
	return &evmClientProvider{
		clients: make(map[string]*EVMClient),
		logger:  logger,
		opts:    opts,
	}
}

// GetClient returns the cached client for the network. A client whose RPC
// endpoints no longer match the definition is replaced.
func (p *evmClientProvider) GetClient(netDef entity.EvmNetwork) (port.BlockchainClient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := netDef.ID()
	if existing, ok := p.clients[key]; ok {
		if sameEndpoints(existing.Definition(), netDef) {
			return existing, nil
		}
		p.logger.Info("RPC endpoints changed, replacing EVM client", "network", netDef.Name)
		existing.Close()
		delete(p.clients, key)
	}

	p.logger.Debug("Creating new EVM client", "network", netDef.Name, "rpc_primary", netDef.PrimaryRPCURL)
	newClient, err := NewEVMClient(netDef, p.opts)
	if err != nil {
		p.logger.Error("Failed to create EVM client", "network", netDef.Name, "error", err)
		return nil, fmt.Errorf("failed to create EVM client for %s: %w", netDef.Name, err)
	}
	p.clients[key] = newClient
	return newClient, nil
}

// Close releases every cached client.
func (p *evmClientProvider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for key, c := range p.clients {
		c.Close()
		delete(p.clients, key)
	}
}

func sameEndpoints(a, b entity.EvmNetwork) bool {
	return a.PrimaryRPCURL == b.PrimaryRPCURL && reflect.DeepEqual(a.FallbackRPCURLs, b.FallbackRPCURLs)
}
