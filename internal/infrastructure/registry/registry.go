package registry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"balance_pool/internal/app/port"
	"balance_pool/internal/domain/entity"
	"balance_pool/internal/pkg/observable"
)

// FileRegistry builds ChainData from the network definitions, the per-network
// token files and the chains listed in config. An EVM network is part of the
// registry only when it has a token file.
type FileRegistry struct {
	networks port.NetworkDefinitionProvider
	tokens   port.TokenProvider
	chains   []entity.Chain
	logger   port.Logger
	data     *observable.Subject[entity.ChainData]
}

// NewFileRegistry creates a new FileRegistry. Call Reload to publish the first ChainData.
func NewFileRegistry(networks port.NetworkDefinitionProvider, tokens port.TokenProvider, chains []entity.Chain, logger port.Logger) *FileRegistry {
	return &FileRegistry{
		networks: networks,
		tokens:   tokens,
		chains:   chains,
		logger:   logger,
		data:     observable.New[entity.ChainData](),
	}
}

// WatchChainData implements port.ChainRegistry.
func (r *FileRegistry) WatchChainData(ctx context.Context) <-chan entity.ChainData {
	return r.data.Watch(ctx)
}

// ChainData returns the last published ChainData.
func (r *FileRegistry) ChainData() (entity.ChainData, bool) {
	return r.data.Get()
}

// Reload rebuilds ChainData and publishes it.
func (r *FileRegistry) Reload() error {
	data, err := r.build()
	if err != nil {
		return err
	}
	r.data.Set(data)
	r.logger.Info("Chain registry loaded",
		"chains", len(data.Chains),
		"evm_networks", len(data.EvmNetworks),
		"tokens", len(data.Tokens))
	return nil
}

// Run reloads every interval until ctx is done.
func (r *FileRegistry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Reload(); err != nil {
				r.logger.Warn("Failed to reload chain registry", "error", err)
			}
		}
	}
}

func (r *FileRegistry) build() (entity.ChainData, error) {
	data := entity.ChainData{
		Chains:      make(map[string]entity.Chain, len(r.chains)),
		EvmNetworks: make(map[string]entity.EvmNetwork),
		Tokens:      make(map[string]entity.Token),
	}
	for _, c := range r.chains {
		if c.AccountFormat == "" {
			c.AccountFormat = entity.AccountFormatSS58
		}
		data.Chains[c.ID] = c
	}

	defs := r.networks.GetAllNetworkDefinitions()
	tokensByNetwork, err := r.tokens.GetTokensByNetwork(defs)
	if err != nil {
		return entity.ChainData{}, fmt.Errorf("failed to load tokens: %w", err)
	}

	for _, def := range defs {
		infos, ok := tokensByNetwork[def.ID()]
		if !ok {
			continue
		}
		data.EvmNetworks[def.ID()] = def

		native := NativeToken(def)
		data.Tokens[native.ID] = native
		for _, info := range infos {
			t := ERC20Token(def, info)
			data.Tokens[t.ID] = t
		}
	}
	return data, nil
}

// NativeToken returns the native token of an EVM network. It is priced
// through the wrapped native contract.
func NativeToken(def entity.EvmNetwork) entity.Token {
	return entity.Token{
		ID:        entity.EvmNativeTokenID(def.ID()),
		Type:      entity.TokenTypeEvmNative,
		Network:   def.Ref(),
		Symbol:    def.NativeSymbol,
		Decimals:  uint8(def.Decimals), //nolint:gosec // network decimals are small
		IsTestnet: def.IsTestnet,
		PriceID:   PriceID(def, def.WrappedNativeTokenAddress),
	}
}

// ERC20Token converts a token file entry into a registry token.
func ERC20Token(def entity.EvmNetwork, info entity.TokenInfo) entity.Token {
	return entity.Token{
		ID:              entity.EvmERC20TokenID(def.ID(), info.Address),
		Type:            entity.TokenTypeEvmERC20,
		Network:         def.Ref(),
		Symbol:          info.Symbol,
		Decimals:        info.Decimals,
		ContractAddress: info.Address,
		IsTestnet:       def.IsTestnet,
		PriceID:         PriceID(def, info.Address),
	}
}

// PriceID is "<dexscreener chain>:<contract>", or empty when the network is
// not listed on DEX Screener or there is no contract to price.
func PriceID(def entity.EvmNetwork, contract string) string {
	if def.DEXScreenerChainID == "" || contract == "" {
		return ""
	}
	return def.DEXScreenerChainID + ":" + strings.ToLower(contract)
}
