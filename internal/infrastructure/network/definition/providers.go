package networkdefinition

import (
	"sort"
	"strings"

	"balance_pool/internal/app/port"
	"balance_pool/internal/config"
	"balance_pool/internal/domain/entity"
)

// NetworkDefinitionProvider provides EVM network definitions: the built-in
// list adjusted by config overrides.
type NetworkDefinitionProvider struct {
	logger port.Logger
	defs   map[string]entity.EvmNetwork // by identifier
}

type network struct {
	chainID    uint64
	identifier string
	name       string
	symbol     string
	rpc        []string
	explorer   string
	dex        string
	wrapped    string
	testnet    bool
	substrate  string
}

func (n network) definition() entity.EvmNetwork {
	def := entity.EvmNetwork{
		ChainID:                   n.chainID,
		Name:                      n.name,
		Identifier:                n.identifier,
		NativeSymbol:              n.symbol,
		Decimals:                  18,
		BlockExplorerURL:          n.explorer,
		DEXScreenerChainID:        n.dex,
		WrappedNativeTokenAddress: n.wrapped,
		IsTestnet:                 n.testnet,
		SubstrateChainID:          n.substrate,
	}
	if len(n.rpc) > 0 {
		def.PrimaryRPCURL = n.rpc[0]
		def.FallbackRPCURLs = append([]string{}, n.rpc[1:]...)
	}
	return def
}

var builtin = []network{ //nolint:gochecknoglobals // static definitions
	{1, "ethereum", "Ethereum Mainnet", "ETH", []string{"https://ethereum-rpc.publicnode.com", "https://rpc.ankr.com/eth"}, "https://etherscan.io", "ethereum", "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", false, ""},
	{56, "bsc", "BNB Smart Chain", "BNB", []string{"https://1rpc.io/bnb", "https://bsc-dataseed2.binance.org/"}, "https://bscscan.com", "bsc", "0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c", false, ""},
	{137, "polygon", "Polygon PoS", "POL", []string{"https://polygon-rpc.com/", "https://polygon.publicnode.com"}, "https://polygonscan.com", "polygon", "0x0d500B1d8E8eF31E21C99d1Db9A6444d3ADf1270", false, ""},
	{42161, "arbitrum", "Arbitrum One", "ETH", []string{"https://arb1.arbitrum.io/rpc", "https://arbitrum.publicnode.com"}, "https://arbiscan.io", "arbitrum", "0x82aF49447D8a07e3bd95BD0d56f35241523fBab1", false, ""},
	{43114, "avalanche", "Avalanche C-Chain", "AVAX", []string{"https://api.avax.network/ext/bc/C/rpc", "https://rpc.ankr.com/avalanche"}, "https://snowtrace.io", "avalanche", "0xB31f66AA3C1e785363F0875A1B74E27b85FD66c7", false, ""},
	{8453, "base", "Base Mainnet", "ETH", []string{"https://1rpc.io/base", "https://base.publicnode.com"}, "https://basescan.org", "base", "0x4200000000000000000000000000000000000006", false, ""},
	{10, "optimism", "OP Mainnet", "ETH", []string{"https://optimism.publicnode.com", "https://rpc.ankr.com/optimism"}, "https://optimistic.etherscan.io", "optimism", "0x4200000000000000000000000000000000000006", false, ""},
	{100, "gnosis", "Gnosis Chain", "xDAI", []string{"https://rpc.gnosischain.com", "https://gnosis.publicnode.com"}, "https://gnosisscan.io", "gnosis", "0xe91D153E0b41518A2Ce8DD3D7944Fa863463A97d", false, ""},
	{59144, "linea", "Linea Mainnet", "ETH", []string{"https://rpc.linea.build"}, "https://lineascan.build", "linea", "0xe5D7C2a44FfDDf6b295A15c148167daaAf5Cf34f", false, ""},
	{534352, "scroll", "Scroll", "ETH", []string{"https://rpc.scroll.io"}, "https://scrollscan.com", "scroll", "0x5300000000000000000000000000000000000004", false, ""},
	{324, "zksync", "zkSync Era Mainnet", "ETH", []string{"https://mainnet.era.zksync.io"}, "https://explorer.zksync.io", "zksync", "0x5AEa5775959fBC2557Cc8789bC1bf90A239D9a91", false, ""},
	{1284, "moonbeam", "Moonbeam", "GLMR", []string{"https://rpc.api.moonbeam.network"}, "https://moonscan.io", "moonbeam", "0xAcc15dC74880C9944775448304B263D191c6077F", false, "moonbeam"},
	{1285, "moonriver", "Moonriver", "MOVR", []string{"https://rpc.api.moonriver.moonbeam.network"}, "https://moonriver.moonscan.io", "moonriver", "", false, "moonriver"},
	{11155111, "sepolia", "Sepolia", "ETH", []string{"https://ethereum-sepolia-rpc.publicnode.com"}, "https://sepolia.etherscan.io", "", "", true, ""},
	{84532, "base_sepolia", "Base Sepolia", "ETH", []string{"https://sepolia.base.org"}, "https://sepolia.basescan.org", "", "", true, ""},
}

// NewNetworkDefinitionProvider creates the provider and applies overrides.
// An override for an unknown identifier adds a network when it carries a chain
// id and an RPC URL.
func NewNetworkDefinitionProvider(log port.Logger, overrides []config.NetworkOverride) *NetworkDefinitionProvider {
	p := &NetworkDefinitionProvider{
		logger: log,
		defs:   make(map[string]entity.EvmNetwork, len(builtin)),
	}
	for _, n := range builtin {
		p.defs[n.identifier] = n.definition()
	}

	for _, o := range overrides {
		id := strings.ToLower(o.Identifier)
		if o.Disabled {
			delete(p.defs, id)
			p.logger.Info("network disabled by config", "network", id)
			continue
		}
		def, known := p.defs[id]
		if !known {
			if o.ChainID == 0 || o.PrimaryRPCURL == "" {
				p.logger.Warn("network override ignored: unknown network needs chainID and primaryRpcUrl", "network", id)
				continue
			}
			def = entity.EvmNetwork{Identifier: id, Name: id, Decimals: 18, NativeSymbol: "ETH"}
		}
		applyOverride(&def, o)
		p.defs[id] = def
		p.logger.Debug("network override applied", "network", id, "chainId", def.ChainID, "rpc", def.PrimaryRPCURL)
	}

	p.logger.Info("NetworkDefinitionProvider initialized", "networks", len(p.defs))
	return p
}

func applyOverride(def *entity.EvmNetwork, o config.NetworkOverride) {
	if o.ChainID != 0 {
		def.ChainID = o.ChainID
	}
	if o.Name != "" {
		def.Name = o.Name
	}
	if o.NativeSymbol != "" {
		def.NativeSymbol = o.NativeSymbol
	}
	if o.PrimaryRPCURL != "" {
		def.PrimaryRPCURL = o.PrimaryRPCURL
	}
	if o.FallbackRPCURLs != nil {
		def.FallbackRPCURLs = append([]string{}, o.FallbackRPCURLs...)
	}
	if o.DEXScreenerChainID != "" {
		def.DEXScreenerChainID = o.DEXScreenerChainID
	}
	if o.SubstrateChainID != "" {
		def.SubstrateChainID = o.SubstrateChainID
	}
	if o.IsTestnet != nil {
		def.IsTestnet = *o.IsTestnet
	}
}

// GetAllNetworkDefinitions returns every known network ordered by chain id.
func (p *NetworkDefinitionProvider) GetAllNetworkDefinitions() []entity.EvmNetwork {
	if p == nil {
		return []entity.EvmNetwork{}
	}
	out := make([]entity.EvmNetwork, 0, len(p.defs))
	for _, def := range p.defs {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChainID < out[j].ChainID })
	return out
}

// GetNetworkDefinitionByName returns a network by its identifier.
func (p *NetworkDefinitionProvider) GetNetworkDefinitionByName(identifier string) (entity.EvmNetwork, bool) {
	if p == nil {
		return entity.EvmNetwork{}, false
	}
	def, ok := p.defs[strings.ToLower(identifier)]
	return def, ok
}

// GetNetworkDefinitionByChainID returns a network by its EVM chain id.
func (p *NetworkDefinitionProvider) GetNetworkDefinitionByChainID(chainID uint64) (entity.EvmNetwork, bool) {
	if p == nil {
		return entity.EvmNetwork{}, false
	}
	for _, def := range p.defs {
		if def.ChainID == chainID {
			return def, true
		}
	}
	return entity.EvmNetwork{}, false
}
