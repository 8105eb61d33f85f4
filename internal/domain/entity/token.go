package entity

import "strings"

// TokenInfo holds the details of a specific token as listed in token files.
type TokenInfo struct {
	ChainID  uint64 `json:"chainId"`
	Address  string `json:"address"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// Token is a registry token. Type names the balance module able to handle it.
type Token struct {
	ID              string     `json:"id"`
	Type            string     `json:"type"`
	Network         NetworkRef `json:"network"`
	Symbol          string     `json:"symbol"`
	Decimals        uint8      `json:"decimals"`
	ContractAddress string     `json:"contractAddress,omitempty"`
	IsTestnet       bool       `json:"isTestnet"`
	// PriceID is the key under which a RateProvider reports this token's price.
	PriceID string `json:"priceId,omitempty"`
}

// ChainData is one consistent view of the registry.
type ChainData struct {
	Chains      map[string]Chain      `json:"chains"`
	EvmNetworks map[string]EvmNetwork `json:"evmNetworks"`
	Tokens      map[string]Token      `json:"tokens"`
}

// HasNetwork reports whether ref resolves to a chain or network in d.
func (d ChainData) HasNetwork(ref NetworkRef) bool {
	if id, ok := ref.ChainID(); ok {
		_, found := d.Chains[id]
		return found
	}
	if id, ok := ref.EvmNetworkID(); ok {
		_, found := d.EvmNetworks[id]
		return found
	}
	return false
}

// IsTestnet reports whether the network ref points to is a test network.
func (d ChainData) IsTestnet(ref NetworkRef) bool {
	if id, ok := ref.ChainID(); ok {
		return d.Chains[id].IsTestnet
	}
	if id, ok := ref.EvmNetworkID(); ok {
		return d.EvmNetworks[id].IsTestnet
	}
	return false
}

// Token types handled by the EVM balance modules.
const (
	TokenTypeEvmNative = "evm-native"
	TokenTypeEvmERC20  = "evm-erc20"
)

// EvmNativeTokenID returns the registry id of an EVM network's native token.
func EvmNativeTokenID(networkID string) string {
	return networkID + "-" + TokenTypeEvmNative
}

// EvmERC20TokenID returns the registry id of an ERC-20 contract on an EVM network.
func EvmERC20TokenID(networkID, contractAddress string) string {
	return networkID + "-" + TokenTypeEvmERC20 + "-" + strings.ToLower(contractAddress)
}
