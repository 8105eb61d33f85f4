package entity

import (
	"fmt"
	"strings"
)

type networkKind uint8

const (
	networkKindNone networkKind = iota
	networkKindChain
	networkKindEvm
)

// NetworkRef identifies the network a balance lives on. It is either a chain
// (addressed by its registry id) or an EVM network, never both.
type NetworkRef struct {
	kind networkKind
	id   string
}

// ChainRef references a chain by id.
func ChainRef(id string) NetworkRef {
	return NetworkRef{kind: networkKindChain, id: id}
}

// EvmNetworkRef references an EVM network by id (its numeric chain id as a string).
func EvmNetworkRef(id string) NetworkRef {
	return NetworkRef{kind: networkKindEvm, id: id}
}

// ChainID returns the chain id and true if r references a chain.
func (r NetworkRef) ChainID() (string, bool) {
	return r.id, r.kind == networkKindChain
}

// EvmNetworkID returns the network id and true if r references an EVM network.
func (r NetworkRef) EvmNetworkID() (string, bool) {
	return r.id, r.kind == networkKindEvm
}

// IsChain reports whether r references a chain.
func (r NetworkRef) IsChain() bool { return r.kind == networkKindChain }

// IsEvm reports whether r references an EVM network.
func (r NetworkRef) IsEvm() bool { return r.kind == networkKindEvm }

// IsZero reports whether r references nothing.
func (r NetworkRef) IsZero() bool { return r.kind == networkKindNone }

// ID returns the bare id, without the kind prefix.
func (r NetworkRef) ID() string { return r.id }

func (r NetworkRef) String() string {
	switch r.kind {
	case networkKindChain:
		return "chain:" + r.id
	case networkKindEvm:
		return "evm:" + r.id
	default:
		return ""
	}
}

// ParseNetworkRef parses the String form of a NetworkRef ("chain:<id>" or "evm:<id>").
func ParseNetworkRef(s string) (NetworkRef, error) {
	kind, id, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || id == "" {
		return NetworkRef{}, fmt.Errorf("invalid network reference %q", s)
	}
	switch strings.ToLower(kind) {
	case "chain":
		return ChainRef(id), nil
	case "evm":
		return EvmNetworkRef(id), nil
	default:
		return NetworkRef{}, fmt.Errorf("invalid network kind %q in %q", kind, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (r NetworkRef) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *NetworkRef) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*r = NetworkRef{}
		return nil
	}
	parsed, err := ParseNetworkRef(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Chain is a non-EVM chain known to the registry.
type Chain struct {
	ID              string `json:"id" yaml:"id"`
	Name            string `json:"name" yaml:"name"`
	GenesisHash     string `json:"genesisHash" yaml:"genesisHash"`
	AccountFormat   string `json:"accountFormat" yaml:"accountFormat"`
	IsTestnet       bool   `json:"isTestnet" yaml:"isTestnet"`
	MetadataVersion string `json:"metadataVersion,omitempty" yaml:"metadataVersion,omitempty"`
	NativeTokenID   string `json:"nativeTokenId,omitempty" yaml:"nativeTokenId,omitempty"`
}

// EvmNetwork holds the definition of one EVM-compatible network.
type EvmNetwork struct {
	ChainID                   uint64   `json:"chainId" yaml:"chainId"`
	Name                      string   `json:"name" yaml:"name"`
	Identifier                string   `json:"identifier" yaml:"identifier"` // e.g. "ethereum", "bsc"
	NativeSymbol              string   `json:"nativeSymbol" yaml:"nativeSymbol"`
	Decimals                  int32    `json:"decimals" yaml:"decimals"`
	PrimaryRPCURL             string   `json:"primaryRpcUrl" yaml:"primaryRpcUrl"`
	FallbackRPCURLs           []string `json:"fallbackRpcUrls" yaml:"fallbackRpcUrls"`
	BlockExplorerURL          string   `json:"blockExplorerUrl,omitempty" yaml:"blockExplorerUrl,omitempty"`
	DEXScreenerChainID        string   `json:"dexScreenerChainId,omitempty" yaml:"dexScreenerChainId,omitempty"`
	WrappedNativeTokenAddress string   `json:"wrappedNativeTokenAddress,omitempty" yaml:"wrappedNativeTokenAddress,omitempty"`
	IsTestnet                 bool     `json:"isTestnet" yaml:"isTestnet"`
	// SubstrateChainID links a frontier-style EVM to the chain it runs on.
	SubstrateChainID string `json:"substrateChainId,omitempty" yaml:"substrateChainId,omitempty"`
}

// ID returns the registry id of the network.
func (n EvmNetwork) ID() string {
	return fmt.Sprintf("%d", n.ChainID)
}

// Ref returns the NetworkRef of the network.
func (n EvmNetwork) Ref() NetworkRef {
	return EvmNetworkRef(n.ID())
}
