package networkdefinition

import (
	"testing"

	"balance_pool/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

func TestProvider_Builtins(t *testing.T) {
	p := NewNetworkDefinitionProvider(nopLogger{}, nil)

	eth, ok := p.GetNetworkDefinitionByName("Ethereum")
	require.True(t, ok)
	assert.Equal(t, uint64(1), eth.ChainID)
	assert.NotEmpty(t, eth.FallbackRPCURLs)

	sepolia, ok := p.GetNetworkDefinitionByChainID(11155111)
	require.True(t, ok)
	assert.True(t, sepolia.IsTestnet)

	moonbeam, _ := p.GetNetworkDefinitionByName("moonbeam")
	assert.Equal(t, "moonbeam", moonbeam.SubstrateChainID)

	all := p.GetAllNetworkDefinitions()
	require.NotEmpty(t, all)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].ChainID, all[i].ChainID)
	}
}

func TestProvider_Overrides(t *testing.T) {
	testnet := true
	p := NewNetworkDefinitionProvider(nopLogger{}, []config.NetworkOverride{
		{Identifier: "ethereum", PrimaryRPCURL: "https://eth.example.org", FallbackRPCURLs: []string{}},
		{Identifier: "bsc", Disabled: true},
		{Identifier: "devnet", ChainID: 31337, PrimaryRPCURL: "http://127.0.0.1:8545", IsTestnet: &testnet},
		{Identifier: "ghost"},
	})

	eth, _ := p.GetNetworkDefinitionByName("ethereum")
	assert.Equal(t, "https://eth.example.org", eth.PrimaryRPCURL)
	assert.Empty(t, eth.FallbackRPCURLs)

	_, ok := p.GetNetworkDefinitionByName("bsc")
	assert.False(t, ok)

	devnet, ok := p.GetNetworkDefinitionByChainID(31337)
	require.True(t, ok)
	assert.True(t, devnet.IsTestnet)

	_, ok = p.GetNetworkDefinitionByName("ghost")
	assert.False(t, ok)
}
