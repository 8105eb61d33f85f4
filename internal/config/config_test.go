package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_AppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("server:\n  port: \"9090\"\n"))
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.BalanceCache.Backend)
	assert.Equal(t, "data/balances.db", cfg.BalanceCache.Path)
	assert.Equal(t, "https://api.dexscreener.com", cfg.DEXScreener.BaseURL)
	assert.Equal(t, int64(10000), cfg.TokenPriceSvc.RequestTimeoutMillis)
	assert.Equal(t, 30, cfg.TokenPriceSvc.MaxTokensPerBatchRequest)
	assert.Equal(t, time.Duration(0), cfg.BalancePool.PublishDebounce(), "zero keeps the pool default")
}

func TestParse_FullDocument(t *testing.T) {
	doc := `
logging:
  level: debug
  format: console
settings:
  includeTestnets: true
chains:
  - id: polkadot
    name: Polkadot
    genesisHash: "0x91b171bb158e2d3848fa23a9f1c25182fb8e20313b2c1eb49219da7a70ce90c3"
    accountFormat: ss58
networks:
  - identifier: ethereum
    primaryRpcUrl: https://eth.example.org
balancePool:
  publishDebounceMs: 100
  moduleCloseDelayMs: 2000
balanceCache:
  backend: wal
`
	cfg, err := Parse([]byte(doc))
	require.NoError(t, err)

	assert.True(t, cfg.Settings.IncludeTestnets)
	require.Len(t, cfg.Chains, 1)
	assert.Equal(t, "ss58", cfg.Chains[0].AccountFormat)
	assert.Equal(t, "https://eth.example.org", cfg.Networks[0].PrimaryRPCURL)
	assert.Equal(t, 100*time.Millisecond, cfg.BalancePool.PublishDebounce())
	assert.Equal(t, 2*time.Second, cfg.BalancePool.ModuleCloseDelay())
	assert.Equal(t, "data/balances-wal", cfg.BalanceCache.Path)
}

func TestParse_Invalid(t *testing.T) {
	tests := map[string]string{
		"unknown backend":    "balanceCache:\n  backend: redis\n",
		"network without id": "networks:\n  - primaryRpcUrl: https://x\n",
		"duplicate network":  "networks:\n  - identifier: base\n  - identifier: BASE\n",
		"bad account format": "chains:\n  - id: x\n    accountFormat: bech32\n",
		"malformed yaml":     "server: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: warn\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
