package walletloader

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"balance_pool/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

const walletsFile = `
# team wallets
0x1111111111111111111111111111111111111111
0x1111111111111111111111111111111111111111
0xABCDEFabcdefABCDEFabcdefABCDEFabcdefABCD, 0x91b171bb158e2d3848fa23a9f1c25182fb8e20313b2c1eb49219da7a70ce90c3
15oF4uVJwmo4TdGW7VfQxNLavjCXviqxT9S1MgbjMNHr6Sp5
0x123
not a wallet
`

func TestWalletFileLoader_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallets.txt")
	require.NoError(t, os.WriteFile(path, []byte(walletsFile), 0o600))

	l := NewWalletFileLoader(path, nopLogger{})
	require.NoError(t, l.Reload())

	assert.Equal(t, []entity.Account{
		{Address: "0x1111111111111111111111111111111111111111"},
		{Address: "0xABCDEFabcdefABCDEFabcdefABCDEFabcdefABCD", GenesisHash: "0x91b171bb158e2d3848fa23a9f1c25182fb8e20313b2c1eb49219da7a70ce90c3"},
		{Address: "15oF4uVJwmo4TdGW7VfQxNLavjCXviqxT9S1MgbjMNHr6Sp5"},
	}, l.Accounts())
}

func TestWalletFileLoader_WatchSeesReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallets.txt")
	require.NoError(t, os.WriteFile(path, []byte("0x1111111111111111111111111111111111111111\n"), 0o600))

	l := NewWalletFileLoader(path, nopLogger{})
	require.NoError(t, l.Reload())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := l.WatchAccounts(ctx)
	assert.Len(t, <-ch, 1)

	require.NoError(t, os.WriteFile(path, []byte("0x1111111111111111111111111111111111111111\n0x2222222222222222222222222222222222222222\n"), 0o600))
	go l.Run(ctx, 10*time.Millisecond)

	select {
	case accounts := <-ch:
		assert.Len(t, accounts, 2)
	case <-time.After(time.Second):
		t.Fatal("reload was not published")
	}
}

func TestWalletFileLoader_MissingFile(t *testing.T) {
	l := NewWalletFileLoader(filepath.Join(t.TempDir(), "missing.txt"), nopLogger{})
	assert.Error(t, l.Reload())
	assert.Empty(t, l.Accounts())
}
