package evm

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"syscall"
	"testing"
	"time"

	"balance_pool/internal/app/port"
	"balance_pool/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

const (
	alice = "0x1111111111111111111111111111111111111111"
	bob   = "0x2222222222222222222222222222222222222222"
	usdc  = "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"
)

var (
	ethereum = entity.EvmNetwork{ChainID: 1, Name: "Ethereum", Identifier: "ethereum", NativeSymbol: "ETH", Decimals: 18}
	bsc      = entity.EvmNetwork{ChainID: 56, Name: "BSC", Identifier: "bsc", NativeSymbol: "BNB", Decimals: 18}
)

type staticChains struct{ data entity.ChainData }

func (s staticChains) ChainData() (entity.ChainData, bool) { return s.data, true }

func testChains() staticChains {
	return staticChains{data: entity.ChainData{
		EvmNetworks: map[string]entity.EvmNetwork{"1": ethereum, "56": bsc},
		Tokens: map[string]entity.Token{
			"1-evm-native":  {ID: "1-evm-native", Type: entity.TokenTypeEvmNative, Network: ethereum.Ref(), Symbol: "ETH", Decimals: 18},
			"56-evm-native": {ID: "56-evm-native", Type: entity.TokenTypeEvmNative, Network: bsc.Ref(), Symbol: "BNB", Decimals: 18},
			entity.EvmERC20TokenID("1", usdc): {
				ID: entity.EvmERC20TokenID("1", usdc), Type: entity.TokenTypeEvmERC20, Network: ethereum.Ref(),
				Symbol: "USDC", Decimals: 6, ContractAddress: usdc,
			},
		},
	}}
}

// fakeClient answers from a balance table keyed by "tokenID/wallet".
type fakeClient struct {
	def entity.EvmNetwork

	mu       sync.Mutex
	balances map[string]int64
	err      error
	requests [][]entity.BalanceRequestItem
}

func (c *fakeClient) Definition() entity.EvmNetwork { return c.def }

func (c *fakeClient) GetBalances(_ context.Context, requests []entity.BalanceRequestItem) ([]entity.BalanceResultItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, requests)
	if c.err != nil {
		return nil, c.err
	}
	results := make([]entity.BalanceResultItem, 0, len(requests))
	for _, r := range requests {
		res := entity.BalanceResultItem{RequestID: r.ID, WalletAddress: r.WalletAddress, TokenID: r.TokenID}
		if v, ok := c.balances[r.TokenID+"/"+r.WalletAddress]; ok {
			res.Balance = big.NewInt(v)
		} else {
			res.Error = errors.New("execution reverted")
		}
		results = append(results, res)
	}
	return results, nil
}

func (c *fakeClient) set(key string, v int64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances[key] = v
	c.err = err
}

func (c *fakeClient) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

type fakeProvider struct {
	clients map[string]*fakeClient
}

func (p fakeProvider) GetClient(def entity.EvmNetwork) (port.BlockchainClient, error) {
	c, ok := p.clients[def.ID()]
	if !ok {
		return nil, errors.New("no client")
	}
	return c, nil
}

func newProvider() (fakeProvider, *fakeClient, *fakeClient) {
	usdcKey := entity.EvmERC20TokenID("1", usdc) + "/" + alice
	balances := map[string]int64{"1-evm-native/" + alice: 100, "1-evm-native/" + bob: 0}
	balances[usdcKey] = 5
	eth := &fakeClient{def: ethereum, balances: balances}
	bnb := &fakeClient{def: bsc, balances: map[string]int64{"56-evm-native/" + alice: 7}}
	return fakeProvider{clients: map[string]*fakeClient{"1": eth, "56": bnb}}, eth, bnb
}

type updates struct {
	mu  sync.Mutex
	all []port.ModuleUpdate
}

func (u *updates) on(update port.ModuleUpdate) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.all = append(u.all, update)
}

func (u *updates) snapshot() []port.ModuleUpdate {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]port.ModuleUpdate(nil), u.all...)
}

func (u *updates) count() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.all)
}

func TestModule_Type(t *testing.T) {
	provider, _, _ := newProvider()
	assert.Equal(t, entity.TokenTypeEvmNative, NewNativeModule(testChains(), provider, Options{}, nopLogger{}).Type())
	assert.Equal(t, entity.TokenTypeEvmERC20, NewERC20Module(testChains(), provider, Options{}, nopLogger{}).Type())
}

func TestModule_FetchBalances(t *testing.T) {
	provider, eth, _ := newProvider()
	m := NewNativeModule(testChains(), provider, Options{}, nopLogger{})

	balances, err := m.FetchBalances(context.Background(), entity.AddressesByToken{
		"1-evm-native":                    {alice, bob, "15oF4uVJwmo4TdGW7VfQxNLavjCXviqxT9S1MgbjMNHr6Sp5"},
		"56-evm-native":                   {alice},
		entity.EvmERC20TokenID("1", usdc): {alice},
		"unknown":                         {alice},
	})
	require.NoError(t, err)
	require.Equal(t, 3, balances.Len())

	r, ok := balances.Get(entity.BalanceID(entity.TokenTypeEvmNative, ethereum.Ref(), "1-evm-native", alice))
	require.True(t, ok)
	assert.Equal(t, int64(100), r.Amounts.Free.Int64())
	assert.Equal(t, entity.StatusLive, r.Status)

	assert.Equal(t, 1, balances.ByEvmNetwork("56").Len())
	require.Len(t, eth.requests, 1)
	for _, req := range eth.requests[0] {
		assert.Equal(t, entity.NativeBalanceRequest, req.Type)
	}
}

func TestModule_FetchBalancesERC20(t *testing.T) {
	provider, eth, _ := newProvider()
	m := NewERC20Module(testChains(), provider, Options{}, nopLogger{})
	tokenID := entity.EvmERC20TokenID("1", usdc)

	balances, err := m.FetchBalances(context.Background(), entity.AddressesByToken{tokenID: {alice}})
	require.NoError(t, err)
	require.Equal(t, 1, balances.Len())
	require.Len(t, eth.requests, 1)
	assert.Equal(t, entity.TokenBalanceRequest, eth.requests[0][0].Type)
	assert.Equal(t, usdc, eth.requests[0][0].TokenAddress)
	assert.Equal(t, uint8(6), eth.requests[0][0].TokenDecimals)
}

func TestModule_FetchBalancesNetworkFailure(t *testing.T) {
	provider, eth, _ := newProvider()
	eth.fail(syscall.ECONNREFUSED)
	m := NewNativeModule(testChains(), provider, Options{}, nopLogger{})

	_, err := m.FetchBalances(context.Background(), entity.AddressesByToken{"1-evm-native": {alice}})
	require.Error(t, err)
	scoped, ok := entity.AsModuleError(err)
	require.True(t, ok)
	assert.True(t, scoped.Retryable)
	assert.Equal(t, ethereum.Ref(), scoped.Network)
	assert.Equal(t, entity.TokenTypeEvmNative, scoped.Source)
}

func TestModule_SubscribeReportsChanges(t *testing.T) {
	provider, eth, _ := newProvider()
	m := NewNativeModule(testChains(), provider, Options{PollInterval: 20 * time.Millisecond}, nopLogger{})
	u := &updates{}

	closeFn, err := m.SubscribeBalances(context.Background(), entity.AddressesByToken{
		"1-evm-native":  {alice, bob},
		"56-evm-native": {alice},
	}, entity.Balances{}, u.on)
	require.NoError(t, err)
	defer closeFn()

	// First answer of each network confirms every identity, zeros included.
	require.Eventually(t, func() bool { return u.count() >= 2 }, time.Second, 5*time.Millisecond)
	first := u.snapshot()[:2]
	reported := 0
	for _, update := range first {
		require.NoError(t, update.Err)
		reported += len(update.Balances)
	}
	assert.Equal(t, 3, reported)

	// Nothing moves: no more updates.
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 2, u.count())

	eth.set("1-evm-native/"+alice, 150, nil)
	require.Eventually(t, func() bool { return u.count() == 3 }, time.Second, 5*time.Millisecond)
	last := u.snapshot()[2]
	require.Len(t, last.Balances, 1)
	assert.Equal(t, int64(150), last.Balances[0].Amounts.Free.Int64())
}

func TestModule_SubscribeReportsConnectivityLossAndRecovery(t *testing.T) {
	provider, eth, _ := newProvider()
	m := NewNativeModule(testChains(), provider, Options{PollInterval: 20 * time.Millisecond}, nopLogger{})
	u := &updates{}

	closeFn, err := m.SubscribeBalances(context.Background(), entity.AddressesByToken{"1-evm-native": {alice}}, entity.Balances{}, u.on)
	require.NoError(t, err)
	defer closeFn()
	require.Eventually(t, func() bool { return u.count() >= 1 }, time.Second, 5*time.Millisecond)

	eth.fail(syscall.ECONNRESET)
	require.Eventually(t, func() bool {
		all := u.snapshot()
		return all[len(all)-1].Err != nil
	}, time.Second, 5*time.Millisecond)
	all := u.snapshot()
	scoped, ok := entity.AsModuleError(all[len(all)-1].Err)
	require.True(t, ok)
	assert.True(t, scoped.Retryable)

	// Unchanged balances are reported again once the network answers.
	eth.fail(nil)
	require.Eventually(t, func() bool {
		all := u.snapshot()
		return all[len(all)-1].Err == nil && len(all[len(all)-1].Balances) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestModule_SubscribeSeedsFromInitial(t *testing.T) {
	provider, eth, _ := newProvider()
	m := NewNativeModule(testChains(), provider, Options{PollInterval: 20 * time.Millisecond}, nopLogger{})
	u := &updates{}

	initial := entity.NewBalances(entity.BalanceRecord{
		Source: entity.TokenTypeEvmNative, Network: ethereum.Ref(), TokenID: "1-evm-native", Address: bob,
		Amounts: entity.FreeAmount(big.NewInt(40)), Status: entity.StatusCache,
	})
	closeFn, err := m.SubscribeBalances(context.Background(), entity.AddressesByToken{"1-evm-native": {bob}}, initial, u.on)
	require.NoError(t, err)
	defer closeFn()

	require.Eventually(t, func() bool { return u.count() >= 1 }, time.Second, 5*time.Millisecond)
	first := u.snapshot()[0]
	require.Len(t, first.Balances, 1)
	assert.True(t, first.Balances[0].IsZero(), "a known balance that dropped to zero is reported")

	eth.set("1-evm-native/"+bob, 0, nil)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, u.count())
}

func TestModule_CloseStopsPolling(t *testing.T) {
	provider, eth, _ := newProvider()
	m := NewNativeModule(testChains(), provider, Options{PollInterval: 10 * time.Millisecond}, nopLogger{})

	closeFn, err := m.SubscribeBalances(context.Background(), entity.AddressesByToken{"1-evm-native": {alice}}, entity.Balances{}, func(port.ModuleUpdate) {})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		eth.mu.Lock()
		defer eth.mu.Unlock()
		return len(eth.requests) >= 2
	}, time.Second, 5*time.Millisecond)

	closeFn()
	eth.mu.Lock()
	calls := len(eth.requests)
	eth.mu.Unlock()
	time.Sleep(50 * time.Millisecond)
	eth.mu.Lock()
	defer eth.mu.Unlock()
	assert.Equal(t, calls, len(eth.requests))
}

func TestModule_SubscribeWithoutChainData(t *testing.T) {
	provider, _, _ := newProvider()
	m := NewNativeModule(emptyChains{}, provider, Options{}, nopLogger{})
	_, err := m.SubscribeBalances(context.Background(), entity.AddressesByToken{"1-evm-native": {alice}}, entity.Balances{}, func(port.ModuleUpdate) {})
	assert.ErrorIs(t, err, ErrNoChainData)
}

type emptyChains struct{}

func (emptyChains) ChainData() (entity.ChainData, bool) { return entity.ChainData{}, false }
