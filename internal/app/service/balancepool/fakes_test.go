package balancepool

import (
	"context"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"balance_pool/internal/app/port"
	"balance_pool/internal/domain/entity"

	"github.com/stretchr/testify/require"
)

const (
	evmNative   = "evm-native"
	ethToken    = "1-evm-native"
	dotToken    = "polkadot-substrate-native"
	aliceEth    = "0x1111111111111111111111111111111111111111"
	bobEth      = "0x2222222222222222222222222222222222222222"
	charlieSS58 = "15oF4uVJwmo4TdGW7VfQxNLavjCXviqxT9S1MgbjMNHr6Sp5"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

type fakeSources struct {
	chainData chan entity.ChainData
	accounts  chan []entity.Account
	settings  chan entity.Settings
}

func newFakeSources() *fakeSources {
	return &fakeSources{
		chainData: make(chan entity.ChainData, 8),
		accounts:  make(chan []entity.Account, 8),
		settings:  make(chan entity.Settings, 8),
	}
}

func (f *fakeSources) WatchChainData(context.Context) <-chan entity.ChainData { return f.chainData }
func (f *fakeSources) WatchAccounts(context.Context) <-chan []entity.Account  { return f.accounts }
func (f *fakeSources) WatchSettings(context.Context) <-chan entity.Settings   { return f.settings }

func (f *fakeSources) push(data entity.ChainData, accounts []entity.Account, settings entity.Settings) {
	f.chainData <- data
	f.accounts <- accounts
	f.settings <- settings
}

type fakeSubscription struct {
	spec     entity.AddressesByToken
	initial  entity.Balances
	callback port.ModuleCallback
	closed   atomic.Int32
}

type fakeModule struct {
	source string

	// subscribeDelay makes SubscribeBalances slow so opens overlap with closes.
	subscribeDelay time.Duration
	calls          atomic.Int32
	inflight       atomic.Int32
	maxInflight    atomic.Int32

	mu            sync.Mutex
	subscriptions []*fakeSubscription
	fetched       entity.Balances
	fetchErr      error
	fetchCalls    int
}

func (m *fakeModule) Type() string { return m.source }

func (m *fakeModule) FetchBalances(_ context.Context, _ entity.AddressesByToken) (entity.Balances, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchCalls++
	return m.fetched, m.fetchErr
}

func (m *fakeModule) SubscribeBalances(_ context.Context, byToken entity.AddressesByToken, initial entity.Balances, callback port.ModuleCallback) (port.CloseFunc, error) {
	m.calls.Add(1)
	n := m.inflight.Add(1)
	defer m.inflight.Add(-1)
	for {
		peak := m.maxInflight.Load()
		if n <= peak || m.maxInflight.CompareAndSwap(peak, n) {
			break
		}
	}
	if m.subscribeDelay > 0 {
		time.Sleep(m.subscribeDelay)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	s := &fakeSubscription{spec: byToken, initial: initial, callback: callback}
	m.subscriptions = append(m.subscriptions, s)
	return func() { s.closed.Add(1) }, nil
}

func (m *fakeModule) subscriptionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subscriptions)
}

func (m *fakeModule) subscription(i int) *fakeSubscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subscriptions[i]
}

type fakeCache struct {
	mu       sync.Mutex
	stored   []entity.CachedBalance
	persists int
}

func (c *fakeCache) Persist(_ context.Context, balances []entity.CachedBalance) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stored = append([]entity.CachedBalance(nil), balances...)
	c.persists++
	return nil
}

func (c *fakeCache) Retrieve(context.Context) ([]entity.CachedBalance, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]entity.CachedBalance(nil), c.stored...), nil
}

func (c *fakeCache) persistCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.persists
}

type fakeTracker struct {
	mu     sync.Mutex
	errors []error
}

func (t *fakeTracker) CaptureError(err error, _ map[string]string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errors = append(t.errors, err)
}

func (t *fakeTracker) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.errors)
}

type recorder struct {
	mu      sync.Mutex
	updates []Update
}

func (r *recorder) on(u Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.updates)
}

func (r *recorder) last() Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.updates) == 0 {
		return Update{}
	}
	return r.updates[len(r.updates)-1]
}

func testChainData() entity.ChainData {
	return entity.ChainData{
		Chains: map[string]entity.Chain{
			"polkadot": {ID: "polkadot", Name: "Polkadot", GenesisHash: "0x91b1", AccountFormat: entity.AccountFormatSS58},
		},
		EvmNetworks: map[string]entity.EvmNetwork{
			"1":        {ChainID: 1, Name: "Ethereum", NativeSymbol: "ETH", Decimals: 18},
			"11155111": {ChainID: 11155111, Name: "Sepolia", NativeSymbol: "ETH", Decimals: 18, IsTestnet: true},
		},
		Tokens: map[string]entity.Token{
			ethToken:              {ID: ethToken, Type: evmNative, Network: entity.EvmNetworkRef("1"), Symbol: "ETH", Decimals: 18},
			"11155111-evm-native": {ID: "11155111-evm-native", Type: evmNative, Network: entity.EvmNetworkRef("11155111"), Symbol: "ETH", Decimals: 18, IsTestnet: true},
			dotToken:              {ID: dotToken, Type: "substrate-native", Network: entity.ChainRef("polkadot"), Symbol: "DOT", Decimals: 10},
		},
	}
}

func ethRecord(address string, free int64) entity.BalanceRecord {
	return entity.BalanceRecord{
		Source:  evmNative,
		Network: entity.EvmNetworkRef("1"),
		TokenID: ethToken,
		Address: address,
		Amounts: entity.FreeAmount(big.NewInt(free)),
	}
}

type testPool struct {
	*Pool
	sources *fakeSources
	module  *fakeModule
	cache   *fakeCache
	tracker *fakeTracker
}

func newTestPool(t *testing.T, opts ...func(*Config)) *testPool {
	t.Helper()
	tp := &testPool{
		sources: newFakeSources(),
		module:  &fakeModule{source: evmNative},
		cache:   &fakeCache{},
		tracker: &fakeTracker{},
	}
	cfg := Config{
		Name:                "test",
		Registry:            tp.sources,
		Keyring:             tp.sources,
		Settings:            tp.sources,
		Modules:             []port.BalanceModule{tp.module},
		Cache:               tp.cache,
		ErrorTracker:        tp.tracker,
		Logger:              nopLogger{},
		PublishDebounce:     10 * time.Millisecond,
		InputDebounce:       30 * time.Millisecond,
		ConsumerCloseDelay:  60 * time.Millisecond,
		ModuleCloseDelay:    60 * time.Millisecond,
		InitialisingTimeout: 10 * time.Second,
		PersistInterval:     time.Hour,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	p, err := New(cfg)
	require.NoError(t, err)
	tp.Pool = p
	t.Cleanup(func() { _ = p.Close() })
	return tp
}

// open pushes inputs for alice, subscribes a recorder and waits for the module subscription.
func (tp *testPool) open(t *testing.T) (*recorder, func()) {
	t.Helper()
	tp.sources.push(testChainData(), []entity.Account{{Address: aliceEth}}, entity.Settings{})
	rec := &recorder{}
	unsubscribe := tp.Subscribe(rec.on)
	require.Eventually(t, func() bool { return tp.module.subscriptionCount() == 1 }, time.Second, 5*time.Millisecond)
	return rec, unsubscribe
}

func eventuallyHas(t *testing.T, rec *recorder, pred func(Update) bool) {
	t.Helper()
	require.Eventually(t, func() bool { return pred(rec.last()) }, time.Second, 5*time.Millisecond)
}
