package restapi

import (
	"bufio"
	"context"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"balance_pool/internal/app/service/balancepool"
	"balance_pool/internal/domain/entity"

	"github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

const (
	alice = "0x1111111111111111111111111111111111111111"
	bob   = "0x2222222222222222222222222222222222222222"
)

type fakePool struct {
	mu        sync.Mutex
	update    balancepool.Update
	consumers map[int]func(balancepool.Update)
	nextID    int
	lookup    entity.BalanceRecord
	lookupErr error
}

func (p *fakePool) Snapshot() balancepool.Update {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.update
}

func (p *fakePool) Subscribe(onUpdate func(balancepool.Update)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.consumers == nil {
		p.consumers = make(map[int]func(balancepool.Update))
	}
	id := p.nextID
	p.nextID++
	p.consumers[id] = onUpdate
	go onUpdate(p.update)
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.consumers, id)
	}
}

func (p *fakePool) consumerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.consumers)
}

func (p *fakePool) GetBalance(_ context.Context, _ entity.NetworkRef, _, _ string) (entity.BalanceRecord, error) {
	return p.lookup, p.lookupErr
}

type staticChains struct{ data entity.ChainData }

func (s staticChains) ChainData() (entity.ChainData, bool) { return s.data, true }

type fixedRates struct{ rates entity.TokenRates }

func (f fixedRates) Rates(context.Context, []entity.Token) entity.TokenRates { return f.rates }

func ethRecord(address string, wei int64) entity.BalanceRecord {
	return entity.BalanceRecord{
		Source:  entity.TokenTypeEvmNative,
		Network: entity.EvmNetworkRef("1"),
		TokenID: "1-evm-native",
		Address: address,
		Amounts: entity.FreeAmount(new(big.Int).Mul(big.NewInt(wei), big.NewInt(1e15))),
		Status:  entity.StatusLive,
	}
}

func newTestRouter(pool *fakePool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	chains := staticChains{data: entity.ChainData{Tokens: map[string]entity.Token{
		"1-evm-native": {ID: "1-evm-native", Type: entity.TokenTypeEvmNative, Network: entity.EvmNetworkRef("1"), Symbol: "ETH", Decimals: 18},
	}}}
	rates := fixedRates{rates: entity.TokenRates{
		"1-evm-native": {Decimals: 18, Prices: map[string]decimal.Decimal{"usd": decimal.NewFromInt(2000)}},
	}}
	handler := NewBalanceHandler(pool, chains, rates, nopLogger{})
	return SetupRouter(handler, RouterConfig{MetricsPath: "/metrics", Gatherer: prometheus.NewRegistry(), Logger: nopLogger{}})
}

func get(t *testing.T, router http.Handler, url string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestGetBalancesHandler(t *testing.T) {
	pool := &fakePool{update: balancepool.Update{
		Status:   balancepool.StatusLive,
		Balances: entity.NewBalances(ethRecord(alice, 1500), ethRecord(bob, 500)),
	}}
	router := newTestRouter(pool)

	w := get(t, router, "/api/v1/balances")
	require.Equal(t, http.StatusOK, w.Code)
	var resp APIBalancesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "live", resp.Status)
	assert.Len(t, resp.Balances, 2)
	require.NotNil(t, resp.Sum)
	assert.True(t, decimal.NewFromInt(4000).Equal(resp.Sum.Total), resp.Sum.Total.String())

	w = get(t, router, "/api/v1/balances?address="+strings.ToUpper(alice[2:])+"&network=evm:1")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Balances, "address filter must match the whole address")

	w = get(t, router, "/api/v1/balances?address="+alice+"&network=evm:1")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Balances, 1)
	assert.Equal(t, "1.5", resp.Balances[0].Formatted)
	assert.Equal(t, "ETH", resp.Balances[0].Symbol)
	assert.Equal(t, "evm:1", resp.Balances[0].Network)
	assert.True(t, decimal.NewFromInt(3000).Equal(resp.Sum.Total))

	w = get(t, router, "/api/v1/balances?network=bogus")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLookupBalanceHandler(t *testing.T) {
	pool := &fakePool{lookup: ethRecord(alice, 2000)}
	router := newTestRouter(pool)

	w := get(t, router, "/api/v1/balances/lookup?token=1-evm-native&address="+alice)
	require.Equal(t, http.StatusOK, w.Code)
	var b APIBalance
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &b))
	assert.Equal(t, "2", b.Formatted)
	assert.Equal(t, "2000000000000000000", b.Total)

	tests := []struct {
		name string
		err  error
		url  string
		code int
	}{
		{"missing params", nil, "/api/v1/balances/lookup?token=1-evm-native", http.StatusBadRequest},
		{"bad network", nil, "/api/v1/balances/lookup?token=x&address=y&network=nope", http.StatusBadRequest},
		{"unknown token", fmt.Errorf("%w: x", balancepool.ErrUnknownToken), "/api/v1/balances/lookup?token=x&address=y", http.StatusNotFound},
		{"no module", fmt.Errorf("%w: x", balancepool.ErrNoModule), "/api/v1/balances/lookup?token=x&address=y", http.StatusUnprocessableEntity},
		{"closed", balancepool.ErrPoolClosed, "/api/v1/balances/lookup?token=x&address=y", http.StatusServiceUnavailable},
		{"fetch failed", fmt.Errorf("rpc down"), "/api/v1/balances/lookup?token=x&address=y", http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool.lookupErr = tt.err
			assert.Equal(t, tt.code, get(t, router, tt.url).Code)
		})
	}
}

func TestStreamBalancesHandler(t *testing.T) {
	pool := &fakePool{update: balancepool.Update{
		Status:   balancepool.StatusInitialising,
		Balances: entity.NewBalances(ethRecord(alice, 1000)),
	}}
	srv := httptest.NewServer(newTestRouter(pool))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/balances/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	scanner := bufio.NewScanner(resp.Body)
	var event, data string
	for scanner.Scan() {
		line := scanner.Text()
		if v, ok := strings.CutPrefix(line, "event:"); ok {
			event = strings.TrimSpace(v)
		}
		if v, ok := strings.CutPrefix(line, "data:"); ok {
			data = strings.TrimSpace(v)
			break
		}
	}
	assert.Equal(t, "balances", event)
	var body APIBalancesResponse
	require.NoError(t, json.Unmarshal([]byte(data), &body))
	assert.Equal(t, "initialising", body.Status)
	assert.Len(t, body.Balances, 1)
	assert.Equal(t, 1, pool.consumerCount())

	cancel()
	assert.Eventually(t, func() bool { return pool.consumerCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHealthAndMetrics(t *testing.T) {
	router := newTestRouter(&fakePool{})
	assert.Equal(t, http.StatusOK, get(t, router, "/healthz").Code)
	assert.Equal(t, http.StatusOK, get(t, router, "/metrics").Code)
}
