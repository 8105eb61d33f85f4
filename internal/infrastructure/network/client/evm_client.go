package client

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"balance_pool/internal/domain/entity"
	"balance_pool/internal/pkg/utils"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/time/rate"
)

// ERC20 ABI minimal part for balanceOf
const erc20ABI = `[{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"payable":false,"stateMutability":"view","type":"function"}]`

var (
	parsedERC20ABI  abi.ABI
	parsedERC20Once sync.Once
	erc20MethodID   []byte
)

func initParsedERC20ABI() {
	parsedERC20Once.Do(func() {
		var err error
		parsedERC20ABI, err = abi.JSON(strings.NewReader(erc20ABI))
		if err != nil {
			panic(fmt.Sprintf("failed to parse ERC20 ABI: %v", err))
		}
		erc20MethodID = parsedERC20ABI.Methods["balanceOf"].ID
	})
}

// Options tunes an EVMClient.
type Options struct {
	ConnectTimeout time.Duration
	CallTimeout    time.Duration
	RateLimit      float64 // batches per second; 0 disables throttling
	Burst          int
	MaxBatchSize   int
}

func (o Options) withDefaults() Options {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 10 * time.Second
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = 10 * time.Second
	}
	if o.Burst <= 0 {
		o.Burst = 1
	}
	if o.MaxBatchSize <= 0 {
		o.MaxBatchSize = 100
	}
	return o
}

// EVMClient implements port.BlockchainClient for one EVM network. Calls go
// to the primary RPC endpoint and move on to the fallbacks when an endpoint
// is unreachable.
type EVMClient struct {
	netDef    entity.EvmNetwork
	endpoints []string
	opts      Options
	limiter   *rate.Limiter

	mu      sync.Mutex
	clients map[string]*ethclient.Client
	active  int
}

// NewEVMClient creates a client for the given network definition.
func NewEVMClient(netDef entity.EvmNetwork, opts Options) (*EVMClient, error) {
	initParsedERC20ABI()
	endpoints := make([]string, 0, 1+len(netDef.FallbackRPCURLs))
	for _, u := range append([]string{netDef.PrimaryRPCURL}, netDef.FallbackRPCURLs...) {
		if u != "" {
			endpoints = append(endpoints, u)
		}
	}
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("network %s has no RPC endpoint", netDef.Name)
	}

	opts = opts.withDefaults()
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	return &EVMClient{
		netDef:    netDef,
		endpoints: endpoints,
		opts:      opts,
		limiter:   rate.NewLimiter(limit, opts.Burst),
		clients:   make(map[string]*ethclient.Client),
	}, nil
}

// Definition returns the network definition for this client.
func (c *EVMClient) Definition() entity.EvmNetwork {
	return c.netDef
}

// Close releases every dialed endpoint.
func (c *EVMClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for url, cl := range c.clients {
		cl.Close()
		delete(c.clients, url)
	}
}

func (c *EVMClient) dial(ctx context.Context, url string) (*ethclient.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cl, ok := c.clients[url]; ok {
		return cl, nil
	}
	dialCtx, cancel := context.WithTimeout(ctx, c.opts.ConnectTimeout)
	defer cancel()
	cl, err := ethclient.DialContext(dialCtx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC %s: %w", url, err)
	}
	c.clients[url] = cl
	return cl, nil
}

// batchCall sends elems to the active endpoint, moving to the next one on
// connectivity failures.
func (c *EVMClient) batchCall(ctx context.Context, elems []rpc.BatchElem) error {
	c.mu.Lock()
	start := c.active
	c.mu.Unlock()

	var lastErr error
	for i := 0; i < len(c.endpoints); i++ {
		idx := (start + i) % len(c.endpoints)
		url := c.endpoints[idx]

		cl, err := c.dial(ctx, url)
		if err == nil {
			callCtx, cancel := context.WithTimeout(ctx, c.opts.CallTimeout)
			err = cl.Client().BatchCallContext(callCtx, elems)
			cancel()
		}
		if err == nil {
			c.mu.Lock()
			c.active = idx
			c.mu.Unlock()
			return nil
		}
		lastErr = err
		if ctx.Err() != nil || !IsRetryable(err) {
			break
		}
		for j := range elems {
			elems[j].Error = nil
		}
	}
	return fmt.Errorf("RPC batch call failed on %s: %w", c.netDef.Name, lastErr)
}

// GetBalances fetches native and ERC-20 balances using JSON-RPC batch requests.
// A failure of the whole batch is returned as an error; per-item failures are
// reported on the item.
func (c *EVMClient) GetBalances(ctx context.Context, requests []entity.BalanceRequestItem) ([]entity.BalanceResultItem, error) {
	results := make([]entity.BalanceResultItem, 0, len(requests))
	for _, batch := range utils.Batch(requests, c.opts.MaxBatchSize) {
		if err := c.limiter.Wait(ctx); err != nil {
			return results, err
		}
		batchResults, err := c.getBalancesBatch(ctx, batch)
		if err != nil {
			return results, err
		}
		results = append(results, batchResults...)
	}
	return results, nil
}

func (c *EVMClient) getBalancesBatch(ctx context.Context, requests []entity.BalanceRequestItem) ([]entity.BalanceResultItem, error) {
	elems := make([]rpc.BatchElem, 0, len(requests))
	index := make([]int, 0, len(requests))
	results := make([]entity.BalanceResultItem, len(requests))

	for i, req := range requests {
		results[i] = entity.BalanceResultItem{
			RequestID:     req.ID,
			WalletAddress: req.WalletAddress,
			TokenID:       req.TokenID,
			TokenAddress:  req.TokenAddress,
			IsNative:      req.Type == entity.NativeBalanceRequest,
		}
		elem, err := balanceElem(req)
		if err != nil {
			results[i].Error = err
			continue
		}
		elems = append(elems, elem)
		index = append(index, i)
	}
	if len(elems) == 0 {
		return results, nil
	}

	if err := c.batchCall(ctx, elems); err != nil {
		return nil, err
	}

	for k, elem := range elems {
		i := index[k]
		if elem.Error != nil {
			results[i].Error = fmt.Errorf("failed to fetch %s for wallet %s: %w",
				requests[i].TokenSymbol, requests[i].WalletAddress, elem.Error)
			continue
		}
		balance, err := decodeBalance(requests[i], elem.Result)
		if err != nil {
			results[i].Error = err
			continue
		}
		results[i].Balance = balance
	}
	return results, nil
}

func balanceElem(req entity.BalanceRequestItem) (rpc.BatchElem, error) {
	if !common.IsHexAddress(req.WalletAddress) {
		return rpc.BatchElem{}, fmt.Errorf("invalid wallet address %q", req.WalletAddress)
	}
	wallet := common.HexToAddress(req.WalletAddress)

	switch req.Type {
	case entity.NativeBalanceRequest:
		return rpc.BatchElem{
			Method: "eth_getBalance",
			Args:   []interface{}{wallet, "latest"},
			Result: new(hexutil.Big),
		}, nil
	case entity.TokenBalanceRequest:
		if !common.IsHexAddress(req.TokenAddress) {
			return rpc.BatchElem{}, fmt.Errorf("invalid token address %q for %s", req.TokenAddress, req.TokenSymbol)
		}
		callData := append(append([]byte{}, erc20MethodID...), common.LeftPadBytes(wallet.Bytes(), 32)...)
		return rpc.BatchElem{
			Method: "eth_call",
			Args: []interface{}{map[string]interface{}{
				"to":   common.HexToAddress(req.TokenAddress),
				"data": hexutil.Bytes(callData),
			}, "latest"},
			Result: new(hexutil.Bytes),
		}, nil
	default:
		return rpc.BatchElem{}, fmt.Errorf("unknown balance request type: %v for %s", req.Type, req.TokenSymbol)
	}
}

func decodeBalance(req entity.BalanceRequestItem, result interface{}) (*big.Int, error) {
	switch v := result.(type) {
	case *hexutil.Big:
		if v == nil {
			return big.NewInt(0), nil
		}
		return new(big.Int).Set((*big.Int)(v)), nil
	case *hexutil.Bytes:
		if v == nil || len(*v) == 0 {
			return big.NewInt(0), nil
		}
		unpacked, err := parsedERC20ABI.Unpack("balanceOf", *v)
		if err != nil {
			return nil, fmt.Errorf("failed to unpack balanceOf result for %s: %w. Raw: %s", req.TokenSymbol, err, hexutil.Encode(*v))
		}
		if len(unpacked) == 0 {
			return nil, errors.New("balanceOf unpack returned no data for " + req.TokenSymbol)
		}
		balance, ok := unpacked[0].(*big.Int)
		if !ok {
			return nil, fmt.Errorf("unexpected balanceOf result type %T for %s", unpacked[0], req.TokenSymbol)
		}
		return balance, nil
	default:
		return nil, fmt.Errorf("unexpected result type %T for %s", result, req.TokenSymbol)
	}
}
