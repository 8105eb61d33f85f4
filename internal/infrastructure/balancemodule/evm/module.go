package evm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"balance_pool/internal/app/port"
	"balance_pool/internal/domain/entity"
	"balance_pool/internal/infrastructure/network/client"

	"golang.org/x/sync/errgroup"
)

// DefaultPollInterval is used when Options.PollInterval is not set.
const DefaultPollInterval = 15 * time.Second

// ErrNoChainData is returned when the registry has not published anything yet.
var ErrNoChainData = errors.New("chain data not loaded")

// ChainDataSource gives the module the registry view it resolves token ids against.
type ChainDataSource interface {
	ChainData() (entity.ChainData, bool)
}

// Options tunes a Module.
type Options struct {
	PollInterval time.Duration
	// MaxConcurrentNetworks bounds how many networks are queried at once. 0 means no limit.
	MaxConcurrentNetworks int
}

// Module is a port.BalanceModule for one EVM token type. Native balances are
// read with eth_getBalance, ERC-20 balances with balanceOf calls.
type Module struct {
	tokenType   string
	requestType entity.BalanceRequestType
	chains      ChainDataSource
	clients     port.BlockchainClientProvider
	opts        Options
	logger      port.Logger
}

// NewNativeModule creates the module serving evm-native tokens.
func NewNativeModule(chains ChainDataSource, clients port.BlockchainClientProvider, opts Options, logger port.Logger) *Module {
	return newModule(entity.TokenTypeEvmNative, entity.NativeBalanceRequest, chains, clients, opts, logger)
}

// NewERC20Module creates the module serving evm-erc20 tokens.
func NewERC20Module(chains ChainDataSource, clients port.BlockchainClientProvider, opts Options, logger port.Logger) *Module {
	return newModule(entity.TokenTypeEvmERC20, entity.TokenBalanceRequest, chains, clients, opts, logger)
}

func newModule(tokenType string, requestType entity.BalanceRequestType, chains ChainDataSource, clients port.BlockchainClientProvider, opts Options, logger port.Logger) *Module {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	return &Module{
		tokenType:   tokenType,
		requestType: requestType,
		chains:      chains,
		clients:     clients,
		opts:        opts,
		logger:      logger,
	}
}

// Type implements port.BalanceModule.
func (m *Module) Type() string {
	return m.tokenType
}

// networkBatch is everything one network has to answer in a poll.
type networkBatch struct {
	network  entity.EvmNetwork
	requests []entity.BalanceRequestItem
	records  map[string]entity.BalanceRecord // request id -> record template
}

// plan resolves token ids and groups the requests by network. Tokens that
// are unknown or belong to another module are skipped.
func (m *Module) plan(addressesByToken entity.AddressesByToken) ([]*networkBatch, error) {
	data, ok := m.chains.ChainData()
	if !ok {
		return nil, ErrNoChainData
	}

	byNetwork := make(map[string]*networkBatch)
	for tokenID, addresses := range addressesByToken {
		token, ok := data.Tokens[tokenID]
		if !ok || token.Type != m.tokenType {
			m.logger.Debug("Skipping token not handled by module", "module", m.tokenType, "token", tokenID)
			continue
		}
		networkID, ok := token.Network.EvmNetworkID()
		if !ok {
			continue
		}
		def, ok := data.EvmNetworks[networkID]
		if !ok {
			m.logger.Debug("Skipping token on unknown network", "module", m.tokenType, "token", tokenID, "network", networkID)
			continue
		}

		batch, ok := byNetwork[networkID]
		if !ok {
			batch = &networkBatch{network: def, records: make(map[string]entity.BalanceRecord)}
			byNetwork[networkID] = batch
		}
		for _, address := range addresses {
			if !entity.IsEthereumAddress(address) {
				continue
			}
			record := entity.BalanceRecord{
				Source:  m.tokenType,
				Network: token.Network,
				TokenID: tokenID,
				Address: address,
			}
			id := record.ID()
			if _, dup := batch.records[id]; dup {
				continue
			}
			batch.records[id] = record
			batch.requests = append(batch.requests, entity.BalanceRequestItem{
				ID:            id,
				Type:          m.requestType,
				WalletAddress: address,
				TokenID:       tokenID,
				TokenAddress:  token.ContractAddress,
				TokenSymbol:   token.Symbol,
				TokenDecimals: token.Decimals,
			})
		}
	}

	batches := make([]*networkBatch, 0, len(byNetwork))
	for _, b := range byNetwork {
		if len(b.requests) == 0 {
			continue
		}
		sort.Slice(b.requests, func(i, j int) bool { return b.requests[i].ID < b.requests[j].ID })
		batches = append(batches, b)
	}
	sort.Slice(batches, func(i, j int) bool { return batches[i].network.ChainID < batches[j].network.ChainID })
	return batches, nil
}

// fetch queries one network. Failed items are left out of the result; a
// failure of the whole network comes back as a ModuleError scoped to it.
func (m *Module) fetch(ctx context.Context, batch *networkBatch) ([]entity.BalanceRecord, error) {
	cl, err := m.clients.GetClient(batch.network)
	if err != nil {
		return nil, m.networkError(batch.network, err)
	}
	results, err := cl.GetBalances(ctx, batch.requests)
	if err != nil {
		return nil, m.networkError(batch.network, err)
	}

	records := make([]entity.BalanceRecord, 0, len(results))
	for _, res := range results {
		if res.Error != nil {
			m.logger.Warn("Failed to fetch balance",
				"module", m.tokenType,
				"network", batch.network.Name,
				"token", res.TokenID,
				"wallet", res.WalletAddress,
				"error", res.Error)
			continue
		}
		record, ok := batch.records[res.RequestID]
		if !ok || res.Balance == nil {
			continue
		}
		record.Amounts = entity.FreeAmount(res.Balance)
		records = append(records, record)
	}
	return records, nil
}

func (m *Module) networkError(network entity.EvmNetwork, err error) error {
	return &entity.ModuleError{
		Source:    m.tokenType,
		Network:   network.Ref(),
		Retryable: client.IsRetryable(err),
		Err:       err,
	}
}

// FetchBalances implements port.BalanceModule. Networks are queried
// concurrently; the first network failure fails the whole call.
func (m *Module) FetchBalances(ctx context.Context, addressesByToken entity.AddressesByToken) (entity.Balances, error) {
	batches, err := m.plan(addressesByToken)
	if err != nil {
		return entity.Balances{}, err
	}

	results := make([][]entity.BalanceRecord, len(batches))
	g, gctx := errgroup.WithContext(ctx)
	if m.opts.MaxConcurrentNetworks > 0 {
		g.SetLimit(m.opts.MaxConcurrentNetworks)
	}
	for i, batch := range batches {
		g.Go(func() error {
			records, err := m.fetch(gctx, batch)
			if err != nil {
				return err
			}
			for j := range records {
				records[j].Status = entity.StatusLive
			}
			results[i] = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return entity.Balances{}, fmt.Errorf("%s fetch failed: %w", m.tokenType, err)
	}

	var all []entity.BalanceRecord
	for _, records := range results {
		all = append(all, records...)
	}
	return entity.NewBalances(all...), nil
}

// SubscribeBalances implements port.BalanceModule by polling every network
// on an interval. initial seeds the change detection.
func (m *Module) SubscribeBalances(ctx context.Context, addressesByToken entity.AddressesByToken, initial entity.Balances, callback port.ModuleCallback) (port.CloseFunc, error) {
	batches, err := m.plan(addressesByToken)
	if err != nil {
		return nil, err
	}

	subCtx, cancel := context.WithCancel(ctx)
	p := newPoller(m, batches, initial, callback)
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.run(subCtx)
	}()

	m.logger.Debug("Balance subscription started", "module", m.tokenType, "networks", len(batches))
	return func() {
		cancel()
		<-done
	}, nil
}
