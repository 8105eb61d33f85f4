package pricing

import (
	"context"
	"sort"
	"strings"
	"time"

	"balance_pool/internal/app/port"
	"balance_pool/internal/domain/entity"
	"balance_pool/internal/pkg/utils"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// CurrencyUSD is the only currency DEX Screener prices in.
const CurrencyUSD = "usd"

const maxConcurrentRequests = 5

var stablecoinSymbols = map[string]struct{}{ //nolint:gochecknoglobals
	"USDC": {},
	"USDT": {},
	"DAI":  {},
}

// PriceService implements port.RateProvider on top of DEX Screener. Prices
// are cached per price id for the configured TTL.
type PriceService struct {
	client    DEXScreenerClient
	cache     *cache.Cache
	batchSize int
	logger    port.Logger
}

// NewPriceService creates a new PriceService.
func NewPriceService(client DEXScreenerClient, ttl, cleanupInterval time.Duration, batchSize int, logger port.Logger) *PriceService {
	if batchSize <= 0 {
		batchSize = 30
	}
	return &PriceService{
		client:    client,
		cache:     cache.New(ttl, cleanupInterval),
		batchSize: batchSize,
		logger:    logger,
	}
}

// Rates implements port.RateProvider. Tokens without a price id or without
// a usable pair are left out.
func (s *PriceService) Rates(ctx context.Context, tokens []entity.Token) entity.TokenRates {
	missing := make(map[string][]string) // dexscreener chain -> addresses
	for _, t := range tokens {
		if t.PriceID == "" {
			continue
		}
		if _, ok := s.cache.Get(t.PriceID); ok {
			continue
		}
		chain, address, ok := strings.Cut(t.PriceID, ":")
		if !ok {
			continue
		}
		missing[chain] = append(missing[chain], address)
	}
	s.fetch(ctx, missing)

	rates := make(entity.TokenRates, len(tokens))
	for _, t := range tokens {
		if t.PriceID == "" {
			continue
		}
		cached, ok := s.cache.Get(t.PriceID)
		if !ok {
			continue
		}
		rates[t.ID] = entity.TokenRate{
			Decimals: t.Decimals,
			Prices:   map[string]decimal.Decimal{CurrencyUSD: cached.(decimal.Decimal)},
		}
	}
	return rates
}

func (s *PriceService) fetch(ctx context.Context, missing map[string][]string) {
	chains := make([]string, 0, len(missing))
	for chain := range missing {
		chains = append(chains, chain)
	}
	sort.Strings(chains)

	var g errgroup.Group
	g.SetLimit(maxConcurrentRequests)
	for _, chain := range chains {
		addresses := dedupe(missing[chain])
		for _, batch := range utils.Batch(addresses, s.batchSize) {
			g.Go(func() error {
				pairs, err := s.client.GetTokenPairsByAddresses(ctx, chain, batch)
				if err != nil {
					s.logger.Warn("Failed to get token pairs from DEX Screener",
						"dexscreener_chain_id", chain, "tokens", len(batch), "error", err)
					return nil
				}
				for _, address := range batch {
					price, ok := selectBestPrice(pairs, address)
					if !ok {
						s.logger.Debug("No usable pair for token", "dexscreener_chain_id", chain, "token_address", address)
						continue
					}
					s.cache.SetDefault(chain+":"+address, price)
				}
				return nil
			})
		}
	}
	_ = g.Wait()
}

// selectBestPrice prefers the most liquid pair quoted in a stablecoin and
// otherwise takes the most liquid pair overall.
func selectBestPrice(pairs []PairData, baseTokenAddress string) (decimal.Decimal, bool) {
	var bestOverall, bestStable *PairData
	for i := range pairs {
		pair := &pairs[i]
		if !strings.EqualFold(pair.BaseToken.Address, baseTokenAddress) {
			continue
		}
		price, err := decimal.NewFromString(pair.PriceUsd)
		if err != nil || !price.IsPositive() {
			continue
		}
		if _, stable := stablecoinSymbols[strings.ToUpper(pair.QuoteToken.Symbol)]; stable {
			if bestStable == nil || pair.liquidityUSD() > bestStable.liquidityUSD() {
				bestStable = pair
			}
		}
		if bestOverall == nil || pair.liquidityUSD() > bestOverall.liquidityUSD() {
			bestOverall = pair
		}
	}

	best := bestStable
	if best == nil {
		best = bestOverall
	}
	if best == nil {
		return decimal.Zero, false
	}
	return decimal.RequireFromString(best.PriceUsd), true
}

func dedupe(addresses []string) []string {
	seen := make(map[string]struct{}, len(addresses))
	out := make([]string, 0, len(addresses))
	for _, a := range addresses {
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}
