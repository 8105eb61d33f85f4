package balancepool

import (
	"reflect"
	"sort"
	"strings"

	"balance_pool/internal/domain/entity"
)

// watchInputs is the normalized view of registry, keyring and settings the
// pool derives its watch list from. Testnets are already filtered out when the
// settings exclude them.
type watchInputs struct {
	chains          map[string]entity.Chain
	evmNetworks     map[string]entity.EvmNetwork
	tokens          map[string]entity.Token
	accounts        map[string]entity.Account // keyed by normalized address
	includeTestnets bool
}

func buildWatchInputs(data entity.ChainData, accounts []entity.Account, settings entity.Settings) *watchInputs {
	in := &watchInputs{
		chains:          make(map[string]entity.Chain, len(data.Chains)),
		evmNetworks:     make(map[string]entity.EvmNetwork, len(data.EvmNetworks)),
		tokens:          make(map[string]entity.Token, len(data.Tokens)),
		accounts:        make(map[string]entity.Account, len(accounts)),
		includeTestnets: settings.IncludeTestnets,
	}
	for id, chain := range data.Chains {
		if chain.IsTestnet && !settings.IncludeTestnets {
			continue
		}
		in.chains[id] = chain
	}
	for id, network := range data.EvmNetworks {
		if network.IsTestnet && !settings.IncludeTestnets {
			continue
		}
		in.evmNetworks[id] = network
	}
	for id, token := range data.Tokens {
		if token.IsTestnet && !settings.IncludeTestnets {
			continue
		}
		if !in.hasNetwork(token.Network) {
			continue
		}
		in.tokens[id] = token
	}
	for _, account := range accounts {
		address := entity.NormalizeAddress(account.Address)
		if address == "" {
			continue
		}
		in.accounts[address] = entity.Account{Address: strings.TrimSpace(account.Address), GenesisHash: account.GenesisHash}
	}
	return in
}

// equal compares every input field. Identical data under a new registry
// reference is equal.
func (in *watchInputs) equal(other *watchInputs) bool {
	if in == nil || other == nil {
		return in == other
	}
	return in.includeTestnets == other.includeTestnets &&
		reflect.DeepEqual(in.chains, other.chains) &&
		reflect.DeepEqual(in.evmNetworks, other.evmNetworks) &&
		reflect.DeepEqual(in.tokens, other.tokens) &&
		reflect.DeepEqual(in.accounts, other.accounts)
}

func (in *watchInputs) hasNetwork(ref entity.NetworkRef) bool {
	if id, ok := ref.ChainID(); ok {
		_, found := in.chains[id]
		return found
	}
	if id, ok := ref.EvmNetworkID(); ok {
		_, found := in.evmNetworks[id]
		return found
	}
	return false
}

// compatible reports whether account can hold balances on the network.
//
// EVM networks only accept ethereum addresses. Chains accept the address
// format they declare. A genesis-restricted account only matches the chain with
// that genesis hash, or an EVM network linked to such a chain.
func (in *watchInputs) compatible(account entity.Account, ref entity.NetworkRef) bool {
	format := entity.AddressFormat(account.Address)
	if id, ok := ref.ChainID(); ok {
		chain, found := in.chains[id]
		if !found {
			return false
		}
		if account.GenesisHash != "" && !strings.EqualFold(chain.GenesisHash, account.GenesisHash) {
			return false
		}
		accountFormat := chain.AccountFormat
		if accountFormat == "" {
			accountFormat = entity.AccountFormatSS58
		}
		return format == accountFormat
	}
	if id, ok := ref.EvmNetworkID(); ok {
		network, found := in.evmNetworks[id]
		if !found || format != entity.AccountFormatEthereum {
			return false
		}
		if account.GenesisHash == "" {
			return true
		}
		linked, found := in.chains[network.SubstrateChainID]
		return found && network.SubstrateChainID != "" && strings.EqualFold(linked.GenesisHash, account.GenesisHash)
	}
	return false
}

// watchSpec lists, per module type, the addresses each token must be watched
// for. Only types accepted by hasModule are included.
func (in *watchInputs) watchSpec(hasModule func(string) bool) entity.WatchSpec {
	spec := make(entity.WatchSpec)
	tokenIDs := sortedKeys(in.tokens)
	addresses := sortedKeys(in.accounts)
	for _, tokenID := range tokenIDs {
		token := in.tokens[tokenID]
		if !hasModule(token.Type) {
			continue
		}
		for _, address := range addresses {
			account := in.accounts[address]
			if !in.compatible(account, token.Network) {
				continue
			}
			byToken, ok := spec[token.Type]
			if !ok {
				byToken = make(entity.AddressesByToken)
				spec[token.Type] = byToken
			}
			byToken[tokenID] = append(byToken[tokenID], account.Address)
		}
	}
	return spec
}

// keeps reports whether a record still belongs to the watched set.
func (in *watchInputs) keeps(r entity.BalanceRecord) bool {
	token, ok := in.tokens[r.TokenID]
	if !ok || token.Network != r.Network {
		return false
	}
	account, ok := in.accounts[entity.NormalizeAddress(r.Address)]
	if !ok {
		return false
	}
	return in.compatible(account, r.Network)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
