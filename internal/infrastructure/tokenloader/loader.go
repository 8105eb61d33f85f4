package tokenloader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"balance_pool/internal/app/port"
	"balance_pool/internal/domain/entity"
	"balance_pool/internal/pkg/utils"

	"github.com/ethereum/go-ethereum/common"
)

// TokenFileLoader implements port.TokenProvider on a directory holding one
// JSON token list per network identifier (e.g. data/tokens/ethereum.json).
type TokenFileLoader struct {
	tokenDirPath string
	logger       port.Logger
}

// NewTokenLoader creates a new TokenFileLoader.
func NewTokenLoader(tokenDirPath string, logger port.Logger) *TokenFileLoader {
	return &TokenFileLoader{
		tokenDirPath: tokenDirPath,
		logger:       logger,
	}
}

// GetTokensByNetwork reads the token list of every given network that has a
// file. The result is keyed by network id; a network with a file but no valid
// token still gets an entry.
func (l *TokenFileLoader) GetTokensByNetwork(networks []entity.EvmNetwork) (map[string][]entity.TokenInfo, error) {
	files, err := os.ReadDir(l.tokenDirPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read token directory %s: %w", l.tokenDirPath, err)
	}

	byIdentifier := make(map[string]entity.EvmNetwork, len(networks))
	for _, n := range networks {
		byIdentifier[strings.ToLower(n.Identifier)] = n
	}

	tokensByNetwork := make(map[string][]entity.TokenInfo)
	for _, file := range files {
		if file.IsDir() || !strings.EqualFold(filepath.Ext(file.Name()), ".json") {
			continue
		}
		identifier := strings.ToLower(strings.TrimSuffix(file.Name(), filepath.Ext(file.Name())))
		network, ok := byIdentifier[identifier]
		if !ok {
			l.logger.Debug("Token file found for an unknown network, skipping", "file", file.Name())
			continue
		}

		path := filepath.Join(l.tokenDirPath, file.Name())
		tokens, err := utils.LoadTokensFromJSON(path)
		if err != nil {
			l.logger.Warn("Failed to load token file, skipping", "path", path, "error", err)
			continue
		}

		valid := make([]entity.TokenInfo, 0, len(tokens))
		seen := make(map[string]struct{}, len(tokens))
		for _, token := range tokens {
			if token.ChainID != network.ChainID {
				l.logger.Warn("Token has mismatched ChainID, skipping",
					"file", path, "symbol", token.Symbol, "token_chain_id", token.ChainID, "expected_chain_id", network.ChainID)
				continue
			}
			if !common.IsHexAddress(token.Address) {
				l.logger.Warn("Token has an invalid contract address, skipping", "file", path, "symbol", token.Symbol, "address", token.Address)
				continue
			}
			key := strings.ToLower(token.Address)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			valid = append(valid, token)
		}
		tokensByNetwork[network.ID()] = valid
		l.logger.Debug("Loaded tokens for network", "network", network.Identifier, "count", len(valid))
	}
	return tokensByNetwork, nil
}
