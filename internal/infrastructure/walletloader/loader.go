package walletloader

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"balance_pool/internal/app/port"
	"balance_pool/internal/domain/entity"
	"balance_pool/internal/pkg/observable"
)

const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// WalletFileLoader is a keyring backed by a text file with one
// `address[,genesisHash]` entry per line. Blank lines and # comments are skipped.
type WalletFileLoader struct {
	filePath string
	logger   port.Logger
	accounts *observable.Subject[[]entity.Account]
}

// NewWalletFileLoader creates a new WalletFileLoader. Call Reload to read the file.
func NewWalletFileLoader(filePath string, logger port.Logger) *WalletFileLoader {
	return &WalletFileLoader{
		filePath: filePath,
		logger:   logger,
		accounts: observable.New[[]entity.Account](),
	}
}

// WatchAccounts implements port.Keyring.
func (l *WalletFileLoader) WatchAccounts(ctx context.Context) <-chan []entity.Account {
	return l.accounts.Watch(ctx)
}

// Accounts returns the last loaded accounts.
func (l *WalletFileLoader) Accounts() []entity.Account {
	accounts, _ := l.accounts.Get()
	return append([]entity.Account(nil), accounts...)
}

// Reload re-reads the file and publishes the accounts.
func (l *WalletFileLoader) Reload() error {
	accounts, err := l.load()
	if err != nil {
		return err
	}
	l.accounts.Set(accounts)
	l.logger.Info("Wallets loaded successfully from file", "count", len(accounts), "path", l.filePath)
	return nil
}

// Run reloads the file every interval until ctx is done.
func (l *WalletFileLoader) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := l.Reload(); err != nil {
				l.logger.Warn("Failed to reload wallets", "path", l.filePath, "error", err)
			}
		}
	}
}

func (l *WalletFileLoader) load() ([]entity.Account, error) {
	file, err := os.Open(l.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open wallet file %s: %w", l.filePath, err)
	}
	defer file.Close()

	var accounts []entity.Account
	seen := make(map[string]struct{})
	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		account, ok := parseLine(line)
		if !ok {
			l.logger.Warn("Skipping invalid wallet entry", "file", l.filePath, "line_number", lineNum, "entry", line)
			continue
		}
		key := entity.NormalizeAddress(account.Address)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		accounts = append(accounts, account)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error scanning wallet file %s: %w", l.filePath, err)
	}
	return accounts, nil
}

func parseLine(line string) (entity.Account, bool) {
	address, genesis, _ := strings.Cut(line, ",")
	account := entity.Account{
		Address:     strings.TrimSpace(address),
		GenesisHash: strings.TrimSpace(genesis),
	}
	if entity.IsEthereumAddress(account.Address) {
		return account, true
	}
	if strings.HasPrefix(account.Address, "0x") {
		return entity.Account{}, false
	}
	return account, isSS58(account.Address)
}

func isSS58(address string) bool {
	if len(address) < 46 || len(address) > 50 {
		return false
	}
	for _, r := range address {
		if !strings.ContainsRune(base58Alphabet, r) {
			return false
		}
	}
	return true
}
