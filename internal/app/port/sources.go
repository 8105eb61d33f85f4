package port

import (
	"context"

	"balance_pool/internal/domain/entity"
)

// The Watch* methods return a channel that first yields the current value and
// then every later change. The channel is closed when ctx is done. Slow readers
// only ever see the latest value.

// ChainRegistry is the read-only catalogue of chains, networks and tokens.
type ChainRegistry interface {
	WatchChainData(ctx context.Context) <-chan entity.ChainData
}

// Keyring is the set of addresses to watch.
type Keyring interface {
	WatchAccounts(ctx context.Context) <-chan []entity.Account
}

// SettingsStore holds user settings.
type SettingsStore interface {
	WatchSettings(ctx context.Context) <-chan entity.Settings
}
