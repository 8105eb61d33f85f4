package balancecache

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"balance_pool/internal/app/port"
	"balance_pool/internal/config"
)

// Store is a BalanceCache that holds resources.
type Store interface {
	port.BalanceCache
	io.Closer
}

// Open builds the backend selected in cfg. It returns nil for backend "none".
func Open(ctx context.Context, cfg config.BalanceCacheConfig) (Store, error) {
	switch cfg.Backend {
	case "none":
		return nil, nil
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
		return OpenSQLite(ctx, cfg.Path)
	case "wal":
		return OpenWAL(cfg.Path, cfg.WalSegmentThreshold, cfg.WalMaxSegments)
	default:
		return nil, fmt.Errorf("unknown balance cache backend %q", cfg.Backend)
	}
}
