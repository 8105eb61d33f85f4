package balancecache

import (
	"context"
	"os"
	"strings"
	"sync"

	"balance_pool/internal/domain/entity"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"
)

const (
	defaultWalSegmentThreshold = 1000
	defaultWalMaxSegments      = 10
	snapshotKeyPrefix          = "balances_"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// WALStore appends every snapshot to a write-ahead log; the newest entry wins.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// OpenWAL opens the log under dir. Zero thresholds fall back to defaults.
func OpenWAL(dir string, segmentThreshold, maxSegments int) (*WALStore, error) {
	if segmentThreshold <= 0 {
		segmentThreshold = defaultWalSegmentThreshold
	}
	if maxSegments <= 0 {
		maxSegments = defaultWalMaxSegments
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create balance WAL directory")
	}
	wal, err := gowal.NewWAL(gowal.Config{
		Dir:              dir,
		Prefix:           "balances_",
		SegmentThreshold: segmentThreshold,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init balance WAL")
	}
	return &WALStore{wal: wal}, nil
}

// Persist implements port.BalanceCache.
func (s *WALStore) Persist(_ context.Context, balances []entity.CachedBalance) error {
	if balances == nil {
		balances = []entity.CachedBalance{}
	}
	payload, err := json.Marshal(balances)
	if err != nil {
		return errors.Wrap(err, "marshal balance snapshot")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.wal.CurrentIndex() + 1
	return errors.Wrap(s.wal.Write(next, snapshotKeyPrefix+"snapshot", payload), "write balance snapshot")
}

// Retrieve implements port.BalanceCache.
func (s *WALStore) Retrieve(_ context.Context) ([]entity.CachedBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for idx := s.wal.CurrentIndex(); idx > 0; idx-- {
		key, payload, err := s.wal.Get(idx)
		if err != nil || !strings.HasPrefix(key, snapshotKeyPrefix) {
			continue
		}
		var balances []entity.CachedBalance
		if err := json.Unmarshal(payload, &balances); err != nil {
			return nil, errors.Wrap(err, "decode balance snapshot")
		}
		return balances, nil
	}
	return nil, nil
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wal.Close()
}
