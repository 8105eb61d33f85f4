package balancepool

import (
	"context"
	"time"

	"balance_pool/internal/domain/entity"
)

// hydrate loads the durable snapshot. Every restored record carries the cache status.
func (p *Pool) hydrate() {
	if p.cfg.Cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.PersistTimeout)
	defer cancel()

	cached, err := p.cfg.Cache.Retrieve(ctx)
	if err != nil {
		p.metrics.PersistErrors.Inc()
		p.logger.Warn("failed to hydrate balances from cache", "error", err)
		return
	}
	for _, c := range cached {
		r, err := c.Record(entity.StatusCache)
		if err != nil {
			p.logger.Warn("skipping unreadable cached balance", "token", c.TokenID, "address", c.Address, "error", err)
			continue
		}
		if r.IsZero() {
			continue
		}
		p.balances[r.ID()] = r
	}
	p.recordsChanged()
	p.logger.Info("hydrated balances from cache", "records", len(p.balances))
}

// persist snapshots the whole map. Failures are logged and otherwise ignored.
func (p *Pool) persist() {
	if p.cfg.Cache == nil {
		return
	}
	start := time.Now()
	snapshot := make([]entity.CachedBalance, 0, len(p.balances))
	for _, id := range sortedKeys(p.balances) {
		snapshot = append(snapshot, entity.NewCachedBalance(p.balances[id]))
	}

	// p.ctx is already cancelled during shutdown.
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.PersistTimeout)
	defer cancel()
	err := p.cfg.Cache.Persist(ctx, snapshot)
	p.metrics.PersistDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		p.metrics.PersistErrors.Inc()
		p.logger.Warn("failed to persist balances", "records", len(snapshot), "error", err)
		return
	}
	p.logger.Debug("persisted balances", "records", len(snapshot), "took", time.Since(start).String())
}

func (p *Pool) stopPersistTicker() {
	if p.persistTicker != nil {
		p.persistTicker.Stop()
		p.persistTicker = nil
	}
}
