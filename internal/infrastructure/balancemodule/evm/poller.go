package evm

import (
	"context"
	"time"

	"balance_pool/internal/app/port"
	"balance_pool/internal/domain/entity"

	"golang.org/x/sync/errgroup"
)

// networkState is the change detection state of one network. It is only
// touched by the goroutine polling that network.
type networkState struct {
	batch *networkBatch
	last  map[string]entity.Amounts
	// confirmed is false until the network answers, and again after a
	// failure: the next answer then reports every identity.
	confirmed bool
}

type poller struct {
	module   *Module
	networks []*networkState
	callback port.ModuleCallback
}

func newPoller(m *Module, batches []*networkBatch, initial entity.Balances, callback port.ModuleCallback) *poller {
	p := &poller{module: m, callback: callback}
	for _, b := range batches {
		state := &networkState{batch: b, last: make(map[string]entity.Amounts)}
		for id := range b.records {
			if r, ok := initial.Get(id); ok {
				state.last[id] = r.Amounts
			}
		}
		p.networks = append(p.networks, state)
	}
	return p
}

func (p *poller) run(ctx context.Context) {
	if len(p.networks) == 0 {
		return
	}
	ticker := time.NewTicker(p.module.opts.PollInterval)
	defer ticker.Stop()

	for {
		p.poll(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (p *poller) poll(ctx context.Context) {
	var g errgroup.Group
	if p.module.opts.MaxConcurrentNetworks > 0 {
		g.SetLimit(p.module.opts.MaxConcurrentNetworks)
	}
	for _, state := range p.networks {
		g.Go(func() error {
			p.pollNetwork(ctx, state)
			return nil
		})
	}
	_ = g.Wait()
}

func (p *poller) pollNetwork(ctx context.Context, state *networkState) {
	records, err := p.module.fetch(ctx, state.batch)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		state.confirmed = false
		p.callback(port.ModuleUpdate{Err: err})
		return
	}

	changes := state.diff(records)
	state.confirmed = true
	if len(changes) > 0 {
		p.callback(port.ModuleUpdate{Balances: changes})
	}
}

// diff returns the records whose amounts moved since the last report. Until
// the network is confirmed every record is returned, zeros included.
func (s *networkState) diff(records []entity.BalanceRecord) []entity.BalanceRecord {
	var changes []entity.BalanceRecord
	for _, r := range records {
		id := r.ID()
		prev, known := s.last[id]
		s.last[id] = r.Amounts
		if s.confirmed && known && prev.Equal(r.Amounts) {
			continue
		}
		if s.confirmed && !known && r.IsZero() {
			continue
		}
		changes = append(changes, r)
	}
	return changes
}
