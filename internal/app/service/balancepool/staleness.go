package balancepool

import "balance_pool/internal/domain/entity"

// handleModuleError marks the error's scope stale when the module lost
// connectivity to one network. Anything else is reported and leaves the data untouched.
func (p *Pool) handleModuleError(source string, err error) {
	if scoped, ok := entity.AsModuleError(err); ok && scoped.Retryable {
		n := p.markStale(source, scoped.Network)
		p.metrics.ModuleErrors.WithLabelValues(source, "stale").Inc()
		p.logger.Warn("balance module lost connectivity",
			"module", source, "network", scoped.Network.String(), "stale", n, "error", err)
		if n > 0 {
			p.schedulePublish()
		}
		return
	}

	p.metrics.ModuleErrors.WithLabelValues(source, "unexpected").Inc()
	p.logger.Error("balance module error", "module", source, "error", err)
	if p.cfg.ErrorTracker != nil {
		p.cfg.ErrorTracker.CaptureError(err, map[string]string{
			"module": source,
			"pool":   p.cfg.Name,
		})
	}
}

// markStale flags the records of source on network whose address is watched by that module.
func (p *Pool) markStale(source string, network entity.NetworkRef) int {
	watched := make(map[string]struct{})
	for _, addresses := range p.spec[source] {
		for _, a := range addresses {
			watched[entity.NormalizeAddress(a)] = struct{}{}
		}
	}

	n := 0
	for id, r := range p.balances {
		if r.Source != source || r.Network != network || r.Status == entity.StatusStale {
			continue
		}
		if _, ok := watched[entity.NormalizeAddress(r.Address)]; !ok {
			continue
		}
		p.balances[id] = r.WithStatus(entity.StatusStale)
		n++
	}
	return n
}

func (p *Pool) initialisingIDs(spec entity.WatchSpec) map[string]struct{} {
	ids := make(map[string]struct{}, spec.Len())
	if p.applied == nil {
		return ids
	}
	for source, byToken := range spec {
		for tokenID, addresses := range byToken {
			token, ok := p.applied.tokens[tokenID]
			if !ok {
				continue
			}
			for _, a := range addresses {
				ids[entity.BalanceID(source, token.Network, tokenID, a)] = struct{}{}
			}
		}
	}
	return ids
}

func (p *Pool) startInitialisingTimer(gen uint64) {
	p.stopInitialisingTimer()
	p.initTimer = p.after(p.cfg.InitialisingTimeout, func() {
		p.onInitialisingTimeout(gen)
	})
}

func (p *Pool) stopInitialisingTimer() {
	if p.initTimer != nil {
		p.initTimer.Stop()
		p.initTimer = nil
	}
}

// onInitialisingTimeout gives up on identities that never reported: the set
// is cleared, initialising records are settled as live and cache-status
// records become stale.
func (p *Pool) onInitialisingTimeout(gen uint64) {
	if gen != p.generation || p.state != stateOpen {
		return
	}
	p.initTimer = nil
	pending := len(p.initialising)
	p.initialising = make(map[string]struct{})

	stale, settled := 0, 0
	for id, r := range p.balances {
		switch r.Status {
		case entity.StatusCache:
			p.balances[id] = r.WithStatus(entity.StatusStale)
			stale++
		case entity.StatusInitialising:
			p.balances[id] = r.WithStatus(entity.StatusLive)
			settled++
		}
	}
	if pending > 0 || stale > 0 || settled > 0 {
		p.logger.Warn("balances still initialising after timeout",
			"pending", pending, "stale", stale, "settled", settled, "timeout", p.cfg.InitialisingTimeout.String())
		p.schedulePublish()
	}
}
