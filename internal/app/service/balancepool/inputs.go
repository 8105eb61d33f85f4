package balancepool

// onInputsChanged applies the first complete input snapshot immediately and
// debounces every later change.
func (p *Pool) onInputsChanged() {
	if p.chainData == nil || !p.haveAccounts || p.settings == nil {
		return
	}
	if p.applied == nil && p.inputTimer == nil {
		p.applyInputs()
		return
	}

	p.inputSeq++
	seq := p.inputSeq
	if p.inputTimer != nil {
		p.inputTimer.Stop()
	}
	p.inputTimer = p.after(p.cfg.InputDebounce, func() {
		if seq != p.inputSeq {
			return
		}
		p.inputTimer = nil
		p.applyInputs()
	})
}

func (p *Pool) applyInputs() {
	next := buildWatchInputs(*p.chainData, p.accounts, *p.settings)
	if next.equal(p.applied) {
		p.logger.Debug("watch inputs unchanged, keeping subscriptions")
		return
	}
	p.applied = next
	p.spec = next.watchSpec(p.hasModule)
	p.logger.Info("watch list updated",
		"tokens", len(next.tokens), "accounts", len(next.accounts), "watched", p.spec.Len())

	if removed := p.prune(); removed > 0 {
		p.recordsChanged()
		p.schedulePublish()
	}

	if p.state == stateClosed {
		p.maybeOpen()
		return
	}
	p.restart()
}

// prune drops records that no longer belong to an active network, token,
// account or compatible pair.
func (p *Pool) prune() int {
	n := 0
	for id, r := range p.balances {
		if !p.applied.keeps(r) {
			delete(p.balances, id)
			n++
		}
	}
	if n > 0 {
		p.logger.Debug("pruned balances outside the watch list", "removed", n)
	}
	return n
}
