package balancepool

import (
	"fmt"
	"sync"
	"time"

	"balance_pool/internal/app/port"
	"balance_pool/internal/domain/entity"

	"golang.org/x/sync/errgroup"
)

// openedEvent carries the close handles of a finished open back to the run loop.
type openedEvent struct {
	gen     uint64
	handles []port.CloseFunc
}

// teardown closes a batch of module subscriptions after the module close delay.
type teardown struct {
	handles []port.CloseFunc
	timer   *time.Timer
	once    sync.Once
}

func (t *teardown) run() {
	t.once.Do(func() {
		for _, closeFn := range t.handles {
			closeFn()
		}
	})
}

func (p *Pool) scheduleTeardown(handles []port.CloseFunc) {
	if len(handles) == 0 {
		return
	}
	t := &teardown{handles: handles}
	p.teardowns[t] = struct{}{}
	t.timer = time.AfterFunc(p.cfg.ModuleCloseDelay, func() {
		t.run()
		p.post(func() { delete(p.teardowns, t) })
	})
}

// maybeOpen opens subscriptions when a consumer is attached and the watch list is known.
func (p *Pool) maybeOpen() {
	if len(p.consumers) == 0 || p.applied == nil {
		return
	}
	switch p.state {
	case stateClosed:
		p.open()
	case stateClosing:
		p.wantOpen = true
	}
}

func (p *Pool) requestClose() {
	switch p.state {
	case stateOpen:
		p.close()
	case stateClosing:
		p.wantOpen = false
	}
}

// restart reopens subscriptions against the current watch list.
func (p *Pool) restart() {
	if p.state != stateOpen {
		return
	}
	p.metrics.SubscriptionRestarts.Inc()
	p.wantOpen = true
	p.close()
}

func (p *Pool) open() {
	p.generation++
	gen := p.generation
	p.state = stateOpen
	p.pendingOpen = true
	p.handles = nil
	p.metrics.Generation.Set(float64(gen))
	p.metrics.SubscriptionsOpened.Inc()

	spec := p.spec
	p.initialising = p.initialisingIDs(spec)
	p.startInitialisingTimer(gen)
	p.logger.Info("opening balance subscriptions",
		"generation", gen, "modules", len(spec), "watched", spec.Len())

	known := entity.BalancesFromMap(p.balances)
	p.opening.Add(1)
	go p.subscribeModules(gen, spec, known)
	p.schedulePublish()
}

// subscribeModules runs off the loop and reports the close handles back to it.
// Only one open is ever in flight, so the send on p.opened never blocks.
func (p *Pool) subscribeModules(gen uint64, spec entity.WatchSpec, known entity.Balances) {
	defer p.opening.Done()
	var (
		mu      sync.Mutex
		handles = make([]port.CloseFunc, 0, len(spec))
		g       errgroup.Group
	)
	for _, source := range spec.Modules() {
		module := p.modules[source]
		byToken := spec[source].Clone()
		initial := known.BySource(source)
		g.Go(func() error {
			closeFn, err := module.SubscribeBalances(p.ctx, byToken, initial, p.moduleCallback(gen, source))
			if err != nil {
				err = fmt.Errorf("subscribe %s: %w", source, err)
				p.post(func() { p.onModuleUpdate(gen, source, port.ModuleUpdate{Err: err}) })
				return nil
			}
			if closeFn != nil {
				mu.Lock()
				handles = append(handles, closeFn)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	p.opened <- openedEvent{gen: gen, handles: handles}
}

func (p *Pool) onOpened(gen uint64, handles []port.CloseFunc) {
	if gen == p.generation && p.state == stateOpen {
		p.handles = handles
		p.pendingOpen = false
		return
	}
	// the subscription was closed before it finished opening
	p.scheduleTeardown(handles)
	if p.state == stateClosing {
		p.pendingOpen = false
		p.finishClose()
	}
}

func (p *Pool) close() {
	p.generation++
	p.metrics.Generation.Set(float64(p.generation))
	p.metrics.SubscriptionsClosed.Inc()
	p.stopInitialisingTimer()
	p.initialising = make(map[string]struct{})
	p.scheduleTeardown(p.handles)
	p.handles = nil

	if p.pendingOpen {
		p.state = stateClosing
		p.logger.Debug("closing balance subscriptions, waiting for pending open", "generation", p.generation)
		return
	}
	p.finishClose()
}

func (p *Pool) finishClose() {
	p.state = stateClosed
	p.logger.Info("balance subscriptions closed", "generation", p.generation)
	if p.wantOpen {
		p.wantOpen = false
		if p.applied != nil {
			p.open()
			return
		}
	}
	p.schedulePublish()
}

func (p *Pool) moduleCallback(gen uint64, source string) port.ModuleCallback {
	return func(u port.ModuleUpdate) {
		p.post(func() { p.onModuleUpdate(gen, source, u) })
	}
}

func (p *Pool) onModuleUpdate(gen uint64, source string, u port.ModuleUpdate) {
	if gen != p.generation || p.state != stateOpen {
		p.metrics.DiscardedUpdates.Inc()
		p.logger.Debug("discarding update from superseded subscription",
			"module", source, "generation", gen, "current", p.generation)
		return
	}
	if u.Err != nil {
		p.handleModuleError(source, u.Err)
		return
	}
	p.mergeUpdate(source, u)
}

func (p *Pool) mergeUpdate(source string, u port.ModuleUpdate) {
	status := entity.StatusLive
	if u.Initialising {
		status = entity.StatusInitialising
	}
	wasInitialising := len(p.initialising) > 0

	incoming := make([]entity.BalanceRecord, 0, len(u.Balances))
	for _, r := range u.Balances {
		if r.Source == "" {
			r.Source = source
		}
		if r.Source != source {
			p.logger.Warn("module reported a record for another source", "module", source, "source", r.Source)
			continue
		}
		if r.Status == "" {
			r.Status = status
		}
		delete(p.initialising, r.ID())
		incoming = append(incoming, r)
	}

	res := mergeBalances(p.balances, incoming)
	res.apply(p.balances)
	if res.changed() {
		p.recordsChanged()
	}
	if res.changed() || (wasInitialising && len(p.initialising) == 0) {
		p.schedulePublish()
	}
}
